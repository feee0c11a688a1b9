// Package middleware wraps chat message handling with cross-cutting steps.
package middleware

import "context"

// Handler processes one chat message from userID and returns the reply.
type Handler func(ctx context.Context, userID, text string) string

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

// Chain applies mws so the first one runs outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
