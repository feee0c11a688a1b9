package trace

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "agencyfund/internal/log"
	"agencyfund/internal/middleware"
)

// ContextKey type for context keys
type ContextKey string

const (
	// MessageIDKey is the context key for the message ID
	MessageIDKey ContextKey = "message_id"
)

// Tracer assigns message IDs and logs each handled message.
type Tracer struct {
	metrics *Metrics
	logger  *slog.Logger
}

// Metrics tracks message metrics
type Metrics struct {
	TotalMessages       int64
	AverageResponseTime int64 // in microseconds
}

func NewTracer() *Tracer {
	return &Tracer{
		metrics: &Metrics{},
		logger:  slog.Default().With(applog.FieldComponent, applog.ComponentDialogue),
	}
}

// Middleware tags ctx with a message ID and logs start and completion.
func (t *Tracer) Middleware(next middleware.Handler) middleware.Handler {
	return func(ctx context.Context, userID, text string) string {
		start := time.Now()
		messageID := GenerateMessageID()
		ctx = WithMessageID(ctx, messageID)

		t.logger.DebugContext(ctx, "Message received",
			applog.FieldMessageID, messageID,
			applog.FieldUserID, userID,
			"length", len(text))

		atomic.AddInt64(&t.metrics.TotalMessages, 1)
		reply := next(ctx, userID, text)

		duration := time.Since(start)
		atomic.StoreInt64(&t.metrics.AverageResponseTime, duration.Microseconds())

		t.logger.InfoContext(ctx, "Message handled",
			applog.FieldMessageID, messageID,
			applog.FieldUserID, userID,
			"duration_ms", duration.Milliseconds(),
			"reply_lines", strings.Count(reply, "\n")+1)
		return reply
	}
}

// GenerateMessageID creates a unique message ID for tracing
func GenerateMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, MessageIDKey, id)
}

// GetMessageID extracts the message ID from context
func GetMessageID(ctx context.Context) string {
	if id, ok := ctx.Value(MessageIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (t *Tracer) GetMetrics() Metrics {
	return Metrics{
		TotalMessages:       atomic.LoadInt64(&t.metrics.TotalMessages),
		AverageResponseTime: atomic.LoadInt64(&t.metrics.AverageResponseTime),
	}
}
