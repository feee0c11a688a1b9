// Package messaging delivers dialogue replies to users.
package messaging

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ReplyPublisher puts a reply on an outbound channel.
type ReplyPublisher interface {
	PublishReply(ctx context.Context, userID, text string) error
}

// Queue sends replies through a broker.
type Queue struct {
	pub ReplyPublisher
}

func NewQueue(pub ReplyPublisher) *Queue {
	return &Queue{pub: pub}
}

func (q *Queue) Send(ctx context.Context, userID, text string) error {
	if err := q.pub.PublishReply(ctx, userID, text); err != nil {
		return fmt.Errorf("send reply to %s: %w", userID, err)
	}
	return nil
}

// Console writes replies to a terminal, indenting continuation lines.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewConsole(w io.Writer, prefix string) *Console {
	return &Console{w: w, prefix: prefix}
}

func (c *Console) Send(_ context.Context, _ string, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	indent := strings.Repeat(" ", len([]rune(c.prefix)))
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lead := indent
		if i == 0 {
			lead = c.prefix
		}
		if _, err := fmt.Fprintln(c.w, lead+line); err != nil {
			return err
		}
	}
	return nil
}
