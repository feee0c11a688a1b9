package security

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	applog "agencyfund/internal/log"
	"agencyfund/internal/middleware"
)

// Limits on a single inbound message.
const (
	MaxMessageRunes = 2000
	MaxUserIDLength = 128
)

// RejectedReply is sent instead of handling a screened message.
const RejectedReply = "I can't process that message. Please send plain text, e.g. fund expense 250,000 cement."

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousMessages int64
	InvalidUserIDs     int64
}

// Detector screens inbound chat messages before they reach the ledger.
type Detector struct {
	metrics  *DetectionMetrics
	patterns []string
	logger   *slog.Logger
}

// NewDetector creates a new security detector
func NewDetector() *Detector {
	return &Detector{
		metrics: &DetectionMetrics{},
		// Descriptions end up in spreadsheet cells.
		patterns: []string{
			"=importxml(", "=importdata(", "=importrange(", "=importhtml(",
			"=hyperlink(", "=image(", "=cmd|", "<script", "javascript:",
		},
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentDialogue),
	}
}

// Suspicious reports whether text should be dropped.
func (d *Detector) Suspicious(text string) bool {
	suspicious := false
	switch {
	case !utf8.ValidString(text):
		suspicious = true
	case utf8.RuneCountInString(text) > MaxMessageRunes:
		suspicious = true
	case hasControl(text):
		suspicious = true
	default:
		lower := strings.ToLower(strings.ReplaceAll(text, " ", ""))
		for _, p := range d.patterns {
			if strings.Contains(lower, p) {
				suspicious = true
				break
			}
		}
	}

	if suspicious {
		atomic.AddInt64(&d.metrics.SuspiciousMessages, 1)
	}
	return suspicious
}

// ValidUserID rejects empty, oversized or non-printable user IDs.
func (d *Detector) ValidUserID(userID string) bool {
	ok := userID != "" && len(userID) <= MaxUserIDLength && !hasControl(userID) && strings.TrimSpace(userID) == userID
	if !ok {
		atomic.AddInt64(&d.metrics.InvalidUserIDs, 1)
	}
	return ok
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}

// Middleware drops screened messages with RejectedReply. Messages from an
// invalid user ID get an empty reply since there is nobody to answer.
func (d *Detector) Middleware(next middleware.Handler) middleware.Handler {
	return func(ctx context.Context, userID, text string) string {
		if !d.ValidUserID(userID) {
			d.logger.WarnContext(ctx, "Dropping message with invalid user id", "user_id_length", len(userID))
			return ""
		}
		if d.Suspicious(text) {
			d.logger.WarnContext(ctx, "Dropping suspicious message",
				applog.FieldUserID, userID, "length", len(text))
			return RejectedReply
		}
		return next(ctx, userID, text)
	}
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousMessages: atomic.LoadInt64(&d.metrics.SuspiciousMessages),
		InvalidUserIDs:     atomic.LoadInt64(&d.metrics.InvalidUserIDs),
	}
}
