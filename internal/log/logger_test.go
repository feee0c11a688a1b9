package log

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).WithComponent(ComponentLedger)

	l.Info("fund created", FieldFundID, "f-1")

	out := buf.String()
	assert.Contains(t, out, `"component":"ledger"`)
	assert.Contains(t, out, `"fund_id":"f-1"`)
	assert.Equal(t, ComponentLedger, l.Component())
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentDialogue).
		WithUser("u1").
		WithFund("").
		WithDialogue("create_fund", "ask_budget").
		WithError(errors.New("boom"))

	assert.Equal(t, "u1", f[FieldUserID])
	assert.NotContains(t, f, FieldFundID)
	assert.Equal(t, "boom", f[FieldError])
	assert.Len(t, f.ToSlice(), len(f)*2)
}
