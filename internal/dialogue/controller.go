// Package dialogue turns chat messages into ledger operations.
//
// Each message loads the user's session once, runs one transition and
// saves the result once. The reply is returned to the caller and handed to
// the messenger; a failed send is logged and never changes the outcome.
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	applog "agencyfund/internal/log"

	"agencyfund/internal/core"
	"agencyfund/internal/ledger"
	"agencyfund/internal/session"
)

// Ledger is the subset of the fund ledger the conversation drives.
type Ledger interface {
	Create(ctx context.Context, ownerID string, d core.FundDraft) (core.Fund, error)
	RecordExpense(ctx context.Context, fundID string, amount core.Money, description string, opts ...ledger.ExpenseOption) (core.Balance, error)
	Balance(ctx context.Context, fundID string) (core.Balance, error)
	Summary(ctx context.Context, fundID string) (core.Summary, error)
	Complete(ctx context.Context, fundID string) (core.Settlement, error)
	ListFunds(ctx context.Context, ownerID string, activeOnly bool) ([]core.Fund, error)
	Resolve(ctx context.Context, ownerID, text string) (core.Fund, error)
}

var _ Ledger = (*ledger.Service)(nil)

// Messenger delivers replies to a user.
type Messenger interface {
	Send(ctx context.Context, userID, text string) error
}

type Controller struct {
	ledger    Ledger
	sessions  session.Store
	messenger Messenger
	now       func() time.Time
	ttl       time.Duration
	logger    *slog.Logger
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Controller) { c.ttl = ttl }
}

// NewController wires a controller. messenger may be nil when the caller
// delivers the returned reply itself.
func NewController(l Ledger, sessions session.Store, messenger Messenger, opts ...Option) *Controller {
	c := &Controller{
		ledger:    l,
		sessions:  sessions,
		messenger: messenger,
		now:       time.Now,
		ttl:       session.DefaultTTL,
		logger:    slog.Default().With(applog.FieldComponent, applog.ComponentDialogue),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one message from userID and returns the reply.
func (c *Controller) Handle(ctx context.Context, userID, text string) string {
	sess, err := c.load(ctx, userID)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to load session",
			applog.NewFields().WithUser(userID).WithOperation(applog.OpRead).WithError(err).WithErrorType(applog.ErrorTypePersistence).ToSlice()...)
		c.send(ctx, userID, msgInternal)
		return msgInternal
	}

	t := &turn{ctx: ctx, userID: userID, c: c}
	next, reply := t.transition(sess, strings.TrimSpace(text))
	next.UpdatedAt = c.now().UTC()

	if err := c.sessions.Set(ctx, userID, &next, c.ttl); err != nil {
		c.logger.ErrorContext(ctx, "Failed to save session",
			applog.NewFields().WithUser(userID).WithDialogue(next.Flow.String(), next.Step.String()).WithError(err).WithErrorType(applog.ErrorTypePersistence).ToSlice()...)
	}

	c.send(ctx, userID, reply)
	return reply
}

// load returns the stored session, or an idle one when it is missing,
// expired or malformed.
func (c *Controller) load(ctx context.Context, userID string) (session.Session, error) {
	stored, err := c.sessions.Get(ctx, userID)
	if errors.Is(err, session.ErrMalformedSession) {
		c.logger.WarnContext(ctx, "Discarding undecodable session",
			applog.FieldUserID, userID, applog.FieldError, err)
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, err
	}
	if stored == nil {
		return session.Session{}, nil
	}
	if stored.Expired(c.now(), c.ttl) {
		c.logger.DebugContext(ctx, "Session expired", applog.FieldUserID, userID)
		return session.Session{}, nil
	}
	if err := stored.Validate(); err != nil {
		c.logger.WarnContext(ctx, "Discarding malformed session",
			applog.FieldUserID, userID, applog.FieldError, err)
		return stored.Reset(), nil
	}
	return *stored, nil
}

func (c *Controller) send(ctx context.Context, userID, text string) {
	if c.messenger == nil {
		return
	}
	if err := c.messenger.Send(ctx, userID, text); err != nil {
		c.logger.WarnContext(ctx, "Failed to deliver reply",
			applog.FieldUserID, userID, applog.FieldOperation, applog.OpSend, applog.FieldError, err)
	}
}

// Reset drops any session state for userID.
func (c *Controller) Reset(ctx context.Context, userID string) error {
	return c.sessions.Delete(ctx, userID)
}

// turn carries the per-message context through a transition.
type turn struct {
	ctx    context.Context
	userID string
	c      *Controller
}

func (t *turn) transition(s session.Session, input string) (session.Session, string) {
	if input == "" {
		return s, prompt(s)
	}
	cmd := parseCommand(input)
	if cmd.kind == cmdCancel {
		if s.Idle() {
			return s, msgNothingPending
		}
		return s.Reset(), msgCancelled
	}

	switch s.Flow {
	case session.FlowCreateFund:
		return t.createStep(s, input)
	case session.FlowRecordExpense:
		return t.confirmStep(s, input)
	case session.FlowSelectFund:
		return t.selectStep(s, input, cmd)
	}
	return t.command(s, cmd)
}

func (t *turn) command(s session.Session, cmd command) (session.Session, string) {
	switch cmd.kind {
	case cmdNewFund:
		s = s.Reset()
		s.Flow, s.Step = session.FlowCreateFund, session.StepAskName
		s.Draft = &core.FundDraft{}
		return s, msgAskName
	case cmdListFunds:
		return t.listFunds(s)
	case cmdSwitchFund:
		return t.switchFund(s, cmd.arg)
	case cmdExpense:
		return t.startExpense(s, cmd.arg)
	case cmdBalance:
		return t.withActiveFund(s, t.balance)
	case cmdSummary:
		return t.withActiveFund(s, t.summary)
	case cmdComplete:
		return t.withActiveFund(s, t.complete)
	case cmdHelp:
		return s, msgHelp
	}
	return s, msgUnknown
}

// fail maps an error to a reply. Validation and state errors keep the
// session where it is so the user can correct the input.
func (t *turn) fail(s session.Session, op string, err error) (session.Session, string) {
	var ambiguous *core.AmbiguousMatchError
	switch {
	case errors.As(err, &ambiguous):
		return t.offerChoice(s, "Several funds match "+quote(ambiguous.Query)+":", ambiguous.Matches)
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrState), errors.Is(err, core.ErrNotFound):
		return s, capitalize(core.Message(err)) + "."
	}

	errType := applog.ErrorTypeInternal
	if errors.Is(err, core.ErrPersistence) {
		errType = applog.ErrorTypePersistence
	}
	t.c.logger.ErrorContext(t.ctx, "Dialogue operation failed",
		applog.NewFields().
			WithUser(t.userID).
			WithOperation(op).
			WithFund(s.ActiveFundID).
			WithDialogue(s.Flow.String(), s.Step.String()).
			WithError(err).
			WithErrorType(errType).
			ToSlice()...)
	return s, msgInternal
}

func quote(s string) string { return "\"" + strings.TrimSpace(s) + "\"" }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
