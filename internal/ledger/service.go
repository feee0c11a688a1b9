// Package ledger owns the lifecycle of agency funds: creation, expense
// recording, balance projections and the one-shot completion that settles
// tax on any unspent excess.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "agencyfund/internal/log"

	"agencyfund/internal/core"
	"agencyfund/internal/tax"
)

// completeAttempts bounds the compare-and-set retry when expenses land
// while a completion is in flight.
const completeAttempts = 3

// Service orchestrates fund operations across the store and event publisher.
type Service struct {
	store  Store
	events EventPublisher
	calc   *tax.Calculator
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCalculator(c *tax.Calculator) Option {
	return func(s *Service) { s.calc = c }
}

// NewService wires a ledger. events may be nil.
func NewService(store Store, events EventPublisher, opts ...Option) *Service {
	s := &Service{
		store:  store,
		events: events,
		calc:   tax.NewCalculator(nil),
		now:    time.Now,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentLedger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the draft and persists a new active fund.
func (s *Service) Create(ctx context.Context, ownerID string, d core.FundDraft) (core.Fund, error) {
	if strings.TrimSpace(ownerID) == "" {
		return core.Fund{}, core.NewValidationError("owner is required")
	}
	if err := d.Validate(); err != nil {
		return core.Fund{}, err
	}

	f := core.Fund{
		ID:                 uuid.NewString(),
		OwnerID:            ownerID,
		Name:               strings.TrimSpace(d.Name),
		FunderName:         strings.TrimSpace(d.FunderName),
		FunderRelationship: strings.TrimSpace(d.FunderRelationship),
		Budget:             d.Budget,
		Status:             core.FundActive,
		IsAgencyFund:       true,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.store.CreateFund(ctx, f); err != nil {
		return core.Fund{}, fmt.Errorf("create fund: %w", err)
	}

	s.logger.InfoContext(ctx, "Fund created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldFundID, f.ID,
		applog.FieldUserID, ownerID,
		applog.FieldAmountCents, f.Budget.Cents)
	return f, nil
}

type ExpenseOption func(*core.Expense)

func WithCategory(category string) ExpenseOption {
	return func(e *core.Expense) { e.Category = strings.TrimSpace(category) }
}

func WithSupplier(supplier string) ExpenseOption {
	return func(e *core.Expense) { e.Supplier = strings.TrimSpace(supplier) }
}

func WithDate(d time.Time) ExpenseOption {
	return func(e *core.Expense) { e.Date = d }
}

// WithReview attaches the risk tier and warnings the classifier gave.
func WithReview(risk core.RiskLevel, warnings []string) ExpenseOption {
	return func(e *core.Expense) {
		e.Review = &core.Review{Risk: risk, Warnings: warnings}
	}
}

// RecordExpense charges an expense to an active fund and returns the
// updated balance.
func (s *Service) RecordExpense(ctx context.Context, fundID string, amount core.Money, description string, opts ...ExpenseOption) (core.Balance, error) {
	f, err := s.store.GetFund(ctx, fundID)
	if err != nil {
		return core.Balance{}, fmt.Errorf("record expense: %w", err)
	}
	if f.Status != core.FundActive {
		return core.Balance{}, core.ErrFundNotActive
	}

	now := s.now().UTC()
	e := core.Expense{
		ID:          uuid.NewString(),
		FundID:      fundID,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		Date:        now,
		CreatedAt:   now,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return core.Balance{}, err
	}

	updated, err := s.store.AppendExpense(ctx, e)
	if err != nil {
		return core.Balance{}, fmt.Errorf("record expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense recorded",
		applog.FieldOperation, applog.OpAppend,
		applog.FieldFundID, fundID,
		applog.FieldExpenseID, e.ID,
		applog.FieldAmountCents, e.Amount.Cents,
		applog.FieldSpentCents, updated.Spent.Cents)

	if s.events != nil {
		if err := s.events.PublishExpenseRecorded(ctx, updated, e); err != nil {
			// The expense is committed; downstream sync can catch up later.
			s.logger.ErrorContext(ctx, "Failed to publish expense event",
				applog.FieldExpenseID, e.ID, applog.FieldError, err)
		}
	}
	return updated.Balance(), nil
}

func (s *Service) Balance(ctx context.Context, fundID string) (core.Balance, error) {
	f, err := s.store.GetFund(ctx, fundID)
	if err != nil {
		return core.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return f.Balance(), nil
}

func (s *Service) Summary(ctx context.Context, fundID string) (core.Summary, error) {
	f, err := s.store.GetFund(ctx, fundID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("get summary: %w", err)
	}
	expenses, err := s.store.ListExpenses(ctx, fundID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("get summary: %w", err)
	}
	receipts, err := s.store.CountReceipts(ctx, fundID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("get summary: %w", err)
	}
	return core.Summary{
		Balance:      f.Balance(),
		Status:       f.Status,
		FunderName:   f.FunderName,
		Relationship: f.FunderRelationship,
		ExpenseCount: len(expenses),
		ReceiptCount: receipts,
		CreatedAt:    f.CreatedAt,
		CompletedAt:  f.CompletedAt,
		Excess:       f.Excess,
		Tax:          f.Tax,
	}, nil
}

func (s *Service) Expenses(ctx context.Context, fundID string) ([]core.Expense, error) {
	if _, err := s.store.GetFund(ctx, fundID); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return s.store.ListExpenses(ctx, fundID)
}

// Complete settles a fund exactly once. A fund that is no longer active
// fails with a state error and nothing is recomputed.
func (s *Service) Complete(ctx context.Context, fundID string) (core.Settlement, error) {
	for attempt := 0; attempt < completeAttempts; attempt++ {
		f, err := s.store.GetFund(ctx, fundID)
		if err != nil {
			return core.Settlement{}, fmt.Errorf("complete fund: %w", err)
		}
		if f.Status != core.FundActive {
			return core.Settlement{}, core.NewStateError("fund is already " + string(f.Status))
		}

		settlement := s.settle(f)
		applied, err := s.store.CompleteFund(ctx, fundID, f.Spent, settlement)
		if err != nil {
			return core.Settlement{}, fmt.Errorf("complete fund: %w", err)
		}
		if !applied {
			s.logger.WarnContext(ctx, "Spent changed during completion, retrying",
				applog.FieldFundID, fundID, "attempt", attempt+1)
			continue
		}

		f.Status = core.FundCompleted
		f.CompletedAt = settlement.CompletedAt
		f.Excess = settlement.Excess
		f.Tax = settlement.Tax

		s.logger.InfoContext(ctx, "Fund completed",
			applog.FieldOperation, applog.OpComplete,
			applog.FieldFundID, fundID,
			"excess_cents", settlement.Excess.Cents,
			"tax_cents", settlement.Tax.Cents,
			"taxable", settlement.Taxable)

		if s.events != nil {
			if err := s.events.PublishFundCompleted(ctx, f, settlement); err != nil {
				s.logger.ErrorContext(ctx, "Failed to publish completion event",
					applog.FieldFundID, fundID, applog.FieldError, err)
			}
		}
		return settlement, nil
	}
	return core.Settlement{}, core.NewStateError("fund kept changing while completing, try again")
}

// settle computes the settlement for f without touching storage.
func (s *Service) settle(f core.Fund) core.Settlement {
	excess := f.Budget.Sub(f.Spent)
	taxable := excess.IsPositive() && f.IsAgencyFund
	var owed core.Money
	if taxable {
		owed = s.calc.Compute(excess)
	}
	return core.Settlement{
		FundID:        f.ID,
		Excess:        excess,
		Taxable:       taxable,
		Tax:           owed,
		EffectiveRate: tax.EffectiveRate(owed, excess),
		CompletedAt:   s.now().UTC(),
	}
}

// ListFunds returns the owner's funds, optionally only the active ones.
func (s *Service) ListFunds(ctx context.Context, ownerID string, activeOnly bool) ([]core.Fund, error) {
	var status core.FundStatus
	if activeOnly {
		status = core.FundActive
	}
	funds, err := s.store.ListFunds(ctx, ownerID, status)
	if err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	return funds, nil
}

// FindByNamePart returns every owner fund whose name contains text,
// ignoring case.
func (s *Service) FindByNamePart(ctx context.Context, ownerID, text string) ([]core.Fund, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.NewValidationError("fund name cannot be empty")
	}
	funds, err := s.store.FindFundsByName(ctx, ownerID, text)
	if err != nil {
		return nil, fmt.Errorf("find funds: %w", err)
	}
	return funds, nil
}

// Resolve narrows a name lookup to one fund. Among several partial matches
// an exact (case-insensitive) name wins; otherwise the caller gets an
// *core.AmbiguousMatchError listing the candidates.
func (s *Service) Resolve(ctx context.Context, ownerID, text string) (core.Fund, error) {
	funds, err := s.FindByNamePart(ctx, ownerID, text)
	if err != nil {
		return core.Fund{}, err
	}
	switch len(funds) {
	case 0:
		return core.Fund{}, core.NewNotFoundError("no fund named %q", strings.TrimSpace(text))
	case 1:
		return funds[0], nil
	}
	var exact []core.Fund
	for _, f := range funds {
		if strings.EqualFold(f.Name, strings.TrimSpace(text)) {
			exact = append(exact, f)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}
	return core.Fund{}, &core.AmbiguousMatchError{Query: text, Matches: funds}
}

// AttachReceipt links compliance evidence to an expense.
func (s *Service) AttachReceipt(ctx context.Context, expenseID, method string, confidence float64) (core.Receipt, error) {
	if _, err := s.store.GetExpense(ctx, expenseID); err != nil {
		return core.Receipt{}, fmt.Errorf("attach receipt: %w", err)
	}
	r := core.Receipt{
		ID:                 uuid.NewString(),
		ExpenseID:          expenseID,
		VerificationMethod: strings.TrimSpace(method),
		Confidence:         confidence,
		CreatedAt:          s.now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return core.Receipt{}, err
	}
	if err := s.store.AddReceipt(ctx, r); err != nil {
		return core.Receipt{}, fmt.Errorf("attach receipt: %w", err)
	}
	return r, nil
}
