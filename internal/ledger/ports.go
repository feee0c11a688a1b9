package ledger

import (
	"context"

	"agencyfund/internal/core"
)

// Ports for outbound adapters.
type (
	// Store persists funds, expenses and receipts. Lookups that miss return
	// an error matching core.ErrNotFound; storage failures match
	// core.ErrPersistence.
	Store interface {
		CreateFund(ctx context.Context, f core.Fund) error
		GetFund(ctx context.Context, id string) (core.Fund, error)
		// ListFunds returns the owner's funds, newest first. An empty status
		// returns every status.
		ListFunds(ctx context.Context, ownerID string, status core.FundStatus) ([]core.Fund, error)
		// FindFundsByName matches part case-insensitively against fund names.
		FindFundsByName(ctx context.Context, ownerID, part string) ([]core.Fund, error)

		// AppendExpense adds e.Amount to the fund's spent total and inserts e
		// as one atomic step, returning the updated fund. It fails with an
		// error matching core.ErrState when the fund is not active.
		AppendExpense(ctx context.Context, e core.Expense) (core.Fund, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		ListExpenses(ctx context.Context, fundID string) ([]core.Expense, error)

		// CompleteFund moves an active fund to completed and stores the
		// settlement, but only while spent still equals expectedSpent. It
		// reports applied=false when spent moved underneath the caller and
		// fails with core.ErrState when the fund is no longer active.
		CompleteFund(ctx context.Context, fundID string, expectedSpent core.Money, s core.Settlement) (applied bool, err error)

		AddReceipt(ctx context.Context, r core.Receipt) error
		CountReceipts(ctx context.Context, fundID string) (int, error)
	}

	// EventPublisher announces ledger changes to downstream consumers.
	EventPublisher interface {
		PublishExpenseRecorded(ctx context.Context, f core.Fund, e core.Expense) error
		PublishFundCompleted(ctx context.Context, f core.Fund, s core.Settlement) error
	}
)
