// Package report exports ledger activity to an external spreadsheet.
package report

import (
	"context"
	"time"

	"agencyfund/internal/core"
)

// Rows written to the export.
type (
	ExpenseRow struct {
		Date        time.Time
		FundName    string
		OwnerID     string
		Description string
		Amount      core.Money
		Risk        core.RiskLevel
		SpentAfter  core.Money
		ExpenseID   string
	}

	SettlementRow struct {
		CompletedAt   time.Time
		FundName      string
		OwnerID       string
		Funder        string
		Budget        core.Money
		Spent         core.Money
		Excess        core.Money
		Tax           core.Money
		EffectiveRate float64
		Taxable       bool
	}
)

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		AppendExpense(ctx context.Context, row ExpenseRow) (rowRef string, err error)
	}

	SettlementWriter interface {
		AppendSettlement(ctx context.Context, row SettlementRow) (rowRef string, err error)
	}

	Writer interface {
		ExpenseWriter
		SettlementWriter
	}
)
