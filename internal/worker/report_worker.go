// Package worker turns ledger events into spreadsheet rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agencyfund/internal/amqp"
	"agencyfund/internal/cache"
	"agencyfund/internal/core"
	applog "agencyfund/internal/log"
	"agencyfund/internal/report"
)

const (
	// Redelivered events inside this window are written once.
	dedupeWindow = 24 * time.Hour
	dedupeSize   = 10_000
)

// ReportWorker appends one row per ledger event.
type ReportWorker struct {
	writer report.Writer
	seen   *cache.LRUCache[string]
	logger *slog.Logger
}

func NewReportWorker(writer report.Writer) *ReportWorker {
	return &ReportWorker{
		writer: writer,
		seen:   cache.NewLRUCache[string](dedupeSize, dedupeWindow),
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// Register hands the dedupe cache to mgr for periodic expiry.
func (w *ReportWorker) Register(mgr *cache.Manager) {
	mgr.Register(w.seen)
}

// HandleEvent processes a single ledger event from AMQP. A returned error
// asks the broker to redeliver.
func (w *ReportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	logger := w.logger.With(applog.FieldEventType, ev.Type, applog.FieldFundID, ev.FundID)

	if ref, ok := w.seen.Get(ev.Key()); ok {
		logger.InfoContext(ctx, "Skipping duplicate event", applog.FieldSheetsRef, ref)
		return nil
	}

	var (
		ref string
		err error
	)
	switch ev.Type {
	case amqp.EventExpenseRecorded:
		ref, err = w.writer.AppendExpense(ctx, expenseRow(ev))
	case amqp.EventFundCompleted:
		ref, err = w.writer.AppendSettlement(ctx, settlementRow(ev))
	default:
		logger.WarnContext(ctx, "Ignoring unknown event type")
		return nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to export event",
			applog.FieldOperation, applog.OpSync, applog.FieldError, err)
		return fmt.Errorf("export %s: %w", ev.Type, err)
	}

	w.seen.Set(ev.Key(), ref)
	logger.InfoContext(ctx, "Exported event",
		applog.FieldOperation, applog.OpSync, applog.FieldSheetsRef, ref)
	return nil
}

func expenseRow(ev *amqp.LedgerEvent) report.ExpenseRow {
	return report.ExpenseRow{
		Date:        ev.At,
		FundName:    ev.FundName,
		OwnerID:     ev.OwnerID,
		Description: ev.Description,
		Amount:      core.Money{Cents: ev.Amount},
		Risk:        core.RiskLevel(ev.Risk),
		SpentAfter:  core.Money{Cents: ev.Spent},
		ExpenseID:   ev.ExpenseID,
	}
}

func settlementRow(ev *amqp.LedgerEvent) report.SettlementRow {
	return report.SettlementRow{
		CompletedAt:   ev.At,
		FundName:      ev.FundName,
		OwnerID:       ev.OwnerID,
		Funder:        ev.Funder,
		Budget:        core.Money{Cents: ev.Budget},
		Spent:         core.Money{Cents: ev.Spent},
		Excess:        core.Money{Cents: ev.Excess},
		Tax:           core.Money{Cents: ev.Tax},
		EffectiveRate: ev.EffectiveRate,
		Taxable:       ev.Taxable,
	}
}
