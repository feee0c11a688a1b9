package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyfund/internal/amqp"
	"agencyfund/internal/core"
	"agencyfund/internal/report"
	"agencyfund/internal/report/memory"
)

var (
	fund = core.Fund{
		ID: "f1", Name: "House", OwnerID: "u1", FunderName: "Dad",
		Budget: core.NewMoney(5_000_000), Spent: core.NewMoney(1_600_000),
	}
	at = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

func TestHandleExpenseRecorded(t *testing.T) {
	store := memory.New()
	w := NewReportWorker(store)
	ev := amqp.NewExpenseRecordedEvent(fund, core.Expense{
		ID: "e1", Amount: core.NewMoney(300_000), Description: "labour", CreatedAt: at,
		Review: &core.Review{Risk: core.RiskHigh},
	})

	require.NoError(t, w.HandleEvent(context.Background(), ev))

	rows := store.Expenses()
	require.Len(t, rows, 1)
	assert.Equal(t, "House", rows[0].FundName)
	assert.Equal(t, core.NewMoney(300_000), rows[0].Amount)
	assert.Equal(t, core.NewMoney(1_600_000), rows[0].SpentAfter)
	assert.Equal(t, core.RiskHigh, rows[0].Risk)
	assert.Equal(t, at, rows[0].Date)
}

func TestHandleFundCompleted(t *testing.T) {
	store := memory.New()
	w := NewReportWorker(store)
	ev := amqp.NewFundCompletedEvent(fund, core.Settlement{
		FundID: "f1", Excess: core.NewMoney(3_400_000), Taxable: true,
		Tax: core.NewMoney(415_000), EffectiveRate: 12.21, CompletedAt: at,
	})

	require.NoError(t, w.HandleEvent(context.Background(), ev))

	rows := store.Settlements()
	require.Len(t, rows, 1)
	assert.Equal(t, core.NewMoney(415_000), rows[0].Tax)
	assert.Equal(t, "Dad", rows[0].Funder)
	assert.True(t, rows[0].Taxable)
}

func TestRedeliveredEventIsWrittenOnce(t *testing.T) {
	store := memory.New()
	w := NewReportWorker(store)
	ev := amqp.NewExpenseRecordedEvent(fund, core.Expense{ID: "e1", Amount: core.NewMoney(1), Description: "x", CreatedAt: at})

	require.NoError(t, w.HandleEvent(context.Background(), ev))
	require.NoError(t, w.HandleEvent(context.Background(), ev))
	assert.Len(t, store.Expenses(), 1)
}

type failingWriter struct {
	report.Writer
}

func (failingWriter) AppendSettlement(context.Context, report.SettlementRow) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestWriterFailureAsksForRedelivery(t *testing.T) {
	w := NewReportWorker(failingWriter{})
	err := w.HandleEvent(context.Background(), amqp.NewFundCompletedEvent(fund, core.Settlement{CompletedAt: at}))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
