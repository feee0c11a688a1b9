package memory

import (
	"context"
	"fmt"
	"sync"

	"agencyfund/internal/report"
)

// Store keeps exported rows in process, for local runs and tests.
type Store struct {
	mu          sync.Mutex
	expenses    []report.ExpenseRow
	settlements []report.SettlementRow
}

var _ report.Writer = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendExpense stores the row and returns a synthetic row reference.
func (s *Store) AppendExpense(_ context.Context, row report.ExpenseRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, row)
	return fmt.Sprintf("mem:expenses:%d", len(s.expenses)), nil
}

func (s *Store) AppendSettlement(_ context.Context, row report.SettlementRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = append(s.settlements, row)
	return fmt.Sprintf("mem:settlements:%d", len(s.settlements)), nil
}

func (s *Store) Expenses() []report.ExpenseRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.ExpenseRow(nil), s.expenses...)
}

func (s *Store) Settlements() []report.SettlementRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.SettlementRow(nil), s.settlements...)
}
