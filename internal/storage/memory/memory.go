// Package memory is an in-process ledger store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"agencyfund/internal/core"
	"agencyfund/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps every fund, expense and receipt behind one mutex, which makes
// each method a single atomic step.
type Store struct {
	mu       sync.Mutex
	funds    map[string]core.Fund
	expenses map[string]core.Expense
	order    []string // expense ids in insertion order
	receipts map[string]core.Receipt
}

func New() *Store {
	return &Store{
		funds:    make(map[string]core.Fund),
		expenses: make(map[string]core.Expense),
		receipts: make(map[string]core.Receipt),
	}
}

func (s *Store) CreateFund(_ context.Context, f core.Fund) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.funds[f.ID]; ok {
		return core.Persistence("insert fund", errDuplicate(f.ID))
	}
	s.funds[f.ID] = f
	return nil
}

func (s *Store) GetFund(_ context.Context, id string) (core.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fund(id)
}

func (s *Store) fund(id string) (core.Fund, error) {
	f, ok := s.funds[id]
	if !ok {
		return core.Fund{}, core.NewNotFoundError("fund %s not found", id)
	}
	return f, nil
}

func (s *Store) ListFunds(_ context.Context, ownerID string, status core.FundStatus) ([]core.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(f core.Fund) bool {
		return f.OwnerID == ownerID && (status == "" || f.Status == status)
	}), nil
}

func (s *Store) FindFundsByName(_ context.Context, ownerID, part string) ([]core.Fund, error) {
	needle := strings.ToLower(strings.TrimSpace(part))
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(func(f core.Fund) bool {
		return f.OwnerID == ownerID && strings.Contains(strings.ToLower(f.Name), needle)
	}), nil
}

// filter returns matching funds newest first. Callers hold mu.
func (s *Store) filter(keep func(core.Fund) bool) []core.Fund {
	var out []core.Fund
	for _, f := range s.funds {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) AppendExpense(_ context.Context, e core.Expense) (core.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.fund(e.FundID)
	if err != nil {
		return core.Fund{}, err
	}
	if f.Status != core.FundActive {
		return core.Fund{}, core.ErrFundNotActive
	}
	f.Spent = f.Spent.Add(e.Amount)
	s.funds[f.ID] = f
	s.expenses[e.ID] = e
	s.order = append(s.order, e.ID)
	return f, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, core.NewNotFoundError("expense %s not found", id)
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, fundID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, id := range s.order {
		if e := s.expenses[id]; e.FundID == fundID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) CompleteFund(_ context.Context, fundID string, expectedSpent core.Money, st core.Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.fund(fundID)
	if err != nil {
		return false, err
	}
	if f.Status != core.FundActive {
		return false, core.NewStateError("fund is already " + string(f.Status))
	}
	if f.Spent != expectedSpent {
		return false, nil
	}
	f.Status = core.FundCompleted
	f.CompletedAt = st.CompletedAt
	f.Excess = st.Excess
	f.Tax = st.Tax
	s.funds[fundID] = f
	return true, nil
}

func (s *Store) AddReceipt(_ context.Context, r core.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[r.ExpenseID]
	if !ok {
		return core.NewNotFoundError("expense %s not found", r.ExpenseID)
	}
	e.ReceiptID = r.ID
	s.expenses[e.ID] = e
	s.receipts[r.ID] = r
	return nil
}

func (s *Store) CountReceipts(_ context.Context, fundID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.receipts {
		if s.expenses[r.ExpenseID].FundID == fundID {
			n++
		}
	}
	return n, nil
}

type errDuplicate string

func (e errDuplicate) Error() string { return "duplicate id " + string(e) }
