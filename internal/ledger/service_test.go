package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyfund/internal/core"
	"agencyfund/internal/ledger"
	"agencyfund/internal/storage/memory"
)

type recordingPublisher struct {
	mu        sync.Mutex
	expenses  []core.Expense
	completed []core.Settlement
	fail      bool
}

func (p *recordingPublisher) PublishExpenseRecorded(_ context.Context, _ core.Fund, e core.Expense) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expenses = append(p.expenses, e)
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func (p *recordingPublisher) PublishFundCompleted(_ context.Context, _ core.Fund, s core.Settlement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, s)
	if p.fail {
		return errors.New("broker down")
	}
	return nil
}

func newService(t *testing.T) (*ledger.Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	clock := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return ledger.NewService(store, pub, ledger.WithClock(clock)), store, pub
}

func draft(name string, budget int64) core.FundDraft {
	return core.FundDraft{Name: name, FunderName: "Uncle Ade", FunderRelationship: "uncle", Budget: core.NewMoney(budget)}
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", core.FundDraft{Name: "House", FunderName: "Ade", FunderRelationship: "uncle"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = svc.Create(ctx, "", draft("House", 10))
	assert.ErrorIs(t, err, core.ErrValidation)

	f, err := svc.Create(ctx, "u1", draft("  House build ", 5_000_000))
	require.NoError(t, err)
	assert.Equal(t, "House build", f.Name)
	assert.Equal(t, core.FundActive, f.Status)
	assert.True(t, f.Spent.IsZero())
	assert.True(t, f.IsAgencyFund)
	assert.NotEmpty(t, f.ID)
}

func TestRecordExpense(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 1_000_000))
	require.NoError(t, err)

	bal, err := svc.RecordExpense(ctx, f.ID, core.NewMoney(250_000), "cement", ledger.WithSupplier("Dangote depot"))
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(250_000), bal.Spent)
	assert.Equal(t, core.NewMoney(750_000), bal.Remaining)
	assert.Len(t, pub.expenses, 1)
	assert.Equal(t, "Dangote depot", pub.expenses[0].Supplier)

	_, err = svc.RecordExpense(ctx, f.ID, core.Money{}, "cement")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = svc.RecordExpense(ctx, f.ID, core.NewMoney(10), "   ")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = svc.RecordExpense(ctx, "missing", core.NewMoney(10), "sand")
	assert.ErrorIs(t, err, core.ErrNotFound)

	bal, err = svc.Balance(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(250_000), bal.Spent)
}

func TestRecordExpenseSurvivesPublishFailure(t *testing.T) {
	svc, _, pub := newService(t)
	pub.fail = true
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 1_000_000))
	require.NoError(t, err)

	bal, err := svc.RecordExpense(ctx, f.ID, core.NewMoney(1_000), "nails")
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(1_000), bal.Spent)
}

func TestRecordExpenseRejectsInactiveFund(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 1_000_000))
	require.NoError(t, err)
	_, err = svc.Complete(ctx, f.ID)
	require.NoError(t, err)

	// State is checked before input validation.
	_, err = svc.RecordExpense(ctx, f.ID, core.Money{}, "")
	assert.ErrorIs(t, err, core.ErrState)
}

func TestSpentMatchesExpenseSumUnderConcurrency(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 100_000_000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_, err := svc.RecordExpense(ctx, f.ID, core.NewMoney(n*1_000), "blocks")
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()

	expenses, err := store.ListExpenses(ctx, f.ID)
	require.NoError(t, err)
	var sum core.Money
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	got, err := store.GetFund(ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, expenses, 50)
	assert.Equal(t, sum, got.Spent)
	assert.Equal(t, core.NewMoney(1_275_000), got.Spent)
}

func TestCompleteEndToEnd(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House build", 5_000_000))
	require.NoError(t, err)

	for _, e := range []struct {
		amount int64
		desc   string
	}{
		{400_000, "cement"},
		{350_000, "roofing sheets"},
		{300_000, "iron rods"},
		{250_000, "bricklayer labour"},
		{300_000, "plumbing pipes"},
	} {
		_, err := svc.RecordExpense(ctx, f.ID, core.NewMoney(e.amount), e.desc)
		require.NoError(t, err)
	}

	s, err := svc.Complete(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(3_400_000), s.Excess)
	assert.True(t, s.Taxable)
	assert.Equal(t, core.NewMoney(415_000), s.Tax)
	assert.Equal(t, 12.21, s.EffectiveRate)
	assert.Len(t, pub.completed, 1)

	sum, err := svc.Summary(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, core.FundCompleted, sum.Status)
	assert.Equal(t, 5, sum.ExpenseCount)
	assert.Equal(t, core.NewMoney(415_000), sum.Tax)
	assert.False(t, sum.CompletedAt.IsZero())
}

func TestCompleteIsOneShot(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 2_000_000))
	require.NoError(t, err)
	_, err = svc.RecordExpense(ctx, f.ID, core.NewMoney(100_000), "sand")
	require.NoError(t, err)

	first, err := svc.Complete(ctx, f.ID)
	require.NoError(t, err)
	before, err := store.GetFund(ctx, f.ID)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, f.ID)
	assert.ErrorIs(t, err, core.ErrState)

	after, err := store.GetFund(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, first.Tax, after.Tax)
	assert.Equal(t, first.Excess, after.Excess)
	assert.Len(t, pub.completed, 1)
}

func TestConcurrentCompleteTransitionsOnce(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 3_000_000))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, lost int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(ctx, f.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, core.ErrState) {
				lost++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, lost)
	assert.Len(t, pub.completed, 1)
}

func TestCompleteNonAgencyOrOverspentOwesNothing(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()

	over, err := svc.Create(ctx, "u1", draft("Car", 100_000))
	require.NoError(t, err)
	_, err = svc.RecordExpense(ctx, over.ID, core.NewMoney(150_000), "engine parts")
	require.NoError(t, err)
	s, err := svc.Complete(ctx, over.ID)
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(-50_000), s.Excess)
	assert.False(t, s.Taxable)
	assert.True(t, s.Tax.IsZero())
	assert.Zero(t, s.EffectiveRate)

	own := core.Fund{ID: "own", OwnerID: "u1", Name: "Own", Budget: core.NewMoney(5_000_000), Status: core.FundActive}
	require.NoError(t, store.CreateFund(ctx, own))
	s, err = svc.Complete(ctx, "own")
	require.NoError(t, err)
	assert.Equal(t, core.NewMoney(5_000_000), s.Excess)
	assert.False(t, s.Taxable)
	assert.True(t, s.Tax.IsZero())
}

func TestResolve(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"House", "House Extension", "School project"} {
		_, err := svc.Create(ctx, "u1", draft(name, 1_000))
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "u2", draft("House", 1_000))
	require.NoError(t, err)

	matches, err := svc.FindByNamePart(ctx, "u1", "HOUSE")
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	f, err := svc.Resolve(ctx, "u1", "school")
	require.NoError(t, err)
	assert.Equal(t, "School project", f.Name)

	f, err = svc.Resolve(ctx, "u1", "house")
	require.NoError(t, err)
	assert.Equal(t, "House", f.Name)

	_, err = svc.Resolve(ctx, "u1", "hou")
	var amb *core.AmbiguousMatchError
	require.ErrorAs(t, err, &amb)
	assert.Len(t, amb.Matches, 2)
	assert.ErrorIs(t, err, core.ErrAmbiguousMatch)

	_, err = svc.Resolve(ctx, "u1", "wedding")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.FindByNamePart(ctx, "u1", " ")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAttachReceipt(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	f, err := svc.Create(ctx, "u1", draft("House", 1_000_000))
	require.NoError(t, err)
	_, err = svc.RecordExpense(ctx, f.ID, core.NewMoney(1_234), "tiles")
	require.NoError(t, err)
	expenses, err := svc.Expenses(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, expenses, 1)

	r, err := svc.AttachReceipt(ctx, expenses[0].ID, "manual", 0.95)
	require.NoError(t, err)

	e, err := store.GetExpense(ctx, expenses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, e.ReceiptID)

	sum, err := svc.Summary(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.ReceiptCount)
	// Receipts never touch totals.
	assert.Equal(t, core.NewMoney(1_234), sum.Spent)

	_, err = svc.AttachReceipt(ctx, expenses[0].ID, "ocr", 2)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = svc.AttachReceipt(ctx, "nope", "ocr", 0.5)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListFunds(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, "u1", draft("A", 1_000))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", draft("B", 1_000))
	require.NoError(t, err)
	_, err = svc.Complete(ctx, a.ID)
	require.NoError(t, err)

	all, err := svc.ListFunds(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.ListFunds(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "B", active[0].Name)
}
