package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agencyfund/internal/core"
)

func sample() *Session {
	return &Session{
		Flow: FlowRecordExpense,
		Step: StepConfirmRisky,
		Pending: &PendingExpense{
			FundID:      "f1",
			Amount:      core.NewMoney(50_000),
			Description: "shopping",
			Risk:        core.RiskHigh,
			Warnings:    []string{"personal"},
		},
		ActiveFundID:   "f1",
		ActiveFundName: "House",
		UpdatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Session{}.Validate())
	assert.NoError(t, sample().Validate())

	bad := sample()
	bad.Step = StepAskName
	assert.Error(t, bad.Validate(), "step from another flow")

	bad = sample()
	bad.Draft = &core.FundDraft{}
	assert.Error(t, bad.Validate(), "two variants set")

	bad = &Session{Flow: FlowCreateFund, Step: StepAskName}
	assert.Error(t, bad.Validate(), "missing draft")
}

func TestResetKeepsActiveFund(t *testing.T) {
	s := sample().Reset()
	assert.True(t, s.Idle())
	assert.Nil(t, s.Pending)
	assert.Equal(t, "f1", s.ActiveFundID)
	assert.NoError(t, s.Validate())
}

func TestExpired(t *testing.T) {
	s := sample()
	assert.False(t, s.Expired(s.UpdatedAt.Add(29*time.Minute), DefaultTTL))
	assert.True(t, s.Expired(s.UpdatedAt.Add(31*time.Minute), DefaultTTL))
	assert.False(t, Session{}.Expired(time.Now(), DefaultTTL))
}

func TestEncodeUsesStepNames(t *testing.T) {
	b, err := encode(sample())
	require.NoError(t, err)
	assert.Contains(t, string(b), `"step":"confirm_risky"`)
	assert.Contains(t, string(b), `"flow":"record_expense"`)

	got, err := decode(b)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	_, err = decode([]byte(`{"flow":"dancing"}`))
	assert.Error(t, err)
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Set(ctx, "u1", sample(), DefaultTTL))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	got.Pending.Description = "changed"
	again, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "shopping", again.Pending.Description)

	require.NoError(t, store.Delete(ctx, "u1"))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0, nil))
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore(0, nil).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "u1", sample(), time.Minute))
	now = now.Add(2 * time.Minute)
	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)
	defer store.Close()

	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "u2", sample(), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"u2"))
	mr.FastForward(2 * time.Minute)
	got, err := store.Get(context.Background(), "u2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreUndecodableRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()

	require.NoError(t, mr.Set(keyPrefix+"u1", `{"flow":"create_fund","step":"ask_colour"}`))
	got, err := store.Get(context.Background(), "u1")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrMalformedSession)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStoreFromURL(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer store.Close()

	_, err = NewRedisStoreFromURL(context.Background(), "not a url")
	assert.Error(t, err)
}
