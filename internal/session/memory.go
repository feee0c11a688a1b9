package session

import (
	"context"
	"time"

	"agencyfund/internal/cache"
)

// MemoryStore keeps sessions in process. Entries are stored encoded so a
// caller mutating a returned session never touches the stored copy.
type MemoryStore struct {
	entries *cache.LRUCache[[]byte]
}

// NewMemoryStore registers the store with mgr for periodic expiry when mgr
// is non-nil. maxSessions <= 0 means unbounded.
func NewMemoryStore(maxSessions int, mgr *cache.Manager) *MemoryStore {
	s := &MemoryStore{entries: cache.NewLRUCache[[]byte](maxSessions, DefaultTTL)}
	if mgr != nil {
		mgr.Register(s.entries)
	}
	return s
}

// WithClock replaces the expiry clock.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.entries.WithClock(now)
	return m
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	b, ok := m.entries.Get(userID)
	if !ok {
		return nil, nil
	}
	return decode(b)
}

func (m *MemoryStore) Set(_ context.Context, userID string, s *Session, ttl time.Duration) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	m.entries.SetWithTTL(userID, b, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.entries.Delete(userID)
	return nil
}
