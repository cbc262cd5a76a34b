package staging

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

// MemoryStore keeps staged orders in process memory. It is the default
// backend for single-instance deployments; a restart drops in-flight
// checkouts, which is acceptable because nothing durable exists before
// materialization and buyers can simply retry.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*TempOrder
	now     func() time.Time
}

// NewMemoryStore builds an empty in-memory staging store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*TempOrder),
		now:     time.Now,
	}
}

func (s *MemoryStore) Stage(_ context.Context, temp *TempOrder) error {
	if temp == nil || temp.Key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "staged order requires a key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *temp
	s.entries[temp.Key] = &clone
	return nil
}

// Get returns the staged order or a not-found error. Entries past their
// expiry are treated as absent and removed lazily, so a late callback for an
// abandoned checkout sees the same answer whether or not the sweeper ran.
func (s *MemoryStore) Get(_ context.Context, key string) (*TempOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staged order not found")
	}
	if !s.now().Before(entry.ExpiresAt) {
		delete(s.entries, key)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staged order not found")
	}
	clone := *entry
	return &clone, nil
}

func (s *MemoryStore) Discard(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports live entries, counting expired-but-unswept ones. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// WithNow overrides the clock. Test helper.
func (s *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}
