package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memItem struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Expired items are dropped on read.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memItem
	clock clockwork.Clock
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{items: make(map[string]memItem), clock: clock}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !s.clock.Now().Before(it.expiresAt) {
		delete(s.items, key)
		return nil, false, nil
	}
	return it.val, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memItem{val: val, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

// Len returns the number of stored items, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
