package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const DefaultMemoryCapacity = 100_000

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for development and tests. It holds at
// most capacity entries; when full the least recently used nonce is evicted
// and from then on behaves like an expired one.
type MemoryStore struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, memoryEntry]
	now     func() time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithClock replaces time.Now, letting tests move past the expiry.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(capacity int, opts ...MemoryStoreOption) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	entries, err := simplelru.NewLRU[string, memoryEntry](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	s := &MemoryStore{
		entries: entries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *MemoryStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(key, memoryEntry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(key), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.liveLocked(key)
	s.entries.Remove(key)
	return live, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Purge()
}

// Len counts stored entries, including expired ones not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// liveLocked drops the entry once it is past its expiry. Caller must hold mu.
func (s *MemoryStore) liveLocked(key string) bool {
	entry, ok := s.entries.Peek(key)
	if !ok {
		return false
	}
	if !s.now().Before(entry.expiresAt) {
		s.entries.Remove(key)
		return false
	}
	return true
}
