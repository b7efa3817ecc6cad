package cachestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store. Entries survive only warm
// invocations of the same process; durable deployments use PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewMemoryStore creates an in-memory cache store. now is injectable for
// tests; nil uses the wall clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]*Entry), now: now}
}

// Get returns a live entry and bumps its hit bookkeeping under the same
// lock. Expired entries are deleted on sight and reported as misses.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.Expired(now) {
		delete(s.entries, key)
		return nil, false, nil
	}

	e.HitCount++
	e.LastAccessedAt = now

	out := *e
	return &out, true, nil
}

// Put stores a copy of the entry, replacing any previous value for the key.
func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	cp := *entry
	s.mu.Lock()
	s.entries[entry.Key] = &cp
	s.mu.Unlock()
	return nil
}

// StartSweeper deletes expired entries every interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
