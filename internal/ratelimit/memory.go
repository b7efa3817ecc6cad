package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process CounterStore. Counters persist only across
// warm invocations of the same process; multi-instance deployments wanting
// strict quotas should use the Redis store instead.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	start  time.Time
	count  int64
	window time.Duration
}

// NewMemoryStore creates an in-memory counter store. now is injectable for
// tests; nil uses the wall clock.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]*windowEntry), now: now}
}

// Incr implements CounterStore. Windows are aligned to the first request in
// the window, not the calendar: after expiry the next request starts a new
// window with count 1.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.start) >= window {
		e = &windowEntry{start: now, count: 1, window: window}
		s.entries[key] = e
		return 1, e.start, nil
	}
	e.count++
	return e.count, e.start, nil
}

// StartSweeper purges expired windows every interval until ctx is done.
// The sweep is best-effort housekeeping to bound memory; it never blocks
// request handling beyond the brief mutex hold.
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
		if now.Sub(e.start) >= e.window {
			delete(s.entries, key)
		}
	}
}

// size is test-only visibility into the entry count.
func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
