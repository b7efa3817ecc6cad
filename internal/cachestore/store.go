// Package cachestore is the content-addressable store of prior provider
// responses. Lookup keys derive deterministically from request identity, so
// identical-meaning requests hit the same entry regardless of arrival time.
package cachestore

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultTTL is how long a cached response stays servable.
const DefaultTTL = 7 * 24 * time.Hour

// Entry is one cached provider response with its bookkeeping.
type Entry struct {
	Key            string
	Response       json.RawMessage // AnalysisResult JSON, exactly as first returned
	Provider       string
	Model          string
	TokensUsed     *int
	LatencyMs      int64
	CreatedAt      time.Time
	ExpiresAt      time.Time
	HitCount       int64
	LastAccessedAt time.Time
}

// Expired reports whether the entry is logically dead at t. Dead entries
// are misses; physical deletion is opportunistic.
func (e *Entry) Expired(t time.Time) bool {
	return !t.Before(e.ExpiresAt)
}

// Store is the cache persistence contract. A Get hit bumps hit_count and
// last_accessed_at as a side effect; that bookkeeping failing must never
// fail the read. Implementations return (nil, false, err) on store trouble
// and callers treat any error as a miss.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Put(ctx context.Context, entry *Entry) error
}
