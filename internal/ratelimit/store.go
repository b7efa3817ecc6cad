// Package ratelimit bounds request volume per client identity. Two limiter
// flavors share one counter-store contract: a fixed per-minute window keyed
// by IP for anonymous traffic, and an hour-bucketed quota keyed by user id
// and tiered by subscription. Both fail open when the backing store is
// unreachable — product availability beats strict quota enforcement.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration // > 0 only when denied
}

// CounterStore increments the counter for an identity window and reports
// the post-increment count plus the window's start time. Implementations
// must make the check-then-increment atomic per key.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, windowStart time.Time, err error)
}
