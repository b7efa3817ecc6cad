package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Tier is a subscription level resolved by the tier collaborator.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// TierResolver looks up a user's subscription tier. Treated as a black box;
// implementations decide caching and failure behavior.
type TierResolver interface {
	Resolve(ctx context.Context, userID string) Tier
}

// Quotas maps tiers to their hourly request quota.
type Quotas map[Tier]int64

// DefaultQuotas matches the product's subscription plans.
func DefaultQuotas() Quotas {
	return Quotas{TierFree: 10, TierBasic: 50, TierPro: 200}
}

func (q Quotas) For(tier Tier) int64 {
	if limit, ok := q[tier]; ok {
		return limit
	}
	return q[TierFree]
}

// IPLimiter enforces a fixed window per client IP for anonymous traffic.
type IPLimiter struct {
	store  CounterStore
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewIPLimiter(store CounterStore, max int64, window time.Duration) *IPLimiter {
	return &IPLimiter{store: store, max: max, window: window, now: time.Now}
}

// Check increments-or-rejects for the IP's current window. Store failures
// allow the request.
func (l *IPLimiter) Check(ctx context.Context, ip string) Result {
	count, start, err := l.store.Incr(ctx, "ip:"+ip, l.window)
	if err != nil {
		slog.Warn("rate limit store unavailable, failing open", "error", err, "key", "ip")
		return Result{Allowed: true, Remaining: l.max - 1}
	}
	if count > l.max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter(start.Add(l.window), l.now()),
		}
	}
	return Result{Allowed: true, Remaining: l.max - count}
}

// TierLimiter enforces an hour-bucketed quota per authenticated user,
// sized by subscription tier.
type TierLimiter struct {
	store    CounterStore
	resolver TierResolver
	quotas   Quotas
	now      func() time.Time
}

func NewTierLimiter(store CounterStore, resolver TierResolver, quotas Quotas) *TierLimiter {
	if quotas == nil {
		quotas = DefaultQuotas()
	}
	return &TierLimiter{store: store, resolver: resolver, quotas: quotas, now: time.Now}
}

// Check resolves the user's tier and increments the current hour bucket.
// Buckets are calendar-hour aligned so every instance agrees on the key.
func (l *TierLimiter) Check(ctx context.Context, userID string) (Result, Tier) {
	tier := l.resolver.Resolve(ctx, userID)
	limit := l.quotas.For(tier)

	now := l.now()
	bucket := now.Truncate(time.Hour)
	key := fmt.Sprintf("user:%s:%d", userID, bucket.Unix())

	count, _, err := l.store.Incr(ctx, key, time.Hour)
	if err != nil {
		slog.Warn("rate limit store unavailable, failing open", "error", err, "key", "user")
		return Result{Allowed: true, Remaining: limit - 1}, tier
	}
	if count > limit {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter(bucket.Add(time.Hour), now),
		}, tier
	}
	return Result{Allowed: true, Remaining: limit - count}, tier
}

// retryAfter rounds up to whole seconds so a Retry-After header is never 0
// while the window is still active.
func retryAfter(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return time.Duration(secs) * time.Second
}
