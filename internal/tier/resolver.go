// Package tier resolves a user's subscription tier for the tiered rate
// limiter. The subscription system itself is an external collaborator; this
// package only reads its current tier label, with a short Redis cache in
// front of Postgres.
package tier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ethiscan/orchestrator/internal/ratelimit"
)

const (
	cacheTTL       = 5 * time.Minute
	cacheKeyPrefix = "ethiscan:tier:"
)

// Resolver implements ratelimit.TierResolver against the subscriptions
// table. Lookup failures and unknown users resolve to the free tier — the
// most restrictive quota — rather than failing open on identity.
type Resolver struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewResolver(db *pgxpool.Pool, rdb *redis.Client) *Resolver {
	return &Resolver{db: db, redis: rdb}
}

// Resolve returns the user's tier.
func (r *Resolver) Resolve(ctx context.Context, userID string) ratelimit.Tier {
	if userID == "" {
		return ratelimit.TierFree
	}

	if r.redis != nil {
		if cached, err := r.redis.Get(ctx, cacheKeyPrefix+userID).Result(); err == nil {
			return normalize(cached)
		}
	}

	tier := r.lookupDB(ctx, userID)

	if r.redis != nil {
		if err := r.redis.Set(ctx, cacheKeyPrefix+userID, string(tier), cacheTTL).Err(); err != nil {
			slog.Warn("tier cache write failed", "error", err)
		}
	}
	return tier
}

func (r *Resolver) lookupDB(ctx context.Context, userID string) ratelimit.Tier {
	if r.db == nil {
		return ratelimit.TierFree
	}

	var tier string
	err := r.db.QueryRow(ctx, `
		SELECT tier
		FROM subscriptions
		WHERE user_id = $1
		  AND status = 'active'
		  AND (expires_at IS NULL OR expires_at > NOW())
	`, userID).Scan(&tier)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("subscription lookup failed, defaulting to free tier", "error", err)
		}
		return ratelimit.TierFree
	}
	return normalize(tier)
}

func normalize(s string) ratelimit.Tier {
	switch ratelimit.Tier(s) {
	case ratelimit.TierBasic:
		return ratelimit.TierBasic
	case ratelimit.TierPro:
		return ratelimit.TierPro
	default:
		return ratelimit.TierFree
	}
}
