package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ethiscan:rl:"

// fixedWindowScript atomically increments the window counter, arming the
// key's expiry on first hit.
// KEYS[1] = counter key
// ARGV[1] = window length in milliseconds
// Returns: [count, remaining_ttl_ms]
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisStore is the durable CounterStore for multi-instance deployments.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Incr implements CounterStore. The window start is reconstructed from the
// key's remaining TTL. Errors propagate to the limiter, which fails open.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{redisKeyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("rate limit incr: unexpected script reply of length %d", len(res))
	}
	count := res[0]
	ttl := time.Duration(res[1]) * time.Millisecond
	start := time.Now().Add(ttl - window)
	return count, start, nil
}
