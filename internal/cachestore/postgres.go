package cachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable Store backed by the ai_response_cache table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get fetches a live entry. Hit bookkeeping and expired-row cleanup run as
// fire-and-forget side effects so they can never fail or slow the read.
func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var e Entry
	err := s.db.QueryRow(ctx, `
		SELECT key, response, provider, model, tokens_used, latency_ms,
		       created_at, expires_at, hit_count, last_accessed_at
		FROM ai_response_cache
		WHERE key = $1
	`, key).Scan(
		&e.Key, &e.Response, &e.Provider, &e.Model, &e.TokensUsed,
		&e.LatencyMs, &e.CreatedAt, &e.ExpiresAt, &e.HitCount, &e.LastAccessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if e.Expired(time.Now()) {
		go s.background(func(ctx context.Context) error {
			_, err := s.db.Exec(ctx, `DELETE FROM ai_response_cache WHERE key = $1 AND expires_at <= NOW()`, key)
			return err
		}, "expired cache delete")
		return nil, false, nil
	}

	go s.background(func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			UPDATE ai_response_cache
			SET hit_count = hit_count + 1, last_accessed_at = NOW()
			WHERE key = $1
		`, key)
		return err
	}, "cache hit bump")

	return &e, true, nil
}

// Put upserts the entry. A concurrent writer for the same key simply wins
// last; both writes carry the same identity-derived payload.
func (s *PostgresStore) Put(ctx context.Context, entry *Entry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ai_response_cache
			(key, response, provider, model, tokens_used, latency_ms,
			 created_at, expires_at, hit_count, last_accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $7)
		ON CONFLICT (key) DO UPDATE SET
			response = EXCLUDED.response,
			provider = EXCLUDED.provider,
			model = EXCLUDED.model,
			tokens_used = EXCLUDED.tokens_used,
			latency_ms = EXCLUDED.latency_ms,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`, entry.Key, entry.Response, entry.Provider, entry.Model,
		entry.TokensUsed, entry.LatencyMs, entry.CreatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// PurgeExpired deletes dead rows in bulk; wired to a background ticker.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM ai_response_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cache purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) background(fn func(context.Context) error, what string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Warn("cache bookkeeping failed", "op", what, "error", err)
	}
}
