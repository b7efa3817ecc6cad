package cachestore

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ethiscan/orchestrator/internal/pricing"
)

// UsageRecord is one row of the usage/cost ledger.
type UsageRecord struct {
	Operation        string // "analyze" | "alternatives"
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMs        int64
	CacheHit         bool
}

// Recorder appends usage records with estimated cost. It is independent of
// the cache read/write path: failures are logged and swallowed, never
// surfaced to the request.
type Recorder struct {
	db     *pgxpool.Pool
	prices *pricing.Table
}

func NewRecorder(db *pgxpool.Pool, prices *pricing.Table) *Recorder {
	if prices == nil {
		prices = pricing.NewTable(nil)
	}
	return &Recorder{db: db, prices: prices}
}

// Record writes the usage row asynchronously. Safe to call with a nil pool
// (no durable backend configured).
func (r *Recorder) Record(rec UsageRecord) {
	if r.db == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		cost := r.prices.Estimate(rec.Provider, rec.Model, rec.PromptTokens, rec.CompletionTokens)
		_, err := r.db.Exec(ctx, `
			INSERT INTO usage_metrics
				(operation, provider, model, prompt_tokens, completion_tokens,
				 latency_ms, cache_hit, estimated_cost_usd, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, rec.Operation, rec.Provider, rec.Model, rec.PromptTokens,
			rec.CompletionTokens, rec.LatencyMs, rec.CacheHit, cost)
		if err != nil {
			slog.Warn("usage metrics write failed", "error", err)
		}
	}()
}
