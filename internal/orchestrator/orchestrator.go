// Package orchestrator sequences an analysis request through validation,
// rate limiting, the response cache, the model provider, and policy
// enforcement. Every path out of it is a uniform envelope.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ethiscan/orchestrator/internal/cachestore"
	"github.com/ethiscan/orchestrator/internal/jsonx"
	"github.com/ethiscan/orchestrator/internal/policy"
	"github.com/ethiscan/orchestrator/internal/pricing"
	"github.com/ethiscan/orchestrator/internal/provider"
	"github.com/ethiscan/orchestrator/internal/ratelimit"
	"github.com/ethiscan/orchestrator/internal/telemetry"
	"github.com/ethiscan/orchestrator/internal/types"
)

// Options are the tunables the orchestrator reads from config.
type Options struct {
	DefaultProvider string
	DefaultTimeout  time.Duration
	CacheTTL        time.Duration
	MaxImageBytes   int
	MaxTextChars    int
}

func (o *Options) fillDefaults() {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = 30 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = cachestore.DefaultTTL
	}
	if o.MaxImageBytes <= 0 {
		o.MaxImageBytes = 10 << 20
	}
	if o.MaxTextChars <= 0 {
		o.MaxTextChars = 5000
	}
}

// Orchestrator owns the request pipeline. All collaborators are required
// except metrics and recorder, which may be nil.
type Orchestrator struct {
	opts      Options
	registry  *provider.Registry
	ipLimit   *ratelimit.IPLimiter
	userLimit *ratelimit.TierLimiter
	store     cachestore.Store
	recorder  *cachestore.Recorder
	validator *policy.Validator
	metrics   *telemetry.Metrics
	prices    *pricing.Table
	logger    *slog.Logger
	now       func() time.Time
}

func New(opts Options, registry *provider.Registry, ipLimit *ratelimit.IPLimiter,
	userLimit *ratelimit.TierLimiter, store cachestore.Store, recorder *cachestore.Recorder,
	validator *policy.Validator, metrics *telemetry.Metrics, logger *slog.Logger) *Orchestrator {

	opts.fillDefaults()
	if validator == nil {
		validator = policy.NewValidator(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		opts:      opts,
		registry:  registry,
		ipLimit:   ipLimit,
		userLimit: userLimit,
		store:     store,
		recorder:  recorder,
		validator: validator,
		metrics:   metrics,
		prices:    pricing.NewTable(nil),
		logger:    logger,
		now:       time.Now,
	}
}

// Outcome pairs the envelope with transport hints the HTTP layer needs.
type Outcome struct {
	Envelope  *types.Envelope
	RateLimit *ratelimit.Result // nil unless limits were evaluated
}

// Analyze runs the full pipeline for one request.
func (o *Orchestrator) Analyze(ctx context.Context, req *types.AnalysisRequest) Outcome {
	start := o.now()
	log := o.logger.With("mode", req.Mode, "lens", req.Lens.String(), "ip", req.ClientIP)

	if err := o.validate(req); err != nil {
		o.count(req, "invalid", "bypass", start)
		return Outcome{Envelope: types.ErrorEnvelope(types.ErrInvalidRequest, err.Error(), o.meta(start))}
	}

	if out, rl := o.checkLimits(ctx, req, start, log); out != nil {
		return Outcome{Envelope: out, RateLimit: rl}
	}

	key := cachestore.ComputeKey(req)
	if env := o.lookupCache(ctx, key, start, log); env != nil {
		o.count(req, "ok", "hit", start)
		// Hits cost nothing upstream; the ledger row only marks the replay.
		o.record(req, env.Metadata.Provider, env.Metadata.Model, nil, env.Metadata.LatencyMs, true)
		return Outcome{Envelope: env}
	}

	env := o.callProvider(ctx, req, key, start, log)
	outcome := "miss"
	status := "ok"
	if !env.Success {
		status = "error"
		outcome = "bypass"
	}
	o.count(req, status, outcome, start)
	return Outcome{Envelope: env}
}

// checkLimits applies the anonymous IP limit, then the per-user tier quota.
// A non-nil envelope means the request was rejected.
func (o *Orchestrator) checkLimits(ctx context.Context, req *types.AnalysisRequest, start time.Time, log *slog.Logger) (*types.Envelope, *ratelimit.Result) {
	if o.ipLimit != nil {
		res := o.ipLimit.Check(ctx, req.ClientIP)
		if !res.Allowed {
			log.Info("request rejected by ip limit", "retry_after", res.RetryAfter)
			if o.metrics != nil {
				o.metrics.RecordRateLimitReject("ip", "")
			}
			env := types.ErrorEnvelope(types.ErrRateLimit, "too many requests from this address", o.meta(start))
			env.Error.Details = map[string]any{"retry_after_seconds": int64(res.RetryAfter / time.Second)}
			return env, &res
		}
	}
	if o.userLimit != nil && req.UserID != "" {
		res, tier := o.userLimit.Check(ctx, req.UserID)
		if !res.Allowed {
			log.Info("request rejected by tier quota", "tier", tier, "retry_after", res.RetryAfter)
			if o.metrics != nil {
				o.metrics.RecordRateLimitReject("user", string(tier))
			}
			env := types.ErrorEnvelope(types.ErrRateLimit, "hourly quota exhausted", o.meta(start))
			env.Error.Details = map[string]any{
				"retry_after_seconds": int64(res.RetryAfter / time.Second),
				"tier":                string(tier),
			}
			return env, &res
		}
		return nil, &res
	}
	return nil, nil
}

// lookupCache returns a success envelope on a fresh hit, nil otherwise.
// Store trouble is a miss, never a failure.
func (o *Orchestrator) lookupCache(ctx context.Context, key string, start time.Time, log *slog.Logger) *types.Envelope {
	entry, ok, err := o.store.Get(ctx, key)
	if err != nil {
		log.Warn("cache lookup failed, treating as miss", "error", err)
		if o.metrics != nil {
			o.metrics.RecordCacheLookup("error")
		}
		return nil
	}
	if !ok {
		if o.metrics != nil {
			o.metrics.RecordCacheLookup("miss")
		}
		return nil
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(entry.Response, &result); err != nil {
		log.Warn("cached entry undecodable, treating as miss", "key", key, "error", err)
		if o.metrics != nil {
			o.metrics.RecordCacheLookup("error")
		}
		return nil
	}
	if o.metrics != nil {
		o.metrics.RecordCacheLookup("hit")
	}
	return &types.Envelope{
		Success: true,
		Data:    &result,
		Metadata: types.Metadata{
			Provider:   entry.Provider,
			Model:      entry.Model,
			TokensUsed: entry.TokensUsed,
			LatencyMs:  o.now().Sub(start).Milliseconds(),
			CacheHit:   true,
		},
	}
}

// callProvider does the upstream call, parse, policy check, and cache write.
func (o *Orchestrator) callProvider(ctx context.Context, req *types.AnalysisRequest, key string, start time.Time, log *slog.Logger) *types.Envelope {
	adapter, err := o.registry.Resolve(o.opts.DefaultProvider, req.Image != nil)
	if err != nil {
		pe := provider.AsError(err)
		log.Error("no usable provider", "error", err)
		return types.ErrorEnvelope(pe.Code, pe.Message, o.meta(start))
	}

	callCtx, cancel := context.WithTimeout(ctx, req.Timeout(o.opts.DefaultTimeout))
	defer cancel()

	res, err := adapter.Call(callCtx, req)
	if err != nil {
		pe := provider.AsError(err)
		log.Warn("provider call failed", "provider", adapter.Name(), "code", pe.Code, "error", err)
		return types.ErrorEnvelope(pe.Code, pe.Message, o.meta(start))
	}

	if o.metrics != nil {
		cost := o.prices.Estimate(adapter.Name(), res.Model, res.PromptTokens, res.CompletionTokens)
		o.metrics.RecordProviderUsage(adapter.Name(), res.Model, float64(res.LatencyMs),
			res.PromptTokens, res.CompletionTokens, cost)
	}
	o.record(req, adapter.Name(), res.Model, res, res.LatencyMs, false)

	meta := types.Metadata{
		Provider:  adapter.Name(),
		Model:     res.Model,
		LatencyMs: o.now().Sub(start).Milliseconds(),
	}
	if res.TotalTokens > 0 {
		tokens := res.TotalTokens
		meta.TokensUsed = &tokens
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(jsonx.Extract(res.Text)), &result); err != nil {
		log.Warn("provider returned unparseable payload", "provider", adapter.Name(), "error", err)
		return types.ErrorEnvelope(types.ErrProvider, "provider returned an unparseable response", meta)
	}

	if outcome := o.validator.Validate(req.Lens, &result); !outcome.OK() {
		for _, v := range outcome.Violations {
			log.Warn("policy violation, serving fallback",
				"lens", req.Lens.String(), "rule", v.Rule, "field", v.Field, "match", v.Match)
		}
		if o.metrics != nil {
			o.metrics.RecordPolicyFallback(req.Lens.String(), outcome.Violations[0].Rule)
		}
		// Fallbacks are served but never cached; a transient bad generation
		// must not become a week of bad answers.
		return &types.Envelope{Success: true, Data: policy.Fallback(req.Lens), Metadata: meta}
	} else if len(outcome.Warnings) > 0 {
		for _, w := range outcome.Warnings {
			log.Info("policy warning", "lens", req.Lens.String(), "rule", w.Rule, "field", w.Field)
		}
	}

	o.writeCache(ctx, key, &result, res, meta, log)
	return &types.Envelope{Success: true, Data: &result, Metadata: meta}
}

// writeCache persists a clean response. Failure degrades to uncached.
func (o *Orchestrator) writeCache(ctx context.Context, key string, result *types.AnalysisResult, res *provider.Result, meta types.Metadata, log *slog.Logger) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Warn("cache write skipped, response not serializable", "error", err)
		return
	}
	now := o.now()
	entry := &cachestore.Entry{
		Key:        key,
		Response:   payload,
		Provider:   meta.Provider,
		Model:      meta.Model,
		TokensUsed: meta.TokensUsed,
		LatencyMs:  res.LatencyMs,
		CreatedAt:  now,
		ExpiresAt:  now.Add(o.opts.CacheTTL),
	}
	if err := o.store.Put(ctx, entry); err != nil {
		log.Warn("cache write failed", "key", key, "error", err)
	}
}

func (o *Orchestrator) meta(start time.Time) types.Metadata {
	return types.Metadata{LatencyMs: o.now().Sub(start).Milliseconds()}
}

func (o *Orchestrator) count(req *types.AnalysisRequest, status, cacheOutcome string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordRequest(telemetry.RequestLabels{
		Mode:         string(req.Mode),
		Lens:         req.Lens.String(),
		Status:       status,
		CacheOutcome: cacheOutcome,
		DurationMs:   float64(o.now().Sub(start).Milliseconds()),
	})
}

// record appends a usage ledger row. res is nil for cache hits, which carry
// no token counts and therefore no cost.
func (o *Orchestrator) record(req *types.AnalysisRequest, providerName, model string, res *provider.Result, latencyMs int64, cacheHit bool) {
	if o.recorder == nil {
		return
	}
	rec := cachestore.UsageRecord{
		Operation: string(req.Mode),
		Provider:  providerName,
		Model:     model,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
	}
	if res != nil {
		rec.PromptTokens = res.PromptTokens
		rec.CompletionTokens = res.CompletionTokens
	}
	o.recorder.Record(rec)
}
