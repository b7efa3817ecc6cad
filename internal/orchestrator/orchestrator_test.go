package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ethiscan/orchestrator/internal/cachestore"
	"github.com/ethiscan/orchestrator/internal/policy"
	"github.com/ethiscan/orchestrator/internal/provider"
	"github.com/ethiscan/orchestrator/internal/ratelimit"
	"github.com/ethiscan/orchestrator/internal/telemetry"
	"github.com/ethiscan/orchestrator/internal/types"
)

const goodPayload = `{
	"product_name": "Classic Cheddar",
	"suggestions": [
		{"name": "Certified higher-welfare cheddar", "description": "Same style, certified farms.",
		 "confidence": 0.8, "reasoning": "Certification audits housing and handling.", "availability": "common"}
	],
	"general_note": "Look for welfare certification on the label.",
	"ethical_lens_position": "Higher-welfare sourcing within an omnivore diet."
}`

// fakeAdapter scripts the upstream: a fixed payload, an optional error,
// and an optional delay that respects the caller's deadline.
type fakeAdapter struct {
	payload string
	err     error
	delay   time.Duration
	vision  bool
	calls   int
}

func (f *fakeAdapter) Name() string         { return "fake" }
func (f *fakeAdapter) SupportsVision() bool { return f.vision }

func (f *fakeAdapter) Call(ctx context.Context, req *types.AnalysisRequest) (*provider.Result, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &provider.Error{Code: types.ErrTimeout, Message: "provider call exceeded deadline", Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{
		Text: f.payload, Model: "fake-model",
		PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42,
		LatencyMs: 5,
	}, nil
}

// spyStore counts writes on top of the in-memory store.
type spyStore struct {
	cachestore.Store
	puts int
}

func (s *spyStore) Put(ctx context.Context, entry *cachestore.Entry) error {
	s.puts++
	return s.Store.Put(ctx, entry)
}

type env struct {
	orch    *Orchestrator
	adapter *fakeAdapter
	store   *spyStore
}

func newEnv(t *testing.T, adapter *fakeAdapter, opts Options) *env {
	t.Helper()
	reg := provider.NewRegistry()
	reg.Register("fake", adapter)

	store := &spyStore{Store: cachestore.NewMemoryStore(time.Now)}
	ipLimit := ratelimit.NewIPLimiter(ratelimit.NewMemoryStore(time.Now), 1000, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts.DefaultProvider = "fake"
	orch := New(opts, reg, ipLimit, nil, store, nil, policy.NewValidator(nil), nil, logger)
	return &env{orch: orch, adapter: adapter, store: store}
}

func analysisRequest() *types.AnalysisRequest {
	return &types.AnalysisRequest{
		PromptTemplateID: "food-analysis",
		PromptVersion:    "v3",
		Prompt:           "Analyze the product in the photo.",
		Mode:             types.ModeAnalyze,
		Language:         "en",
		Lens:             types.LensWelfare,
		Image:            &types.ImagePayload{Base64: "aGVsbG8gd29ybGQ=", MimeType: "image/jpeg"},
		ClientIP:         "203.0.113.7",
	}
}

func TestAnalyze_MissThenHit(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: goodPayload, vision: true}, Options{})

	first := e.orch.Analyze(context.Background(), analysisRequest()).Envelope
	if !first.Success {
		t.Fatalf("expected success, got %+v", first.Error)
	}
	if first.Metadata.CacheHit {
		t.Error("first request must be a miss")
	}
	if e.adapter.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", e.adapter.calls)
	}
	if e.store.puts != 1 {
		t.Fatalf("expected 1 cache write, got %d", e.store.puts)
	}

	second := e.orch.Analyze(context.Background(), analysisRequest()).Envelope
	if !second.Success {
		t.Fatalf("expected success, got %+v", second.Error)
	}
	if !second.Metadata.CacheHit {
		t.Error("second identical request must hit the cache")
	}
	if e.adapter.calls != 1 {
		t.Errorf("cache hit must not call the provider, got %d calls", e.adapter.calls)
	}
	if !reflect.DeepEqual(first.Data, second.Data) {
		t.Error("cached data must be identical to the first response")
	}
	if second.Metadata.Provider != "fake" || second.Metadata.Model != "fake-model" {
		t.Errorf("cached metadata must keep the original provider, got %+v", second.Metadata)
	}
}

func TestAnalyze_CorrectionsShareCacheEntry(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: goodPayload, vision: true}, Options{})

	e.orch.Analyze(context.Background(), analysisRequest())

	withCorrection := analysisRequest()
	withCorrection.AdditionalInfo = "it's actually organic"
	out := e.orch.Analyze(context.Background(), withCorrection).Envelope
	if !out.Metadata.CacheHit {
		t.Error("free-text corrections must not change cache identity")
	}
}

func TestAnalyze_ProviderFailureNotCached(t *testing.T) {
	e := newEnv(t, &fakeAdapter{
		vision: true,
		err:    &provider.Error{Code: types.ErrProvider, Message: "upstream 500"},
	}, Options{})

	out := e.orch.Analyze(context.Background(), analysisRequest()).Envelope
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Error.Code != types.ErrProvider {
		t.Errorf("got code %s, want %s", out.Error.Code, types.ErrProvider)
	}
	if e.store.puts != 0 {
		t.Errorf("failures must never be cached, got %d writes", e.store.puts)
	}
}

func TestAnalyze_UnparseablePayloadNotCached(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: "sorry, I can't help with that", vision: true}, Options{})

	out := e.orch.Analyze(context.Background(), analysisRequest()).Envelope
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Error.Code != types.ErrProvider {
		t.Errorf("got code %s, want %s", out.Error.Code, types.ErrProvider)
	}
	if e.store.puts != 0 {
		t.Errorf("unparseable output must never be cached, got %d writes", e.store.puts)
	}
}

func TestAnalyze_FencedJSONParses(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: "```json\n" + goodPayload + "\n```", vision: true}, Options{})

	out := e.orch.Analyze(context.Background(), analysisRequest()).Envelope
	if !out.Success {
		t.Fatalf("fenced JSON must parse, got %+v", out.Error)
	}
	if out.Data.ProductName != "Classic Cheddar" {
		t.Errorf("unexpected product name %q", out.Data.ProductName)
	}
}

func TestAnalyze_PolicyFallbackServedNotCached(t *testing.T) {
	violating, _ := json.Marshal(types.AnalysisResult{
		Suggestions: []types.Suggestion{{Name: "Tofu scramble", Description: "Swap the eggs out entirely."}},
		GeneralNote: "Go plant-based.",
	})
	e := newEnv(t, &fakeAdapter{payload: string(violating), vision: true}, Options{})

	req := analysisRequest()
	req.Lens = types.LensWelfare
	out := e.orch.Analyze(context.Background(), req).Envelope

	if !out.Success {
		t.Fatal("fallback is served as a successful response")
	}
	want := policy.Fallback(types.LensWelfare)
	if !reflect.DeepEqual(out.Data, want) {
		t.Error("violating output must be replaced by the lens fallback")
	}
	if e.store.puts != 0 {
		t.Errorf("fallbacks must never be cached, got %d writes", e.store.puts)
	}

	// and the fallback is not served from cache on the next call
	again := e.orch.Analyze(context.Background(), req).Envelope
	if again.Metadata.CacheHit {
		t.Error("fallback must not appear as a cached entry")
	}
}

func TestAnalyze_TimeoutMapsToTimeout(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: goodPayload, vision: true, delay: 200 * time.Millisecond}, Options{})

	req := analysisRequest()
	req.TimeoutMs = 20
	out := e.orch.Analyze(context.Background(), req).Envelope
	if out.Success {
		t.Fatal("expected timeout failure")
	}
	if out.Error.Code != types.ErrTimeout {
		t.Errorf("got code %s, want %s", out.Error.Code, types.ErrTimeout)
	}
	if e.store.puts != 0 {
		t.Error("timeouts must never be cached")
	}
}

func TestAnalyze_IPRateLimit(t *testing.T) {
	adapter := &fakeAdapter{payload: goodPayload, vision: true}
	reg := provider.NewRegistry()
	reg.Register("fake", adapter)
	ipLimit := ratelimit.NewIPLimiter(ratelimit.NewMemoryStore(time.Now), 2, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := New(Options{DefaultProvider: "fake"}, reg, ipLimit, nil,
		cachestore.NewMemoryStore(time.Now), nil, policy.NewValidator(nil), nil, logger)

	// distinct focus items so the cache never absorbs the traffic
	for i := 0; i < 2; i++ {
		req := analysisRequest()
		req.FocusItem = string(rune('a' + i))
		if out := orch.Analyze(context.Background(), req).Envelope; !out.Success {
			t.Fatalf("request %d should pass, got %+v", i, out.Error)
		}
	}

	req := analysisRequest()
	req.FocusItem = "third"
	out := orch.Analyze(context.Background(), req)
	if out.Envelope.Success {
		t.Fatal("third request must be rejected")
	}
	if out.Envelope.Error.Code != types.ErrRateLimit {
		t.Errorf("got code %s, want %s", out.Envelope.Error.Code, types.ErrRateLimit)
	}
	retry, ok := out.Envelope.Error.Details["retry_after_seconds"].(int64)
	if !ok || retry <= 0 {
		t.Errorf("expected positive retry_after_seconds, got %v", out.Envelope.Error.Details)
	}
	if out.RateLimit == nil || out.RateLimit.Allowed {
		t.Error("rate limit result must be surfaced for headers")
	}
}

func TestAnalyze_TierQuota(t *testing.T) {
	adapter := &fakeAdapter{payload: goodPayload, vision: true}
	reg := provider.NewRegistry()
	reg.Register("fake", adapter)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	resolver := staticResolver(ratelimit.TierFree)
	userLimit := ratelimit.NewTierLimiter(ratelimit.NewMemoryStore(time.Now), resolver, ratelimit.Quotas{ratelimit.TierFree: 1})
	orch := New(Options{DefaultProvider: "fake"}, reg, nil, userLimit,
		cachestore.NewMemoryStore(time.Now), nil, policy.NewValidator(nil), nil, logger)

	req := analysisRequest()
	req.UserID = "u-1"
	if out := orch.Analyze(context.Background(), req).Envelope; !out.Success {
		t.Fatalf("first request should pass, got %+v", out.Error)
	}

	req2 := analysisRequest()
	req2.UserID = "u-1"
	req2.FocusItem = "different"
	out := orch.Analyze(context.Background(), req2).Envelope
	if out.Success {
		t.Fatal("quota of 1 must reject the second request")
	}
	if out.Error.Code != types.ErrRateLimit {
		t.Errorf("got code %s, want %s", out.Error.Code, types.ErrRateLimit)
	}
	if out.Error.Details["tier"] != "free" {
		t.Errorf("expected tier detail, got %v", out.Error.Details)
	}
}

type staticResolver ratelimit.Tier

func (s staticResolver) Resolve(ctx context.Context, userID string) ratelimit.Tier {
	return ratelimit.Tier(s)
}

func TestAnalyze_Validation(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: goodPayload, vision: true}, Options{MaxTextChars: 10})

	tests := []struct {
		name   string
		mutate func(*types.AnalysisRequest)
	}{
		{"missing prompt", func(r *types.AnalysisRequest) { r.Prompt = "" }},
		{"missing template id", func(r *types.AnalysisRequest) { r.PromptTemplateID = "" }},
		{"bad mode", func(r *types.AnalysisRequest) { r.Mode = "summarize" }},
		{"bad lens", func(r *types.AnalysisRequest) { r.Lens = 9 }},
		{"image without mime type", func(r *types.AnalysisRequest) { r.Image.MimeType = "" }},
		{"image without data", func(r *types.AnalysisRequest) { r.Image.Base64 = "" }},
		{"oversized focus item", func(r *types.AnalysisRequest) { r.FocusItem = "this is far too long" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := analysisRequest()
			tt.mutate(req)
			out := e.orch.Analyze(context.Background(), req).Envelope
			if out.Success {
				t.Fatal("expected rejection")
			}
			if out.Error.Code != types.ErrInvalidRequest {
				t.Errorf("got code %s, want %s", out.Error.Code, types.ErrInvalidRequest)
			}
		})
	}
	if e.adapter.calls != 0 {
		t.Errorf("invalid requests must never reach the provider, got %d calls", e.adapter.calls)
	}
}

func TestAnalyze_OversizedImageRejected(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: goodPayload, vision: true}, Options{MaxImageBytes: 8})

	req := analysisRequest() // 16 base64 chars, ~12 decoded bytes
	out := e.orch.Analyze(context.Background(), req).Envelope
	if out.Success || out.Error.Code != types.ErrInvalidRequest {
		t.Errorf("oversized image must be INVALID_REQUEST, got %+v", out)
	}
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	return *metric.Counter.Value
}

func TestAnalyze_ProviderUsageInstrumentsFed(t *testing.T) {
	adapter := &fakeAdapter{payload: goodPayload, vision: true}
	reg := provider.NewRegistry()
	reg.Register("fake", adapter)
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := New(Options{DefaultProvider: "fake"}, reg, nil, nil,
		cachestore.NewMemoryStore(time.Now), nil, policy.NewValidator(nil), metrics, logger)

	out := orch.Analyze(context.Background(), analysisRequest()).Envelope
	if !out.Success {
		t.Fatalf("expected success, got %+v", out.Error)
	}

	if got := counterValue(t, metrics.TokensTotal, "fake", "fake-model", "prompt"); got != 30 {
		t.Errorf("expected 30 prompt tokens recorded, got %v", got)
	}
	if got := counterValue(t, metrics.TokensTotal, "fake", "fake-model", "completion"); got != 12 {
		t.Errorf("expected 12 completion tokens recorded, got %v", got)
	}

	// a cache hit spends nothing upstream
	orch.Analyze(context.Background(), analysisRequest())
	if got := counterValue(t, metrics.TokensTotal, "fake", "fake-model", "prompt"); got != 30 {
		t.Errorf("cache hit must not add tokens, got %v", got)
	}
	if got := counterValue(t, metrics.CacheLookupTotal, "hit"); got != 1 {
		t.Errorf("expected 1 cache hit, got %v", got)
	}
}

func TestAnalyze_ImageNeedsVisionProvider(t *testing.T) {
	e := newEnv(t, &fakeAdapter{payload: goodPayload, vision: false}, Options{})

	out := e.orch.Analyze(context.Background(), analysisRequest()).Envelope
	if out.Success {
		t.Fatal("expected rejection")
	}
	if out.Error.Code != types.ErrInvalidRequest {
		t.Errorf("got code %s, want %s", out.Error.Code, types.ErrInvalidRequest)
	}
	if e.adapter.calls != 0 {
		t.Error("a text-only provider must never receive an image request")
	}
}
