package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the orchestrator.
type Metrics struct {
	RequestTotal         *prometheus.CounterVec
	RequestDurationMs    *prometheus.HistogramVec
	ProviderLatencyMs    *prometheus.HistogramVec
	CacheLookupTotal     *prometheus.CounterVec
	RateLimitRejectTotal *prometheus.CounterVec
	PolicyFallbackTotal  *prometheus.CounterVec
	TokensTotal          *prometheus.CounterVec
	CostUSDTotal         *prometheus.CounterVec
}

// NewMetrics registers all instruments on the given registerer. Pass
// prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethiscan_request_total",
			Help: "Total analysis requests processed.",
		}, []string{"mode", "lens", "status"}),

		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ethiscan_request_duration_ms",
			Help:    "End-to-end request duration in milliseconds.",
			Buckets: []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"mode", "cache"}),

		ProviderLatencyMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ethiscan_provider_latency_ms",
			Help:    "Upstream model call latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"provider", "model"}),

		CacheLookupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethiscan_cache_lookup_total",
			Help: "Cache lookups by outcome (hit, miss, error).",
		}, []string{"outcome"}),

		RateLimitRejectTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethiscan_ratelimit_reject_total",
			Help: "Requests rejected by rate limiting.",
		}, []string{"scope", "tier"}),

		PolicyFallbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethiscan_policy_fallback_total",
			Help: "Responses replaced by a lens fallback payload.",
		}, []string{"lens", "rule"}),

		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethiscan_tokens_total",
			Help: "Tokens consumed upstream.",
		}, []string{"provider", "model", "direction"}),

		CostUSDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethiscan_cost_usd_total",
			Help: "Estimated upstream spend in USD.",
		}, []string{"provider", "model"}),
	}
}

// RequestLabels carries the values for one completed request.
type RequestLabels struct {
	Mode         string
	Lens         string
	Status       string
	CacheOutcome string // "hit", "miss", "bypass"
	DurationMs   float64
}

// RecordRequest records the per-request instruments. Provider usage is
// recorded separately, only on calls that actually reached an upstream.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(labels.Mode, labels.Lens, labels.Status).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Mode, labels.CacheOutcome).Observe(labels.DurationMs)
}

// RecordProviderUsage records latency, token, and cost instruments for one
// upstream call. Cache hits never reach this.
func (m *Metrics) RecordProviderUsage(provider, model string, latencyMs float64, promptTokens, completionTokens int, costUSD float64) {
	m.ProviderLatencyMs.WithLabelValues(provider, model).Observe(latencyMs)
	if promptTokens > 0 {
		m.TokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.TokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
	if costUSD > 0 {
		m.CostUSDTotal.WithLabelValues(provider, model).Add(costUSD)
	}
}

func (m *Metrics) RecordCacheLookup(outcome string) {
	m.CacheLookupTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRateLimitReject(scope, tier string) {
	m.RateLimitRejectTotal.WithLabelValues(scope, tier).Inc()
}

func (m *Metrics) RecordPolicyFallback(lens, rule string) {
	m.PolicyFallbackTotal.WithLabelValues(lens, rule).Inc()
}
