// Package metrics records per-call cost and latency for policy tuning.
package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/richinex/aegis/llm"
)

// Call kinds tracked per inference request.
const (
	CallAnalysis = "analysis"
	CallPlanning = "planning"
)

// Call outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeParseFailure = "parse_failure"
	OutcomeNetFailure   = "network_failure"
)

// modelPricing is USD per million tokens. Matched by model name prefix;
// unknown models track zero cost rather than guessing.
type modelPricing struct {
	prefix    string
	inputUSD  float64
	outputUSD float64
}

var pricingTable = []modelPricing{
	{prefix: "gemini-3-pro", inputUSD: 2.50, outputUSD: 10.00},
	{prefix: "gemini-3-flash", inputUSD: 0.30, outputUSD: 1.20},
	{prefix: "gemini-2.0-flash", inputUSD: 0.10, outputUSD: 0.40},
	{prefix: "gpt-4o-mini", inputUSD: 0.15, outputUSD: 0.60},
	{prefix: "gpt-4o", inputUSD: 2.50, outputUSD: 10.00},
	{prefix: "claude-sonnet-4", inputUSD: 3.00, outputUSD: 15.00},
	{prefix: "claude-haiku-4", inputUSD: 0.80, outputUSD: 4.00},
}

// Tracker records inference call counts, latency, token usage, and estimated
// cost. Each tracker owns its registry so tests never collide on global
// collector registration.
type Tracker struct {
	registry *prometheus.Registry

	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	tokens    *prometheus.CounterVec
	costUSD   *prometheus.CounterVec
	incidents *prometheus.CounterVec

	mu        sync.Mutex
	totalCost float64
	byKind    map[string]int
}

// NewTracker creates a tracker with a fresh registry.
func NewTracker() *Tracker {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Tracker{
		registry: registry,
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_inference_calls_total",
				Help: "Total number of inference calls",
			},
			[]string{"kind", "provider", "tier", "outcome"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aegis_inference_duration_seconds",
				Help:    "Inference call duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
			},
			[]string{"kind", "provider", "tier"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_inference_tokens_total",
				Help: "Total number of tokens consumed",
			},
			[]string{"provider", "model", "type"}, // type: input/output
		),
		costUSD: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_inference_cost_usd_total",
				Help: "Estimated inference cost in USD",
			},
			[]string{"provider", "model"},
		),
		incidents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aegis_incidents_total",
				Help: "Total number of confirmed incidents",
			},
			[]string{"severity", "category"},
		),
		byKind: make(map[string]int),
	}
}

// ObserveCall records one inference call.
func (t *Tracker) ObserveCall(kind, provider, model string, tier llm.Tier, outcome string, elapsed time.Duration, usage *llm.TokenUsage) {
	t.calls.WithLabelValues(kind, provider, tier.String(), outcome).Inc()
	t.latency.WithLabelValues(kind, provider, tier.String()).Observe(elapsed.Seconds())

	t.mu.Lock()
	t.byKind[kind]++
	t.mu.Unlock()

	if usage == nil {
		return
	}
	t.tokens.WithLabelValues(provider, model, "input").Add(float64(usage.PromptTokens))
	t.tokens.WithLabelValues(provider, model, "output").Add(float64(usage.CompletionTokens))

	cost := EstimateCost(model, usage)
	if cost > 0 {
		t.costUSD.WithLabelValues(provider, model).Add(cost)
		t.mu.Lock()
		t.totalCost += cost
		t.mu.Unlock()
	}
}

// ObserveIncident records one confirmed incident.
func (t *Tracker) ObserveIncident(severity, category string) {
	t.incidents.WithLabelValues(severity, category).Inc()
}

// TotalCostUSD returns the accumulated estimated cost.
func (t *Tracker) TotalCostUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCost
}

// CallCount returns how many calls of a kind were observed.
func (t *Tracker) CallCount(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKind[kind]
}

// Handler exposes the tracker's registry for scraping.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// EstimateCost returns the estimated USD cost of one call, zero for unknown
// models.
func EstimateCost(model string, usage *llm.TokenUsage) float64 {
	if usage == nil {
		return 0
	}
	for _, p := range pricingTable {
		if strings.HasPrefix(model, p.prefix) {
			return float64(usage.PromptTokens)/1e6*p.inputUSD +
				float64(usage.CompletionTokens)/1e6*p.outputUSD
		}
	}
	return 0
}
