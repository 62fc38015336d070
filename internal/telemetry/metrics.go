package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the analysis pipeline's instruments. A nil *Metrics is
// safe everywhere: every method no-ops, so tests and cache-only tools can
// skip telemetry wiring entirely.
type Metrics struct {
	cacheLookups  metric.Int64Counter
	promptTokens  metric.Int64Counter
	outputTokens  metric.Int64Counter
	cachedTokens  metric.Int64Counter
	evalLatency   metric.Float64Histogram
	analysisCount metric.Int64Counter
	analysisTime  metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on the global meter provider
func NewMetrics() (*Metrics, error) {
	meter := Meter("callcoach/pipeline")

	m := &Metrics{}
	var err error

	if m.cacheLookups, err = meter.Int64Counter("coach.cache.lookups",
		metric.WithDescription("Result cache lookups, partitioned by tier and outcome")); err != nil {
		return nil, err
	}
	if m.promptTokens, err = meter.Int64Counter("coach.llm.prompt_tokens",
		metric.WithDescription("Prompt tokens consumed by rubric evaluations")); err != nil {
		return nil, err
	}
	if m.outputTokens, err = meter.Int64Counter("coach.llm.completion_tokens",
		metric.WithDescription("Completion tokens produced by rubric evaluations")); err != nil {
		return nil, err
	}
	if m.cachedTokens, err = meter.Int64Counter("coach.llm.cached_prompt_tokens",
		metric.WithDescription("Prompt tokens served from the provider's prompt cache")); err != nil {
		return nil, err
	}
	if m.evalLatency, err = meter.Float64Histogram("coach.evaluation.duration",
		metric.WithDescription("Wall-clock duration of one chunk evaluation"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.analysisCount, err = meter.Int64Counter("coach.analysis.count",
		metric.WithDescription("Completed analysis requests, partitioned by outcome")); err != nil {
		return nil, err
	}
	if m.analysisTime, err = meter.Float64Histogram("coach.analysis.duration",
		metric.WithDescription("End-to-end duration of one analysis request"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCacheLookup counts one cache lookup for a tier with its outcome
func (m *Metrics) RecordCacheLookup(ctx context.Context, tier string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", tier),
		attribute.String("outcome", outcome),
	))
}

// RecordTokenUsage accumulates token accounting for one completion
func (m *Metrics) RecordTokenUsage(ctx context.Context, provider string, prompt, completion, cached int, cacheHit bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("prompt_cache_hit", cacheHit),
	)
	m.promptTokens.Add(ctx, int64(prompt), attrs)
	m.outputTokens.Add(ctx, int64(completion), attrs)
	if cached > 0 {
		m.cachedTokens.Add(ctx, int64(cached), attrs)
	}
}

// RecordEvaluation records the latency of one chunk evaluation
func (m *Metrics) RecordEvaluation(ctx context.Context, dimension string, d time.Duration, degraded bool) {
	if m == nil {
		return
	}
	m.evalLatency.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("dimension", dimension),
		attribute.Bool("degraded", degraded),
	))
}

// RecordAnalysis counts one finished analysis request
func (m *Metrics) RecordAnalysis(ctx context.Context, dimension string, partial bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("dimension", dimension),
		attribute.Bool("partial", partial),
	)
	m.analysisCount.Add(ctx, 1, attrs)
	m.analysisTime.Record(ctx, float64(d.Milliseconds()), attrs)
}
