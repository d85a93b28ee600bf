package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMeterName scopes the environment pipeline instruments.
const PipelineMeterName = "github.com/heliowatch/heliowatch/internal/environment"

// PipelineMetrics records the health of the environment pipeline: which source
// answered, how adapters failed, how often readings were stale and how long
// reports took.
type PipelineMetrics struct {
	attempts        metric.Int64Counter
	attemptDuration metric.Float64Histogram
	failures        metric.Int64Counter
	selections      metric.Int64Counter
	stale           metric.Int64Counter
	reportDuration  metric.Float64Histogram
	reports         metric.Int64Counter
}

// NewPipelineMetrics creates the instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	attempts, err := meter.Int64Counter(
		"environment.source.attempts",
		metric.WithDescription("Source attempts by provider and outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptDuration, err := meter.Float64Histogram(
		"environment.source.attempt.duration",
		metric.WithDescription("Duration of a single source attempt in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"environment.source.failures",
		metric.WithDescription("Source attempts that failed or were rejected"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	selections, err := meter.Int64Counter(
		"environment.selection.total",
		metric.WithDescription("Completed selections by chosen source"),
		metric.WithUnit("{selection}"),
	)
	if err != nil {
		return nil, err
	}

	stale, err := meter.Int64Counter(
		"environment.reading.stale",
		metric.WithDescription("Reports served with a stale reading"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	reportDuration, err := meter.Float64Histogram(
		"environment.report.duration",
		metric.WithDescription("End-to-end report pipeline latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	reports, err := meter.Int64Counter(
		"environment.report.total",
		metric.WithDescription("Reports assembled, split by cache hit"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		attempts:        attempts,
		attemptDuration: attemptDuration,
		failures:        failures,
		selections:      selections,
		stale:           stale,
		reportDuration:  reportDuration,
		reports:         reports,
	}, nil
}

// RecordAttempt records one state of the fallback chain.
func (m *PipelineMetrics) RecordAttempt(ctx context.Context, provider, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider.name", provider),
		attribute.String("outcome", outcome),
	)
	// Metrics outlive request cancellation.
	ctx = context.WithoutCancel(ctx)

	m.attempts.Add(ctx, 1, attrs)
	m.attemptDuration.Record(ctx, duration.Seconds(), attrs)
	if outcome == "failed" || outcome == "rejected" {
		m.failures.Add(ctx, 1, attrs)
	}
}

// RecordSelection records which source answered.
func (m *PipelineMetrics) RecordSelection(ctx context.Context, source string, _ time.Duration) {
	m.selections.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordStale records a report served with a stale reading.
func (m *PipelineMetrics) RecordStale(ctx context.Context, source string) {
	m.stale.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordReport records an assembled report.
func (m *PipelineMetrics) RecordReport(ctx context.Context, cacheHit bool, latency time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("cache_hit", cacheHit))
	ctx = context.WithoutCancel(ctx)

	m.reports.Add(ctx, 1, attrs)
	m.reportDuration.Record(ctx, latency.Seconds(), attrs)
}
