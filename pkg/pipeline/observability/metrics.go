package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for every researchflow instrument.
const MeterName = "researchflow"

// MetricsRecorder records pipeline and provider metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStageExecution records a stage execution with its duration and error status.
	RecordStageExecution(ctx context.Context, stageID string, duration time.Duration, err error)

	// RecordPipelineRun records a pipeline run completion.
	RecordPipelineRun(ctx context.Context, success bool, duration time.Duration)

	// RecordSnapshot records a snapshot save operation.
	RecordSnapshot(ctx context.Context, stageID string, sizeBytes int64)

	// RecordProviderAttempt records one provider call and its outcome
	// ("ok" or a failure category).
	RecordProviderAttempt(ctx context.Context, provider, outcome string, duration time.Duration)

	// RecordFallback records a call that no provider answered.
	RecordFallback(ctx context.Context, status string)
}

type otelMetrics struct {
	stageExecutions  metric.Int64Counter
	stageLatency     metric.Float64Histogram
	stageErrors      metric.Int64Counter
	pipelineRuns     metric.Int64Counter
	pipelineLatency  metric.Float64Histogram
	snapshotSize     metric.Int64Histogram
	providerAttempts metric.Int64Counter
	providerLatency  metric.Float64Histogram
	fallbacks        metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel metrics instance.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(MeterName)
	m := &otelMetrics{}
	var err error

	if m.stageExecutions, err = meter.Int64Counter("researchflow.stage.executions",
		metric.WithDescription("Number of stage executions"),
	); err != nil {
		return nil, err
	}

	if m.stageLatency, err = meter.Float64Histogram("researchflow.stage.latency_ms",
		metric.WithDescription("Stage execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.stageErrors, err = meter.Int64Counter("researchflow.stage.errors",
		metric.WithDescription("Number of stage execution errors"),
	); err != nil {
		return nil, err
	}

	if m.pipelineRuns, err = meter.Int64Counter("researchflow.pipeline.runs",
		metric.WithDescription("Number of pipeline runs"),
	); err != nil {
		return nil, err
	}

	if m.pipelineLatency, err = meter.Float64Histogram("researchflow.pipeline.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.snapshotSize, err = meter.Int64Histogram("researchflow.snapshot.size_bytes",
		metric.WithDescription("Snapshot size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.providerAttempts, err = meter.Int64Counter("researchflow.provider.attempts",
		metric.WithDescription("Number of provider calls by outcome"),
	); err != nil {
		return nil, err
	}

	if m.providerLatency, err = meter.Float64Histogram("researchflow.provider.latency_ms",
		metric.WithDescription("Provider call latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.fallbacks, err = meter.Int64Counter("researchflow.invoke.fallbacks",
		metric.WithDescription("Number of calls answered without a provider"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordStageExecution(ctx context.Context, stageID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("stage_id", stageID))

	m.stageExecutions.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.stageErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordPipelineRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.pipelineRuns.Add(ctx, 1, attrs)
	m.pipelineLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordSnapshot(ctx context.Context, stageID string, sizeBytes int64) {
	m.snapshotSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("stage_id", stageID)))
}

func (m *otelMetrics) RecordProviderAttempt(ctx context.Context, provider, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.providerAttempts.Add(ctx, 1, attrs)
	m.providerLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordFallback(ctx context.Context, status string) {
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
