package pipeline

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/researchflow/pkg/pipeline/observability"
	"github.com/randalmurphal/researchflow/pkg/pipeline/snapshot"
)

// StageObserver is called after every stage with its duration and error.
type StageObserver func(stageID string, duration time.Duration, err error)

// runConfig holds configuration for pipeline execution.
type runConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool

	snapshotStore        snapshot.Store
	snapshotFailureFatal bool
	runID                string
	sequence             int

	observers []StageObserver
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithObservabilityLogger sets the logger used for run and stage events.
// Nil disables run-level logging.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for the run.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and each stage.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSnapshots records the state after every successful stage.
// Requires WithRunID.
func WithSnapshots(store snapshot.Store) RunOption {
	return func(c *runConfig) {
		c.snapshotStore = store
	}
}

// WithSnapshotFailureFatal makes snapshot errors stop the run.
// By default they are logged and ignored.
func WithSnapshotFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.snapshotFailureFatal = fatal
	}
}

// WithRunID sets the run identifier used for snapshots and observability.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithStageObserver registers a callback invoked after each stage.
//
// Example:
//
//	timings := map[string]time.Duration{}
//	compiled.Run(ctx, state, pipeline.WithStageObserver(
//	    func(id string, d time.Duration, _ error) { timings[id] = d }))
func WithStageObserver(fn StageObserver) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}
