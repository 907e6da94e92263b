// Package observability provides structured logging, metrics, and tracing
// helpers for pipeline runs and provider calls.
//
// Logging uses slog. Metrics and tracing use OpenTelemetry against the
// global providers. Every feature has a no-op variant for when it is off.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run and stage context to a logger.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "draft")
//	enriched.Info("doing work") // includes run_id, stage_id
func EnrichLogger(logger *slog.Logger, runID, stageID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("stage_id", stageID),
	)
}

// LogRunStart logs the start of a pipeline run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful pipeline completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, stageCount int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stages_executed", stageCount),
	)
}

// LogRunError logs pipeline failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastStage string) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_stage", lastStage),
	)
}

// LogStageStart logs stage execution start.
func LogStageStart(logger *slog.Logger, stageID string) {
	if logger == nil {
		return
	}
	logger.Debug("stage starting",
		slog.String("stage_id", stageID),
	)
}

// LogStageComplete logs successful stage completion.
func LogStageComplete(logger *slog.Logger, stageID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("stage completed",
		slog.String("stage_id", stageID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStageError logs stage execution error.
func LogStageError(logger *slog.Logger, stageID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("stage failed",
		slog.String("stage_id", stageID),
		slog.String("error", err.Error()),
	)
}

// LogSnapshot logs a saved stage snapshot.
func LogSnapshot(logger *slog.Logger, stageID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot saved",
		slog.String("stage_id", stageID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs snapshot failure (non-fatal).
func LogSnapshotError(logger *slog.Logger, stageID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot failed",
		slog.String("stage_id", stageID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogProviderAttempt logs one provider call. A nil err means success.
func LogProviderAttempt(logger *slog.Logger, provider string, attempt int, category string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err == nil {
		logger.Debug("provider attempt succeeded",
			slog.String("provider", provider),
			slog.Int("attempt", attempt),
			slog.Float64("duration_ms", durationMs),
		)
		return
	}
	logger.Warn("provider attempt failed",
		slog.String("provider", provider),
		slog.Int("attempt", attempt),
		slog.String("category", category),
		slog.Float64("duration_ms", durationMs),
		slog.String("error", err.Error()),
	)
}

// LogFallback logs that every provider failed and a fallback answer was used.
func LogFallback(logger *slog.Logger, status string, providersTried int) {
	if logger == nil {
		return
	}
	logger.Warn("all providers failed",
		slog.String("status", status),
		slog.Int("providers_tried", providersTried),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
