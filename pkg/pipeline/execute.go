package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/researchflow/pkg/pipeline/observability"
	"github.com/randalmurphal/researchflow/pkg/pipeline/snapshot"
)

// Run executes every stage in order with the given initial state.
// Returns the final state and any error encountered.
//
// On error, returns the state at the point of failure. A stage that
// returns an error still hands back its state, so partial output survives.
//
// Execution flow:
//  1. Start at the entry stage
//  2. Check for cancellation
//  3. Execute the stage with panic recovery
//  4. Snapshot the new state (if a store is configured)
//  5. Move to the successor until END is reached or an error occurs
//
// Example:
//
//	ctx := pipeline.NewContext(context.Background())
//	final, err := compiled.Run(ctx, State{Query: "..."})
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.snapshotStore != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID)

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, "pipeline", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var stageCount int
	result, stageCount, runErr = cg.runStages(execCtx, ctx, state, &cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	cfg.metrics.RecordPipelineRun(ctx, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, runID, runErr, durationMs, failedStage(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, runID, durationMs, stageCount)
	}

	return result, runErr
}

// failedStage extracts the stage ID carried by an execution error.
func failedStage(err error) string {
	var stageErr *StageError
	var panicErr *PanicError
	var cancelErr *CancellationError
	var snapErr *SnapshotError
	switch {
	case errors.As(err, &stageErr):
		return stageErr.StageID
	case errors.As(err, &panicErr):
		return panicErr.StageID
	case errors.As(err, &cancelErr):
		return cancelErr.StageID
	case errors.As(err, &snapErr):
		return snapErr.StageID
	}
	return ""
}

// runStages walks the compiled order.
// tracingCtx carries span context; pCtx is the pipeline Context.
func (cg *CompiledGraph[S]) runStages(tracingCtx context.Context, pCtx Context, state S, cfg *runConfig) (S, int, error) {
	stageCount := 0
	prev := ""

	for _, current := range cg.order {
		select {
		case <-pCtx.Done():
			return state, stageCount, &CancellationError{
				StageID: current,
				State:   state,
				Cause:   pCtx.Err(),
			}
		default:
		}

		observability.LogStageStart(cfg.logger, current)

		stageTracingCtx := tracingCtx
		var stageSpan trace.Span
		if cfg.tracingEnabled {
			stageTracingCtx, stageSpan = cfg.spans.StartStageSpan(tracingCtx, current)
		}

		stageStart := time.Now()

		var stageErr error
		state, stageErr = cg.executeStage(pCtx, stageTracingCtx, current, state)

		stageDuration := time.Since(stageStart)

		cfg.metrics.RecordStageExecution(stageTracingCtx, current, stageDuration, stageErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stageSpan, stageErr)
		}
		for _, observe := range cfg.observers {
			observe(current, stageDuration, stageErr)
		}

		if stageErr != nil {
			observability.LogStageError(cfg.logger, current, stageErr)
			return state, stageCount, stageErr
		}
		observability.LogStageComplete(cfg.logger, current, float64(stageDuration.Milliseconds()))
		stageCount++

		next := cg.successors[current]
		if cfg.snapshotStore != nil {
			if err := cg.saveSnapshot(pCtx, cfg, current, prev, state, next); err != nil {
				return state, stageCount, err
			}
		}
		prev = current
	}

	return state, stageCount, nil
}

// saveSnapshot persists the state produced by a stage.
// Failures are logged unless snapshotFailureFatal is set.
func (cg *CompiledGraph[S]) saveSnapshot(ctx Context, cfg *runConfig, stageID, prevStageID string, state S, next string) error {
	fail := func(op string, err error) error {
		if cfg.snapshotFailureFatal {
			return &SnapshotError{StageID: stageID, Op: op, Err: err}
		}
		observability.LogSnapshotError(cfg.logger, stageID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	snap := snapshot.New(cfg.runID, stageID, cfg.sequence, stateBytes, next).
		WithPrevStage(prevStageID)

	if err := cfg.snapshotStore.Save(ctx, snap); err != nil {
		return fail("save", err)
	}

	observability.LogSnapshot(cfg.logger, stageID, len(stateBytes))
	cfg.metrics.RecordSnapshot(ctx, stageID, int64(len(stateBytes)))
	return nil
}

// executeStage executes a single stage with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeStage(ctx Context, tracingCtx context.Context, stageID string, state S) (result S, err error) {
	fn, exists := cg.getStage(stageID)
	if !exists {
		return state, &StageError{
			StageID: stageID,
			Op:      "lookup",
			Err:     fmt.Errorf("%w: %s", ErrStageNotFound, stageID),
		}
	}

	stageCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		stageCtx = ec.withStageID(stageID).withTracing(tracingCtx)
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				StageID: stageID,
				Value:   r,
				Stack:   string(debug.Stack()),
			}
		}
	}()

	result, err = fn(stageCtx, state)
	if err != nil {
		return result, &StageError{
			StageID: stageID,
			Op:      "execute",
			Err:     err,
		}
	}

	return result, nil
}
