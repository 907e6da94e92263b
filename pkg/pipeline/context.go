package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to stages.
// It extends context.Context with the run's logger and identifiers.
//
// Context is immutable after creation. The executor creates derived contexts
// for each stage with updated StageID and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and stage context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// StageID returns the current stage being executed.
	// Empty string before execution starts.
	StageID() string
}

type executionContext struct {
	context.Context

	logger  *slog.Logger
	runID   string
	stageID string
}

func (c *executionContext) Logger() *slog.Logger { return c.logger }
func (c *executionContext) RunID() string        { return c.runID }
func (c *executionContext) StageID() string      { return c.stageID }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id and stage_id during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.runID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := pipeline.NewContext(context.Background(),
//	    pipeline.WithLogger(myLogger),
//	    pipeline.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withStageID returns a new context with the given stage ID set.
func (c *executionContext) withStageID(stageID string) *executionContext {
	return &executionContext{
		Context: c.Context,
		logger:  c.logger.With("run_id", c.runID, "stage_id", stageID),
		runID:   c.runID,
		stageID: stageID,
	}
}

// withTracing swaps the embedded context for one carrying span state.
func (c *executionContext) withTracing(ctx context.Context) *executionContext {
	cp := *c
	cp.Context = ctx
	return &cp
}
