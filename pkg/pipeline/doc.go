/*
Package pipeline provides a typed, strictly linear stage engine.

# Overview

A pipeline is an ordered list of stages. Each stage receives the state
produced by the previous one and returns a new state. State is passed by
value, so a stage can never reach back and mutate an earlier stage's output.

The engine offers:
  - Type-safe generics for state
  - Compile-time validation (no branching, no cycles, a path to END)
  - Panic recovery and typed errors
  - Optional per-stage snapshots for inspecting a finished run
  - OpenTelemetry metrics and tracing, slog logging

# Basic Usage

	type State struct {
	    Input  string
	    Output string
	}

	func upper(ctx pipeline.Context, s State) (State, error) {
	    s.Output = strings.ToUpper(s.Input)
	    return s, nil
	}

	compiled, err := pipeline.NewGraph[State]().
	    AddStage("upper", upper).
	    AddEdge("upper", pipeline.END).
	    SetEntry("upper").
	    Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := pipeline.NewContext(context.Background())
	result, err := compiled.Run(ctx, State{Input: "hello"})

# Errors

Compile joins every validation problem into one error; test for a specific
one with errors.Is (ErrBranching, ErrCycle, ErrNoPathToEnd and so on).

Run stops at the first failing stage and returns the state at that point
together with one of:
  - *StageError when a stage returned an error
  - *PanicError when a stage panicked
  - *CancellationError when the context was done before a stage started
  - *SnapshotError when a snapshot failed and WithSnapshotFailureFatal is set

# Observability

	result, err := compiled.Run(ctx, state,
	    pipeline.WithObservabilityLogger(logger),
	    pipeline.WithMetrics(true),
	    pipeline.WithTracing(true),
	    pipeline.WithStageObserver(func(id string, d time.Duration, err error) {
	        // collect timings
	    }),
	)

# Snapshots

	store, _ := snapshot.NewSQLiteStore("./snapshots.db")
	result, err := compiled.Run(ctx, state,
	    pipeline.WithSnapshots(store),
	    pipeline.WithRunID(ctx.RunID()))

Snapshots are records for later inspection; the engine never loads them.
*/
package pipeline
