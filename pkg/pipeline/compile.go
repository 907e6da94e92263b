package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dominikbraun/graph"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. Entry point must be set
//  2. Entry point must reference an existing stage
//  3. All edge sources must reference existing stages
//  4. All edge targets must reference existing stages or END
//  5. No stage may have more than one successor
//  6. No edge may close a cycle
//  7. The entry point must have a path to END
//
// Unreachable stages (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.stages[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for _, from := range g.edgeSources() {
		if _, exists := g.stages[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrStageNotFound, from))
		}

		targets := g.edges[from]
		for _, to := range targets {
			if to == END {
				continue
			}
			if _, exists := g.stages[to]; !exists {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrStageNotFound, to))
			}
		}

		if len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: %s -> %v", ErrBranching, from, targets))
		}
	}

	errs = append(errs, g.detectCycles()...)

	if g.entryPoint != "" {
		if _, exists := g.stages[g.entryPoint]; exists && !g.hasPathToEnd() {
			errs = append(errs, ErrNoPathToEnd)
		}
	}

	g.warnUnreachableStages()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// edgeSources returns edge sources in stage insertion order, followed by
// sources that do not name a stage. Keeps error output stable.
func (g *Graph[S]) edgeSources() []string {
	sources := make([]string, 0, len(g.edges))
	seen := make(map[string]bool, len(g.edges))
	for _, id := range g.order {
		if _, ok := g.edges[id]; ok {
			sources = append(sources, id)
			seen[id] = true
		}
	}
	for from := range g.edges {
		if !seen[from] {
			sources = append(sources, from)
		}
	}
	return sources
}

// detectCycles loads the edges into a directed graph that rejects
// cycle-creating edges and reports each rejected edge.
func (g *Graph[S]) detectCycles() []error {
	dag := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for _, id := range g.order {
		_ = dag.AddVertex(id)
	}
	_ = dag.AddVertex(END)

	var errs []error
	for _, from := range g.edgeSources() {
		for _, to := range g.edges[from] {
			err := dag.AddEdge(from, to)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				errs = append(errs, fmt.Errorf("%w: %s -> %s", ErrCycle, from, to))
			case errors.Is(err, graph.ErrEdgeAlreadyExists), errors.Is(err, graph.ErrVertexNotFound):
				// duplicates and unknown endpoints are reported elsewhere
			default:
				errs = append(errs, fmt.Errorf("edge %s -> %s: %w", from, to, err))
			}
		}
	}
	return errs
}

// hasPathToEnd follows successors from the entry point until END is
// reached or a stage repeats.
func (g *Graph[S]) hasPathToEnd() bool {
	visited := make(map[string]bool)
	current := g.entryPoint
	for {
		if current == END {
			return true
		}
		if visited[current] {
			return false
		}
		visited[current] = true

		targets := g.edges[current]
		if len(targets) == 0 {
			return false
		}
		current = targets[0]
	}
}

// warnUnreachableStages logs warnings for stages not reachable from entry.
func (g *Graph[S]) warnUnreachableStages() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableStages()

	for _, id := range g.order {
		if !reachable[id] {
			slog.Warn("stage is unreachable from entry", "stage_id", id)
		}
	}
}

// findReachableStages returns the set of stages reachable from the entry point.
func (g *Graph[S]) findReachableStages() map[string]bool {
	reachable := make(map[string]bool)
	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.edges[current] {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
// Only called after validation, so every stage on the path has one successor.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	stages := make(map[string]StageFunc[S], len(g.stages))
	for id, fn := range g.stages {
		stages[id] = fn
	}

	successors := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		successors[from] = targets[0]
	}

	var order []string
	for current := g.entryPoint; current != END; current = successors[current] {
		order = append(order, current)
	}

	return &CompiledGraph[S]{
		stages:     stages,
		successors: successors,
		entryPoint: g.entryPoint,
		order:      order,
	}
}
