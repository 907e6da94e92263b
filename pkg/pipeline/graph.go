package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for a linear stage pipeline.
// Use NewGraph to create a new graph, then chain AddStage, AddEdge,
// and SetEntry calls to define the stage order.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := pipeline.NewGraph[State]().
//	    AddStage("research", research).
//	    AddStage("draft", draft).
//	    AddEdge("research", "draft").
//	    AddEdge("draft", pipeline.END).
//	    SetEntry("research")
//
//	compiled, err := graph.Compile()
type Graph[S any] struct {
	mu         sync.RWMutex
	stages     map[string]StageFunc[S]
	order      []string // insertion order, used for deterministic validation output
	edges      map[string][]string
	entryPoint string
}

// NewGraph creates a new graph builder for state type S.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		stages: make(map[string]StageFunc[S]),
		edges:  make(map[string][]string),
	}
}

// AddStage adds a named stage to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S]) AddStage(id string, fn StageFunc[S]) *Graph[S] {
	if id == "" {
		panic("pipeline: stage ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		panic("pipeline: stage ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("pipeline: stage ID cannot contain whitespace")
	}

	if fn == nil {
		panic("pipeline: stage function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.stages[id]; exists {
		panic(fmt.Sprintf("pipeline: duplicate stage ID: %s", id))
	}

	g.stages[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddEdge adds an edge from one stage to the next.
// The target can be a stage ID or pipeline.END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, so edges can be added
// in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// Chain adds edges between consecutive stage IDs and a final edge to END.
// It is shorthand for the common strictly linear case:
//
//	g.Chain("research", "draft", "refine")
//
// is the same as three AddEdge calls ending in END.
func (g *Graph[S]) Chain(ids ...string) *Graph[S] {
	for i, id := range ids {
		next := END
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		g.AddEdge(id, next)
	}
	return g
}

// SetEntry designates the first stage.
// Entry point validation happens at Compile() time.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
