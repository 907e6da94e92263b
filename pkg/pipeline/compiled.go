package pipeline

// CompiledGraph is an immutable, executable stage pipeline.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() calls. The structure cannot be modified after compilation.
type CompiledGraph[S any] struct {
	stages     map[string]StageFunc[S]
	successors map[string]string
	entryPoint string

	// Pre-computed execution order from entry to END
	order []string
}

// EntryPoint returns the entry stage ID.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// Stages returns the stage IDs in execution order.
// Unreachable stages are not included.
func (cg *CompiledGraph[S]) Stages() []string {
	ids := make([]string, len(cg.order))
	copy(ids, cg.order)
	return ids
}

// HasStage checks if a stage exists in the graph.
func (cg *CompiledGraph[S]) HasStage(id string) bool {
	_, exists := cg.stages[id]
	return exists
}

// Successor returns the stage that follows id, or END for the last stage.
// Returns "" for END or unknown stages.
func (cg *CompiledGraph[S]) Successor(id string) string {
	if id == END {
		return ""
	}
	return cg.successors[id]
}

// Edges returns the (from, to) pairs of the execution path, END included.
func (cg *CompiledGraph[S]) Edges() [][2]string {
	edges := make([][2]string, 0, len(cg.order))
	for _, id := range cg.order {
		edges = append(edges, [2]string{id, cg.successors[id]})
	}
	return edges
}

func (cg *CompiledGraph[S]) getStage(id string) (StageFunc[S], bool) {
	fn, exists := cg.stages[id]
	return fn, exists
}
