package pipeline

// END is the terminal stage identifier.
// Use this as an edge target to mark the last stage of the pipeline.
const END = "__end__"

// StageFunc is the signature for all stage functions.
// Stages receive the execution context and the current state,
// and return the updated state and any error.
//
// The state parameter is passed by value. Stages should return a new
// state value rather than mutate shared data reachable from the input.
//
// Example:
//
//	func normalize(ctx pipeline.Context, s State) (State, error) {
//	    s.Query = strings.TrimSpace(s.Query)
//	    return s, nil
//	}
type StageFunc[S any] func(ctx Context, state S) (S, error)
