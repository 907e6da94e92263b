package pipeline

import (
	"context"
)

// Counter is a simple state for testing incrementing.
type Counter struct {
	Value int
}

// Trace records which stages ran.
type Trace struct {
	Steps []string `json:"steps"`
	Note  string   `json:"note"`
}

// increment is a stage that increments the counter.
func increment(_ Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// makeStep appends the stage name to the trace.
func makeStep(name string) StageFunc[Trace] {
	return func(_ Context, s Trace) (Trace, error) {
		s.Steps = append(append([]string(nil), s.Steps...), name)
		return s, nil
	}
}

// makeFailing records the stage and then fails.
func makeFailing(name string, err error) StageFunc[Trace] {
	return func(_ Context, s Trace) (Trace, error) {
		s.Steps = append(append([]string(nil), s.Steps...), name)
		return s, err
	}
}

func makePanic(value any) StageFunc[Trace] {
	return func(_ Context, _ Trace) (Trace, error) {
		panic(value)
	}
}

// threeStage returns the compiled a -> b -> c pipeline.
func threeStage(b StageFunc[Trace]) *CompiledGraph[Trace] {
	compiled, err := NewGraph[Trace]().
		AddStage("a", makeStep("a")).
		AddStage("b", b).
		AddStage("c", makeStep("c")).
		Chain("a", "b", "c").
		SetEntry("a").
		Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func testCtx() Context {
	return NewContext(context.Background())
}
