package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompile_Valid tests a well-formed linear pipeline.
func TestCompile_Valid(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddStage("b", increment).
		AddStage("a", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "a", compiled.EntryPoint())
	assert.Equal(t, []string{"a", "b"}, compiled.Stages())
	assert.True(t, compiled.HasStage("a"))
	assert.False(t, compiled.HasStage("nope"))
}

// TestCompile_Errors tests each validation failure.
func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Graph[Counter]
		want  error
	}{
		{
			name: "no entry",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddStage("a", increment).AddEdge("a", END)
			},
			want: ErrNoEntryPoint,
		},
		{
			name: "entry not found",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddStage("a", increment).AddEdge("a", END).SetEntry("x")
			},
			want: ErrEntryNotFound,
		},
		{
			name: "unknown target",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddStage("a", increment).AddEdge("a", "ghost").SetEntry("a")
			},
			want: ErrStageNotFound,
		},
		{
			name: "unknown source",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddStage("a", increment).
					AddEdge("a", END).AddEdge("ghost", "a").SetEntry("a")
			},
			want: ErrStageNotFound,
		},
		{
			name: "branching",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddStage("a", increment).AddStage("b", increment).AddStage("c", increment).
					AddEdge("a", "b").AddEdge("a", "c").
					AddEdge("b", END).AddEdge("c", END).
					SetEntry("a")
			},
			want: ErrBranching,
		},
		{
			name: "cycle",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().
					AddStage("a", increment).AddStage("b", increment).
					AddEdge("a", "b").AddEdge("b", "a").
					SetEntry("a")
			},
			want: ErrCycle,
		},
		{
			name: "self loop",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddStage("a", increment).AddEdge("a", "a").SetEntry("a")
			},
			want: ErrCycle,
		},
		{
			name: "no path to end",
			build: func() *Graph[Counter] {
				return NewGraph[Counter]().AddStage("a", increment).AddStage("b", increment).
					AddEdge("a", "b").SetEntry("a")
			},
			want: ErrNoPathToEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.build().Compile()
			require.Error(t, err)
			assert.Nil(t, compiled)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestCompile_JoinsErrors tests that independent problems are all reported.
func TestCompile_JoinsErrors(t *testing.T) {
	_, err := NewGraph[Counter]().
		AddStage("a", increment).
		AddEdge("a", "ghost").
		AddEdge("a", END).
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
	assert.ErrorIs(t, err, ErrStageNotFound)
	assert.ErrorIs(t, err, ErrBranching)
}

// TestCompile_UnreachableIsWarningOnly tests that orphans do not fail compilation.
func TestCompile_UnreachableIsWarningOnly(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddStage("a", increment).
		AddStage("orphan", increment).
		AddEdge("a", END).
		AddEdge("orphan", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, compiled.Stages())
	assert.True(t, compiled.HasStage("orphan"))
}
