package snapshot

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories lets every contract test run against each implementation.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snapshots.db"))
			require.NoError(t, err)
			return s
		},
	}
}

// TestStore_SaveLoad tests that a saved snapshot round-trips through Load.
func TestStore_SaveLoad(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			ctx := context.Background()

			snap := New("run-1", "research", 1, []byte(`{"query":"cats"}`), "draft")
			require.NoError(t, store.Save(ctx, snap))

			got, err := store.Load(ctx, "run-1", "research")
			require.NoError(t, err)
			assert.Equal(t, "draft", got.NextStage)
			assert.Equal(t, 1, got.Sequence)
			assert.JSONEq(t, `{"query":"cats"}`, string(got.State))
		})
	}
}

// TestStore_LoadMissing tests the not-found sentinel.
func TestStore_LoadMissing(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()

			_, err := store.Load(context.Background(), "nope", "research")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

// TestStore_ListOrdersBySequence tests List ordering and replacement on re-save.
func TestStore_ListOrdersBySequence(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, New("run-1", "refine", 3, []byte(`{}`), "__end__")))
			require.NoError(t, store.Save(ctx, New("run-1", "research", 1, []byte(`{}`), "draft")))
			require.NoError(t, store.Save(ctx, New("run-1", "draft", 2, []byte(`{}`), "refine")))
			require.NoError(t, store.Save(ctx, New("run-1", "draft", 2, []byte(`{"x":1}`), "refine")))

			infos, err := store.List(ctx, "run-1")
			require.NoError(t, err)
			require.Len(t, infos, 3)
			assert.Equal(t, "research", infos[0].StageID)
			assert.Equal(t, "draft", infos[1].StageID)
			assert.Equal(t, int64(len(`{"x":1}`)), infos[1].Size)
			assert.Equal(t, "refine", infos[2].StageID)

			empty, err := store.List(ctx, "other")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

// TestStore_RunsAndDelete tests run listing and run deletion.
func TestStore_RunsAndDelete(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer store.Close()
			ctx := context.Background()

			first := New("run-a", "research", 1, []byte(`{}`), "draft")
			second := New("run-b", "research", 1, []byte(`{}`), "draft")
			second.Timestamp = first.Timestamp.Add(time.Second)
			require.NoError(t, store.Save(ctx, first))
			require.NoError(t, store.Save(ctx, second))

			runs, err := store.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-b", "run-a"}, runs)

			require.NoError(t, store.DeleteRun(ctx, "run-b"))
			require.NoError(t, store.DeleteRun(ctx, "missing"))

			runs, err = store.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-a"}, runs)
		})
	}
}

// TestStore_Closed tests that every operation fails after Close.
func TestStore_Closed(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			require.NoError(t, store.Close())
			require.NoError(t, store.Close())

			ctx := context.Background()
			assert.ErrorIs(t, store.Save(ctx, New("r", "s", 1, nil, "")), ErrStoreClosed)
			_, err := store.List(ctx, "r")
			assert.ErrorIs(t, err, ErrStoreClosed)
			_, err = store.Runs(ctx)
			assert.ErrorIs(t, err, ErrStoreClosed)
		})
	}
}

// TestMemoryStore_Concurrent tests concurrent saves from separate runs.
func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runID := "run-" + string(rune('a'+i))
			_ = store.Save(ctx, New(runID, "research", 1, []byte(`{}`), "draft"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
}

// TestMemoryStore_CopiesState tests that callers cannot mutate stored bytes.
func TestMemoryStore_CopiesState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state := []byte(`{"a":1}`)
	require.NoError(t, store.Save(ctx, New("r", "s", 1, state, "")))
	state[2] = 'b'

	got, err := store.Load(ctx, "r", "s")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got.State))
}
