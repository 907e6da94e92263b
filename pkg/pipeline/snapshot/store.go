// Package snapshot records the state a pipeline run produced after each
// stage so a finished run can be inspected afterwards.
//
// Snapshots are write-only from the engine's point of view: a run saves
// them and nothing in a later run reads them back.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Version is the current snapshot format version.
const Version = 1

// Snapshot is the persisted state after one stage.
type Snapshot struct {
	Version   int             `json:"version"`
	RunID     string          `json:"run_id"`
	StageID   string          `json:"stage_id"`
	Sequence  int             `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	State     json.RawMessage `json:"state"`
	NextStage string          `json:"next_stage"`
	PrevStage string          `json:"prev_stage,omitempty"`
}

// New creates a snapshot. State must already be JSON-serialized.
func New(runID, stageID string, sequence int, state []byte, next string) *Snapshot {
	return &Snapshot{
		Version:   Version,
		RunID:     runID,
		StageID:   stageID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextStage: next,
	}
}

// WithPrevStage sets the stage that ran before this one.
func (s *Snapshot) WithPrevStage(stageID string) *Snapshot {
	s.PrevStage = stageID
	return s
}

// Store persists snapshots.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a snapshot, replacing any existing one for (RunID, StageID).
	Save(ctx context.Context, snap *Snapshot) error

	// Load retrieves the snapshot of one stage.
	// Returns ErrNotFound if it doesn't exist.
	Load(ctx context.Context, runID, stageID string) (*Snapshot, error)

	// List returns metadata for a run's snapshots ordered by sequence.
	// Returns an empty slice (not error) if the run has none.
	List(ctx context.Context, runID string) ([]Info, error)

	// Runs returns the known run IDs, most recent first.
	Runs(ctx context.Context) ([]string, error)

	// DeleteRun removes all snapshots for a run.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases any resources.
	Close() error
}

// Info describes a snapshot without its state payload.
type Info struct {
	RunID     string
	StageID   string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for snapshot operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
