package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/researchflow/pkg/config"
	"github.com/randalmurphal/researchflow/pkg/pipeline/snapshot"
)

var snapshotsFlags struct {
	db     string
	stage  string
	delete bool
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [run-id]",
	Short: "Inspect per-stage state recorded by past runs",
	Long: "Without arguments, lists recorded runs, newest first. With a run ID, lists\n" +
		"that run's stage snapshots. With --stage, prints the state saved after\n" +
		"that stage.",
	Args: cobra.MaximumNArgs(1),
	RunE: runSnapshots,
}

func init() {
	f := snapshotsCmd.Flags()
	f.StringVar(&snapshotsFlags.db, "db", "", "Snapshot database (default SNAPSHOT_DB)")
	f.StringVar(&snapshotsFlags.stage, "stage", "", "Print the state saved after this stage")
	f.BoolVar(&snapshotsFlags.delete, "delete", false, "Delete the run's snapshots")
}

// openSnapshotStore opens path, falling back to SNAPSHOT_DB from settings.
func openSnapshotStore(path string) (*snapshot.SQLiteStore, error) {
	if path == "" {
		s, err := loadSettings()
		if err != nil {
			return nil, err
		}
		path = s.SnapshotDB
	}
	if path == "" {
		return nil, fmt.Errorf("no snapshot database: pass --db or set %s", config.KeySnapshotDB)
	}
	return snapshot.NewSQLiteStore(path)
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	store, err := openSnapshotStore(snapshotsFlags.db)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		if snapshotsFlags.stage != "" || snapshotsFlags.delete {
			return errors.New("--stage and --delete need a run ID")
		}
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No recorded runs.")
			return nil
		}
		for _, id := range runs {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	runID := args[0]
	switch {
	case snapshotsFlags.delete:
		if err := store.DeleteRun(ctx, runID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted snapshots for run %s\n", runID)
		return nil
	case snapshotsFlags.stage != "":
		snap, err := store.Load(ctx, runID, snapshotsFlags.stage)
		if err != nil {
			return err
		}
		return printState(out, snap.State)
	}

	infos, err := store.List(ctx, runID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(out, "No snapshots for run %s\n", runID)
		return nil
	}
	fmt.Fprintf(out, "Run: %s\n", runID)
	for _, info := range infos {
		fmt.Fprintf(out, "  %d  %-10s %s  %d bytes\n",
			info.Sequence, info.StageID, info.Timestamp.Format("2006-01-02 15:04:05.000"), info.Size)
	}
	return nil
}

func printState(w io.Writer, state json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, state, "", "  "); err != nil {
		return fmt.Errorf("format state: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
