package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/collatz/internal/ir"
	"github.com/roach88/collatz/internal/store"
)

// CounterexamplesOptions holds flags for the counterexamples command.
type CounterexamplesOptions struct {
	*RootOptions
	Database   string
	ID         string
	Trajectory bool
}

// CounterexampleEntry is the printable form of a stored counterexample.
type CounterexampleEntry struct {
	ID         string   `json:"id"`
	RunID      string   `json:"run_id,omitempty"`
	Number     string   `json:"number"`
	Reason     string   `json:"reason"`
	Steps      uint64   `json:"steps"`
	Worker     int      `json:"worker"`
	Trajectory []string `json:"trajectory,omitempty"`
}

func newCounterexampleEntry(ce ir.Counterexample, withTrajectory bool) CounterexampleEntry {
	entry := CounterexampleEntry{
		ID:     ce.ID,
		RunID:  ce.RunID,
		Number: ce.Number.String(),
		Reason: ce.Reason,
		Steps:  ce.Steps,
		Worker: ce.Worker,
	}
	if withTrajectory {
		entry.Trajectory = ir.NumberStrings(ce.Trajectory)
	}
	return entry
}

// NewCounterexamplesCommand creates the counterexamples command.
func NewCounterexamplesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CounterexamplesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "counterexamples",
		Short: "List stored counterexamples",
		Long: `List the counterexamples recorded in the database.

Example:
  collatz counterexamples --db ./collatz.db
  collatz counterexamples --db ./collatz.db --id <id> --trajectory`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCounterexamples(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show a single counterexample")
	cmd.Flags().BoolVar(&opts.Trajectory, "trajectory", false, "include trajectories")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func listCounterexamples(opts *CounterexamplesOptions, cmd *cobra.Command) error {
	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	out := formatter(opts.RootOptions, cmd)
	var found []ir.Counterexample
	if opts.ID != "" {
		ce, err := st.ReadCounterexample(ctx, opts.ID)
		if errors.Is(err, store.ErrNotFound) {
			if opts.Format == "json" {
				if err := out.Error(CodeNotFound, "counterexample not found", map[string]string{"id": opts.ID}); err != nil {
					return err
				}
			}
			return NewExitError(ExitCommandError, fmt.Sprintf("counterexample not found: %s", opts.ID))
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read counterexample", err)
		}
		found = []ir.Counterexample{ce}
	} else {
		found, err = st.ListCounterexamples(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list counterexamples", err)
		}
	}

	entries := make([]CounterexampleEntry, len(found))
	for i, ce := range found {
		entries[i] = newCounterexampleEntry(ce, opts.Trajectory)
	}

	if opts.Format == "json" {
		return out.Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No counterexamples.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s  %s after %d steps (run %s, worker %d)\n",
			shortID(e.ID), e.Number, e.Reason, e.Steps, e.RunID, e.Worker)
		writeTrajectory(w, e.Trajectory)
	}
	return nil
}

// writeTrajectory prints a trajectory, one value per line.
func writeTrajectory(w io.Writer, trajectory []string) {
	if len(trajectory) == 0 {
		return
	}
	fmt.Fprintln(w, "  Trajectory:")
	for i, v := range trajectory {
		fmt.Fprintf(w, "    %d: %s\n", i, v)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// openExisting opens a database that must already exist.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
