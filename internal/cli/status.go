package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/collatz/internal/ir"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// StatusReport is the stored progress of the verifier.
type StatusReport struct {
	Checkpoint      bool   `json:"checkpoint"`
	Watermark       string `json:"watermark,omitempty"`
	Threshold       string `json:"threshold,omitempty"`
	Verified        string `json:"verified,omitempty"`
	BatchSize       uint64 `json:"batch_size,omitempty"`
	RunID           string `json:"run_id,omitempty"`
	Seq             int64  `json:"seq,omitempty"`
	Runs            int    `json:"runs"`
	Counterexamples int    `json:"counterexamples"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored checkpoint",
		Long: `Show the checkpoint stored in the database: the watermark, the threshold
it was verified from, how many numbers that covers, and the number of
recorded runs and counterexamples.

Example:
  collatz status --db ./collatz.db
  collatz status --db ./collatz.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showStatus(opts *StatusOptions, cmd *cobra.Command) error {
	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	report := StatusReport{}

	cp, err := st.LoadCheckpoint(ctx)
	switch {
	case errors.Is(err, ir.ErrNoCheckpoint):
	case err != nil:
		return WrapExitError(ExitFailure, "failed to load checkpoint", err)
	default:
		report.Checkpoint = true
		report.Watermark = cp.Watermark.String()
		report.Threshold = cp.Threshold.String()
		report.Verified = cp.Verified().String()
		report.BatchSize = cp.BatchSize
		report.RunID = cp.RunID
		report.Seq = cp.Seq
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list runs", err)
	}
	report.Runs = len(runs)

	if report.Counterexamples, err = st.CountCounterexamples(ctx); err != nil {
		return WrapExitError(ExitFailure, "failed to count counterexamples", err)
	}

	out := formatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return out.Success(report)
	}

	w := cmd.OutOrStdout()
	if !report.Checkpoint {
		fmt.Fprintln(w, "No checkpoint saved.")
	} else {
		fmt.Fprintf(w, "Watermark:       %s\n", report.Watermark)
		fmt.Fprintf(w, "Threshold:       %s\n", report.Threshold)
		fmt.Fprintf(w, "Verified:        %s\n", report.Verified)
		fmt.Fprintf(w, "Batch size:      %d\n", report.BatchSize)
		fmt.Fprintf(w, "Last run:        %s (save %d)\n", report.RunID, report.Seq)
	}
	fmt.Fprintf(w, "Runs:            %d\n", report.Runs)
	fmt.Fprintf(w, "Counterexamples: %d\n", report.Counterexamples)
	return nil
}
