package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/ir"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Threshold  string
	MaxSteps   uint64
	Trajectory bool
}

// CheckReport is the outcome of a single trajectory check.
type CheckReport struct {
	Number     string   `json:"number"`
	Limit      string   `json:"limit"`
	Verdict    string   `json:"verdict"`
	Steps      uint64   `json:"steps"`
	Trajectory []string `json:"trajectory,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <n>",
		Short: "Check one number",
		Long: `Run the trajectory check for a single number.

n is safe once its trajectory drops below the threshold. Numbers below the
threshold are safe in zero steps. A non-safe verdict exits with code 3.

Example:
  collatz check 27 --threshold 10 --trajectory
  collatz check 1267650600228229401496703205383`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkNumber(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Threshold, "threshold", "2^68", "proven boundary: decimal or 2^k")
	cmd.Flags().Uint64Var(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "step bound")
	cmd.Flags().BoolVar(&opts.Trajectory, "trajectory", false, "print the trajectory")

	return cmd
}

func checkNumber(opts *CheckOptions, arg string, cmd *cobra.Command) error {
	n, err := ir.ParseNumber(arg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid number", err)
	}
	threshold, err := ir.ParseThreshold(opts.Threshold)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid threshold", err)
	}
	if threshold.Cmp64(2) < 0 {
		return NewExitError(ExitCommandError, "invalid threshold: must be at least 2")
	}
	if opts.MaxSteps == 0 {
		return NewExitError(ExitCommandError, "invalid max-steps: must be positive")
	}

	limit := threshold.Sub64(1)
	checker := engine.NewChecker(opts.MaxSteps, nil)
	verdict, steps := checker.Check(n, limit)

	report := CheckReport{
		Number:  n.String(),
		Limit:   limit.String(),
		Verdict: verdict.String(),
		Steps:   steps,
	}
	if opts.Trajectory {
		report.Trajectory = ir.NumberStrings(checker.Trajectory(n, steps))
	}

	out := formatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		if err := out.Success(report); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: %s after %d steps (limit %s)\n", report.Number, report.Verdict, report.Steps, report.Limit)
		writeTrajectory(w, report.Trajectory)
	}

	if verdict != engine.VerdictSafe {
		return NewExitError(ExitCounterexample, fmt.Sprintf("%s is a counterexample (%s)", report.Number, report.Verdict))
	}
	return nil
}
