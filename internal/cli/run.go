package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// EngineOptions are appended to the engine constructor (for testing:
	// fixed run IDs, substitute step functions).
	EngineOptions []engine.EngineOption
}

// RunSummary is the outcome of a finished run.
type RunSummary struct {
	RunID          string               `json:"run_id"`
	Origin         string               `json:"origin"`
	Watermark      string               `json:"watermark"`
	Merged         uint64               `json:"merged"`
	Claimed        uint64               `json:"claimed"`
	Counterexample *CounterexampleEntry `json:"counterexample,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Verify numbers above the threshold",
		Long: `Verify the Collatz conjecture upward from the stored watermark.

The run resumes from the checkpoint in the database (or starts at the
threshold), checkpoints periodically, and stops on SIGINT/SIGTERM after
saving a final checkpoint. A counterexample is persisted and reported, and
the run exits with code 3.

Example:
  collatz run --db ./collatz.db
  collatz run --db ./collatz.db --workers 16 --batch-size 1000000
  collatz run --config ./collatz.yaml --metrics-addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerifier(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.String("db", "collatz.db", "path to SQLite database")
	f.Int("workers", 0, "worker goroutines (0 = 2x CPUs)")
	f.Uint64("batch-size", engine.DefaultBatchSize, "numbers per batch")
	f.String("threshold", "2^68", "proven boundary: decimal or 2^k")
	f.Uint64("max-steps", engine.DefaultMaxSteps, "step bound per trajectory")
	f.String("early-exit", string(engine.EarlyExitThreshold), "descent limit: threshold|watermark")
	f.Int("backlog-slots", 0, "out-of-order backlog capacity (0 = workers, capped at workers)")
	f.Duration("checkpoint-interval", engine.DefaultCheckpointInterval, "time between checkpoints (0 disables)")
	f.Uint64("checkpoint-every", 0, "also checkpoint after this many merged batches")
	f.Int("save-retries", engine.DefaultSaveRetries, "checkpoint save retries before giving up (0 = none)")
	f.Duration("status-interval", 10*time.Second, "time between status lines (0 disables)")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runVerifier(opts *RunOptions, cmd *cobra.Command) (err error) {
	setupLogging(opts.Verbose)
	out := formatter(opts.RootOptions, cmd)
	defer func() {
		// The counterexample report is the output of that exit path.
		if err == nil || GetExitCode(err) == ExitCounterexample {
			return
		}
		if ferr := out.Failure(err); ferr != nil {
			slog.Error("failed to write error response", "error", ferr)
		}
	}()

	cfg, err := loadConfig(opts.RootOptions, cmd.Flags())
	if err != nil {
		return err
	}
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Open database (create if not exists)
	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	eng := engine.New(st, engineOpts, opts.EngineOptions...)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr)
		defer shutdown()
	}

	if cfg.StatusInterval > 0 {
		reporter := newStatusReporter(out.GetErrWriter(), eng, cfg.StatusInterval)
		if !isTerminal(out.GetErrWriter()) {
			reporter.logger = slog.Default()
		}
		go reporter.run(ctx)
	}

	o := eng.Options()
	slog.Info("verifier starting",
		"db", cfg.Database,
		"threshold", o.Threshold.String(),
		"workers", o.Workers,
		"batch_size", o.BatchSize,
		"early_exit", o.EarlyExit)
	out.VerboseLog("backlog slots %d, max steps %d, checkpoint every %s / %d batches, %d save retries",
		o.BacklogSlots, o.MaxSteps, o.CheckpointInterval, o.CheckpointEvery, o.SaveRetries)

	res, err := eng.Run(ctx)
	out.RunID = res.RunID
	summary := RunSummary{
		RunID:     res.RunID,
		Origin:    res.Origin.String(),
		Watermark: res.Watermark.String(),
		Merged:    res.Merged,
		Claimed:   res.Claimed,
	}

	var ce *engine.CounterexampleError
	if errors.As(err, &ce) {
		entry := newCounterexampleEntry(ce.Counterexample, true)
		summary.Counterexample = &entry
		if err := reportCounterexample(out, summary); err != nil {
			return err
		}
		return WrapExitError(ExitCounterexample, "counterexample found", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "verifier error", err)
	}

	slog.Info("verifier stopped gracefully", "watermark", summary.Watermark)
	if opts.Format == "json" {
		return out.Success(summary)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s stopped.\n", summary.RunID)
	fmt.Fprintf(w, "  Verified: %s..%s\n", summary.Origin, summary.Watermark)
	fmt.Fprintf(w, "  Batches:  %d merged, %d claimed\n", summary.Merged, summary.Claimed)
	return nil
}

// reportCounterexample prints the counterexample report.
func reportCounterexample(out *OutputFormatter, summary RunSummary) error {
	if out.Format == "json" {
		return out.Success(summary)
	}
	w := out.Writer
	c := summary.Counterexample
	fmt.Fprintln(w, "COUNTEREXAMPLE FOUND")
	fmt.Fprintf(w, "  Number:    %s\n", c.Number)
	fmt.Fprintf(w, "  Reason:    %s\n", c.Reason)
	fmt.Fprintf(w, "  Steps:     %d\n", c.Steps)
	fmt.Fprintf(w, "  ID:        %s\n", c.ID)
	fmt.Fprintf(w, "  Run:       %s\n", summary.RunID)
	fmt.Fprintf(w, "  Watermark: %s\n", summary.Watermark)
	writeTrajectory(w, c.Trajectory)
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// serveMetrics exposes the Prometheus registry on addr and returns a
// function that shuts the server down.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}
}
