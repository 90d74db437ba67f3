package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/collatz/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	EnvFile    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the collatz CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "collatz",
		Short: "collatz - Collatz frontier verifier",
		Long: `A parallel verifier for the Collatz conjecture above a proven threshold.

Workers check disjoint batches of consecutive numbers; a coordinator merges
their completions into one contiguous watermark and checkpoints it to SQLite,
so a restarted run resumes exactly where the last one stopped.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file with COLLATZ_* variables")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewCounterexamplesCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig merges defaults, the --config file, COLLATZ_* environment and
// the command's flags. --db maps to the database key.
func loadConfig(opts *RootOptions, flags *pflag.FlagSet) (config.Config, error) {
	if opts.EnvFile != "" {
		if err := config.LoadEnvFile(opts.EnvFile); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
		}
	}

	v := config.New()
	if err := config.BindFlags(v, flags); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to bind flags", err)
	}
	if f := flags.Lookup("db"); f != nil {
		if err := v.BindPFlag("database", f); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to bind flags", err)
		}
	}

	cfg, err := config.Load(v, opts.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// setupLogging installs the process logger. Logs go to stderr so JSON output
// on stdout stays parseable.
func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// formatter returns an output formatter writing to the command's streams.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
