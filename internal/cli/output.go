package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/roach88/collatz/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess        = 0 // Successful execution
	ExitFailure        = 1 // Verifier or scenario failure (fatal runtime error, scenarios failed, etc.)
	ExitCommandError   = 2 // Command error (invalid config, database not found, etc.)
	ExitCounterexample = 3 // A counterexample was found
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error codes reported in JSON error responses for failures that are not
// engine runtime errors.
const (
	CodeCommandError = "COMMAND_ERROR"
	CodeFailure      = "FAILURE"
	CodeNotFound     = "NOT_FOUND"
)

// OutputFormatter writes command results as text or as JSON envelopes.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
	RunID     string // set once a run has started; echoed in every envelope
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error part of a JSON envelope. Code is an engine runtime
// error code (BACKLOG_OVERFLOW, CHECKPOINT_FAILED, ...) or one of the Code*
// constants.
type CLIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Success writes a result.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  f.RunID,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error envelope. Text output lists details only when
// verbose.
func (f *OutputFormatter) Error(code, message string, details map[string]string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			RunID: f.RunID,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose {
		for _, k := range sortedKeys(details) {
			fmt.Fprintf(f.Writer, "  %s: %s\n", k, details[k])
		}
	}
	return nil
}

// Failure reports err before the command returns it. JSON output gets an
// error envelope on stdout so scripts never see an empty response. Text
// output leaves the message to the process exit path and only logs the
// runtime error details when verbose.
func (f *OutputFormatter) Failure(err error) error {
	code, message, details := describeError(err)
	if f.Format == "json" {
		return f.Error(code, message, details)
	}
	for _, k := range sortedKeys(details) {
		f.VerboseLog("  %s: %s", k, details[k])
	}
	return nil
}

// describeError maps err to an error code, message and details.
func describeError(err error) (string, string, map[string]string) {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code), re.Message, re.Details
	}
	code := CodeFailure
	if GetExitCode(err) == ExitCommandError {
		code = CodeCommandError
	}
	return code, err.Error(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VerboseLog writes a diagnostic line when verbose. It goes to ErrWriter so
// JSON on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
