package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/collatz/internal/ir"
)

// RuntimeError represents a fatal condition detected while the engine runs.
//
// Runtime errors include:
//   - Backlog overflow: more out-of-order batches than backlog slots
//   - Record overlap: a completion overlaps verified or pending numbers
//   - Channel closed: the completion channel closed under the coordinator
//   - Worker panic: a worker died mid-batch
//   - Checkpoint failure: persistence kept failing after retries
//
// All of them end the run after a final checkpoint attempt.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeBacklogOverflow indicates the fixed backlog had no free slot.
	ErrCodeBacklogOverflow RuntimeErrorCode = "BACKLOG_OVERFLOW"

	// ErrCodeRecordOverlap indicates a completion overlapping other verified numbers.
	ErrCodeRecordOverlap RuntimeErrorCode = "RECORD_OVERLAP"

	// ErrCodeChannelClosed indicates the completion channel closed unexpectedly.
	ErrCodeChannelClosed RuntimeErrorCode = "CHANNEL_CLOSED"

	// ErrCodeWorkerPanic indicates a worker goroutine panicked.
	ErrCodeWorkerPanic RuntimeErrorCode = "WORKER_PANIC"

	// ErrCodeCheckpointFailed indicates checkpoint persistence failed permanently.
	ErrCodeCheckpointFailed RuntimeErrorCode = "CHECKPOINT_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// newOverflowError creates a RuntimeError for a full backlog.
func newOverflowError(r ir.CompletionRecord, slots int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBacklogOverflow,
		Message: fmt.Sprintf("backlog full (%d slots)", slots),
		Details: map[string]string{
			"start":  r.Start.String(),
			"length": fmt.Sprintf("%d", r.Length),
		},
	}
}

// newOverlapError creates a RuntimeError for a record that overlaps known numbers.
func newOverlapError(r ir.CompletionRecord, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRecordOverlap,
		Message: reason,
		Details: map[string]string{
			"start":  r.Start.String(),
			"length": fmt.Sprintf("%d", r.Length),
		},
	}
}

// CounterexampleError is returned by Engine.Run when the search found a
// counterexample. It is the designed end of a run, not a malfunction.
type CounterexampleError struct {
	Counterexample ir.Counterexample
}

// Error implements the error interface.
func (e *CounterexampleError) Error() string {
	return fmt.Sprintf("counterexample found: %s (%s after %d steps)",
		e.Counterexample.Number, e.Counterexample.Reason, e.Counterexample.Steps)
}

// IsCounterexample returns true if err carries a counterexample.
func IsCounterexample(err error) bool {
	var ce *CounterexampleError
	return errors.As(err, &ce)
}
