package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/collatz/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one rejected configuration field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every rejected field (does not fail-fast).
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks cfg against the embedded CUE schema, then applies the
// checks CUE cannot express (threshold magnitude).
func Validate(cfg Config) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := def.Unify(ctx.Encode(cfg.fields()))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	threshold, err := ir.ParseThreshold(cfg.Threshold)
	if err != nil {
		return ValidationErrors{{Field: "threshold", Message: err.Error()}}
	}
	// n=1 is on the trivial 1-4-2-1 cycle and would be reported as a counterexample.
	if threshold.Cmp64(2) < 0 {
		return ValidationErrors{{Field: "threshold", Message: "must be at least 2"}}
	}
	return nil
}

// fields is the CUE view of cfg: snake_case keys, durations in nanoseconds.
func (c Config) fields() map[string]any {
	return map[string]any{
		"workers":             c.Workers,
		"batch_size":          c.BatchSize,
		"threshold":           c.Threshold,
		"max_steps":           c.MaxSteps,
		"early_exit":          c.EarlyExit,
		"backlog_slots":       c.BacklogSlots,
		"database":            c.Database,
		"checkpoint_interval": int64(c.CheckpointInterval),
		"checkpoint_every":    c.CheckpointEvery,
		"save_retries":        c.SaveRetries,
		"status_interval":     int64(c.StatusInterval),
		"metrics_addr":        c.MetricsAddr,
	}
}

// formatCUEError flattens CUE errors into per-field validation errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	out := make(ValidationErrors, 0, len(errs))
	for _, e := range errs {
		var path []string
		for _, sel := range e.Path() {
			if !strings.HasPrefix(sel, "#") {
				path = append(path, sel)
			}
		}
		format, args := e.Msg()
		out = append(out, ValidationError{
			Field:   strings.Join(path, "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return out
}
