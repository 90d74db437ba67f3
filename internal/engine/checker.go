package engine

import (
	"fmt"

	"lukechampine.com/uint128"

	"github.com/roach88/collatz/internal/ir"
)

// DefaultMaxSteps bounds a single trajectory check.
// Genuine numbers near 2^68 descend in a few thousand steps at most.
const DefaultMaxSteps = 100000

// Verdict is the outcome of a trajectory check.
type Verdict int

const (
	// VerdictSafe means the trajectory reached a number already known safe.
	VerdictSafe Verdict = iota
	// VerdictExhausted means the step bound ran out first.
	VerdictExhausted
	// VerdictCycle means the trajectory came back to its starting number.
	VerdictCycle
	// VerdictOverflow means 3v+1 would leave the 128-bit domain.
	VerdictOverflow
)

// String returns the counterexample reason for non-safe verdicts.
func (v Verdict) String() string {
	switch v {
	case VerdictSafe:
		return "safe"
	case VerdictExhausted:
		return ir.ReasonExhausted
	case VerdictCycle:
		return ir.ReasonCycle
	case VerdictOverflow:
		return ir.ReasonOverflow
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// StepFunc advances a trajectory by one step.
// ok is false when the next value cannot be represented.
type StepFunc func(v ir.Number) (next ir.Number, ok bool)

// maxOddInput is the largest v for which 3v+1 fits in 128 bits.
var maxOddInput = uint128.Max.Sub64(1).Div64(3)

// CollatzStep is the 3n+1 map: v/2 for even v, 3v+1 for odd v.
func CollatzStep(v ir.Number) (ir.Number, bool) {
	if v.Lo&1 == 0 {
		return v.Rsh(1), true
	}
	if v.Cmp(maxOddInput) > 0 {
		return v, false
	}
	return v.Mul64(3).Add64(1), true
}

// Checker runs bounded trajectory checks.
//
// A number n is proven safe as soon as its working value drops to or below
// limit, the highest number already known to reach 1. The step bound guards
// against an unbounded loop: running out of steps is reported as a
// counterexample, never silently skipped.
//
// Checker is stateless after construction and safe for concurrent use.
type Checker struct {
	maxSteps uint64
	step     StepFunc
}

// NewChecker creates a checker with the given step bound.
// A nil step uses CollatzStep.
func NewChecker(maxSteps uint64, step StepFunc) *Checker {
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	if step == nil {
		step = CollatzStep
	}
	return &Checker{maxSteps: maxSteps, step: step}
}

// MaxSteps returns the step bound.
func (c *Checker) MaxSteps() uint64 {
	return c.maxSteps
}

// Check runs the trajectory of n until it drops to or below limit.
// Returns the verdict and the number of steps taken.
func (c *Checker) Check(n, limit ir.Number) (Verdict, uint64) {
	v := n
	for steps := uint64(0); ; steps++ {
		if v.Cmp(limit) <= 0 {
			return VerdictSafe, steps
		}
		if steps == c.maxSteps {
			return VerdictExhausted, steps
		}
		next, ok := c.step(v)
		if !ok {
			return VerdictOverflow, steps
		}
		if next.Equals(n) {
			return VerdictCycle, steps + 1
		}
		v = next
	}
}

// Trajectory replays the first steps+1 values of n's trajectory, starting with n.
// Used after a failed check; the hot loop never records values.
func (c *Checker) Trajectory(n ir.Number, steps uint64) []ir.Number {
	out := make([]ir.Number, 0, steps+1)
	v := n
	out = append(out, v)
	for i := uint64(0); i < steps; i++ {
		next, ok := c.step(v)
		if !ok {
			break
		}
		v = next
		out = append(out, v)
	}
	return out
}

// Counterexample builds the record for a failed check of n.
func (c *Checker) Counterexample(n ir.Number, verdict Verdict, steps uint64) (ir.Counterexample, error) {
	id, err := ir.CounterexampleID(n, verdict.String(), steps)
	if err != nil {
		return ir.Counterexample{}, err
	}
	return ir.Counterexample{
		ID:         id,
		Number:     n,
		Reason:     verdict.String(),
		Steps:      steps,
		Trajectory: c.Trajectory(n, steps),
	}, nil
}
