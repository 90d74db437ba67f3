package testutil

import (
	"github.com/roach88/collatz/internal/ir"
)

// collatz is the plain 3n+1 map, without overflow guarding.
func collatz(v ir.Number) ir.Number {
	if v.Lo&1 == 0 {
		return v.Rsh(1)
	}
	return v.Mul64(3).Add64(1)
}

// FixedPointStep behaves like the 3n+1 map except that fixed maps to itself.
// Any trajectory reaching fixed never descends again.
func FixedPointStep(fixed ir.Number) func(ir.Number) (ir.Number, bool) {
	return func(v ir.Number) (ir.Number, bool) {
		if v.Equals(fixed) {
			return v, true
		}
		return collatz(v), true
	}
}

// CycleStep behaves like the 3n+1 map except that each value of cycle maps
// to the next one, and the last back to the first.
func CycleStep(cycle ...ir.Number) func(ir.Number) (ir.Number, bool) {
	return func(v ir.Number) (ir.Number, bool) {
		for i, c := range cycle {
			if v.Equals(c) {
				return cycle[(i+1)%len(cycle)], true
			}
		}
		return collatz(v), true
	}
}

// EscapeStep sends every value to itself plus one.
// No trajectory ever descends; used to exercise the step bound.
func EscapeStep(v ir.Number) (ir.Number, bool) {
	return v.Add64(1), true
}

// PanicStep panics when it reaches at.
func PanicStep(at ir.Number) func(ir.Number) (ir.Number, bool) {
	return func(v ir.Number) (ir.Number, bool) {
		if v.Equals(at) {
			panic("step function reached " + at.String())
		}
		return collatz(v), true
	}
}
