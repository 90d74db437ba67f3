package harness

import (
	"errors"
	"fmt"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/ir"
)

// outcome is the final frontier state after one arrival order.
type outcome struct {
	watermark ir.Number
	backlog   int
	code      string
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Feed the arrivals in scenario order to a fresh frontier, tracing each
// 2. Check invariants after every arrival (monotonic watermark, bounded backlog)
// 3. Compare the final state with expect
// 4. With permute, repeat steps 1-3 for every other arrival order
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	result := NewResult()
	out := replay(scenario, scenario.Arrivals, result)

	result.Watermark = out.watermark.String()
	result.Backlog = out.backlog
	result.ErrorCode = out.code
	result.Permutations = 1
	checkExpect(scenario, out, "scenario order", result)

	if scenario.Permute {
		n := 0
		permute(scenario.Arrivals, func(order []Arrival) {
			n++
			perm := NewResult()
			got := replay(scenario, order, perm)
			for _, e := range perm.Errors {
				result.AddError(fmt.Sprintf("order %s: %s", describeOrder(order), e))
			}
			checkExpect(scenario, got, "order "+describeOrder(order), result)
		})
		result.Permutations = n
	}

	return result, nil
}

// replay feeds arrivals to a fresh frontier, appending trace events and
// invariant failures to result.
func replay(scenario *Scenario, arrivals []Arrival, result *Result) outcome {
	f := engine.NewFrontier(scenario.Watermark.Value, scenario.Slots)

	for i, a := range arrivals {
		prev := f.Watermark()
		n, err := f.Merge(ir.CompletionRecord{
			Index:  uint64(i),
			Start:  a.Start.Value,
			Length: a.Length,
		})

		event := TraceEvent{
			Seq:    int64(i + 1),
			Start:  a.Start.String(),
			Length: a.Length,
			Merged: n,
		}
		switch {
		case err != nil:
			event.Action = ActionRejected
			event.Error = errorCode(err)
		case n == 0:
			event.Action = ActionDeferred
		default:
			event.Action = ActionMerged
		}
		event.Watermark = f.Watermark().String()
		event.Backlog = f.Backlog().Len()
		result.Trace = append(result.Trace, event)

		checkInvariants(i, prev, f, scenario.Slots, result)

		if err != nil {
			return outcome{watermark: f.Watermark(), backlog: f.Backlog().Len(), code: event.Error}
		}
	}

	return outcome{watermark: f.Watermark(), backlog: f.Backlog().Len()}
}

// errorCode returns the runtime error code of err, or its message.
func errorCode(err error) string {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return err.Error()
}

// permute calls fn with every ordering of arrivals except the original one
// (Heap's algorithm).
func permute(arrivals []Arrival, fn func([]Arrival)) {
	a := append([]Arrival(nil), arrivals...)
	first := true
	var gen func(k int)
	gen = func(k int) {
		if k <= 1 {
			if first {
				first = false
				return
			}
			fn(append([]Arrival(nil), a...))
			return
		}
		gen(k - 1)
		for i := 0; i < k-1; i++ {
			if k%2 == 0 {
				a[i], a[k-1] = a[k-1], a[i]
			} else {
				a[0], a[k-1] = a[k-1], a[0]
			}
			gen(k - 1)
		}
	}
	gen(len(a))
}

func describeOrder(order []Arrival) string {
	s := "["
	for i, a := range order {
		if i > 0 {
			s += " "
		}
		s += a.Start.String()
	}
	return s + "]"
}
