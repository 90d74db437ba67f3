package harness

import (
	"fmt"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/ir"
)

// checkInvariants validates the frontier after arrival i.
//
// INVARIANTS:
//   - Watermark never decreases
//   - Backlog never holds more entries than slots
//   - Every backlog entry starts strictly above Watermark+1
func checkInvariants(i int, prev ir.Number, f *engine.Frontier, slots int, result *Result) {
	wm := f.Watermark()
	if wm.Cmp(prev) < 0 {
		result.AddError(fmt.Sprintf("arrival %d: watermark decreased from %s to %s", i+1, prev, wm))
	}

	if n := f.Backlog().Len(); n > slots {
		result.AddError(fmt.Sprintf("arrival %d: backlog holds %d entries, capacity %d", i+1, n, slots))
	}

	next := wm.Add64(1)
	for _, e := range f.Backlog().Entries() {
		if e.Start.Cmp(next) <= 0 {
			result.AddError(fmt.Sprintf("arrival %d: backlog entry %s is mergeable at watermark %s", i+1, e.Start, wm))
		}
	}
}

// checkExpect compares a final state with the scenario's expect clause.
func checkExpect(s *Scenario, got outcome, label string, result *Result) {
	if !got.watermark.Equals(s.Expect.Watermark.Value) {
		result.AddError(fmt.Sprintf("%s: watermark = %s, want %s", label, got.watermark, s.Expect.Watermark))
	}
	if got.backlog != s.Expect.Backlog {
		result.AddError(fmt.Sprintf("%s: backlog = %d, want %d", label, got.backlog, s.Expect.Backlog))
	}
	if got.code != s.Expect.Error {
		result.AddError(fmt.Sprintf("%s: error = %q, want %q", label, got.code, s.Expect.Error))
	}
}
