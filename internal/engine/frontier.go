package engine

import (
	"github.com/roach88/collatz/internal/ir"
)

// Frontier reconciles out-of-order batch completions into one watermark.
//
// Watermark is the highest w such that every number in [origin, w] has been
// reported verified. A record starting at Watermark+1 advances it and then
// drains every backlog entry that has become contiguous; any other record
// waits in the backlog.
//
// INVARIANTS:
//   - Watermark never decreases
//   - Every backlog entry starts strictly above Watermark+1
//   - Backlog entries are removed only by merging into Watermark
//
// Not safe for concurrent use: owned by the coordinator goroutine.
type Frontier struct {
	watermark ir.Number
	backlog   *Backlog
	merged    uint64
}

// NewFrontier creates a frontier at watermark with a backlog of the given capacity.
func NewFrontier(watermark ir.Number, slots int) *Frontier {
	return &Frontier{
		watermark: watermark,
		backlog:   NewBacklog(slots),
	}
}

// Merge applies one completion record.
// Returns the number of records folded into the watermark (0 if r was
// deferred to the backlog).
func (f *Frontier) Merge(r ir.CompletionRecord) (int, error) {
	if r.Length == 0 {
		return 0, newOverlapError(r, "empty completion record")
	}

	next := f.watermark.Add64(1)
	if c := r.Start.Cmp(next); c < 0 {
		return 0, newOverlapError(r, "record overlaps the verified prefix")
	} else if c > 0 {
		if err := f.backlog.Insert(r); err != nil {
			return 0, err
		}
		return 0, nil
	}

	f.watermark = r.End()
	n := 1
	for {
		e, ok := f.backlog.Take(f.watermark.Add64(1))
		if !ok {
			break
		}
		f.watermark = e.End()
		n++
	}
	f.merged += uint64(n)
	return n, nil
}

// Watermark returns the highest contiguous verified number.
func (f *Frontier) Watermark() ir.Number {
	return f.watermark
}

// Merged returns how many records have been folded into the watermark.
func (f *Frontier) Merged() uint64 {
	return f.merged
}

// Backlog returns the out-of-order backlog.
func (f *Frontier) Backlog() *Backlog {
	return f.backlog
}
