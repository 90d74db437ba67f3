package engine

import "github.com/roach88/collatz/internal/ir"

// Backlog holds completed batches that arrived ahead of the watermark.
//
// It is a fixed array of slots scanned linearly. Occupancy never exceeds the
// claim window (see window), so a few-element scan beats any heap or hash set
// at this size and never allocates after construction.
//
// Not safe for concurrent use: owned by the coordinator goroutine.
type Backlog struct {
	slots []ir.CompletionRecord
	used  []bool
	n     int
}

// NewBacklog creates a backlog with the given number of slots.
func NewBacklog(capacity int) *Backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &Backlog{
		slots: make([]ir.CompletionRecord, capacity),
		used:  make([]bool, capacity),
	}
}

// Insert stores r in the first free slot.
// Fails if the backlog is full or r overlaps a stored record.
func (b *Backlog) Insert(r ir.CompletionRecord) error {
	free := -1
	for i := range b.slots {
		if !b.used[i] {
			if free < 0 {
				free = i
			}
			continue
		}
		if b.slots[i].Overlaps(r) {
			return newOverlapError(r, "record overlaps a backlog entry")
		}
	}
	if free < 0 {
		return newOverflowError(r, len(b.slots))
	}
	b.slots[free] = r
	b.used[free] = true
	b.n++
	return nil
}

// Take removes and returns the record starting at start, if present.
func (b *Backlog) Take(start ir.Number) (ir.CompletionRecord, bool) {
	if b.n == 0 {
		return ir.CompletionRecord{}, false
	}
	for i := range b.slots {
		if b.used[i] && b.slots[i].Start.Equals(start) {
			r := b.slots[i]
			b.slots[i] = ir.CompletionRecord{}
			b.used[i] = false
			b.n--
			return r, true
		}
	}
	return ir.CompletionRecord{}, false
}

// Len returns the number of stored records.
func (b *Backlog) Len() int {
	return b.n
}

// Cap returns the number of slots.
func (b *Backlog) Cap() int {
	return len(b.slots)
}

// Entries returns a copy of the stored records in slot order.
func (b *Backlog) Entries() []ir.CompletionRecord {
	out := make([]ir.CompletionRecord, 0, b.n)
	for i := range b.slots {
		if b.used[i] {
			out = append(out, b.slots[i])
		}
	}
	return out
}
