package engine

import (
	"sync/atomic"

	"lukechampine.com/uint128"

	"github.com/roach88/collatz/internal/ir"
)

// Counter hands out batches of consecutive numbers to workers.
//
// The cursor is origin + k*batchSize, where k comes from a single atomic
// fetch-and-add. Go has no 128-bit atomics, so the claim index is the only
// value mutated concurrently; the start number is derived from it.
//
// Guarantees:
//   - No two claims overlap (each k is returned exactly once)
//   - No range is skipped (k is dense from 0)
//   - Lock-free and non-blocking under any number of concurrent callers
type Counter struct {
	origin    ir.Number
	batchSize uint64
	next      atomic.Uint64
}

// NewCounter creates a counter whose first batch starts at origin.
// batchSize must be positive.
func NewCounter(origin ir.Number, batchSize uint64) *Counter {
	return &Counter{origin: origin, batchSize: batchSize}
}

// Claim returns the next unclaimed batch.
func (c *Counter) Claim() ir.Batch {
	k := c.next.Add(1) - 1
	return ir.Batch{
		Index:  k,
		Start:  c.startOf(k),
		Length: c.batchSize,
	}
}

// Claimed returns how many batches have been handed out.
func (c *Counter) Claimed() uint64 {
	return c.next.Load()
}

// Origin returns the first number the counter hands out.
func (c *Counter) Origin() ir.Number {
	return c.origin
}

// BatchSize returns the length of every claimed batch.
func (c *Counter) BatchSize() uint64 {
	return c.batchSize
}

func (c *Counter) startOf(k uint64) ir.Number {
	return c.origin.Add(uint128.From64(k).Mul64(c.batchSize))
}
