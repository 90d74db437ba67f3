package ir

import "errors"

// ErrNoCheckpoint is returned by checkpoint stores that have never been saved to.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Batch is a contiguous range of numbers claimed by exactly one worker.
//
// Index is the claim sequence number: batch k covers
// [origin + k*Length, origin + (k+1)*Length).
type Batch struct {
	Index  uint64
	Start  Number
	Length uint64
}

// End returns the last number in the batch.
func (b Batch) End() Number {
	return RangeEnd(b.Start, b.Length)
}

// CompletionRecord reports a fully verified batch.
type CompletionRecord struct {
	Index  uint64
	Start  Number
	Length uint64
	Worker int
}

// End returns the last number covered by the record.
func (r CompletionRecord) End() Number {
	return RangeEnd(r.Start, r.Length)
}

// Overlaps reports whether r and o share at least one number.
func (r CompletionRecord) Overlaps(o CompletionRecord) bool {
	return r.Start.Cmp(o.End()) <= 0 && o.Start.Cmp(r.End()) <= 0
}

// Counterexample reasons.
const (
	ReasonExhausted = "exhausted" // step bound used up without descending
	ReasonCycle     = "cycle"     // trajectory returned to its starting number
	ReasonOverflow  = "overflow"  // 3v+1 left the 128-bit domain
)

// Counterexample is a number whose trajectory failed to descend below the
// proven boundary. Reporting one ends the run.
type Counterexample struct {
	ID         string   `json:"id"`
	RunID      string   `json:"run_id"`
	Number     Number   `json:"-"`
	Reason     string   `json:"reason"`
	Steps      uint64   `json:"steps"`
	Trajectory []Number `json:"-"`
	Worker     int      `json:"worker"`
}

// Checkpoint is the persisted progress of the verifier.
//
// Watermark is the highest number w such that every number in
// [Threshold, w] has been verified.
type Checkpoint struct {
	Watermark Number
	Threshold Number
	BatchSize uint64
	RunID     string
	Seq       int64  // logical save counter, increments on every save
	Merged    uint64 // batches merged by the run that wrote this checkpoint
}

// Verified returns how many numbers the checkpoint covers above the threshold.
func (c Checkpoint) Verified() Number {
	if c.Watermark.Cmp(c.Threshold) < 0 {
		return Number{}
	}
	return c.Watermark.Sub(c.Threshold).Add64(1)
}

// Run records the parameters of one engine start.
type Run struct {
	ID             string
	Threshold      Number
	StartWatermark Number
	Workers        int
	BatchSize      uint64
	Slots          int
	EarlyExit      string
	MaxSteps       uint64
}
