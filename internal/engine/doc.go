// Package engine implements the Collatz frontier verifier.
//
// Workers claim consecutive batches of numbers from a shared atomic counter,
// check every trajectory in a batch, and report each fully verified batch as
// one message. A single coordinator goroutine folds those reports, which
// arrive in any order, into a watermark: the highest number below which
// everything has been verified. The watermark is the only progress that is
// persisted.
//
// ARCHITECTURE:
//
// Claim, verify, report:
//  1. Counter.Claim() hands out batch k = [origin + k*size, origin + (k+1)*size)
//  2. The worker waits until k is inside the claim window (see window.go)
//  3. Checker.Check() runs each trajectory until it drops to or below the limit
//  4. One completion message per batch goes onto the unbounded message queue
//
// Single-Writer Coordinator:
// The coordinator is the only goroutine that touches the Frontier, its
// Backlog, and the CheckpointStore. Workers and monitors read the published
// watermark through atomic snapshots.
//
// Shutdown:
// Stop(), ctx cancellation, and a counterexample all raise one stop signal.
// Workers poll it between batches, never inside a trajectory. The coordinator
// waits for them, merges everything already reported, and saves a final
// checkpoint before Run returns.
//
// CRITICAL PATTERNS:
//
// Contiguity: the watermark only ever advances over numbers that are
// verified, and never decreases.
//
// Bounded backlog: the claim window keeps out-of-order completions below
// the backlog capacity, so overflow is an invariant violation, never load.
//
// Failure is loud: an exhausted step bound, a cycle, or an overflow is a
// counterexample and ends the run; nothing is skipped.
package engine
