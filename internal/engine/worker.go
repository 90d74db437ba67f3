package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/roach88/collatz/internal/ir"
)

// limitFunc returns the highest number currently known to reach 1.
// Called once per batch.
type limitFunc func() ir.Number

// worker claims batches, verifies every number in them, and reports each
// fully verified batch as one completion message.
//
// Workers never touch the watermark, the backlog, or the checkpoint store.
type worker struct {
	id      int
	runID   string
	counter *Counter
	window  *window
	checker *Checker
	limit   limitFunc
	queue   *messageQueue
	stop    *stopSignal
}

// run loops until the stop signal, ctx cancellation, or a counterexample.
//
// A panic is recovered and reported to the coordinator as a failure message,
// then returned as a WORKER_PANIC error.
func (w *worker) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr := &RuntimeError{
				Code:    ErrCodeWorkerPanic,
				Message: fmt.Sprintf("worker %d panicked: %v", w.id, r),
				Details: map[string]string{"stack": string(debug.Stack())},
			}
			w.queue.Enqueue(Message{Kind: MessageFailure, Err: rerr, Worker: w.id})
			err = rerr
		}
	}()

	slog.Debug("worker starting", "worker", w.id)
	for {
		if w.stop.Stopped() || ctx.Err() != nil {
			slog.Debug("worker stopping", "worker", w.id)
			return nil
		}

		b := w.counter.Claim()
		batchesClaimedTotal.Inc()

		if err := w.window.Wait(ctx, b.Index, w.stop.Done()); err != nil {
			if errors.Is(err, errStopped) || ctx.Err() != nil {
				slog.Debug("worker stopping", "worker", w.id, "batch", b.Index)
				return nil
			}
			return err
		}

		found, err := w.verify(b)
		if err != nil {
			w.queue.Enqueue(Message{Kind: MessageFailure, Err: err, Worker: w.id})
			return err
		}
		if found != nil {
			slog.Error("counterexample found",
				"worker", w.id,
				"number", found.Number.String(),
				"reason", found.Reason,
				"steps", found.Steps,
			)
			w.queue.Enqueue(Message{Kind: MessageCounterexample, Counterexample: found, Worker: w.id})
			w.stop.Stop()
			return nil
		}

		ok := w.queue.Enqueue(Message{
			Kind: MessageCompletion,
			Completion: ir.CompletionRecord{
				Index:  b.Index,
				Start:  b.Start,
				Length: b.Length,
				Worker: w.id,
			},
			Worker: w.id,
		})
		if !ok {
			// Coordinator is gone; nothing more can be recorded.
			return nil
		}
	}
}

// verify checks every number of b in ascending order.
// Returns the first counterexample, or nil if the whole batch is safe.
func (w *worker) verify(b ir.Batch) (*ir.Counterexample, error) {
	limit := w.limit()
	n := b.Start
	for i := uint64(0); i < b.Length; i++ {
		if i > 0 {
			n = n.Add64(1)
		}
		verdict, steps := w.checker.Check(n, limit)
		if verdict == VerdictSafe {
			continue
		}
		ce, err := w.checker.Counterexample(n, verdict, steps)
		if err != nil {
			return nil, fmt.Errorf("build counterexample for %s: %w", n, err)
		}
		ce.RunID = w.runID
		ce.Worker = w.id
		return &ce, nil
	}
	return nil, nil
}
