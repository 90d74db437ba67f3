package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/collatz/internal/ir"
)

// DefaultSaveRetryInterval is the first backoff delay after a failed save.
const DefaultSaveRetryInterval = 100 * time.Millisecond

// coordinator is the single consumer of the message queue and the only
// writer of the watermark, the backlog, and the checkpoint store.
//
// CRITICAL: run must be called from exactly ONE goroutine. Other goroutines
// observe progress only through the atomic snapshots (Watermark, BacklogLen,
// Merged).
type coordinator struct {
	frontier    *Frontier
	window      *window
	queue       *messageQueue
	stop        *stopSignal
	store       CheckpointStore
	workersDone <-chan struct{}

	threshold     ir.Number
	batchSize     uint64
	runID         string
	interval      time.Duration
	every         uint64
	retries       int
	retryInterval time.Duration

	watermark  atomic.Pointer[ir.Number]
	backlogLen atomic.Int64
	merged     atomic.Uint64

	sinceSave   uint64
	savedMerged uint64
	saved       bool
	found       *ir.Counterexample
}

// publish makes the coordinator's state visible to workers and monitors.
func (c *coordinator) publish() {
	wm := c.frontier.Watermark()
	c.watermark.Store(&wm)
	c.backlogLen.Store(int64(c.frontier.Backlog().Len()))
	c.merged.Store(c.frontier.Merged())
	c.window.Advance(c.frontier.Merged())

	watermarkGauge.Set(numberFloat(wm))
	backlogGauge.Set(float64(c.frontier.Backlog().Len()))
	queueDepthGauge.Set(float64(c.queue.Len()))
}

// Watermark returns the last published watermark.
func (c *coordinator) Watermark() ir.Number {
	if wm := c.watermark.Load(); wm != nil {
		return *wm
	}
	return ir.Number{}
}

// causeOf maps a save failure caused by cancellation back to the cancellation.
// The final flush in shutdown retries with a detached context.
func (c *coordinator) causeOf(ctx context.Context, err error) error {
	if ctx.Err() != nil && HasCode(err, ErrCodeCheckpointFailed) {
		return ctx.Err()
	}
	return err
}

// run is the coordinator loop. It returns when the stop signal is raised,
// ctx is cancelled, or a fatal condition occurs; in every case a final
// checkpoint is attempted first.
//
// Return values:
//   - nil: stopped via the stop signal
//   - ctx.Err(): cancelled from outside
//   - *CounterexampleError: a worker found a counterexample
//   - *RuntimeError: invariant violation, worker failure, or persistent save failure
func (c *coordinator) run(ctx context.Context) error {
	slog.Info("coordinator starting",
		"run", c.runID,
		"watermark", c.frontier.Watermark().String(),
		"slots", c.frontier.Backlog().Cap(),
	)
	c.publish()

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var cause error
loop:
	for {
		// Try non-blocking dequeue first
		m, ok := c.queue.TryDequeue()
		if ok {
			if err := c.handle(ctx, m); err != nil {
				cause = c.causeOf(ctx, err)
				break loop
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("coordinator stopping: context cancelled")
			cause = ctx.Err()
			break loop

		case <-c.stop.Done():
			slog.Info("coordinator stopping: stop requested")
			break loop

		case <-tick:
			if c.merged.Load() == c.savedMerged && c.saved {
				continue
			}
			if err := c.checkpoint(ctx); err != nil {
				cause = c.causeOf(ctx, err)
				break loop
			}

		case <-c.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which will cause this case to fire immediately
			if c.queue.Closed() && c.queue.Len() == 0 {
				cause = &RuntimeError{
					Code:    ErrCodeChannelClosed,
					Message: "completion channel closed while coordinator was running",
				}
				break loop
			}
		}
	}

	return c.shutdown(ctx, cause)
}

// handle applies one message.
// CRITICAL: Called only from the run goroutine.
func (c *coordinator) handle(ctx context.Context, m Message) error {
	switch m.Kind {
	case MessageCompletion:
		n, err := c.frontier.Merge(m.Completion)
		if err != nil {
			slog.Error("merge failed",
				"worker", m.Worker,
				"start", m.Completion.Start.String(),
				"length", m.Completion.Length,
				"watermark", c.frontier.Watermark().String(),
				"error", err,
			)
			return err
		}
		if n == 0 {
			slog.Debug("completion deferred",
				"worker", m.Worker,
				"batch", m.Completion.Index,
				"backlog", c.frontier.Backlog().Len(),
			)
			c.publish()
			return nil
		}
		batchesMergedTotal.Add(float64(n))
		c.sinceSave += uint64(n)
		c.publish()
		slog.Debug("watermark advanced",
			"worker", m.Worker,
			"batch", m.Completion.Index,
			"merged", n,
			"watermark", c.frontier.Watermark().String(),
			"backlog", c.frontier.Backlog().Len(),
		)
		if c.every > 0 && c.sinceSave >= c.every {
			return c.checkpoint(ctx)
		}
		return nil

	case MessageCounterexample:
		ce := *m.Counterexample
		if c.found == nil {
			c.found = &ce
		}
		c.stop.Stop()
		sctx, span := startSpan(ctx, "engine.counterexample",
			attribute.String("number", ce.Number.String()),
			attribute.String("reason", ce.Reason),
		)
		err := c.retry(sctx, "save counterexample", func() error {
			return c.store.SaveCounterexample(sctx, ce)
		})
		endSpan(span, err)
		if err != nil {
			// The report still reaches the caller through CounterexampleError.
			slog.Error("counterexample not persisted",
				"number", ce.Number.String(),
				"reason", ce.Reason,
				"error", err,
			)
		}
		return &CounterexampleError{Counterexample: *c.found}

	case MessageFailure:
		slog.Error("worker failed", "worker", m.Worker, "error", m.Err)
		if m.Err == nil {
			return &RuntimeError{Code: ErrCodeWorkerPanic, Message: "worker failed without error"}
		}
		return m.Err

	default:
		return &RuntimeError{
			Code:    ErrCodeChannelClosed,
			Message: "unknown message kind",
			Details: map[string]string{"kind": strconv.Itoa(int(m.Kind))},
		}
	}
}

// shutdown stops the workers, merges everything they already reported, and
// flushes the final checkpoint.
//
// A merge invariant violation skips the drain: the watermark is still valid
// but further records cannot be trusted.
func (c *coordinator) shutdown(ctx context.Context, cause error) error {
	c.stop.Stop()
	final := context.WithoutCancel(ctx)

	if !HasCode(cause, ErrCodeRecordOverlap) && !HasCode(cause, ErrCodeBacklogOverflow) {
		if c.workersDone != nil {
			<-c.workersDone
		}
		for {
			m, ok := c.queue.TryDequeue()
			if !ok {
				break
			}
			err := c.handle(final, m)
			if err == nil {
				continue
			}
			if cause == nil || isContextErr(cause) {
				cause = err
			}
			if !IsCounterexample(err) {
				break
			}
		}
	}
	c.queue.Close()

	if err := c.checkpoint(final); err != nil {
		slog.Error("final checkpoint failed",
			"watermark", c.frontier.Watermark().String(),
			"error", err,
		)
		if cause == nil || isContextErr(cause) {
			cause = err
		}
	}

	slog.Info("coordinator stopped",
		"watermark", c.frontier.Watermark().String(),
		"merged", c.frontier.Merged(),
		"backlog", c.frontier.Backlog().Len(),
	)
	return cause
}

// checkpoint persists the current watermark.
func (c *coordinator) checkpoint(ctx context.Context) error {
	cp := ir.Checkpoint{
		Watermark: c.frontier.Watermark(),
		Threshold: c.threshold,
		BatchSize: c.batchSize,
		RunID:     c.runID,
		Merged:    c.frontier.Merged(),
	}

	ctx, span := startSpan(ctx, "engine.checkpoint",
		attribute.String("run_id", cp.RunID),
		attribute.String("watermark", cp.Watermark.String()),
		attribute.Int64("merged", int64(cp.Merged)),
	)
	start := time.Now()
	err := c.retry(ctx, "save checkpoint", func() error {
		return c.store.SaveCheckpoint(ctx, cp)
	})
	endSpan(span, err)
	if err != nil {
		checkpointSavesTotal.WithLabelValues("failure").Inc()
		return &RuntimeError{
			Code:    ErrCodeCheckpointFailed,
			Message: "checkpoint save failed after retries",
			Details: map[string]string{"watermark": cp.Watermark.String()},
			Err:     err,
		}
	}
	checkpointSavesTotal.WithLabelValues("success").Inc()
	checkpointSaveDuration.Observe(time.Since(start).Seconds())

	c.sinceSave = 0
	c.savedMerged = cp.Merged
	c.saved = true
	slog.Debug("checkpoint saved", "watermark", cp.Watermark.String(), "merged", cp.Merged)
	return nil
}

// retry runs op with exponential backoff, at most c.retries extra attempts.
func (c *coordinator) retry(ctx context.Context, what string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.retries)), ctx)
	return backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		checkpointSavesTotal.WithLabelValues("retry").Inc()
		slog.Warn(what+" failed, retrying", "error", err, "backoff", next)
	})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
