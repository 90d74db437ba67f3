package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/collatz/internal/ir"
)

// CheckpointStore persists verifier progress.
// Implemented by store.Store (SQLite) and testutil.MemoryStore (tests).
//
// Only the coordinator goroutine writes; there is never more than one writer.
type CheckpointStore interface {
	// LoadCheckpoint returns ir.ErrNoCheckpoint if nothing was ever saved.
	LoadCheckpoint(ctx context.Context) (ir.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp ir.Checkpoint) error
	SaveCounterexample(ctx context.Context, ce ir.Counterexample) error
	RecordRun(ctx context.Context, run ir.Run) error
}

// EarlyExit selects the bound below which a trajectory counts as proven.
type EarlyExit string

const (
	// EarlyExitThreshold stops a trajectory once it drops below the threshold.
	EarlyExitThreshold EarlyExit = "threshold"
	// EarlyExitWatermark stops a trajectory once it drops to or below the
	// watermark published when the batch started. Never weaker than
	// EarlyExitThreshold.
	EarlyExitWatermark EarlyExit = "watermark"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultBatchSize          = 100000
	DefaultCheckpointInterval = 30 * time.Second
	DefaultSaveRetries        = 5
)

// DefaultThreshold is 2^68, the bound up to which the conjecture is known to hold.
var DefaultThreshold = ir.NewNumber(1).Lsh(68)

// Options are the engine's constructor parameters.
// The engine does not parse or validate them beyond applying defaults.
type Options struct {
	Workers            int           // 0 = 2x logical CPUs
	BatchSize          uint64        // numbers per claim and per completion message
	Threshold          ir.Number     // every number below is assumed verified
	MaxSteps           uint64        // trajectory step bound
	EarlyExit          EarlyExit     // early-exit policy
	BacklogSlots       int           // 0 = Workers; never more than Workers
	CheckpointInterval time.Duration // negative disables the timer
	CheckpointEvery    uint64        // save after this many merged batches; 0 disables
	SaveRetries        int           // retries after a failed save; 0 = default, negative = none
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2 * runtime.NumCPU()
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Threshold.IsZero() {
		o.Threshold = DefaultThreshold
	}
	if o.MaxSteps == 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.EarlyExit == "" {
		o.EarlyExit = EarlyExitThreshold
	}
	// The backlog never holds more entries than there are workers.
	if o.BacklogSlots <= 0 || o.BacklogSlots > o.Workers {
		o.BacklogSlots = o.Workers
	}
	if o.CheckpointInterval == 0 {
		o.CheckpointInterval = DefaultCheckpointInterval
	}
	if o.SaveRetries < 0 {
		o.SaveRetries = 0
	} else if o.SaveRetries == 0 {
		o.SaveRetries = DefaultSaveRetries
	}
	return o
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithStepFunc replaces the 3n+1 map. Used by tests to wire synthetic
// trajectories (fixed points, cycles).
func WithStepFunc(step StepFunc) EngineOption {
	return func(e *Engine) {
		e.step = step
	}
}

// WithRunIDGenerator sets the run id source.
// Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithSaveRetryInterval sets the first backoff delay for failed saves.
// Default: DefaultSaveRetryInterval.
func WithSaveRetryInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.retryInterval = d
	}
}

// Engine assembles the counter, workers, completion queue, and coordinator
// for one verification run.
//
// Thread-safety model:
//   - Run(): call exactly once
//   - Stop(), Stats(): safe from any goroutine, before, during, or after Run
type Engine struct {
	store         CheckpointStore
	opts          Options
	step          StepFunc
	runIDs        RunIDGenerator
	retryInterval time.Duration

	stop    *stopSignal
	started atomic.Bool
	state   atomic.Pointer[runState]
}

// runState is the live wiring of a started run, published for Stats.
type runState struct {
	runID   string
	origin  ir.Number
	counter *Counter
	queue   *messageQueue
	coord   *coordinator
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Origin    ir.Number // first number handed out by this run
	Watermark ir.Number
	Merged    uint64 // batches merged by this run
	Claimed   uint64 // batches handed out by this run
	// Counterexample is set when the run ended by finding one.
	Counterexample *ir.Counterexample
}

// Stats is a point-in-time snapshot of a running engine.
type Stats struct {
	RunID      string
	Origin     ir.Number
	Watermark  ir.Number
	Backlog    int
	QueueDepth int
	Merged     uint64
	Claimed    uint64
}

// New creates an engine persisting to s.
func New(s CheckpointStore, o Options, opts ...EngineOption) *Engine {
	e := &Engine{
		store:         s,
		opts:          o.withDefaults(),
		runIDs:        UUIDv7Generator{},
		retryInterval: DefaultSaveRetryInterval,
		stop:          newStopSignal(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options returns the effective options after defaults.
func (e *Engine) Options() Options {
	return e.opts
}

// Stop asks the run to finish: workers exit after their current batch, the
// coordinator merges what they reported and saves a final checkpoint.
func (e *Engine) Stop() {
	e.stop.Stop()
}

// Stats returns a snapshot of the running engine. Zero before Run.
func (e *Engine) Stats() Stats {
	st := e.state.Load()
	if st == nil {
		return Stats{}
	}
	return Stats{
		RunID:      st.runID,
		Origin:     st.origin,
		Watermark:  st.coord.Watermark(),
		Backlog:    int(st.coord.backlogLen.Load()),
		QueueDepth: st.queue.Len(),
		Merged:     st.coord.merged.Load(),
		Claimed:    st.counter.Claimed(),
	}
}

// Run verifies numbers from the stored watermark upward until Stop, ctx
// cancellation, a counterexample, or a fatal error.
//
// Return values:
//   - nil: stopped or cancelled; the final checkpoint was saved
//   - *CounterexampleError: a counterexample was found and reported
//   - *RuntimeError: fatal condition (see errors.go)
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if !e.started.CompareAndSwap(false, true) {
		return Result{}, errors.New("engine already started")
	}

	o := e.opts
	floor := o.Threshold.Sub64(1)
	watermark := e.resume(ctx, floor)

	runID := e.runIDs.Generate()
	origin := watermark.Add64(1)
	if err := e.store.RecordRun(ctx, ir.Run{
		ID:             runID,
		Threshold:      o.Threshold,
		StartWatermark: watermark,
		Workers:        o.Workers,
		BatchSize:      o.BatchSize,
		Slots:          o.BacklogSlots,
		EarlyExit:      string(o.EarlyExit),
		MaxSteps:       o.MaxSteps,
	}); err != nil {
		return Result{}, fmt.Errorf("record run: %w", err)
	}

	counter := NewCounter(origin, o.BatchSize)
	queue := newMessageQueue()
	win := newWindow(o.BacklogSlots)
	checker := NewChecker(o.MaxSteps, e.step)
	workersDone := make(chan struct{})

	coord := &coordinator{
		frontier:      NewFrontier(watermark, o.BacklogSlots),
		window:        win,
		queue:         queue,
		stop:          e.stop,
		store:         e.store,
		workersDone:   workersDone,
		threshold:     o.Threshold,
		batchSize:     o.BatchSize,
		runID:         runID,
		interval:      o.CheckpointInterval,
		every:         o.CheckpointEvery,
		retries:       o.SaveRetries,
		retryInterval: e.retryInterval,
	}
	coord.watermark.Store(&watermark)

	e.state.Store(&runState{
		runID:   runID,
		origin:  origin,
		counter: counter,
		queue:   queue,
		coord:   coord,
	})

	limit := func() ir.Number { return floor }
	if o.EarlyExit == EarlyExitWatermark {
		limit = func() ir.Number {
			if wm := coord.Watermark(); wm.Cmp(floor) > 0 {
				return wm
			}
			return floor
		}
	}

	slog.Info("engine starting",
		"run", runID,
		"origin", origin.String(),
		"threshold", o.Threshold.String(),
		"workers", o.Workers,
		"batch_size", o.BatchSize,
		"slots", o.BacklogSlots,
		"early_exit", string(o.EarlyExit),
		"max_steps", o.MaxSteps,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.run(gctx)
	})

	var wg sync.WaitGroup
	for i := 0; i < o.Workers; i++ {
		w := &worker{
			id:      i,
			runID:   runID,
			counter: counter,
			window:  win,
			checker: checker,
			limit:   limit,
			queue:   queue,
			stop:    e.stop,
		}
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return w.run(gctx)
		})
	}
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	err := g.Wait()

	res := Result{
		RunID:          runID,
		Origin:         origin,
		Watermark:      coord.frontier.Watermark(),
		Merged:         coord.frontier.Merged(),
		Claimed:        counter.Claimed(),
		Counterexample: coord.found,
	}

	if isContextErr(err) && ctx.Err() != nil {
		err = nil
	}
	if err != nil && !IsCounterexample(err) {
		slog.Error("engine stopped with error", "run", runID, "error", err)
	} else {
		slog.Info("engine stopped",
			"run", runID,
			"watermark", res.Watermark.String(),
			"merged", res.Merged,
		)
	}
	return res, err
}

// resume loads the stored watermark. An unreadable checkpoint falls back to
// floor (Threshold-1) and is reported loudly.
func (e *Engine) resume(ctx context.Context, floor ir.Number) ir.Number {
	cp, err := e.store.LoadCheckpoint(ctx)
	switch {
	case err == nil:
		if !cp.Threshold.Equals(e.opts.Threshold) {
			slog.Warn("checkpoint threshold differs from configured threshold",
				"checkpoint_threshold", cp.Threshold.String(),
				"threshold", e.opts.Threshold.String(),
			)
		}
		if cp.Watermark.Cmp(floor) <= 0 {
			slog.Info("checkpoint below threshold, starting at threshold",
				"checkpoint_watermark", cp.Watermark.String(),
			)
			return floor
		}
		slog.Info("resuming from checkpoint",
			"watermark", cp.Watermark.String(),
			"run", cp.RunID,
			"seq", cp.Seq,
		)
		return cp.Watermark

	case errors.Is(err, ir.ErrNoCheckpoint):
		slog.Info("no checkpoint, starting at threshold", "threshold", e.opts.Threshold.String())
		return floor

	default:
		slog.Error("CHECKPOINT UNREADABLE: restarting verification from threshold",
			"error", err,
			"threshold", e.opts.Threshold.String(),
		)
		return floor
	}
}
