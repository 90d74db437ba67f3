package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/collatz/internal/ir"
	"github.com/roach88/collatz/internal/testutil"
)

func newTestWorker(origin uint64, step StepFunc, limit ir.Number) *worker {
	return &worker{
		id:      3,
		runID:   "run-w",
		counter: NewCounter(ir.NewNumber(origin), 10),
		window:  newWindow(4),
		checker: NewChecker(0, step),
		limit:   func() ir.Number { return limit },
		queue:   newMessageQueue(),
		stop:    newStopSignal(),
	}
}

func drain(q *messageQueue) []Message {
	var out []Message
	for {
		m, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

func TestWorker_VerifySafeBatch(t *testing.T) {
	w := newTestWorker(100, nil, ir.NewNumber(99))

	found, err := w.verify(ir.Batch{Index: 0, Start: ir.NewNumber(100), Length: 10})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestWorker_VerifyReportsFirstFailure(t *testing.T) {
	w := newTestWorker(130, testutil.FixedPointStep(ir.NewNumber(137)), ir.NewNumber(99))

	found, err := w.verify(ir.Batch{Index: 0, Start: ir.NewNumber(130), Length: 10})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ir.NewNumber(137), found.Number)
	assert.Equal(t, ir.ReasonCycle, found.Reason)
	assert.Equal(t, "run-w", found.RunID)
	assert.Equal(t, 3, found.Worker)
}

func TestWorker_LimitReadOncePerBatch(t *testing.T) {
	w := newTestWorker(100, nil, ir.Number{})
	calls := 0
	w.limit = func() ir.Number {
		calls++
		return ir.NewNumber(99)
	}

	_, err := w.verify(ir.Batch{Index: 0, Start: ir.NewNumber(100), Length: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWorker_RunStopsAtCounterexample(t *testing.T) {
	w := newTestWorker(100, testutil.FixedPointStep(ir.NewNumber(137)), ir.NewNumber(99))

	require.NoError(t, w.run(context.Background()))
	assert.True(t, w.stop.Stopped())

	msgs := drain(w.queue)
	require.Len(t, msgs, 4)
	for i, m := range msgs[:3] {
		assert.Equal(t, MessageCompletion, m.Kind)
		assert.Equal(t, uint64(i), m.Completion.Index)
		assert.Equal(t, 3, m.Completion.Worker)
	}
	assert.Equal(t, MessageCounterexample, msgs[3].Kind)
	assert.Equal(t, ir.NewNumber(137), msgs[3].Counterexample.Number)
}

func TestWorker_RunRecoversPanic(t *testing.T) {
	w := newTestWorker(100, testutil.PanicStep(ir.NewNumber(105)), ir.NewNumber(99))

	err := w.run(context.Background())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeWorkerPanic))

	msgs := drain(w.queue)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageFailure, msgs[0].Kind)
	assert.Same(t, err, msgs[0].Err)
}

func TestWorker_RunStopped(t *testing.T) {
	w := newTestWorker(100, nil, ir.NewNumber(99))
	w.stop.Stop()

	require.NoError(t, w.run(context.Background()))
	assert.Empty(t, drain(w.queue))
	assert.Equal(t, uint64(0), w.counter.Claimed())
}

func TestWorker_RunClosedQueue(t *testing.T) {
	w := newTestWorker(100, nil, ir.NewNumber(99))
	w.queue.Close()

	require.NoError(t, w.run(context.Background()))
	assert.Equal(t, uint64(1), w.counter.Claimed())
}
