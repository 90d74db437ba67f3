package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// window bounds how far ahead of the watermark a worker may verify.
//
// A batch with claim index k may be verified only when k < frontier+size,
// where frontier is the number of batches merged into the watermark. Claims
// stay lock-free; only verification of a far-ahead batch waits. Completed
// but unmerged batches therefore always lie in (frontier, frontier+size), so
// the backlog never holds more than size-1 entries.
//
// The batch at index frontier is always inside the window, so the worker
// holding it never waits and the frontier always makes progress.
type window struct {
	size     uint64
	frontier atomic.Uint64

	mu      sync.Mutex
	advance chan struct{} // closed and replaced on every Advance
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{
		size:    uint64(size),
		advance: make(chan struct{}),
	}
}

// Wait blocks until batch index k is inside the window, ctx is done, or stop closes.
func (w *window) Wait(ctx context.Context, k uint64, stop <-chan struct{}) error {
	for {
		// Fast path: no lock while inside the window.
		if k < w.frontier.Load()+w.size {
			return nil
		}

		w.mu.Lock()
		ch := w.advance
		inside := k < w.frontier.Load()+w.size
		w.mu.Unlock()
		if inside {
			return nil
		}

		select {
		case <-ch:
		case <-stop:
			return errStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Advance moves the frontier to merged batches and wakes waiters.
// Called only by the coordinator.
func (w *window) Advance(merged uint64) {
	w.mu.Lock()
	w.frontier.Store(merged)
	close(w.advance)
	w.advance = make(chan struct{})
	w.mu.Unlock()
}

// Frontier returns the number of merged batches.
func (w *window) Frontier() uint64 {
	return w.frontier.Load()
}
