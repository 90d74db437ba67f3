package engine

import (
	"errors"
	"sync"
	"sync/atomic"
)

// errStopped is returned by blocking waits interrupted by the stop signal.
var errStopped = errors.New("engine stopped")

// stopSignal is the global cooperative stop flag.
//
// Workers poll Stopped between batches, never inside a trajectory, so the
// hot loop carries no extra load. Done is for goroutines that block.
type stopSignal struct {
	flag atomic.Bool
	once sync.Once
	done chan struct{}
}

func newStopSignal() *stopSignal {
	return &stopSignal{done: make(chan struct{})}
}

// Stop raises the flag. Safe to call more than once from any goroutine.
func (s *stopSignal) Stop() {
	s.once.Do(func() {
		s.flag.Store(true)
		close(s.done)
	})
}

// Stopped reports whether Stop has been called.
func (s *stopSignal) Stopped() bool {
	return s.flag.Load()
}

// Done is closed by Stop.
func (s *stopSignal) Done() <-chan struct{} {
	return s.done
}
