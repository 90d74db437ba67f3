package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/collatz/internal/ir"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected store failure")

// MemoryStore is an in-memory checkpoint store with fault injection.
//
// It satisfies engine.CheckpointStore and records every successful save so
// tests can assert on the sequence of persisted watermarks.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryStore struct {
	mu              sync.Mutex
	checkpoint      *ir.Checkpoint
	saves           []ir.Checkpoint
	counterexamples []ir.Counterexample
	runs            []ir.Run

	loadErr   error
	failSaves int
	saveErr   error
}

// NewMemoryStore creates an empty store. LoadCheckpoint returns
// ir.ErrNoCheckpoint until the first save.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed sets the stored checkpoint without recording a save.
func (s *MemoryStore) Seed(cp ir.Checkpoint) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = &cp
	return s
}

// FailLoad makes every LoadCheckpoint return err.
func (s *MemoryStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// FailSaves makes the next n SaveCheckpoint calls fail with err
// (ErrInjected if err is nil). A negative n fails every save.
func (s *MemoryStore) FailSaves(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.failSaves = n
	s.saveErr = err
}

// LoadCheckpoint implements engine.CheckpointStore.
func (s *MemoryStore) LoadCheckpoint(ctx context.Context) (ir.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return ir.Checkpoint{}, s.loadErr
	}
	if s.checkpoint == nil {
		return ir.Checkpoint{}, ir.ErrNoCheckpoint
	}
	return *s.checkpoint, nil
}

// SaveCheckpoint implements engine.CheckpointStore.
func (s *MemoryStore) SaveCheckpoint(ctx context.Context, cp ir.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves != 0 {
		if s.failSaves > 0 {
			s.failSaves--
		}
		return s.saveErr
	}
	if s.checkpoint != nil {
		cp.Seq = s.checkpoint.Seq + 1
	} else {
		cp.Seq = 1
	}
	s.checkpoint = &cp
	s.saves = append(s.saves, cp)
	return nil
}

// SaveCounterexample implements engine.CheckpointStore.
// Idempotent by counterexample id.
func (s *MemoryStore) SaveCounterexample(ctx context.Context, ce ir.Counterexample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.counterexamples {
		if existing.ID == ce.ID {
			return nil
		}
	}
	s.counterexamples = append(s.counterexamples, ce)
	return nil
}

// RecordRun implements engine.CheckpointStore.
func (s *MemoryStore) RecordRun(ctx context.Context, run ir.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// Checkpoint returns the stored checkpoint.
func (s *MemoryStore) Checkpoint() (ir.Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoint == nil {
		return ir.Checkpoint{}, false
	}
	return *s.checkpoint, true
}

// Saves returns every successfully saved checkpoint in order.
func (s *MemoryStore) Saves() []ir.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.Checkpoint(nil), s.saves...)
}

// Counterexamples returns the saved counterexamples in order.
func (s *MemoryStore) Counterexamples() []ir.Counterexample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.Counterexample(nil), s.counterexamples...)
}

// Runs returns the recorded runs in order.
func (s *MemoryStore) Runs() []ir.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ir.Run(nil), s.runs...)
}
