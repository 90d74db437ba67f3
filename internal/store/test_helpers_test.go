package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/collatz/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) ir.Run {
	return ir.Run{
		ID:             id,
		Threshold:      ir.NewNumber(100),
		StartWatermark: ir.NewNumber(99),
		Workers:        2,
		BatchSize:      10,
		Slots:          2,
		EarlyExit:      "threshold",
		MaxSteps:       1000,
	}
}

// recordTestRun records createTestRun(id) so counterexamples can reference it.
func recordTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.RecordRun(context.Background(), createTestRun(id)); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
}

// createTestCounterexample creates a counterexample with a content-addressed id.
func createTestCounterexample(t *testing.T, runID string, number uint64, trajectory ...uint64) ir.Counterexample {
	t.Helper()
	steps := uint64(len(trajectory))
	id, err := ir.CounterexampleID(ir.NewNumber(number), ir.ReasonCycle, steps)
	if err != nil {
		t.Fatalf("CounterexampleID() failed: %v", err)
	}
	traj := []ir.Number{ir.NewNumber(number)}
	for _, v := range trajectory {
		traj = append(traj, ir.NewNumber(v))
	}
	return ir.Counterexample{
		ID:         id,
		RunID:      runID,
		Number:     ir.NewNumber(number),
		Reason:     ir.ReasonCycle,
		Steps:      steps,
		Trajectory: traj,
		Worker:     1,
	}
}
