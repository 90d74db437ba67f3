package store

import (
	"context"
	"fmt"

	"github.com/roach88/collatz/internal/ir"
)

// RecordRun inserts the parameters of one engine start.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) RecordRun(ctx context.Context, run ir.Run) error {
	batchSize, err := toInt64("batch_size", run.BatchSize)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	maxSteps, err := toInt64("max_steps", run.MaxSteps)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, threshold, start_watermark, workers, batch_size, slots, early_exit, max_steps, engine_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Threshold.String(),
		run.StartWatermark.String(),
		run.Workers,
		batchSize,
		run.Slots,
		run.EarlyExit,
		maxSteps,
		ir.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// SaveCounterexample inserts a counterexample with its full trajectory.
// Uses ON CONFLICT(id) DO NOTHING: the id is content-addressed, so the same
// counterexample found again after a restart is stored once.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) SaveCounterexample(ctx context.Context, ce ir.Counterexample) error {
	trajectory, err := ir.MarshalTrajectory(ce.Trajectory)
	if err != nil {
		return fmt.Errorf("save counterexample: %w", err)
	}
	steps, err := toInt64("steps", ce.Steps)
	if err != nil {
		return fmt.Errorf("save counterexample: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO counterexamples
		(id, seq, run_id, number, reason, steps, trajectory, worker)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM counterexamples), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ce.ID,
		ce.RunID,
		ce.Number.String(),
		ce.Reason,
		steps,
		trajectory,
		ce.Worker,
	)
	if err != nil {
		return fmt.Errorf("save counterexample: %w", err)
	}
	return nil
}
