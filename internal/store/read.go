package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/collatz/internal/ir"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// ListCounterexamples returns every stored counterexample.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListCounterexamples(ctx context.Context) ([]ir.Counterexample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, number, reason, steps, trajectory, worker
		FROM counterexamples
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query counterexamples: %w", err)
	}
	defer rows.Close()

	counterexamples := []ir.Counterexample{}
	for rows.Next() {
		ce, err := scanCounterexample(rows)
		if err != nil {
			return nil, err
		}
		counterexamples = append(counterexamples, ce)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterexamples: %w", err)
	}
	return counterexamples, nil
}

// ReadCounterexample returns the counterexample with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) ReadCounterexample(ctx context.Context, id string) (ir.Counterexample, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, number, reason, steps, trajectory, worker
		FROM counterexamples
		WHERE id = ?
	`, id)
	ce, err := scanCounterexample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Counterexample{}, fmt.Errorf("counterexample %s: %w", id, ErrNotFound)
	}
	return ce, err
}

// CountCounterexamples returns how many counterexamples are stored.
func (s *Store) CountCounterexamples(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM counterexamples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count counterexamples: %w", err)
	}
	return n, nil
}

// ListRuns returns every recorded run in start order.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, threshold, start_watermark, workers, batch_size, slots, early_exit, max_steps
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		var (
			run                 ir.Run
			threshold, start    string
			batchSize, maxSteps int64
		)
		if err := rows.Scan(&run.ID, &threshold, &start, &run.Workers, &batchSize,
			&run.Slots, &run.EarlyExit, &maxSteps); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Threshold, err = parseNumberColumn("threshold", threshold); err != nil {
			return nil, fmt.Errorf("scan run %s: %w", run.ID, err)
		}
		if run.StartWatermark, err = parseNumberColumn("start_watermark", start); err != nil {
			return nil, fmt.Errorf("scan run %s: %w", run.ID, err)
		}
		run.BatchSize = uint64(batchSize)
		run.MaxSteps = uint64(maxSteps)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCounterexample(row rowScanner) (ir.Counterexample, error) {
	var (
		ce                 ir.Counterexample
		number, trajectory string
		steps              int64
	)
	if err := row.Scan(&ce.ID, &ce.RunID, &number, &ce.Reason, &steps, &trajectory, &ce.Worker); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Counterexample{}, err
		}
		return ir.Counterexample{}, fmt.Errorf("scan counterexample: %w", err)
	}

	var err error
	if ce.Number, err = parseNumberColumn("number", number); err != nil {
		return ir.Counterexample{}, fmt.Errorf("scan counterexample %s: %w", ce.ID, err)
	}
	if ce.Trajectory, err = unmarshalTrajectory(trajectory); err != nil {
		return ir.Counterexample{}, fmt.Errorf("scan counterexample %s: %w", ce.ID, err)
	}
	ce.Steps = uint64(steps)
	return ce, nil
}
