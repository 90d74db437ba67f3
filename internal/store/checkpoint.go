package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/collatz/internal/ir"
)

// LoadCheckpoint returns the stored checkpoint.
// Returns ir.ErrNoCheckpoint if none was ever saved.
func (s *Store) LoadCheckpoint(ctx context.Context) (ir.Checkpoint, error) {
	var (
		cp                   ir.Checkpoint
		watermark, threshold string
		batchSize, merged    int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT watermark, threshold, batch_size, run_id, seq, merged
		FROM checkpoint
		WHERE id = 1
	`).Scan(&watermark, &threshold, &batchSize, &cp.RunID, &cp.Seq, &merged)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Checkpoint{}, ir.ErrNoCheckpoint
	}
	if err != nil {
		return ir.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.Watermark, err = parseNumberColumn("watermark", watermark); err != nil {
		return ir.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.Threshold, err = parseNumberColumn("threshold", threshold); err != nil {
		return ir.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	cp.BatchSize = uint64(batchSize)
	cp.Merged = uint64(merged)
	return cp, nil
}

// SaveCheckpoint replaces the stored checkpoint.
//
// The single row is upserted and its seq incremented, so seq counts saves
// across every run against this database.
func (s *Store) SaveCheckpoint(ctx context.Context, cp ir.Checkpoint) error {
	batchSize, err := toInt64("batch_size", cp.BatchSize)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	merged, err := toInt64("merged", cp.Merged)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoint (id, watermark, threshold, batch_size, run_id, seq, merged)
		VALUES (1, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			watermark  = excluded.watermark,
			threshold  = excluded.threshold,
			batch_size = excluded.batch_size,
			run_id     = excluded.run_id,
			seq        = checkpoint.seq + 1,
			merged     = excluded.merged
	`,
		cp.Watermark.String(),
		cp.Threshold.String(),
		batchSize,
		cp.RunID,
		merged,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
