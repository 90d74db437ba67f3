package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/collatz/internal/ir"
)

func TestLoadCheckpoint_Empty(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadCheckpoint(context.Background())
	assert.ErrorIs(t, err, ir.ErrNoCheckpoint)
}

func TestSaveCheckpoint_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	cp := ir.Checkpoint{
		Watermark: ir.MustParseNumber("295147905179352825856").Add64(123456789),
		Threshold: ir.MustParseNumber("2^68"),
		BatchSize: 100000,
		RunID:     "run-1",
		Merged:    1234,
	}
	require.NoError(t, s.SaveCheckpoint(ctx, cp))

	got, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "295147905179476282645", got.Watermark.String())
	assert.Equal(t, cp.Threshold, got.Threshold)
	assert.Equal(t, uint64(100000), got.BatchSize)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, uint64(1234), got.Merged)
	assert.Equal(t, int64(1), got.Seq)
}

func TestSaveCheckpoint_UpsertIncrementsSeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, wm := range []uint64{109, 119, 129} {
		require.NoError(t, s.SaveCheckpoint(ctx, ir.Checkpoint{
			Watermark: ir.NewNumber(wm),
			Threshold: ir.NewNumber(100),
			BatchSize: 10,
			RunID:     "run-1",
		}))
	}

	got, err := s.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "129", got.Watermark.String())
	assert.Equal(t, int64(3), got.Seq)

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM checkpoint").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSaveCheckpoint_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveCheckpoint(ctx, ir.Checkpoint{
		Watermark: ir.NewNumber(10099),
		Threshold: ir.NewNumber(100),
		BatchSize: 100,
		RunID:     "run-1",
	}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.LoadCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10099", got.Watermark.String())
}

func TestLoadCheckpoint_CorruptWatermark(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO checkpoint (id, watermark, threshold, batch_size, run_id, seq)
		VALUES (1, 'not-a-number', '100', 10, 'run-1', 1)`)
	require.NoError(t, err)

	_, err = s.LoadCheckpoint(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ir.ErrNoCheckpoint)
	assert.Contains(t, err.Error(), "watermark")
}

func TestSaveCheckpoint_RejectsHugeBatchSize(t *testing.T) {
	s := createTestStore(t)

	err := s.SaveCheckpoint(context.Background(), ir.Checkpoint{BatchSize: 1 << 63})
	assert.Error(t, err)
}
