package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/collatz/internal/engine"
	"github.com/roach88/collatz/internal/ir"
	"github.com/roach88/collatz/internal/store"
	"github.com/roach88/collatz/internal/testutil"
)

// seedDatabase creates a database holding one run, a checkpoint at 129 and a
// counterexample at 137.
func seedDatabase(t *testing.T) (string, ir.Counterexample) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "collatz.db")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.RecordRun(ctx, ir.Run{
		ID:             "run-1",
		Threshold:      ir.NewNumber(100),
		StartWatermark: ir.NewNumber(99),
		Workers:        2,
		BatchSize:      10,
		Slots:          2,
		EarlyExit:      string(engine.EarlyExitThreshold),
		MaxSteps:       engine.DefaultMaxSteps,
	}))
	require.NoError(t, st.SaveCheckpoint(ctx, ir.Checkpoint{
		Watermark: ir.NewNumber(129),
		Threshold: ir.NewNumber(100),
		BatchSize: 10,
		RunID:     "run-1",
		Merged:    3,
	}))

	checker := engine.NewChecker(50, testutil.FixedPointStep(ir.NewNumber(137)))
	verdict, steps := checker.Check(ir.NewNumber(137), ir.NewNumber(99))
	require.Equal(t, engine.VerdictCycle, verdict)
	ce, err := checker.Counterexample(ir.NewNumber(137), verdict, steps)
	require.NoError(t, err)
	ce.RunID = "run-1"
	ce.Worker = 1
	require.NoError(t, st.SaveCounterexample(ctx, ce))

	return dbPath, ce
}
