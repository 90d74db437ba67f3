package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/collatz/internal/ir"
)

func num(s string) Num {
	return Num{Value: ir.MustParseNumber(s)}
}

func arrival(start string, length uint64) Arrival {
	return Arrival{Start: num(start), Length: length}
}

func TestRun_OutOfOrder(t *testing.T) {
	scenario := &Scenario{
		Name:        "out_of_order",
		Description: "B before A",
		Watermark:   num("99"),
		Slots:       2,
		Arrivals:    []Arrival{arrival("110", 10), arrival("100", 10)},
		Expect:      Expect{Watermark: num("119")},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "119", result.Watermark)
	assert.Equal(t, 0, result.Backlog)
	assert.Equal(t, 1, result.Permutations)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{
		Seq: 1, Start: "110", Length: 10, Action: ActionDeferred,
		Watermark: "99", Backlog: 1,
	}, result.Trace[0])
	assert.Equal(t, TraceEvent{
		Seq: 2, Start: "100", Length: 10, Action: ActionMerged, Merged: 2,
		Watermark: "119", Backlog: 0,
	}, result.Trace[1])
}

func TestRun_Permute(t *testing.T) {
	scenario := &Scenario{
		Name:        "chain",
		Description: "every order drains to the same watermark",
		Watermark:   num("99"),
		Slots:       4,
		Arrivals: []Arrival{
			arrival("100", 10), arrival("110", 10), arrival("120", 10), arrival("130", 10),
		},
		Expect:  Expect{Watermark: num("139")},
		Permute: true,
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 23, result.Permutations, "4! orders minus the scenario order")
}

func TestRun_PermuteDetectsOrderDependence(t *testing.T) {
	// With one slot, 120 then 110 overflows; the scenario order does not.
	scenario := &Scenario{
		Name:        "tight",
		Description: "one slot is not enough for every order",
		Watermark:   num("99"),
		Slots:       1,
		Arrivals:    []Arrival{arrival("100", 10), arrival("120", 10), arrival("110", 10)},
		Expect:      Expect{Watermark: num("129")},
		Permute:     true,
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "129", result.Watermark)
	assert.Contains(t, strings.Join(result.Errors, "\n"), `error = "BACKLOG_OVERFLOW", want ""`)
}

func TestRun_ExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "overflow",
		Description: "second deferral has no slot",
		Watermark:   num("99"),
		Slots:       1,
		Arrivals:    []Arrival{arrival("120", 10), arrival("130", 10), arrival("100", 10)},
		Expect:      Expect{Watermark: num("99"), Backlog: 1, Error: "BACKLOG_OVERFLOW"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "BACKLOG_OVERFLOW", result.ErrorCode)

	// Arrivals stop at the rejected record.
	require.Len(t, result.Trace, 2)
	assert.Equal(t, ActionRejected, result.Trace[1].Action)
	assert.Equal(t, "BACKLOG_OVERFLOW", result.Trace[1].Error)
}

func TestRun_UnexpectedState(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong",
		Description: "expectation does not hold",
		Watermark:   num("99"),
		Slots:       2,
		Arrivals:    []Arrival{arrival("100", 10), arrival("120", 10)},
		Expect:      Expect{Watermark: num("129")},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "scenario order: watermark = 109, want 129")
	assert.Contains(t, result.Errors, "scenario order: backlog = 1, want 0")
}

func TestRun_UnexpectedOverlap(t *testing.T) {
	scenario := &Scenario{
		Name:        "overlap",
		Description: "duplicate completion",
		Watermark:   num("99"),
		Slots:       2,
		Arrivals:    []Arrival{arrival("120", 10), arrival("125", 10)},
		Expect:      Expect{Watermark: num("99"), Backlog: 2},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "RECORD_OVERLAP", result.ErrorCode)
	assert.Equal(t, 1, result.Backlog)
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Description: "y", Slots: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arrivals list is required")
}

func TestPermute_VisitsEveryOtherOrder(t *testing.T) {
	arrivals := []Arrival{arrival("1", 1), arrival("2", 1), arrival("3", 1)}

	seen := map[string]bool{}
	permute(arrivals, func(order []Arrival) {
		seen[describeOrder(order)] = true
	})

	assert.Len(t, seen, 5)
	assert.False(t, seen["[1 2 3]"], "scenario order is skipped")
	assert.True(t, seen["[3 2 1]"])
	assert.Equal(t, "[1 2 3]", describeOrder(arrivals), "input is not modified")
}
