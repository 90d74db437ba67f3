package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/collatz/internal/ir"
)

// unmarshalTrajectory parses the canonical JSON array written by
// ir.MarshalTrajectory.
func unmarshalTrajectory(data string) ([]ir.Number, error) {
	var raw []string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal trajectory: %w", err)
	}
	out := make([]ir.Number, len(raw))
	for i, s := range raw {
		n, err := ir.ParseNumber(s)
		if err != nil {
			return nil, fmt.Errorf("unmarshal trajectory[%d]: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// parseNumberColumn parses a decimal TEXT column.
func parseNumberColumn(column, value string) (ir.Number, error) {
	n, err := ir.ParseNumber(value)
	if err != nil {
		return ir.Number{}, fmt.Errorf("column %s: %w", column, err)
	}
	return n, nil
}

// toInt64 converts counts for INTEGER columns. SQLite integers are signed
// 64-bit; the driver rejects uint64 values with the high bit set.
func toInt64(column string, v uint64) (int64, error) {
	if v > 1<<63-1 {
		return 0, fmt.Errorf("column %s: value %d out of range", column, v)
	}
	return int64(v), nil
}
