package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCheck(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCheckCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCheckSafe(t *testing.T) {
	out, err := executeCheck(t, "text", "27", "--threshold", "10")
	require.NoError(t, err)
	assert.Equal(t, "27: safe after 106 steps (limit 9)\n", out)
}

func TestCheckBelowThreshold(t *testing.T) {
	out, err := executeCheck(t, "text", "27")
	require.NoError(t, err)
	assert.Contains(t, out, "27: safe after 0 steps")
}

func TestCheckTrajectory(t *testing.T) {
	out, err := executeCheck(t, "json", "12", "--threshold", "10", "--trajectory")
	require.NoError(t, err)

	var resp struct {
		Data CheckReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, CheckReport{
		Number:     "12",
		Limit:      "9",
		Verdict:    "safe",
		Steps:      1,
		Trajectory: []string{"12", "6"},
	}, resp.Data)
}

func TestCheckExhausted(t *testing.T) {
	out, err := executeCheck(t, "text", "27", "--threshold", "10", "--max-steps", "50")
	require.Error(t, err)
	assert.Equal(t, ExitCounterexample, GetExitCode(err))
	assert.Contains(t, out, "27: exhausted after 50 steps")
}

func TestCheckAbove64Bits(t *testing.T) {
	// 2^100+7 descends below 2^68 well within the default bound.
	out, err := executeCheck(t, "text", "1267650600228229401496703205383")
	require.NoError(t, err)
	assert.Contains(t, out, "1267650600228229401496703205383: safe")
}

func TestCheckInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"not a number", []string{"abc"}, "invalid number"},
		{"bad threshold", []string{"27", "--threshold", "3^4"}, "invalid threshold"},
		{"threshold above 2^127", []string{"27", "--threshold", "340282366920938463463374607431768211455"}, "invalid threshold"},
		{"threshold too small", []string{"27", "--threshold", "1"}, "must be at least 2"},
		{"zero steps", []string{"27", "--max-steps", "0"}, "invalid max-steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCheck(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
