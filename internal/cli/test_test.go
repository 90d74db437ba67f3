package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mergeScenario = `
name: two_workers
description: second batch first
watermark: 99
slots: 2
arrivals:
  - {start: 110, length: 10}
  - {start: 100, length: 10}
expect:
  watermark: 119
  backlog: 0
permute: true
`

const mergeGolden = `{"scenario_name":"two_workers","trace":[` +
	`{"action":"deferred","backlog":1,"length":10,"merged":0,"seq":1,"start":"110","watermark":"99"},` +
	`{"action":"merged","backlog":0,"length":10,"merged":2,"seq":2,"start":"100","watermark":"119"}]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandPassing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "two_workers.yaml"), mergeScenario)

	out, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 two_workers")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "two_workers.yaml"), mergeScenario)
	writeFile(t, filepath.Join(dir, "golden", "two_workers.golden"), mergeGolden)

	out, err := executeTest(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "two_workers.yaml"), mergeScenario)
	writeFile(t, filepath.Join(dir, "golden", "two_workers.golden"), `{"scenario_name":"two_workers","trace":[]}`)

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 two_workers")
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommandUpdate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "two_workers.yaml"), mergeScenario)

	_, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "two_workers.golden"))
	require.NoError(t, err)
	assert.Equal(t, mergeGolden, string(golden))
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "wrong.yaml"), `
name: wrong
description: expects the wrong watermark
watermark: 99
slots: 1
arrivals:
  - {start: 100, length: 10}
expect:
  watermark: 119
  backlog: 0
`)

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "scenario order: watermark = 109, want 119")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\n")

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "\u2717 broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "two_workers.yaml"), mergeScenario)
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: broken\n")

	out, err := executeTest(t, "text", dir, "--filter", "two_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "two_workers.yaml"), mergeScenario)

	out, err := executeTest(t, "json", dir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "two_workers", resp.Data.Scenarios[0].Name)
}

func TestTestCommandHarnessTestdata(t *testing.T) {
	out, err := executeTest(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "6 passed, 0 failed, 6 total")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "two_workers.golden"),
		goldenFilePath(filepath.Join("scenarios", "two_workers.yaml")))
}
