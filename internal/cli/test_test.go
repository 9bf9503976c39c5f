package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenarioDir lays out a scenario directory with its own copy of the
// posterior model and returns the scenario path.
func writeScenarioDir(t *testing.T, name, assertions string) string {
	t.Helper()
	dir := t.TempDir()
	model, err := os.ReadFile("testdata/models/posterior.cue")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posterior.cue"), model, 0644))

	body := "name: " + name + "\n" +
		"description: temporary scenario\n" +
		"model: posterior.cue\n" +
		"config:\n  seed: 4\n  samples: 400\n  drop: 100\n  proposal: gaussian\n" +
		"assertions:\n" + assertions
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestTest_PassesAgainstGolden(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ cli_posterior\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_JSON(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/scenarios/posterior.yaml", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, TestResult{
		Scenarios: []ScenarioResult{{Name: "cli_posterior", Pass: true}},
		Passed:    1,
		Total:     1,
	}, resp.Data)
}

func TestTest_FailingScenario(t *testing.T) {
	path := writeScenarioDir(t, "wrong_mean", `  - type: posterior_mean
    label: a
    expect: 5
    tolerance: 0.1
`)
	out, _, err := execute(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_mean")
	assert.Contains(t, out, "Assertion failed: posterior_mean (a)")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_UpdateThenMatch(t *testing.T) {
	path := writeScenarioDir(t, "fresh", "  - type: reproducible\n")
	golden := filepath.Join(filepath.Dir(path), "golden", "fresh.golden")

	out, _, err := execute(t, "test", path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ fresh (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "fresh"`)
	assert.Contains(t, string(data), `"states": 300`)

	out, _, err = execute(t, "test", filepath.Dir(path))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ fresh\n")
}

func TestTest_GoldenMismatch(t *testing.T) {
	path := writeScenarioDir(t, "stale", "  - type: reproducible\n")
	dir := filepath.Join(filepath.Dir(path), "golden")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.golden"), []byte("{}\n"), 0644))

	out, _, err := execute(t, "test", path)
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")
}

func TestTest_FilterWithoutMatch(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/scenarios", "--filter", "nothing-*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTest_MissingPath(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenario path not found: testdata/nope")
}

func TestTest_UnloadableScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0644))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ bad.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles_SkipsGolden(t *testing.T) {
	files, err := findScenarioFiles("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("testdata", "scenarios", "posterior.yaml")}, files)

	_, err = findScenarioFiles("testdata/scenarios", "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "c.golden"), goldenFilePath(filepath.Join("a", "b", "c.yaml")))
}
