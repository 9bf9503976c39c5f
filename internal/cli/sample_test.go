package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleResponse struct {
	Status string       `json:"status"`
	Data   SampleResult `json:"data"`
	Error  *CLIError    `json:"error"`
}

func sampleJSON(t *testing.T, args ...string) SampleResult {
	t.Helper()
	out, _, err := execute(t, append([]string{"sample", "--format", "json"}, args...)...)
	require.NoError(t, err, out)

	var resp sampleResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// =============================================================================
// sample
// =============================================================================

func TestSample_Posterior(t *testing.T) {
	result := sampleJSON(t, "testdata/models/posterior.cue", "-c", "testdata/run.yaml")

	assert.Equal(t, "posterior", result.Model)
	assert.Empty(t, result.RunID)
	require.Len(t, result.Chains, 2)
	for i, c := range result.Chains {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 1800, c.States)
		assert.Greater(t, c.Acceptance, 0.0)
		assert.Len(t, c.Fingerprint, 64)
	}
	assert.NotEqual(t, result.Chains[0].Fingerprint, result.Chains[1].Fingerprint)

	require.Len(t, result.Vertices, 1)
	a := result.Vertices[0]
	assert.Equal(t, "a", a.Label)
	assert.Equal(t, []int{}, a.Shape)
	assert.InDelta(t, 1.0, a.Mean[0], 0.2)
	assert.InDelta(t, 0.5, a.Variance[0], 0.2)
	require.NotNil(t, a.RHat)
	assert.Less(t, *a.RHat, 1.1)

	total := result.Steps["accepted"] + result.Steps["rejected"] + result.Steps["impossible"]
	assert.Equal(t, 4000.0, total)
}

func TestSample_SeedDeterminesChains(t *testing.T) {
	first := sampleJSON(t, "testdata/models/posterior.cue", "-c", "testdata/run.yaml")
	second := sampleJSON(t, "testdata/models/posterior.cue", "-c", "testdata/run.yaml")
	assert.Equal(t, first.Chains, second.Chains)

	reseeded := sampleJSON(t, "testdata/models/posterior.cue", "-c", "testdata/run.yaml", "--seed", "6")
	assert.NotEqual(t, first.Chains[0].Fingerprint, reseeded.Chains[0].Fingerprint)
}

func TestSample_TextOutput(t *testing.T) {
	out, _, err := execute(t, "sample", "testdata/models/posterior.cue", "-c", "testdata/run.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Model posterior: 2 chain(s)")
	assert.Contains(t, out, "VERTEX")
	assert.Contains(t, out, "steps: accepted=")
}

func TestSample_Errors(t *testing.T) {
	dir := t.TempDir()
	badConfig := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badConfig, []byte("samples: 10\nwarmup: 3\n"), 0644))
	ghost := filepath.Join(dir, "ghost.yaml")
	require.NoError(t, os.WriteFile(ghost, []byte("record: [ghost]\n"), 0644))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing model", []string{"sample", "testdata/models/nope.cue"}, ErrCodeNotFound},
		{"broken model", []string{"sample", "testdata/models/broken.cue"}, ErrCodeModelInvalid},
		{"bad config", []string{"sample", "testdata/models/posterior.cue", "-c", badConfig}, ErrCodeConfigInvalid},
		{"unknown record label", []string{"sample", "testdata/models/posterior.cue", "-c", ghost}, ErrCodeUnknownLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

// =============================================================================
// runs and show
// =============================================================================

func TestSample_PersistThenShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	sampled := sampleJSON(t, "testdata/models/posterior.cue", "-c", "testdata/run.yaml", "--db", db)
	require.NotEmpty(t, sampled.RunID)

	out, _, err := execute(t, "runs", "--db", db, "--format", "json")
	require.NoError(t, err)
	var runs struct {
		Data RunsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs.Data.Runs, 1)
	assert.Equal(t, RunSummary{ID: sampled.RunID, Model: "posterior", Seed: 5, Chains: 2}, runs.Data.Runs[0])

	out, _, err = execute(t, "show", sampled.RunID, "--db", db, "--format", "json")
	require.NoError(t, err)
	var show struct {
		Data ShowResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &show))
	assert.Equal(t, sampled.Chains, show.Data.Chains)
	assert.Contains(t, show.Data.Config, "seed: 5")
	require.Len(t, show.Data.Vertices, 1)
	assert.Equal(t, "a", show.Data.Vertices[0].Label)
	assert.InDelta(t, 1.0, show.Data.Vertices[0].Mean[0], 0.25)
}

func TestRuns_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, os.WriteFile(db, nil, 0644))

	out, _, err := execute(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs found.\n", out)
}

func TestRuns_MissingDatabase(t *testing.T) {
	out, _, err := execute(t, "runs", "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestShow_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	sampleJSON(t, "testdata/models/posterior.cue", "-c", "testdata/run.yaml", "--db", db)

	out, _, err := execute(t, "show", "no-such-run", "--db", db)
	require.Error(t, err)
	assert.Contains(t, out, "run not found: no-such-run")
}

func TestRuns_RequiresDB(t *testing.T) {
	_, _, err := execute(t, "runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}
