package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// check
// =============================================================================

func TestCheck_Differentiable(t *testing.T) {
	out, _, err := execute(t, "check", "testdata/models/posterior.cue")
	require.NoError(t, err)
	assertGolden(t, "check_posterior", out)
}

func TestCheck_NotDifferentiable(t *testing.T) {
	out, _, err := execute(t, "check", "testdata/models/step.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assertGolden(t, "check_step", out)
}

func TestCheck_TargetsNarrowTheWalk(t *testing.T) {
	out, _, err := execute(t, "check", "testdata/models/step.cue", "--target", "a", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Differentiable)
	assert.Equal(t, []string{"a"}, resp.Data.Targets)
}

func TestCheck_JSONFailure(t *testing.T) {
	out, _, err := execute(t, "check", "testdata/models/step.cue", "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotDiffable, resp.Error.Code)
	assert.Equal(t, "s", resp.Data.BlockedAt)
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing model", []string{"check", "testdata/models/nope.cue"}, ErrCodeNotFound},
		{"broken model", []string{"check", "testdata/models/broken.cue"}, ErrCodeModelInvalid},
		{"unknown target", []string{"check", "testdata/models/posterior.cue", "--target", "ghost"}, ErrCodeUnknownLabel},
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
// lambda
// =============================================================================

func TestLambda_Downstream(t *testing.T) {
	out, _, err := execute(t, "lambda", "testdata/models/posterior.cue", "a")
	require.NoError(t, err)
	assertGolden(t, "lambda_downstream", out)
}

func TestLambda_UpstreamWithoutBoundary(t *testing.T) {
	out, _, err := execute(t, "lambda", "testdata/models/step.cue", "obs", "--upstream", "--no-boundary")
	require.NoError(t, err)
	assertGolden(t, "lambda_upstream", out)
}

func TestLambda_JSON(t *testing.T) {
	out, _, err := execute(t, "lambda", "testdata/models/posterior.cue", "a", "--no-boundary", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data LambdaResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "downstream", resp.Data.Direction)
	assert.Equal(t, []string{"shift"}, resp.Data.Vertices)
	assert.Equal(t, []string{"obs"}, resp.Data.Boundary)
}

func TestLambda_NeedsALabel(t *testing.T) {
	_, _, err := execute(t, "lambda", "testdata/models/posterior.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

// =============================================================================
// grad
// =============================================================================

const gradModel = `
name: "grad"
vertices: [
	{label: "zero", constant: 0},
	{label: "one", constant: 1},
	{label: "a", dist: "gaussian", params: ["zero", "one"], value: 0.5},
	{label: "shift", op: "add", inputs: ["a", "zero"]},
	{label: "obs", dist: "gaussian", params: ["shift", "one"], observe: 2},
]
`

func TestGrad_ConjugateGaussian(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grad.cue")
	require.NoError(t, os.WriteFile(path, []byte(gradModel), 0644))

	out, _, err := execute(t, "grad", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data GradResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Gradient, 1)

	// d/da [log N(a; 0, 1) + log N(2; a, 1)] = -a + (2 - a)
	assert.Equal(t, "a", resp.Data.Gradient[0].Label)
	assert.InDelta(t, 1.0, resp.Data.Gradient[0].Values[0], 1e-9)
	assert.Equal(t, []float64{0.5}, resp.Data.Point[0].Values)
	assert.InDelta(t, -3.0878770664093453, resp.Data.LogProb, 1e-9)
}

func TestGrad_OfSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grad.cue")
	require.NoError(t, os.WriteFile(path, []byte(gradModel), 0644))

	out, _, err := execute(t, "grad", path, "--wrt", "a", "--of", "obs")
	require.NoError(t, err)
	// d/da log N(2; a, 1) = 2 - a
	assert.Contains(t, out, "d/da at 0.5000 = 1.5000")
}

func TestGrad_NotDifferentiable(t *testing.T) {
	out, _, err := execute(t, "grad", "testdata/models/step.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotDiffable+"]")
	assert.Contains(t, out, "not differentiable at s")
}
