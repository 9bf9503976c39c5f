package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

// parse builds a scenario over the posterior model from a YAML body.
func parse(t *testing.T, body string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(body), filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	return s
}

func TestRun_GaussianPosterior(t *testing.T) {
	result, err := Run(loadTestdata(t, "gaussian_posterior"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "run-gaussian-posterior", result.RunID)
	require.Len(t, result.Chains, 2)
	for i, c := range result.Chains {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 5000, c.States)
		assert.Len(t, c.Fingerprint, 64)
		assert.Greater(t, c.Acceptance, 0.0)
	}
	assert.NotEqual(t, result.Chains[0].Fingerprint, result.Chains[1].Fingerprint, "chains use different seeds")

	require.Len(t, result.Posterior, 1, "only a is latent")
	assert.Equal(t, "a", result.Posterior[0].Label)
	assert.InDelta(t, 1.0, result.Posterior[0].Mean, 0.1)
	assert.InDelta(t, 0.5, result.Posterior[0].Variance, 0.1)
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(loadTestdata(t, "step_function"))
	require.NoError(t, err)
	second, err := Run(loadTestdata(t, "step_function"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	s := parse(t, `
name: wrong_expectations
description: "Every assertion is wrong"
model: ../models/posterior.cue
config:
  samples: 500
  record: [a]
assertions:
  - type: posterior_mean
    label: a
    expect: 5
    tolerance: 0.1
  - type: differentiable
    targets: [obs]
    differentiable: false
  - type: lambda_section
    origin: [a]
    direction: downstream
    labels: [obs]
  - type: posterior_mean
    label: shift
    expect: 1
    tolerance: 0.1
  - type: acceptance
    max: 0
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Assertions, 5)
	for _, a := range result.Assertions {
		assert.False(t, a.Pass, a.Type)
		assert.NotEmpty(t, a.Message, a.Type)
	}
	require.Len(t, result.Errors, 5)

	assert.Contains(t, result.Errors[0], "Assertion failed: posterior_mean (a)")
	assert.Contains(t, result.Errors[0], "Expected: 5 ± 0.1")
	assert.Contains(t, result.Errors[1], "Expected: differentiable = false")
	assert.Contains(t, result.Errors[2], "Actual: reaches [shift]")
	assert.Contains(t, result.Errors[3], "shift was not recorded")
	assert.Contains(t, result.Errors[4], "chain 0 accepted")
}

func TestRun_UnknownLabelFailsAssertion(t *testing.T) {
	s := parse(t, `
name: unknown_label
description: "Targets name a vertex the model does not have"
model: ../models/posterior.cue
config:
  samples: 100
assertions:
  - type: differentiable
    targets: [ghost]
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "ghost")
}

func TestRun_SamplingErrorAbortsRun(t *testing.T) {
	s := parse(t, `
name: bad_latent
description: "The configured latent is observed"
model: ../models/posterior.cue
config:
  samples: 100
  latents: [obs]
assertions:
  - type: reproducible
`)

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to run chains")
}

func TestRunContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunContext(ctx, loadTestdata(t, "step_function"))
	assert.ErrorIs(t, err, context.Canceled)
}
