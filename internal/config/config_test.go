package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/model"
)

const modelSrc = `
name: "pair"
vertices: [
	{label: "zero", constant: 0},
	{label: "one", constant: 1},
	{label: "a", dist: "gaussian", params: ["zero", "one"]},
	{label: "b", dist: "gaussian", params: ["a", "one"]},
	{label: "obs", dist: "gaussian", params: ["b", "one"], observe: 3},
]
`

func compile(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.CompileString(modelSrc, "pair.cue")
	require.NoError(t, err)
	return m
}

// =============================================================================
// Parsing
// =============================================================================

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Parse([]byte("samples: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Samples)
	assert.Equal(t, ProposalPrior, cfg.Proposal, "unset keys keep defaults")
}

func TestParse_AllKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
seed: 7
samples: 2000
drop: 200
down_sample: 2
chains: 4
proposal: gaussian
sigma: 0.5
sigmas:
  b: 0.25
selector: full
rejection: cascade
log_prob: joint
anneal:
  steps: 1000
  max: 10
  min: 0.1
latents: [a, b]
record: [a]
`))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, mcmc.GenerateConfig{Samples: 2000, Drop: 200, DownSample: 2}, cfg.Generate())
	assert.Equal(t, 4, cfg.Chains)
	assert.Equal(t, map[string]float64{"b": 0.25}, cfg.Sigmas)
	require.NotNil(t, cfg.Anneal)
	assert.Equal(t, 1000, cfg.Anneal.Steps)
	assert.Equal(t, []string{"a"}, cfg.Record)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("sample: 10\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample")
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		yaml  string
		field string
	}{
		{"samples: 0", "samples"},
		{"drop: 1000", "drop"},
		{"down_sample: -1", "down_sample"},
		{"chains: 0", "chains"},
		{"proposal: hmc", "proposal"},
		{"sigma: 0", "sigma"},
		{"sigmas: {a: -1}", "sigmas.a"},
		{"selector: random", "selector"},
		{"rejection: ignore", "rejection"},
		{"log_prob: full", "log_prob"},
		{"temperature: 0", "temperature"},
		{"anneal: {steps: 10, max: 1, min: 2}", "anneal"},
	}
	for _, tc := range cases {
		t.Run(tc.yaml, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	_, err := Parse([]byte("drop: 1000"))
	assert.Equal(t, mcmc.ErrCodeInvalidDrop, mcmc.ConfigCode(err), "sampler code survives")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 3\nsamples: 10\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cfg.Seed)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// Translation
// =============================================================================

func TestSamplerOptions_BuildWorkingSampler(t *testing.T) {
	cfg, err := Parse([]byte("proposal: gaussian\nsigmas: {b: 0.1}\nselector: full\nrejection: cascade\nlog_prob: joint\nlatents: [a]\n"))
	require.NoError(t, err)

	m := compile(t)
	opts, err := cfg.SamplerOptions(m)
	require.NoError(t, err)
	s, err := mcmc.New(m.Graph, opts...)
	require.NoError(t, err)

	a, _ := m.Vertex("a")
	assert.Equal(t, []graph.ID{a.ID()}, graph.IDs(s.Latents()))
	res, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, []graph.ID{a.ID()}, res.Vertices)
}

func TestSamplerOptions_UnknownLabels(t *testing.T) {
	m := compile(t)
	for _, yml := range []string{"latents: [nope]", "proposal: gaussian\nsigmas: {nope: 1}"} {
		cfg, err := Parse([]byte(yml))
		require.NoError(t, err)
		_, err = cfg.SamplerOptions(m)
		var ule *model.UnknownLabelError
		assert.ErrorAs(t, err, &ule, yml)
	}
}

func TestRecorded(t *testing.T) {
	m := compile(t)

	cfg := Default()
	vs, err := cfg.Recorded(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, model.LabelsOf(vs))

	cfg.Record = []string{"b", "obs"}
	vs, err = cfg.Recorded(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "obs"}, model.LabelsOf(vs))

	cfg.Record = []string{"zzz"}
	_, err = cfg.Recorded(m)
	assert.Error(t, err)
}

func TestGraphOptions_SeedPerChain(t *testing.T) {
	cfg := Default()
	cfg.Seed = 11

	start := func(chain int) float64 {
		m, err := model.CompileString(modelSrc, "pair.cue", cfg.GraphOptions(chain)...)
		require.NoError(t, err)
		opts, err := cfg.SamplerOptions(m)
		require.NoError(t, err)
		_, err = mcmc.New(m.Graph, opts...)
		require.NoError(t, err)
		a, _ := m.Vertex("a")
		return a.Value().Value()
	}

	assert.Equal(t, start(0), start(0))
	assert.NotEqual(t, start(0), start(1))
}
