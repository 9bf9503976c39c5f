package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/tensor"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestChain builds a two-vertex chain with awkward values: a
// negative zero, a subnormal, and a non-terminating binary fraction.
func createTestChain(t *testing.T, index int) Chain {
	t.Helper()
	vec := func(a, b float64) tensor.Tensor {
		v, err := tensor.New(tensor.Shape{2}, []float64{a, b})
		require.NoError(t, err)
		return v
	}
	samples, err := mcmc.NewSamples(map[graph.ID][]tensor.Tensor{
		3: {tensor.Scalar(0.1), tensor.Scalar(math.Copysign(0, -1)), tensor.Scalar(5e-324)},
		7: {vec(1, 2), vec(1.0/3, -2), vec(0, 1e300)},
	}, []float64{-1.5, -0.3, -7})
	require.NoError(t, err)
	return Chain{
		Index:      index,
		Samples:    samples,
		Labels:     map[graph.ID]string{3: "a", 7: "w"},
		Acceptance: 0.4,
	}
}
