package mcmc

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/dist"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/ops"
	"github.com/roach88/probgraph/internal/random"
	"github.com/roach88/probgraph/internal/tensor"
)

// constantProposal always proposes the same values, with zero proposal
// log-densities in both directions.
type constantProposal map[graph.ID]tensor.Tensor

func (c constantProposal) Propose(_ *graph.Graph, vs []*graph.Vertex, _ random.Source) (*Proposal, error) {
	p := &Proposal{}
	for _, v := range vs {
		if to, ok := c[v.ID()]; ok {
			p.Add(v, to)
		}
	}
	return p, nil
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func constant(t *testing.T, g *graph.Graph, v float64) *graph.Vertex {
	t.Helper()
	c, err := g.Constant(tensor.Scalar(v))
	require.NoError(t, err)
	return c
}

func gaussian(t *testing.T, g *graph.Graph, mu, sigma *graph.Vertex) *graph.Vertex {
	t.Helper()
	v, err := g.Probabilistic(dist.Gaussian(), nil, mu, sigma)
	require.NoError(t, err)
	return v
}

// chainModel is A ~ N(0, 1) = 0.5, B = 2A, C ~ N(B, 1) observed 5.
type chainModel struct {
	g       *graph.Graph
	a, b, c *graph.Vertex
}

func newChainModel(t *testing.T, seed uint64) chainModel {
	t.Helper()
	g := graph.New(graph.WithRandom(random.New(seed)))
	zero := constant(t, g, 0)
	one := constant(t, g, 1)
	a := gaussian(t, g, zero, one)
	require.NoError(t, a.SetValue(tensor.Scalar(0.5)))
	b, err := g.Deterministic(ops.Mul(), constant(t, g, 2), a)
	require.NoError(t, err)
	c := gaussian(t, g, b, one)
	require.NoError(t, c.Observe(tensor.Scalar(5)))
	return chainModel{g: g, a: a, b: b, c: c}
}

// posteriorModel is A ~ N(0, 1), B ~ N(A, 1) observed 2. The posterior of
// A is N(1, 1/2).
func posteriorModel(t *testing.T, seed uint64) (*graph.Graph, *graph.Vertex) {
	t.Helper()
	g := graph.New(graph.WithRandom(random.New(seed)))
	one := constant(t, g, 1)
	a := gaussian(t, g, constant(t, g, 0), one)
	b := gaussian(t, g, a, one)
	require.NoError(t, b.Observe(tensor.Scalar(2)))
	return g, a
}

// values captures every vertex value.
func values(g *graph.Graph) map[graph.ID]tensor.Tensor {
	out := make(map[graph.ID]tensor.Tensor)
	for _, v := range g.Vertices() {
		out[v.ID()] = v.Value()
	}
	return out
}
