package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/dist"
	"github.com/roach88/probgraph/internal/ops"
	"github.com/roach88/probgraph/internal/tensor"
)

// counting wraps an operation and counts Compute calls.
type counting struct {
	ops.Op
	calls int
}

func (c *counting) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	c.calls++
	return c.Op.Compute(inputs)
}

func scalar(t *testing.T, g *Graph, v float64) *Vertex {
	t.Helper()
	c, err := g.Constant(tensor.Scalar(v))
	require.NoError(t, err)
	return c
}

func apply(t *testing.T, g *Graph, op Operation, parents ...*Vertex) *Vertex {
	t.Helper()
	v, err := g.Deterministic(op, parents...)
	require.NoError(t, err)
	return v
}

func gaussian(t *testing.T, g *Graph, mu, sigma *Vertex) *Vertex {
	t.Helper()
	v, err := g.Probabilistic(dist.Gaussian(), nil, mu, sigma)
	require.NoError(t, err)
	return v
}

func labelled(t *testing.T, g *Graph, v *Vertex, label string) *Vertex {
	t.Helper()
	require.NoError(t, g.SetLabel(v, label))
	return v
}
