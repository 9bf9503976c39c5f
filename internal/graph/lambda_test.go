package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/ops"
	"github.com/roach88/probgraph/internal/tensor"
)

type chain struct {
	g                *Graph
	l1, f, l2, gv, o *Vertex
	sigma            *Vertex
}

// newChain builds L1 -> f -> L2 -> g -> O with O observed.
func newChain(t *testing.T) chain {
	t.Helper()
	g := New()
	mu := scalar(t, g, 0)
	sigma := scalar(t, g, 1)
	l1 := gaussian(t, g, mu, sigma)
	f := apply(t, g, ops.Exp(), l1)
	l2 := gaussian(t, g, f, sigma)
	gv := apply(t, g, ops.Neg(), l2)
	o := gaussian(t, g, gv, sigma)
	require.NoError(t, o.Observe(tensor.Scalar(1)))
	return chain{g: g, l1: l1, f: f, l2: l2, gv: gv, o: o, sigma: sigma}
}

func TestDownstreamLambdaSection_StopsAtProbabilisticBoundary(t *testing.T) {
	c := newChain(t)

	s, err := c.g.DownstreamLambdaSection([]*Vertex{c.l1}, true)
	require.NoError(t, err)
	assert.Equal(t, []ID{c.f.ID(), c.l2.ID()}, s.Vertices(), "g and O lie past the boundary")
	assert.Equal(t, []ID{c.l2.ID()}, s.Boundary())
	assert.Equal(t, []ID{c.l1.ID()}, s.Origin())
	assert.Equal(t, []ID{c.l1.ID(), c.l2.ID()}, s.Probabilistic())
	assert.True(t, s.Contains(c.f.ID()))
	assert.False(t, s.Contains(c.gv.ID()))

	without, err := c.g.DownstreamLambdaSection([]*Vertex{c.l1}, false)
	require.NoError(t, err)
	assert.Equal(t, []ID{c.f.ID()}, without.Vertices())
	assert.Equal(t, []ID{c.l2.ID()}, without.Boundary(), "boundary is reported either way")
	assert.False(t, without.IncludesBoundary())
}

func TestDownstreamLambdaSection_ObservedIsBoundary(t *testing.T) {
	c := newChain(t)
	s, err := c.g.DownstreamLambdaSection([]*Vertex{c.l2}, true)
	require.NoError(t, err)
	assert.Equal(t, []ID{c.gv.ID(), c.o.ID()}, s.Vertices())
	assert.Equal(t, []ID{c.o.ID()}, s.Boundary())
}

func TestUpstreamLambdaSection(t *testing.T) {
	c := newChain(t)
	s, err := c.g.UpstreamLambdaSection([]*Vertex{c.o}, true)
	require.NoError(t, err)
	// Parents of O are g and sigma; g's parent L2 is the boundary.
	assert.Equal(t, []ID{c.sigma.ID(), c.l2.ID(), c.gv.ID()}, s.Vertices())
	assert.Equal(t, []ID{c.l2.ID()}, s.Boundary())
}

func TestLambdaSection_Union(t *testing.T) {
	c := newChain(t)
	s1, err := c.g.DownstreamLambdaSection([]*Vertex{c.l1}, true)
	require.NoError(t, err)
	s2, err := c.g.DownstreamLambdaSection([]*Vertex{c.l2}, true)
	require.NoError(t, err)

	u := s1.Union(s2)
	assert.Equal(t, []ID{c.l1.ID(), c.l2.ID()}, u.Origin())
	assert.Equal(t, []ID{c.f.ID(), c.gv.ID(), c.o.ID()}, u.Vertices(), "an origin is never a reachable vertex")
	assert.Equal(t, []ID{c.o.ID()}, u.Boundary())
	assert.Equal(t, []ID{c.l1.ID(), c.l2.ID(), c.o.ID()}, u.Probabilistic())

	joint, err := c.g.DownstreamLambdaSection([]*Vertex{c.l1, c.l2}, true)
	require.NoError(t, err)
	assert.Equal(t, u.Vertices(), joint.Vertices())
	assert.Equal(t, u.Probabilistic(), joint.Probabilistic())
}

func TestLambdaSection_Affected(t *testing.T) {
	c := newChain(t)
	s, err := c.g.DownstreamLambdaSection([]*Vertex{c.l1}, false)
	require.NoError(t, err)
	assert.Equal(t, []ID{c.l1.ID(), c.f.ID(), c.l2.ID()}, s.Affected())
}

func TestLambdaSection_NoSideEffects(t *testing.T) {
	c := newChain(t)
	before := c.l1.Children()
	_, err := c.g.DownstreamLambdaSection([]*Vertex{c.l1}, true)
	require.NoError(t, err)
	assert.Equal(t, before, c.l1.Children())
	assert.False(t, c.f.HasValue(), "analysis never evaluates")
}
