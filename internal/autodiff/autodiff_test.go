package autodiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/probgraph/internal/dist"
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/ops"
	"github.com/roach88/probgraph/internal/tensor"
)

// network is x ~ Gaussian (2×1 latent), m = W·x, y = exp(m)·sin(x), s = Σy.
// x reaches y along two paths.
type network struct {
	g          *graph.Graph
	x, m, y, s *graph.Vertex
}

func newNetwork(t *testing.T) network {
	t.Helper()
	g := graph.New()
	x := draw(t, g, dist.Gaussian(), tensor.Shape{2, 1}, constant(t, g, tensor.Scalar(0)), constant(t, g, tensor.Scalar(1)))
	w := constant(t, g, tensor.MustNew(tensor.Shape{2, 2}, []float64{0.5, -0.25, 0.75, 0.1}))
	m := apply(t, g, ops.MatMul(), w, x)
	y := apply(t, g, ops.Mul(), apply(t, g, ops.Exp(), m), apply(t, g, ops.Sin(), x))
	s := apply(t, g, ops.Sum(), y)

	require.NoError(t, x.SetValue(tensor.MustNew(tensor.Shape{2, 1}, []float64{0.3, -0.7})))
	require.NoError(t, g.Eval(s))
	return network{g: g, x: x, m: m, y: y, s: s}
}

// centralDifference returns d(of)/d(wrt) laid out as of⊗wrt.
func centralDifference(t *testing.T, g *graph.Graph, wrt, of *graph.Vertex, h float64) tensor.Tensor {
	t.Helper()
	base := wrt.Value()
	n, k := of.Value().Size(), base.Size()
	out := make([]float64, n*k)
	for j := 0; j < k; j++ {
		up, down := base.Data(), base.Data()
		up[j] += h
		down[j] -= h

		require.NoError(t, g.SetAndCascade(wrt, tensor.MustNew(base.Shape(), up)))
		hi := of.Value()
		require.NoError(t, g.SetAndCascade(wrt, tensor.MustNew(base.Shape(), down)))
		lo := of.Value()
		for i := 0; i < n; i++ {
			out[i*k+j] = (hi.At(i) - lo.At(i)) / (2 * h)
		}
	}
	require.NoError(t, g.SetAndCascade(wrt, base))
	return tensor.MustNew(tensor.Concat(of.Shape(), wrt.Shape()), out)
}

// =============================================================================
// Forward and reverse agreement
// =============================================================================

func TestForwardReverse_Agree(t *testing.T) {
	n := newNetwork(t)

	fwd, err := Forward(n.g, n.x, n.y, n.s)
	require.NoError(t, err)
	require.Equal(t, 2, fwd.Len())

	for _, of := range []*graph.Vertex{n.y, n.s} {
		f, ok := fwd.Get(of.ID())
		require.True(t, ok)
		assert.Equal(t, tensor.Concat(of.Shape(), n.x.Shape()), f.Shape())

		rev, err := Reverse(n.g, of, n.x)
		require.NoError(t, err)
		r, ok := rev.Get(n.x.ID())
		require.True(t, ok)
		assert.Equal(t, tensor.Concat(n.x.Shape(), of.Shape()), r.Shape())

		swapped, err := tensor.SwapGroups(r, n.x.Shape().Rank())
		require.NoError(t, err)
		assert.True(t, f.ApproxEqual(swapped, 1e-12), "of %s: forward %v, reverse %v", of.Name(), f, swapped)
	}
}

func TestForward_MatchesFiniteDifferences(t *testing.T) {
	n := newNetwork(t)
	fwd, err := Forward(n.g, n.x, n.y)
	require.NoError(t, err)
	exact, _ := fwd.Get(n.y.ID())

	// The error of a central difference shrinks with h².
	var prev float64 = math.Inf(1)
	for _, h := range []float64{1e-2, 1e-3, 1e-4} {
		approx := centralDifference(t, n.g, n.x, n.y, h)
		worst := 0.0
		for i := 0; i < exact.Size(); i++ {
			worst = math.Max(worst, math.Abs(exact.At(i)-approx.At(i)))
		}
		assert.Less(t, worst, prev, "h=%g", h)
		assert.Less(t, worst, 10*h*h, "h=%g", h)
		prev = worst
	}
}

func TestReverse_MatchesFiniteDifferences(t *testing.T) {
	n := newNetwork(t)
	rev, err := Reverse(n.g, n.s, n.x)
	require.NoError(t, err)
	r, _ := rev.Get(n.x.ID())

	approx := centralDifference(t, n.g, n.x, n.s, 1e-5)
	// s is a scalar, so wrt⊗of and of⊗wrt hold the same numbers.
	for i := 0; i < r.Size(); i++ {
		assert.InDelta(t, approx.At(i), r.At(i), 1e-7)
	}
}

// =============================================================================
// Reverse mode
// =============================================================================

func TestReverse_DiamondSumsContributions(t *testing.T) {
	g := graph.New()
	x := constant(t, g, tensor.Scalar(0))
	a := draw(t, g, dist.Gaussian(), nil, x, constant(t, g, tensor.Scalar(1)))
	require.NoError(t, a.SetValue(tensor.Scalar(1.5)))
	sq := apply(t, g, ops.Mul(), a, a)
	both := apply(t, g, ops.Add(), sq, apply(t, g, ops.Exp(), a))
	require.NoError(t, g.Eval(both))

	rev, err := Reverse(g, both, a)
	require.NoError(t, err)
	got, ok := rev.Get(a.ID())
	require.True(t, ok)
	assert.InDelta(t, 2*1.5+math.Exp(1.5), got.Value(), 1e-12)
}

func TestReverse_ObservedOfIsEmpty(t *testing.T) {
	g := graph.New()
	a := draw(t, g, dist.Gaussian(), nil, constant(t, g, tensor.Scalar(0)), constant(t, g, tensor.Scalar(1)))
	require.NoError(t, a.Observe(tensor.Scalar(1)))

	rev, err := Reverse(g, a, a)
	require.NoError(t, err)
	assert.Zero(t, rev.Len())
}

func TestReverse_StopsAtProbabilisticAndNonDifferentiable(t *testing.T) {
	g := graph.New()
	sigma := constant(t, g, tensor.Scalar(1))
	a := draw(t, g, dist.Gaussian(), nil, constant(t, g, tensor.Scalar(0)), sigma)
	b := draw(t, g, dist.Gaussian(), nil, a, sigma)
	fl := apply(t, g, ops.Floor(), a)
	out := apply(t, g, ops.Add(), b, fl)
	require.NoError(t, g.Eval(out))

	rev, err := Reverse(g, out, a, b)
	require.NoError(t, err)
	db, ok := rev.Get(b.ID())
	require.True(t, ok)
	assert.Equal(t, 1.0, db.Value())
	_, ok = rev.Get(a.ID())
	assert.False(t, ok, "neither b nor floor lets derivatives reach a")
}

func TestReverse_RecordsDeterministicWrtAndContinues(t *testing.T) {
	n := newNetwork(t)
	rev, err := Reverse(n.g, n.s, n.m, n.x)
	require.NoError(t, err)
	assert.Equal(t, []graph.ID{n.x.ID(), n.m.ID()}, rev.IDs())
}

// =============================================================================
// Forward mode
// =============================================================================

func TestForward_SeedAndUnreachable(t *testing.T) {
	n := newNetwork(t)
	sigma := constant(t, n.g, tensor.Scalar(1))
	far := draw(t, n.g, dist.Gaussian(), nil, n.s, sigma)

	fwd, err := Forward(n.g, n.x, n.x, far)
	require.NoError(t, err)
	self, ok := fwd.Get(n.x.ID())
	require.True(t, ok)
	assert.True(t, self.Equal(tensor.Identity(n.x.Shape())))
	_, ok = fwd.Get(far.ID())
	assert.False(t, ok, "forward mode never enters probabilistic children")
}

func TestForward_MissingValue(t *testing.T) {
	g := graph.New()
	a := draw(t, g, dist.Gaussian(), nil, constant(t, g, tensor.Scalar(0)), constant(t, g, tensor.Scalar(1)))
	_, err := Forward(g, a, a)
	assert.Equal(t, graph.ErrCodeMissingValue, graph.Code(err))
}

// =============================================================================
// Log-probability gradient
// =============================================================================

func TestLogProbGradient(t *testing.T) {
	// A ~ N(0, 1), B ~ N(2A, 1) observed:
	// d/dA [log N(a; 0, 1) + log N(b; 2a, 1)] = -a + 2(b - 2a).
	g := graph.New()
	zero := constant(t, g, tensor.Scalar(0))
	one := constant(t, g, tensor.Scalar(1))
	a := draw(t, g, dist.Gaussian(), nil, zero, one)
	twoA := apply(t, g, ops.Mul(), constant(t, g, tensor.Scalar(2)), a)
	b := draw(t, g, dist.Gaussian(), nil, twoA, one)

	const av, bv = 0.4, 1.3
	require.NoError(t, a.SetValue(tensor.Scalar(av)))
	require.NoError(t, b.Observe(tensor.Scalar(bv)))
	require.NoError(t, g.Eval(twoA))

	grad, err := LogProbGradient(g, []*graph.Vertex{a, b}, []*graph.Vertex{a})
	require.NoError(t, err)
	da, ok := grad.Get(a.ID())
	require.True(t, ok)
	assert.InDelta(t, -av+2*(bv-2*av), da.Value(), 1e-12)
}

func TestLogProbGradient_UnrelatedWrtIsZero(t *testing.T) {
	g := graph.New()
	one := constant(t, g, tensor.Scalar(1))
	a := draw(t, g, dist.Gaussian(), nil, one, one)
	other := draw(t, g, dist.Gaussian(), tensor.Shape{3}, one, one)
	require.NoError(t, g.Eval(a, other))

	grad, err := LogProbGradient(g, []*graph.Vertex{a}, []*graph.Vertex{other})
	require.NoError(t, err)
	d, _ := grad.Get(other.ID())
	assert.True(t, d.Equal(tensor.Zeros(tensor.Shape{3})))
}

func TestLogProbGradient_RequiresGradientDistribution(t *testing.T) {
	g := graph.New()
	one := constant(t, g, tensor.Scalar(1))
	a := draw(t, g, dist.Gamma(), nil, one, one)
	require.NoError(t, g.Eval(a))

	_, err := LogProbGradient(g, []*graph.Vertex{a}, []*graph.Vertex{a})
	assert.True(t, IsNotDifferentiable(err))
}
