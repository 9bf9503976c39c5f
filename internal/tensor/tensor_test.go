package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Construction
// =============================================================================

func TestNew_CopiesData(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	x, err := New(Shape{2, 2}, data)
	require.NoError(t, err)

	data[0] = 99
	assert.Equal(t, 1.0, x.At(0), "tensor must not alias caller storage")
	assert.Equal(t, Shape{2, 2}, x.Shape())
	assert.Equal(t, Double, x.Kind())
}

func TestNew_RejectsWrongLength(t *testing.T) {
	_, err := New(Shape{2, 3}, []float64{1, 2})
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

func TestNew_RejectsZeroDimension(t *testing.T) {
	_, err := New(Shape{0}, nil)
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

func TestIdentity(t *testing.T) {
	id := Identity(Shape{2})
	assert.Equal(t, Shape{2, 2}, id.Shape())
	assert.Equal(t, []float64{1, 0, 0, 1}, id.Data())

	scalar := Identity(Shape{})
	assert.Equal(t, Shape{}, scalar.Shape())
	assert.Equal(t, 1.0, scalar.Value())
}

func TestZeroTensor_IsEmpty(t *testing.T) {
	var x Tensor
	assert.True(t, x.IsEmpty())
	assert.False(t, Scalar(0).IsEmpty())
}

// =============================================================================
// Arithmetic
// =============================================================================

func TestAdd_ScalarBroadcast(t *testing.T) {
	x := Vector(1, 2, 3)
	out, err := x.Add(Scalar(10))
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12, 13}, out.Data())

	out, err = Scalar(1).Sub(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, -2}, out.Data())
	assert.Equal(t, []float64{1, 2, 3}, x.Data(), "operands are never mutated")
}

func TestAdd_ShapeMismatch(t *testing.T) {
	_, err := Vector(1, 2).Add(Vector(1, 2, 3))
	require.Error(t, err)
	assert.True(t, IsShapeError(err))
}

func TestArithmetic_KindPropagation(t *testing.T) {
	a := Vector(1, 2).AsKind(Integer)
	b := Vector(3, 4).AsKind(Integer)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, Integer, sum.Kind())

	quot, err := a.Div(b)
	require.NoError(t, err)
	assert.Equal(t, Double, quot.Kind())
}

func TestCapabilities(t *testing.T) {
	assert.True(t, Double.Has(Numeric|FloatingPoint))
	assert.True(t, Integer.Has(Numeric))
	assert.False(t, Integer.Has(FloatingPoint))
	assert.True(t, Boolean.Has(BooleanMaskable))
	assert.False(t, Boolean.Has(Numeric))

	_, err := Vector(1, 0).AsKind(Boolean).Add(Vector(1, 1))
	require.Error(t, err)
	assert.True(t, IsCapabilityError(err))

	_, err = Scalar(2).AsKind(Integer).Exp()
	require.Error(t, err)
	assert.True(t, IsCapabilityError(err))
}

func TestRequireCapability(t *testing.T) {
	assert.NoError(t, requireCapability("add", Integer, Numeric))

	err := requireCapability("log", Integer, FloatingPoint)
	var ce *CapabilityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "log", ce.Op)
	assert.Equal(t, Integer, ce.Kind)
	assert.Equal(t, FloatingPoint, ce.Need)
}

func TestWhere(t *testing.T) {
	mask, err := Vector(1, 5, 3).GreaterThan(Scalar(2))
	require.NoError(t, err)
	assert.Equal(t, Boolean, mask.Kind())

	out, err := Where(mask, Vector(10, 20, 30), Scalar(-1))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 20, 30}, out.Data())

	_, err = Where(Vector(1, 0), Scalar(1), Scalar(2))
	assert.True(t, IsCapabilityError(err), "double mask is not boolean-maskable")
}

func TestAddInPlace_MutatesReceiverOnly(t *testing.T) {
	acc := Zeros(Shape{2})
	require.NoError(t, acc.AddInPlace(Vector(1, 2)))
	require.NoError(t, acc.AddInPlace(Vector(3, 4)))
	assert.Equal(t, []float64{4, 6}, acc.Data())

	err := acc.AddInPlace(Scalar(1))
	assert.True(t, IsShapeError(err))
}

func TestEqual_BitForBit(t *testing.T) {
	nan := Scalar(math.NaN())
	assert.True(t, nan.Equal(nan))
	assert.False(t, Scalar(0).Equal(Scalar(math.Copysign(0, -1))))
	assert.False(t, Vector(1).Equal(Scalar(1)), "shape participates in equality")
}

// =============================================================================
// Linear algebra
// =============================================================================

func TestMatMul(t *testing.T) {
	a := MustNew(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b := MustNew(Shape{3, 1}, []float64{1, 0, -1})
	out, err := a.MatMul(b)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 1}, out.Shape())
	assert.Equal(t, []float64{-2, -2}, out.Data())

	_, err = a.MatMul(a)
	assert.True(t, IsShapeError(err))
}

func TestChainForward(t *testing.T) {
	// y = 2x for x in R^2, dx/dw = [1, 3] for scalar w.
	jac := MustNew(Shape{2, 2}, []float64{2, 0, 0, 2})
	partial := MustNew(Shape{2}, []float64{1, 3})

	out, err := ChainForward(jac, Shape{2}, Shape{2}, partial)
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, out.Shape())
	assert.Equal(t, []float64{2, 6}, out.Data())
}

func TestChainReverse(t *testing.T) {
	// y = sum(x) for x in R^3; d(of)/dy = 1.
	jac := MustNew(Shape{3}, []float64{1, 1, 1})
	acc := Identity(Shape{})

	out, err := ChainReverse(jac, Shape{}, Shape{3}, acc)
	require.NoError(t, err)
	assert.Equal(t, Shape{3}, out.Shape())
	assert.Equal(t, []float64{1, 1, 1}, out.Data())
}

func TestChainForward_RejectsBadJacobian(t *testing.T) {
	_, err := ChainForward(Vector(1, 2, 3), Shape{2}, Shape{2}, Vector(1, 1))
	assert.True(t, IsShapeError(err))
}

func TestSwapGroups(t *testing.T) {
	x := MustNew(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	out, err := SwapGroups(x, 1)
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, out.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, out.Data())

	back, err := SwapGroups(out, 1)
	require.NoError(t, err)
	assert.True(t, back.Equal(x))
}

func TestContractTrailing(t *testing.T) {
	x := MustNew(Shape{2, 2}, []float64{1, 2, 3, 4})
	out, err := ContractTrailing(x, Vector(1, -1))
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, out.Shape())
	assert.Equal(t, []float64{-1, -1}, out.Data())
}
