package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tensor is an immutable dense array of float64 values with a shape and a
// value kind. The zero Tensor is empty and represents "no value".
type Tensor struct {
	shape Shape
	data  []float64
	kind  Kind
}

// New copies data into a Double tensor of the given shape.
func New(shape Shape, data []float64) (Tensor, error) {
	if err := shape.Validate(); err != nil {
		return Tensor{}, err
	}
	if len(data) != shape.Size() {
		return Tensor{}, &ShapeError{
			Op:      "new",
			Left:    shape,
			Message: fmt.Sprintf("got %d values for %d elements", len(data), shape.Size()),
		}
	}
	out := make([]float64, len(data))
	copy(out, data)
	return Tensor{shape: shape.Clone(), data: out}, nil
}

// MustNew is New for literals known to be well formed. It panics on error.
func MustNew(shape Shape, data []float64) Tensor {
	t, err := New(shape, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Scalar returns a rank-0 Double tensor.
func Scalar(v float64) Tensor {
	return Tensor{shape: Shape{}, data: []float64{v}}
}

// Vector returns a rank-1 Double tensor holding vs.
func Vector(vs ...float64) Tensor {
	if len(vs) == 0 {
		return Tensor{}
	}
	return MustNew(Shape{len(vs)}, vs)
}

// Full returns a Double tensor of the given shape with every element v.
func Full(shape Shape, v float64) Tensor {
	data := make([]float64, shape.Size())
	for i := range data {
		data[i] = v
	}
	return Tensor{shape: shape.Clone(), data: data}
}

// Zeros returns a Double tensor of zeros.
func Zeros(shape Shape) Tensor {
	return Tensor{shape: shape.Clone(), data: make([]float64, shape.Size())}
}

// Identity returns the derivative of a value of the given shape with respect
// to itself: a tensor of shape shape⊗shape with ones on the diagonal.
func Identity(shape Shape) Tensor {
	n := shape.Size()
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return Tensor{shape: Concat(shape, shape), data: data}
}

// fromData wraps data without copying. data must not be shared.
func fromData(shape Shape, data []float64, kind Kind) Tensor {
	return Tensor{shape: shape.Clone(), data: data, kind: kind}
}

// IsEmpty reports whether t holds no value.
func (t Tensor) IsEmpty() bool {
	return t.data == nil
}

// Shape returns a copy of the tensor's shape.
func (t Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Kind returns the value kind.
func (t Tensor) Kind() Kind {
	return t.kind
}

// AsKind returns t relabelled with kind k. Storage is shared, which is safe
// because tensors are immutable.
func (t Tensor) AsKind(k Kind) Tensor {
	t.kind = k
	return t
}

// Size returns the number of elements.
func (t Tensor) Size() int {
	return len(t.data)
}

// Rank returns the number of dimensions.
func (t Tensor) Rank() int {
	return len(t.shape)
}

// At returns the i-th element in row-major order.
func (t Tensor) At(i int) float64 {
	return t.data[i]
}

// Value returns the single element of a size-1 tensor.
// Panics if the tensor holds more than one element.
func (t Tensor) Value() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Value called on tensor of shape %s", t.shape))
	}
	return t.data[0]
}

// Data returns a copy of the elements in row-major order.
func (t Tensor) Data() []float64 {
	out := make([]float64, len(t.data))
	copy(out, t.data)
	return out
}

// Reshape returns a tensor with the same elements and a new shape.
func (t Tensor) Reshape(shape Shape) (Tensor, error) {
	if shape.Size() != len(t.data) {
		return Tensor{}, &ShapeError{Op: "reshape", Left: t.shape, Right: shape, Message: "element counts differ"}
	}
	return Tensor{shape: shape.Clone(), data: t.data, kind: t.kind}, nil
}

// Equal reports bit-for-bit equality of shape, kind and elements.
// NaN equals NaN when the bit patterns match.
func (t Tensor) Equal(o Tensor) bool {
	if t.kind != o.kind || !t.shape.Equal(o.shape) || len(t.data) != len(o.data) {
		return false
	}
	for i := range t.data {
		if math.Float64bits(t.data[i]) != math.Float64bits(o.data[i]) {
			return false
		}
	}
	return true
}

// ApproxEqual reports whether shapes match and every element is within tol
// (absolute or relative).
func (t Tensor) ApproxEqual(o Tensor, tol float64) bool {
	if !t.shape.Equal(o.shape) {
		return false
	}
	return floats.EqualApprox(t.data, o.data, tol)
}

func (t Tensor) String() string {
	if t.IsEmpty() {
		return "<empty>"
	}
	if len(t.shape) == 0 {
		return fmt.Sprintf("%g", t.data[0])
	}
	return fmt.Sprintf("%s%v", t.shape, t.data)
}

// =============================================================================
// Numeric
// =============================================================================

// Add returns t + o.
func (t Tensor) Add(o Tensor) (Tensor, error) {
	return t.binary("add", o, floats.Add)
}

// Sub returns t - o.
func (t Tensor) Sub(o Tensor) (Tensor, error) {
	return t.binary("sub", o, floats.Sub)
}

// Mul returns the element-wise product.
func (t Tensor) Mul(o Tensor) (Tensor, error) {
	return t.binary("mul", o, floats.Mul)
}

// Div returns the element-wise quotient. The result is always Double.
func (t Tensor) Div(o Tensor) (Tensor, error) {
	out, err := t.binary("div", o, floats.Div)
	if err != nil {
		return Tensor{}, err
	}
	return out.AsKind(Double), nil
}

// binary applies an in-place gonum kernel to a fresh copy of the broadcast
// left operand.
func (t Tensor) binary(op string, o Tensor, kernel func(dst, s []float64)) (Tensor, error) {
	if err := requireCapability(op, t.kind, Numeric); err != nil {
		return Tensor{}, err
	}
	if err := requireCapability(op, o.kind, Numeric); err != nil {
		return Tensor{}, err
	}
	shape, err := BroadcastShape(op, t.shape, o.shape)
	if err != nil {
		return Tensor{}, err
	}
	n := shape.Size()
	dst := expand(t.data, n)
	kernel(dst, expandShared(o.data, n))
	return fromData(shape, dst, arithmeticKind(t.kind, o.kind)), nil
}

// BroadcastShape returns the result shape of a binary element-wise operation
// on a and b. Only scalar-with-tensor broadcasting is supported.
func BroadcastShape(op string, a, b Shape) (Shape, error) {
	switch {
	case a.Equal(b):
		return a, nil
	case a.IsScalar() && len(a) == 0:
		return b, nil
	case b.IsScalar() && len(b) == 0:
		return a, nil
	case a.IsScalar() && b.IsScalar():
		if len(a) >= len(b) {
			return a, nil
		}
		return b, nil
	case a.IsScalar():
		return b, nil
	case b.IsScalar():
		return a, nil
	default:
		return nil, mismatch(op, a, b)
	}
}

// expand returns a fresh slice of length n, repeating a single element if
// data is a scalar.
func expand(data []float64, n int) []float64 {
	out := make([]float64, n)
	if len(data) == 1 {
		for i := range out {
			out[i] = data[0]
		}
		return out
	}
	copy(out, data)
	return out
}

// expandShared is expand without copying when no broadcast is needed.
func expandShared(data []float64, n int) []float64 {
	if len(data) == n {
		return data
	}
	return expand(data, n)
}

// Neg returns -t.
func (t Tensor) Neg() (Tensor, error) {
	if err := requireCapability("neg", t.kind, Numeric); err != nil {
		return Tensor{}, err
	}
	return t.Scale(-1), nil
}

// Scale returns c*t as a Double tensor.
func (t Tensor) Scale(c float64) Tensor {
	out := t.Data()
	floats.Scale(c, out)
	return fromData(t.shape, out, Double)
}

// Floor rounds every element down. The result keeps the Double kind so
// that it can feed floating-point operations.
func (t Tensor) Floor() (Tensor, error) {
	if err := requireCapability("floor", t.kind, Numeric); err != nil {
		return Tensor{}, err
	}
	return t.Map(math.Floor).AsKind(t.kind), nil
}

// Sum returns the sum of all elements.
func (t Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Map applies f element-wise and returns a Double tensor.
func (t Tensor) Map(f func(float64) float64) Tensor {
	out := make([]float64, len(t.data))
	for i, v := range t.data {
		out[i] = f(v)
	}
	return fromData(t.shape, out, Double)
}

// AddInPlace adds o into t's storage. Shapes must match exactly.
//
// CRITICAL: every tensor sharing t's storage observes the change. Only call
// this on a tensor the caller allocated and has not handed out.
func (t Tensor) AddInPlace(o Tensor) error {
	if !t.shape.Equal(o.shape) {
		return mismatch("add-in-place", t.shape, o.shape)
	}
	floats.Add(t.data, o.data)
	return nil
}

// =============================================================================
// FloatingPoint
// =============================================================================

// Exp returns e^t.
func (t Tensor) Exp() (Tensor, error) {
	return t.floating("exp", math.Exp)
}

// Log returns the natural logarithm.
func (t Tensor) Log() (Tensor, error) {
	return t.floating("log", math.Log)
}

// Sin returns the element-wise sine.
func (t Tensor) Sin() (Tensor, error) {
	return t.floating("sin", math.Sin)
}

// Cos returns the element-wise cosine.
func (t Tensor) Cos() (Tensor, error) {
	return t.floating("cos", math.Cos)
}

func (t Tensor) floating(op string, f func(float64) float64) (Tensor, error) {
	if err := requireCapability(op, t.kind, FloatingPoint); err != nil {
		return Tensor{}, err
	}
	return t.Map(f), nil
}

// =============================================================================
// BooleanMaskable
// =============================================================================

// GreaterThan returns a Boolean tensor with 1 where t > o.
func (t Tensor) GreaterThan(o Tensor) (Tensor, error) {
	out, err := t.binary("gt", o, func(dst, s []float64) {
		for i := range dst {
			if dst[i] > s[i] {
				dst[i] = 1
			} else {
				dst[i] = 0
			}
		}
	})
	if err != nil {
		return Tensor{}, err
	}
	return out.AsKind(Boolean), nil
}

// Where selects a where mask is non-zero and b elsewhere. a and b may be
// scalars; otherwise their shapes must equal the mask's.
func Where(mask, a, b Tensor) (Tensor, error) {
	if err := requireCapability("where", mask.kind, BooleanMaskable); err != nil {
		return Tensor{}, err
	}
	for _, branch := range []Tensor{a, b} {
		if !branch.shape.Equal(mask.shape) && !branch.shape.IsScalar() {
			return Tensor{}, mismatch("where", mask.shape, branch.shape)
		}
	}
	n := len(mask.data)
	av, bv := expandShared(a.data, n), expandShared(b.data, n)
	out := make([]float64, n)
	for i, m := range mask.data {
		if m != 0 {
			out[i] = av[i]
		} else {
			out[i] = bv[i]
		}
	}
	kind := a.kind
	if a.kind != b.kind {
		kind = Double
	}
	return fromData(mask.shape, out, kind), nil
}
