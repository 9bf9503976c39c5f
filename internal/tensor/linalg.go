package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatMul returns the matrix product of two rank-2 tensors.
func (t Tensor) MatMul(o Tensor) (Tensor, error) {
	if err := requireCapability("matmul", t.kind, Numeric); err != nil {
		return Tensor{}, err
	}
	if err := requireCapability("matmul", o.kind, Numeric); err != nil {
		return Tensor{}, err
	}
	if t.Rank() != 2 || o.Rank() != 2 || t.shape[1] != o.shape[0] {
		return Tensor{}, &ShapeError{Op: "matmul", Left: t.shape, Right: o.shape, Message: "inner dimensions do not agree"}
	}
	data := product(t.data, t.shape[0], t.shape[1], false, o.data, o.shape[1])
	return fromData(Shape{t.shape[0], o.shape[1]}, data, arithmeticKind(t.kind, o.kind)), nil
}

// ChainForward applies the chain rule in forward mode.
//
// jac is the local Jacobian of an output of shape out with respect to one
// input of shape in, laid out as out⊗in. partial is the derivative of that
// input with respect to some seed, laid out as in⊗wrt. The result is the
// output's contribution to its own partial, laid out as out⊗wrt.
func ChainForward(jac Tensor, out, in Shape, partial Tensor) (Tensor, error) {
	if err := checkJacobian("chain-forward", jac, out, in); err != nil {
		return Tensor{}, err
	}
	wrt, err := trailing("chain-forward", partial.shape, in)
	if err != nil {
		return Tensor{}, err
	}
	data := product(jac.data, out.Size(), in.Size(), false, partial.data, wrt.Size())
	return fromData(Concat(out, wrt), data, Double), nil
}

// ChainReverse applies the chain rule in reverse mode.
//
// jac is laid out as out⊗in like for ChainForward. acc is the derivative of
// some "of" vertex with respect to the output, laid out as out⊗of. The
// result is the vector-Jacobian product, the contribution to the derivative
// with respect to the input, laid out as in⊗of.
func ChainReverse(jac Tensor, out, in Shape, acc Tensor) (Tensor, error) {
	if err := checkJacobian("chain-reverse", jac, out, in); err != nil {
		return Tensor{}, err
	}
	of, err := trailing("chain-reverse", acc.shape, out)
	if err != nil {
		return Tensor{}, err
	}
	data := product(jac.data, out.Size(), in.Size(), true, acc.data, of.Size())
	return fromData(Concat(in, of), data, Double), nil
}

// SwapGroups converts a tensor laid out as a⊗b, where a is its first lead
// dimensions, into b⊗a. It turns a reverse-mode partial (wrt⊗of) into the
// forward-mode layout (of⊗wrt) and back.
func SwapGroups(t Tensor, lead int) (Tensor, error) {
	if lead < 0 || lead > t.Rank() {
		return Tensor{}, &ShapeError{Op: "swap-groups", Left: t.shape, Message: fmt.Sprintf("split %d out of range", lead)}
	}
	a, b := t.shape[:lead], t.shape[lead:]
	rows, cols := a.Size(), b.Size()
	m := mat.NewDense(rows, cols, t.data)
	var tr mat.Dense
	tr.CloneFrom(m.T())
	return fromData(Concat(b, a), rawData(&tr), t.kind), nil
}

// ContractTrailing sums t over its trailing dimensions weighted by v. With t
// laid out as a⊗v.Shape(), the result has shape a.
func ContractTrailing(t Tensor, v Tensor) (Tensor, error) {
	lead, err := leading("contract", t.shape, v.shape)
	if err != nil {
		return Tensor{}, err
	}
	data := product(t.data, lead.Size(), v.Size(), false, v.data, 1)
	return fromData(lead, data, Double), nil
}

func checkJacobian(op string, jac Tensor, out, in Shape) error {
	if jac.Size() != out.Size()*in.Size() {
		return &ShapeError{
			Op:      op,
			Left:    jac.shape,
			Right:   Concat(out, in),
			Message: "jacobian does not match output and input shapes",
		}
	}
	return nil
}

// trailing returns the dimensions of s after the prefix, which must match.
func trailing(op string, s, prefix Shape) (Shape, error) {
	if len(s) < len(prefix) || !s[:len(prefix)].Equal(prefix) {
		return nil, &ShapeError{Op: op, Left: s, Right: prefix, Message: "missing expected leading dimensions"}
	}
	return s[len(prefix):].Clone(), nil
}

// leading returns the dimensions of s before the suffix, which must match.
func leading(op string, s, suffix Shape) (Shape, error) {
	k := len(s) - len(suffix)
	if k < 0 || !s[k:].Equal(suffix) {
		return nil, &ShapeError{Op: op, Left: s, Right: suffix, Message: "missing expected trailing dimensions"}
	}
	return s[:k].Clone(), nil
}

// product multiplies a (ar×ac, or its transpose) by b (ac×bc or ar×bc when
// transposed) and returns the row-major result.
func product(a []float64, ar, ac int, transA bool, b []float64, bc int) []float64 {
	am := mat.NewDense(ar, ac, a)
	var left mat.Matrix = am
	inner := ac
	if transA {
		left = am.T()
		inner = ar
	}
	bm := mat.NewDense(inner, bc, b)
	var p mat.Dense
	p.Mul(left, bm)
	return rawData(&p)
}

// rawData copies a dense matrix into a fresh row-major slice.
func rawData(m *mat.Dense) []float64 {
	raw := m.RawMatrix()
	out := make([]float64, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		copy(out[i*raw.Cols:(i+1)*raw.Cols], raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols])
	}
	return out
}
