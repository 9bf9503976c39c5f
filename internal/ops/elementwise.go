package ops

import (
	"fmt"

	"github.com/roach88/probgraph/internal/tensor"
)

// elementwise is add, sub, mul or div with scalar broadcasting.
type elementwise struct {
	kind Kind
}

func (e elementwise) Name() string { return e.kind.String() }

func (e elementwise) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity(e.Name(), inputs, 2); err != nil {
		return tensor.Signature{}, err
	}
	for _, in := range inputs {
		if err := capable(e.Name(), in, tensor.Numeric); err != nil {
			return tensor.Signature{}, err
		}
	}
	shape, err := tensor.BroadcastShape(e.Name(), inputs[0].Shape, inputs[1].Shape)
	if err != nil {
		return tensor.Signature{}, err
	}
	kind := tensor.Double
	if e.kind != KindDiv && inputs[0].Kind == tensor.Integer && inputs[1].Kind == tensor.Integer {
		kind = tensor.Integer
	}
	return tensor.Signature{Shape: shape, Kind: kind}, nil
}

func (e elementwise) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	a, b := inputs[0], inputs[1]
	switch e.kind {
	case KindAdd:
		return a.Add(b)
	case KindSub:
		return a.Sub(b)
	case KindMul:
		return a.Mul(b)
	case KindDiv:
		return a.Div(b)
	default:
		return tensor.Tensor{}, fmt.Errorf("elementwise: unexpected kind %s", e.kind)
	}
}

func (e elementwise) Jacobian(inputs []tensor.Tensor, output tensor.Tensor, i int) (tensor.Tensor, error) {
	n := output.Size()
	a, b := broadcastData(inputs[0], n), broadcastData(inputs[1], n)
	d := make([]float64, n)
	for k := range d {
		switch {
		case e.kind == KindAdd:
			d[k] = 1
		case e.kind == KindSub && i == 0:
			d[k] = 1
		case e.kind == KindSub:
			d[k] = -1
		case e.kind == KindMul && i == 0:
			d[k] = b[k]
		case e.kind == KindMul:
			d[k] = a[k]
		case e.kind == KindDiv && i == 0:
			d[k] = 1 / b[k]
		case e.kind == KindDiv:
			d[k] = -a[k] / (b[k] * b[k])
		}
	}
	return elementwiseJacobian(output.Shape(), inputs[i].Shape(), d)
}
