package ops

import (
	"fmt"
	"math"

	"github.com/roach88/probgraph/internal/tensor"
)

// unary is neg, exp, log, sin or cos.
type unary struct {
	kind Kind
}

func (u unary) Name() string { return u.kind.String() }

func (u unary) need() tensor.Capability {
	if u.kind == KindNeg {
		return tensor.Numeric
	}
	return tensor.FloatingPoint
}

func (u unary) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity(u.Name(), inputs, 1); err != nil {
		return tensor.Signature{}, err
	}
	if err := capable(u.Name(), inputs[0], u.need()); err != nil {
		return tensor.Signature{}, err
	}
	return tensor.Signature{Shape: inputs[0].Shape.Clone(), Kind: tensor.Double}, nil
}

func (u unary) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	x := inputs[0]
	switch u.kind {
	case KindNeg:
		return x.Neg()
	case KindExp:
		return x.Exp()
	case KindLog:
		return x.Log()
	case KindSin:
		return x.Sin()
	case KindCos:
		return x.Cos()
	default:
		return tensor.Tensor{}, fmt.Errorf("unary: unexpected kind %s", u.kind)
	}
}

func (u unary) Jacobian(inputs []tensor.Tensor, output tensor.Tensor, _ int) (tensor.Tensor, error) {
	x := inputs[0]
	d := make([]float64, x.Size())
	for k := range d {
		v := x.At(k)
		switch u.kind {
		case KindNeg:
			d[k] = -1
		case KindExp:
			d[k] = output.At(k)
		case KindLog:
			d[k] = 1 / v
		case KindSin:
			d[k] = math.Cos(v)
		case KindCos:
			d[k] = -math.Sin(v)
		}
	}
	return elementwiseJacobian(output.Shape(), x.Shape(), d)
}

// floor rounds down. It is piecewise constant, so it has no useful
// Jacobian and is deliberately not differentiable.
type floor struct{}

func (floor) Name() string { return KindFloor.String() }

func (floor) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity("floor", inputs, 1); err != nil {
		return tensor.Signature{}, err
	}
	if err := capable("floor", inputs[0], tensor.Numeric); err != nil {
		return tensor.Signature{}, err
	}
	return tensor.Signature{Shape: inputs[0].Shape.Clone(), Kind: inputs[0].Kind}, nil
}

func (floor) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	return inputs[0].Floor()
}
