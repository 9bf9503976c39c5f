package ops

import (
	"fmt"

	"github.com/roach88/probgraph/internal/tensor"
)

// greaterThan compares element-wise and yields a Boolean mask.
type greaterThan struct{}

func (greaterThan) Name() string { return KindGreaterThan.String() }

func (greaterThan) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity("gt", inputs, 2); err != nil {
		return tensor.Signature{}, err
	}
	for _, in := range inputs {
		if err := capable("gt", in, tensor.Numeric); err != nil {
			return tensor.Signature{}, err
		}
	}
	shape, err := tensor.BroadcastShape("gt", inputs[0].Shape, inputs[1].Shape)
	if err != nil {
		return tensor.Signature{}, err
	}
	return tensor.Signature{Shape: shape, Kind: tensor.Boolean}, nil
}

func (greaterThan) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	return inputs[0].GreaterThan(inputs[1])
}

// where selects between two branches with a Boolean mask. It is
// differentiable with respect to both branches; the mask receives a zero
// Jacobian.
type where struct{}

func (where) Name() string { return KindWhere.String() }

func (where) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity("where", inputs, 3); err != nil {
		return tensor.Signature{}, err
	}
	mask := inputs[0]
	if err := capable("where", mask, tensor.BooleanMaskable); err != nil {
		return tensor.Signature{}, err
	}
	kind := inputs[1].Kind
	for _, branch := range inputs[1:] {
		if !branch.Shape.Equal(mask.Shape) && !branch.Shape.IsScalar() {
			return tensor.Signature{}, &tensor.ShapeError{
				Op:      "where",
				Left:    mask.Shape,
				Right:   branch.Shape,
				Message: "branch must be scalar or match the mask",
			}
		}
		if branch.Kind != kind {
			kind = tensor.Double
		}
	}
	return tensor.Signature{Shape: mask.Shape.Clone(), Kind: kind}, nil
}

func (where) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	return tensor.Where(inputs[0], inputs[1], inputs[2])
}

func (where) Jacobian(inputs []tensor.Tensor, output tensor.Tensor, i int) (tensor.Tensor, error) {
	out, in := output.Shape(), inputs[i].Shape()
	if i == 0 {
		return tensor.Zeros(tensor.Concat(out, in)), nil
	}
	if i > 2 {
		return tensor.Tensor{}, fmt.Errorf("where has no input %d", i)
	}
	d := make([]float64, output.Size())
	for k := range d {
		selected := inputs[0].At(k) != 0
		if selected == (i == 1) {
			d[k] = 1
		}
	}
	return elementwiseJacobian(out, in, d)
}
