package ops

import (
	"fmt"

	"github.com/roach88/probgraph/internal/tensor"
)

// sum reduces a tensor to a scalar.
type sum struct{}

func (sum) Name() string { return KindSum.String() }

func (sum) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity("sum", inputs, 1); err != nil {
		return tensor.Signature{}, err
	}
	if err := capable("sum", inputs[0], tensor.Numeric); err != nil {
		return tensor.Signature{}, err
	}
	return tensor.Signature{Shape: tensor.Shape{}, Kind: inputs[0].Kind}, nil
}

func (sum) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	return tensor.Scalar(inputs[0].Sum()), nil
}

func (sum) Jacobian(inputs []tensor.Tensor, _ tensor.Tensor, _ int) (tensor.Tensor, error) {
	return tensor.Full(inputs[0].Shape(), 1), nil
}

// matmul multiplies two rank-2 tensors.
type matmul struct{}

func (matmul) Name() string { return KindMatMul.String() }

func (matmul) Infer(inputs []tensor.Signature) (tensor.Signature, error) {
	if err := arity("matmul", inputs, 2); err != nil {
		return tensor.Signature{}, err
	}
	a, b := inputs[0], inputs[1]
	for _, in := range inputs {
		if err := capable("matmul", in, tensor.Numeric); err != nil {
			return tensor.Signature{}, err
		}
	}
	if a.Shape.Rank() != 2 || b.Shape.Rank() != 2 || a.Shape[1] != b.Shape[0] {
		return tensor.Signature{}, &tensor.ShapeError{
			Op:      "matmul",
			Left:    a.Shape,
			Right:   b.Shape,
			Message: "inner dimensions do not agree",
		}
	}
	kind := tensor.Double
	if a.Kind == tensor.Integer && b.Kind == tensor.Integer {
		kind = tensor.Integer
	}
	return tensor.Signature{Shape: tensor.Shape{a.Shape[0], b.Shape[1]}, Kind: kind}, nil
}

func (matmul) Compute(inputs []tensor.Tensor) (tensor.Tensor, error) {
	return inputs[0].MatMul(inputs[1])
}

// Jacobian of C = AB: dC[i,j]/dA[p,q] = δ(i,p)·B[q,j] and
// dC[i,j]/dB[p,q] = A[i,p]·δ(q,j).
func (matmul) Jacobian(inputs []tensor.Tensor, _ tensor.Tensor, wrt int) (tensor.Tensor, error) {
	a, b := inputs[0], inputs[1]
	as, bs := a.Shape(), b.Shape()
	m, k, n := as[0], as[1], bs[1]

	switch wrt {
	case 0:
		data := make([]float64, m*n*m*k)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				row := (i*n + j) * m * k
				for q := 0; q < k; q++ {
					data[row+i*k+q] = b.At(q*n + j)
				}
			}
		}
		return tensor.New(tensor.Shape{m, n, m, k}, data)
	case 1:
		data := make([]float64, m*n*k*n)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				row := (i*n + j) * k * n
				for p := 0; p < k; p++ {
					data[row+p*n+j] = a.At(i*k + p)
				}
			}
		}
		return tensor.New(tensor.Shape{m, n, k, n}, data)
	default:
		return tensor.Tensor{}, fmt.Errorf("matmul has no input %d", wrt)
	}
}
