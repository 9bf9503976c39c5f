package graph

import (
	"github.com/roach88/probgraph/internal/random"
	"github.com/roach88/probgraph/internal/tensor"
)

// Operation is the pure function behind a deterministic vertex.
//
// The operation set is closed (see package ops); the graph dispatches
// through this interface and never inspects concrete operation types.
type Operation interface {
	// Name identifies the operation in errors and model files.
	Name() string

	// Infer returns the output signature for the given input signatures,
	// failing on arity, shape or capability violations. It is called once
	// at construction so that structural errors surface before any value
	// is computed.
	Infer(inputs []tensor.Signature) (tensor.Signature, error)

	// Compute returns the output for the given input values.
	Compute(inputs []tensor.Tensor) (tensor.Tensor, error)
}

// DifferentiableOperation is an Operation with a local Jacobian.
// Operations that do not implement it are not differentiable.
type DifferentiableOperation interface {
	Operation

	// Jacobian returns d(output)/d(inputs[i]) laid out as
	// output-shape ⊗ input-shape. It may depend on the values.
	Jacobian(inputs []tensor.Tensor, output tensor.Tensor, i int) (tensor.Tensor, error)
}

// Distribution is the law behind a probabilistic vertex. Parameters are the
// values of the vertex's parents, in order.
type Distribution interface {
	// Name identifies the distribution in errors and model files.
	Name() string

	// Kind is the value kind of draws (Double for continuous laws).
	Kind() tensor.Kind

	// Check validates the parameter signatures against a value shape.
	Check(params []tensor.Signature, shape tensor.Shape) error

	// Sample draws a value of the given shape.
	Sample(r random.Source, params []tensor.Tensor, shape tensor.Shape) (tensor.Tensor, error)

	// LogProb returns the log density (or mass) of value, summed over
	// elements. Values outside the support yield -Inf, not an error.
	LogProb(value tensor.Tensor, params []tensor.Tensor) (float64, error)
}

// GradientDistribution is a Distribution whose log density is
// differentiable with respect to its value and parameters.
type GradientDistribution interface {
	Distribution

	// DLogProb returns the gradient of LogProb with respect to the value
	// (shaped like the value) and each parameter (shaped like the
	// parameter).
	DLogProb(value tensor.Tensor, params []tensor.Tensor) (tensor.Tensor, []tensor.Tensor, error)
}
