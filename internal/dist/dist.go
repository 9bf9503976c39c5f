// Package dist provides the distributions behind probabilistic vertices.
//
// Each distribution is a family of univariate gonum distuv laws applied
// element-wise: parameters are scalars or tensors shaped like the value, and
// the log-probability of a tensor is the sum over its elements. Draws read
// from the injected random source only, so a fixed seed reproduces them.
//
// Out-of-support values and invalid parameters give a log-probability of
// -Inf rather than an error. Sampling with invalid parameters is an error
// because there is no value to return.
package dist

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/probgraph/internal/random"
	"github.com/roach88/probgraph/internal/tensor"
)

// Dist matches the graph package's Distribution interface.
type Dist interface {
	Name() string
	Kind() tensor.Kind
	Check(params []tensor.Signature, shape tensor.Shape) error
	Sample(r random.Source, params []tensor.Tensor, shape tensor.Shape) (tensor.Tensor, error)
	LogProb(value tensor.Tensor, params []tensor.Tensor) (float64, error)
}

// family is an element-wise distribution built from one distuv law per
// element.
type family struct {
	name   string
	params []string
	kind   tensor.Kind

	// build returns the law for one element's parameters, false if the
	// parameters are outside the family's domain.
	build func(p []float64, src rand.Source) (distuv.RandLogProber, bool)
}

// differentiable adds a log-density gradient to a family.
type differentiable struct {
	family

	// grad returns d(log p)/dx and d(log p)/dp for one element.
	grad func(x float64, p []float64) (float64, []float64)
}

func (f family) Name() string      { return f.name }
func (f family) Kind() tensor.Kind { return f.kind }

// Params lists the parameter names in order.
func (f family) Params() []string { return append([]string(nil), f.params...) }

func (f family) Check(params []tensor.Signature, shape tensor.Shape) error {
	if len(params) != len(f.params) {
		return fmt.Errorf("%s takes %d parameters %v, got %d", f.name, len(f.params), f.params, len(params))
	}
	for i, p := range params {
		if !p.Kind.Has(tensor.Numeric) {
			return &tensor.CapabilityError{Op: f.name + "." + f.params[i], Kind: p.Kind, Need: tensor.Numeric}
		}
		if !p.Shape.Equal(shape) && !p.Shape.IsScalar() {
			return &tensor.ShapeError{
				Op:      f.name + "." + f.params[i],
				Left:    shape,
				Right:   p.Shape,
				Message: "parameter must be scalar or shaped like the value",
			}
		}
	}
	return nil
}

func (f family) Sample(r random.Source, params []tensor.Tensor, shape tensor.Shape) (tensor.Tensor, error) {
	n := shape.Size()
	out := make([]float64, n)
	p := make([]float64, len(params))
	for k := range out {
		at(params, k, p)
		law, ok := f.build(p, r)
		if !ok {
			return tensor.Tensor{}, fmt.Errorf("%s: parameters %v out of domain", f.name, p)
		}
		out[k] = law.Rand()
	}
	t, err := tensor.New(shape, out)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return t.AsKind(f.kind), nil
}

func (f family) LogProb(value tensor.Tensor, params []tensor.Tensor) (float64, error) {
	if err := f.checkValues(value, params); err != nil {
		return 0, err
	}
	total := 0.0
	p := make([]float64, len(params))
	for k := 0; k < value.Size(); k++ {
		at(params, k, p)
		law, ok := f.build(p, nil)
		if !ok {
			return math.Inf(-1), nil
		}
		total += law.LogProb(value.At(k))
		if math.IsInf(total, -1) {
			return total, nil
		}
	}
	return total, nil
}

// DLogProb returns the gradient of LogProb with respect to the value and
// each parameter. Scalar parameters accumulate the contributions of every
// element.
func (d differentiable) DLogProb(value tensor.Tensor, params []tensor.Tensor) (tensor.Tensor, []tensor.Tensor, error) {
	if err := d.checkValues(value, params); err != nil {
		return tensor.Tensor{}, nil, err
	}
	n := value.Size()
	dx := make([]float64, n)
	dp := make([][]float64, len(params))
	for i, param := range params {
		dp[i] = make([]float64, param.Size())
	}

	p := make([]float64, len(params))
	for k := 0; k < n; k++ {
		at(params, k, p)
		gx, gp := d.grad(value.At(k), p)
		dx[k] = gx
		for i := range params {
			if len(dp[i]) == 1 {
				dp[i][0] += gp[i]
			} else {
				dp[i][k] += gp[i]
			}
		}
	}

	dValue, err := tensor.New(value.Shape(), dx)
	if err != nil {
		return tensor.Tensor{}, nil, err
	}
	dParams := make([]tensor.Tensor, len(params))
	for i, param := range params {
		if dParams[i], err = tensor.New(param.Shape(), dp[i]); err != nil {
			return tensor.Tensor{}, nil, err
		}
	}
	return dValue, dParams, nil
}

func (f family) checkValues(value tensor.Tensor, params []tensor.Tensor) error {
	sigs := make([]tensor.Signature, len(params))
	for i, p := range params {
		sigs[i] = p.Signature()
	}
	return f.Check(sigs, value.Shape())
}

// at fills p with the k-th element of each (possibly scalar) parameter.
func at(params []tensor.Tensor, k int, p []float64) {
	for i, param := range params {
		if param.Size() == 1 {
			p[i] = param.At(0)
		} else {
			p[i] = param.At(k)
		}
	}
}

// =============================================================================
// Registry
// =============================================================================

var registry = map[string]func() Dist{
	"gaussian":    func() Dist { return Gaussian() },
	"uniform":     func() Dist { return Uniform() },
	"exponential": func() Dist { return Exponential() },
	"gamma":       func() Dist { return Gamma() },
	"poisson":     func() Dist { return Poisson() },
	"bernoulli":   func() Dist { return Bernoulli() },
}

// Lookup returns the distribution with the given name.
func Lookup(name string) (Dist, bool) {
	mk, ok := registry[name]
	if !ok {
		return nil, false
	}
	return mk(), true
}

// Names lists every distribution name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
