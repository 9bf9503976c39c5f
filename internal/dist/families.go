package dist

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/probgraph/internal/tensor"
)

// Gaussian is the normal distribution with parameters (mu, sigma).
func Gaussian() Dist {
	return differentiable{
		family: family{
			name:   "gaussian",
			params: []string{"mu", "sigma"},
			kind:   tensor.Double,
			build: func(p []float64, src rand.Source) (distuv.RandLogProber, bool) {
				if !(p[1] > 0) {
					return nil, false
				}
				return distuv.Normal{Mu: p[0], Sigma: p[1], Src: src}, true
			},
		},
		grad: func(x float64, p []float64) (float64, []float64) {
			mu, sigma := p[0], p[1]
			if !(sigma > 0) {
				return 0, []float64{0, 0}
			}
			z := (x - mu) / sigma
			dx := -z / sigma
			return dx, []float64{-dx, (z*z - 1) / sigma}
		},
	}
}

// Uniform is the continuous uniform distribution on [lo, hi].
func Uniform() Dist {
	return differentiable{
		family: family{
			name:   "uniform",
			params: []string{"lo", "hi"},
			kind:   tensor.Double,
			build: func(p []float64, src rand.Source) (distuv.RandLogProber, bool) {
				if !(p[1] > p[0]) {
					return nil, false
				}
				return distuv.Uniform{Min: p[0], Max: p[1], Src: src}, true
			},
		},
		grad: func(x float64, p []float64) (float64, []float64) {
			lo, hi := p[0], p[1]
			if !(hi > lo) || x < lo || x > hi {
				return 0, []float64{0, 0}
			}
			w := hi - lo
			return 0, []float64{1 / w, -1 / w}
		},
	}
}

// Exponential is the exponential distribution with parameter rate.
func Exponential() Dist {
	return differentiable{
		family: family{
			name:   "exponential",
			params: []string{"rate"},
			kind:   tensor.Double,
			build: func(p []float64, src rand.Source) (distuv.RandLogProber, bool) {
				if !(p[0] > 0) {
					return nil, false
				}
				return distuv.Exponential{Rate: p[0], Src: src}, true
			},
		},
		grad: func(x float64, p []float64) (float64, []float64) {
			rate := p[0]
			if !(rate > 0) || x < 0 {
				return 0, []float64{0}
			}
			return -rate, []float64{1/rate - x}
		},
	}
}

// Gamma is the gamma distribution with parameters (shape, rate). Its
// log-density gradient with respect to the shape needs the digamma
// function, so it is sampled but not differentiated.
func Gamma() Dist {
	return family{
		name:   "gamma",
		params: []string{"shape", "rate"},
		kind:   tensor.Double,
		build: func(p []float64, src rand.Source) (distuv.RandLogProber, bool) {
			if !(p[0] > 0) || !(p[1] > 0) {
				return nil, false
			}
			return distuv.Gamma{Alpha: p[0], Beta: p[1], Src: src}, true
		},
	}
}

// Poisson is the Poisson distribution with parameter rate. Draws are
// Integer valued.
func Poisson() Dist {
	return family{
		name:   "poisson",
		params: []string{"rate"},
		kind:   tensor.Integer,
		build: func(p []float64, src rand.Source) (distuv.RandLogProber, bool) {
			if !(p[0] > 0) {
				return nil, false
			}
			return distuv.Poisson{Lambda: p[0], Src: src}, true
		},
	}
}

// Bernoulli is the Bernoulli distribution with success probability p.
// Draws are Boolean valued: 1 for success, 0 otherwise.
func Bernoulli() Dist {
	return family{
		name:   "bernoulli",
		params: []string{"p"},
		kind:   tensor.Boolean,
		build: func(p []float64, src rand.Source) (distuv.RandLogProber, bool) {
			if p[0] < 0 || p[0] > 1 || math.IsNaN(p[0]) {
				return nil, false
			}
			return distuv.Bernoulli{P: p[0], Src: src}, true
		},
	}
}
