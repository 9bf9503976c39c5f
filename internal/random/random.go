// Package random defines the seedable random source injected into every
// sampling and proposal call.
//
// Source is satisfied by *rand.Rand from math/rand/v2, and its Uint64 method
// makes it a rand.Source, so the same value feeds both the sampler's
// acceptance test and gonum's distuv distributions.
package random

import "math/rand/v2"

// Source is a random number generator.
type Source interface {
	// Uint64 returns a uniformly distributed 64-bit value.
	Uint64() uint64

	// Float64 returns a uniformly distributed value in [0, 1).
	Float64() float64
}

// streamConstant separates the PCG stream from the seed so that seeds 0 and 1
// do not produce correlated streams.
const streamConstant = 0x9e3779b97f4a7c15

// New returns a PCG-backed source. Two sources created with the same seed
// produce identical sequences.
func New(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^streamConstant))
}

// Split derives an independent child source, one per chain, from a root
// seed and a chain index.
func Split(seed uint64, index int) Source {
	return New(seed + uint64(index)*streamConstant)
}
