package testutil

import (
	"math/rand/v2"
	"sync"
)

// FixedRandom is a random source whose Float64 always returns the same
// value. Uint64 still walks a seeded PCG stream, so distributions that
// draw through Uint64 keep working.
//
// FixedRandom(1.0) makes every Metropolis-Hastings acceptance test with a
// ratio below one fail, which forces rejection.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedRandom struct {
	mu  sync.Mutex
	u   float64
	pcg *rand.PCG
}

// NewFixedRandom creates a source whose Float64 returns u.
func NewFixedRandom(u float64) *FixedRandom {
	return &FixedRandom{u: u, pcg: rand.NewPCG(1, 2)}
}

// Float64 returns the fixed value.
func (f *FixedRandom) Float64() float64 {
	return f.u
}

// Uint64 returns the next value of the underlying PCG stream.
func (f *FixedRandom) Uint64() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pcg.Uint64()
}
