package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRandom_Float64IsFixed(t *testing.T) {
	r := NewFixedRandom(1.0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 1.0, r.Float64())
	}
}

func TestFixedRandom_Uint64Advances(t *testing.T) {
	a, b := NewFixedRandom(0.5), NewFixedRandom(0.5)
	first := a.Uint64()
	assert.NotEqual(t, first, a.Uint64())
	assert.Equal(t, first, b.Uint64(), "same stream for every instance")
}

func TestFixedRunIDGenerator(t *testing.T) {
	assert.Equal(t, "run-1", NewFixedRunIDGenerator("run-1").Generate())
	assert.Equal(t, "test-run-default", NewFixedRunIDGenerator("").Generate())
}

func TestFixedRunIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedRunIDGenerator("shared")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
