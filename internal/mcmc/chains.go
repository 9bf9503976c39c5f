package mcmc

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// ChainFactory builds the sampler for one chain together with the vertices
// to record. Each call must build its own graph and random source: chains
// share nothing.
type ChainFactory func(chain int) (*Sampler, []*graph.Vertex, error)

// RunChains runs n independent chains concurrently and returns their
// samples in chain order. The first error cancels the chains that have not
// started yet; chains already sampling run to completion.
func RunChains(ctx context.Context, n int, factory ChainFactory, cfg GenerateConfig) ([]*Samples, error) {
	if n < 1 {
		return nil, configError(ErrCodeInvalidSampleCount, "need at least one chain, got %d", n)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	out := make([]*Samples, n)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			s, record, err := factory(i)
			if err != nil {
				return fmt.Errorf("chain %d: %w", i, err)
			}
			samples, err := s.Generate(record, cfg)
			if err != nil {
				return fmt.Errorf("chain %d: %w", i, err)
			}
			out[i] = samples
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary holds the posterior statistics of one vertex.
type Summary struct {
	ID       graph.ID
	Mean     tensor.Tensor
	Variance tensor.Tensor
}

// Summarize computes a Summary for every recorded vertex, one goroutine per
// vertex. Samples is read-only, so no locking is needed.
func Summarize(ctx context.Context, s *Samples) ([]Summary, error) {
	ids := s.IDs()
	out := make([]Summary, len(ids))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			mean, err := s.Mean(id)
			if err != nil {
				return fmt.Errorf("mean of %s: %w", id, err)
			}
			variance, err := s.Variance(id)
			if err != nil {
				return fmt.Errorf("variance of %s: %w", id, err)
			}
			out[i] = Summary{ID: id, Mean: mean, Variance: variance}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GelmanRubin returns the potential scale reduction factor R̂ of a scalar
// vertex across chains. Values close to 1 suggest the chains agree; chains
// are truncated to the shortest one.
func GelmanRubin(chains []*Samples, id graph.ID) (float64, error) {
	if len(chains) < 2 {
		return 0, fmt.Errorf("need at least two chains, got %d", len(chains))
	}
	series := make([][]float64, len(chains))
	n := math.MaxInt
	for i, c := range chains {
		xs, err := c.Scalars(id)
		if err != nil {
			return 0, fmt.Errorf("chain %d: %w", i, err)
		}
		series[i] = xs
		n = min(n, len(xs))
	}
	if n < 2 {
		return 0, fmt.Errorf("need at least two samples per chain, got %d", n)
	}

	means := make([]float64, len(series))
	variances := make([]float64, len(series))
	for i, xs := range series {
		means[i], variances[i] = stat.MeanVariance(xs[:n], nil)
	}
	w := stat.Mean(variances, nil)
	b := float64(n) * stat.Variance(means, nil)
	if w == 0 {
		return math.NaN(), nil
	}
	pooled := (float64(n-1)/float64(n))*w + b/float64(n)
	return math.Sqrt(pooled / w), nil
}
