package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/model"
	"github.com/roach88/probgraph/internal/store"
	"github.com/roach88/probgraph/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs one scenario against a fresh in-memory store.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	logger   *slog.Logger

	// models and samplers are indexed by chain. Chain 0's model resolves
	// labels for every assertion: all chains compile the same description,
	// so ids agree across them.
	models   []*model.Model
	samplers []*mcmc.Sampler

	// chains holds the samples as read back from the store.
	chains []*mcmc.Samples
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger handed to the store and samplers. By default
// logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Compile the model once per chain and run the chains
// 3. Persist the run and read every chain back
// 4. Evaluate assertions against the read-back samples
//
// An error means the scenario could not be executed at all; failed
// assertions are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a context that cancels the chains.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:", store.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	runID := testutil.NewFixedRunIDGenerator(scenario.RunID).Generate()
	result := NewResult(scenario.Name, runID)

	if err := h.sample(ctx, runID); err != nil {
		return nil, err
	}
	if err := h.readBack(ctx, runID, result); err != nil {
		return nil, err
	}
	if err := h.summarize(result); err != nil {
		return nil, err
	}

	for _, a := range scenario.Assertions {
		result.record(a, h.evaluate(a))
	}
	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "errors", len(result.Errors))
	return result, nil
}

// build compiles the model for one chain and prepares its sampler.
func (h *Harness) build(chain int) (*model.Model, *mcmc.Sampler, []*graph.Vertex, error) {
	cfg := h.scenario.Config
	m, err := model.Load(h.scenario.Model, cfg.GraphOptions(chain)...)
	if err != nil {
		return nil, nil, nil, err
	}
	opts, err := cfg.SamplerOptions(m)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := mcmc.New(m.Graph, append(opts, mcmc.WithLogger(h.logger))...)
	if err != nil {
		return nil, nil, nil, err
	}
	record, err := cfg.Recorded(m)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, s, record, nil
}

// sample runs every chain and writes the run to the store.
func (h *Harness) sample(ctx context.Context, runID string) error {
	cfg := h.scenario.Config
	h.models = make([]*model.Model, cfg.Chains)
	h.samplers = make([]*mcmc.Sampler, cfg.Chains)

	factory := func(chain int) (*mcmc.Sampler, []*graph.Vertex, error) {
		m, s, record, err := h.build(chain)
		if err != nil {
			return nil, nil, err
		}
		// Each chain writes only its own slot.
		h.models[chain] = m
		h.samplers[chain] = s
		return s, record, nil
	}
	chains, err := mcmc.RunChains(ctx, cfg.Chains, factory, cfg.Generate())
	if err != nil {
		return fmt.Errorf("failed to run chains: %w", err)
	}

	text, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	run := store.Run{
		ID:     runID,
		Model:  h.models[0].Name,
		Seed:   cfg.Seed,
		Chains: cfg.Chains,
		Config: string(text),
	}
	if err := h.store.WriteRun(ctx, run); err != nil {
		return err
	}

	labels := make(map[graph.ID]string)
	for _, id := range chains[0].IDs() {
		if v, ok := h.models[0].Graph.Vertex(id); ok {
			labels[id] = v.Name()
		}
	}
	for i, samples := range chains {
		c := store.Chain{
			Index:      i,
			Samples:    samples,
			Labels:     labels,
			Acceptance: h.samplers[i].AcceptanceRate(),
		}
		if err := h.store.WriteSamples(ctx, runID, c); err != nil {
			return err
		}
	}
	return nil
}

// readBack loads every chain from the store. Assertions only ever see
// samples that survived a round trip.
func (h *Harness) readBack(ctx context.Context, runID string, result *Result) error {
	infos, err := h.store.ReadChains(ctx, runID)
	if err != nil {
		return err
	}
	h.chains = make([]*mcmc.Samples, 0, len(infos))
	for _, info := range infos {
		c, err := h.store.ReadSamples(ctx, runID, info.Index)
		if err != nil {
			return err
		}
		h.chains = append(h.chains, c.Samples)
		result.Chains = append(result.Chains, ChainResult{
			Index:       info.Index,
			States:      info.States,
			Acceptance:  info.Acceptance,
			Fingerprint: info.Fingerprint,
		})
	}
	return nil
}

// summarize fills in the pooled estimate of every recorded scalar vertex.
func (h *Harness) summarize(result *Result) error {
	for _, id := range h.chains[0].IDs() {
		v, ok := h.models[0].Graph.Vertex(id)
		if !ok || v.Value().Rank() != 0 {
			continue
		}
		xs, err := h.pooled(id)
		if err != nil {
			return err
		}
		mean, variance := meanVariance(xs)
		result.Posterior = append(result.Posterior, Estimate{Label: v.Name(), Mean: mean, Variance: variance})
	}
	return nil
}

// pooled concatenates the scalar samples of id across chains.
func (h *Harness) pooled(id graph.ID) ([]float64, error) {
	var out []float64
	for i, c := range h.chains {
		xs, err := c.Scalars(id)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", i, err)
		}
		out = append(out, xs...)
	}
	return out, nil
}

// rerun samples chain 0 again from scratch.
func (h *Harness) rerun() (*mcmc.Samples, error) {
	_, s, record, err := h.build(0)
	if err != nil {
		return nil, err
	}
	return s.Generate(record, h.scenario.Config.Generate())
}
