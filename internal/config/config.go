// Package config loads sampling run configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/mcmc"
	"github.com/roach88/probgraph/internal/model"
	"github.com/roach88/probgraph/internal/random"
)

// Proposal names.
const (
	ProposalPrior    = "prior"
	ProposalGaussian = "gaussian"
)

// Selector names.
const (
	SelectorSingle = "single"
	SelectorFull   = "full"
)

// Rejection strategy names.
const (
	RejectionRollback = "rollback"
	RejectionCascade  = "cascade"
)

// Log-probability calculator names.
const (
	LogProbLambda = "lambda"
	LogProbJoint  = "joint"
)

// RunConfig describes one sampling run.
type RunConfig struct {
	// Seed roots every random source of the run. Chain i draws its
	// starting values and runs its sampler from the source split from Seed
	// at index i.
	Seed uint64 `yaml:"seed"`

	// Samples, Drop and DownSample map to mcmc.GenerateConfig.
	Samples    int `yaml:"samples"`
	Drop       int `yaml:"drop"`
	DownSample int `yaml:"down_sample"`

	// Chains is the number of independent chains.
	Chains int `yaml:"chains"`

	Proposal string `yaml:"proposal"`

	// Sigma is the gaussian step size; Sigmas overrides it by label.
	Sigma  float64            `yaml:"sigma"`
	Sigmas map[string]float64 `yaml:"sigmas,omitempty"`

	Selector  string `yaml:"selector"`
	Rejection string `yaml:"rejection"`
	LogProb   string `yaml:"log_prob"`

	// Temperature is a constant temperature. Anneal replaces it with an
	// exponential schedule.
	Temperature float64       `yaml:"temperature"`
	Anneal      *AnnealConfig `yaml:"anneal,omitempty"`

	// Latents restricts sampling to these labels. Empty samples every
	// latent.
	Latents []string `yaml:"latents,omitempty"`

	// Record lists the labels to record. Empty records every latent.
	Record []string `yaml:"record,omitempty"`
}

// AnnealConfig is an exponential temperature schedule.
type AnnealConfig struct {
	Steps int     `yaml:"steps"`
	Max   float64 `yaml:"max"`
	Min   float64 `yaml:"min"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() RunConfig {
	return RunConfig{
		Seed:        1,
		Samples:     1000,
		Chains:      1,
		Proposal:    ProposalPrior,
		Sigma:       1,
		Selector:    SelectorSingle,
		Rejection:   RejectionRollback,
		LogProb:     LogProbLambda,
		Temperature: 1,
	}
}

// ValidationError reports an invalid configuration key.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Load reads and validates a run configuration file.
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected so that typos do not silently fall back to defaults.
func Parse(data []byte) (RunConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return RunConfig{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate checks every key eagerly.
func (c RunConfig) Validate() error {
	if err := c.Generate().Validate(); err != nil {
		field := "samples"
		switch mcmc.ConfigCode(err) {
		case mcmc.ErrCodeInvalidDrop:
			field = "drop"
		case mcmc.ErrCodeInvalidDownSample:
			field = "down_sample"
		}
		return &ValidationError{Field: field, Message: err.Error(), Err: err}
	}
	if c.Chains < 1 {
		return &ValidationError{Field: "chains", Message: fmt.Sprintf("must be at least 1, got %d", c.Chains)}
	}
	if !slices.Contains([]string{ProposalPrior, ProposalGaussian}, c.Proposal) {
		return &ValidationError{Field: "proposal", Message: fmt.Sprintf("unknown proposal %q", c.Proposal)}
	}
	if !(c.Sigma > 0) {
		return &ValidationError{Field: "sigma", Message: fmt.Sprintf("must be positive, got %v", c.Sigma)}
	}
	for label, s := range c.Sigmas {
		if !(s > 0) {
			return &ValidationError{Field: "sigmas." + label, Message: fmt.Sprintf("must be positive, got %v", s)}
		}
	}
	if !slices.Contains([]string{SelectorSingle, SelectorFull}, c.Selector) {
		return &ValidationError{Field: "selector", Message: fmt.Sprintf("unknown selector %q", c.Selector)}
	}
	if !slices.Contains([]string{RejectionRollback, RejectionCascade}, c.Rejection) {
		return &ValidationError{Field: "rejection", Message: fmt.Sprintf("unknown rejection strategy %q", c.Rejection)}
	}
	if !slices.Contains([]string{LogProbLambda, LogProbJoint}, c.LogProb) {
		return &ValidationError{Field: "log_prob", Message: fmt.Sprintf("unknown calculator %q", c.LogProb)}
	}
	if !(c.Temperature > 0) {
		return &ValidationError{Field: "temperature", Message: fmt.Sprintf("must be positive, got %v", c.Temperature)}
	}
	if a := c.Anneal; a != nil {
		if a.Steps < 1 || !(a.Max > 0) || !(a.Min > 0) || a.Min > a.Max {
			return &ValidationError{Field: "anneal", Message: "need steps >= 1 and 0 < min <= max"}
		}
	}
	return nil
}

// Generate returns the sample-generation part of the configuration.
func (c RunConfig) Generate() mcmc.GenerateConfig {
	return mcmc.GenerateConfig{Samples: c.Samples, Drop: c.Drop, DownSample: c.DownSample}
}

// GraphOptions returns the graph options for chain i. The sampler reuses
// the graph's random source, so compiling the model with these options is
// enough to make the chain reproducible.
func (c RunConfig) GraphOptions(chain int) []graph.Option {
	return []graph.Option{graph.WithRandom(random.Split(c.Seed, chain))}
}

// SamplerOptions translates the configuration into sampler options for
// m. Labels are resolved against m.
func (c RunConfig) SamplerOptions(m *model.Model) ([]mcmc.Option, error) {
	var opts []mcmc.Option

	switch c.Proposal {
	case ProposalGaussian:
		gp := mcmc.NewGaussianProposal(c.Sigma)
		for label, s := range c.Sigmas {
			v, err := m.Vertex(label)
			if err != nil {
				return nil, fmt.Errorf("sigmas: %w", err)
			}
			gp.PerVertex[v.ID()] = s
		}
		opts = append(opts, mcmc.WithProposal(gp))
	default:
		opts = append(opts, mcmc.WithProposal(mcmc.PriorProposal{}))
	}

	if c.Selector == SelectorFull {
		opts = append(opts, mcmc.WithSelector(mcmc.FullVariableSelector{}))
	}
	if c.Rejection == RejectionCascade {
		opts = append(opts, mcmc.WithRejection(mcmc.CascadeRejection{}))
	}
	if c.LogProb == LogProbJoint {
		opts = append(opts, mcmc.WithLogProbCalculator(mcmc.JointLogProb{}))
	}

	if a := c.Anneal; a != nil {
		opts = append(opts, mcmc.WithTemperature(mcmc.ExponentialSchedule{Steps: a.Steps, Max: a.Max, Min: a.Min}))
	} else {
		opts = append(opts, mcmc.WithTemperature(mcmc.ConstantTemperature(c.Temperature)))
	}

	if len(c.Latents) > 0 {
		vs, err := m.Vertices(c.Latents...)
		if err != nil {
			return nil, fmt.Errorf("latents: %w", err)
		}
		opts = append(opts, mcmc.WithLatents(vs...))
	}
	return opts, nil
}

// Recorded resolves the record labels, defaulting to every latent.
func (c RunConfig) Recorded(m *model.Model) ([]*graph.Vertex, error) {
	if len(c.Record) == 0 {
		return m.Graph.Latents(), nil
	}
	vs, err := m.Vertices(c.Record...)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return vs, nil
}
