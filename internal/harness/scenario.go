package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/probgraph/internal/config"
)

// Scenario defines a sampling scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path of the CUE model to sample. LoadScenario resolves it
	// relative to the scenario file.
	Model string `yaml:"model"`

	// Config is the run configuration. Keys left out keep the defaults of
	// config.Default.
	Config config.RunConfig `yaml:"config"`

	// RunID is the fixed id the run is stored under.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion types.
const (
	AssertPosteriorMean     = "posterior_mean"
	AssertPosteriorVariance = "posterior_variance"
	AssertProbability       = "probability"
	AssertAcceptance        = "acceptance"
	AssertConverged         = "converged"
	AssertDifferentiable    = "differentiable"
	AssertLambdaSection     = "lambda_section"
	AssertReproducible      = "reproducible"
)

// Lambda section directions.
const (
	DirectionUpstream   = "upstream"
	DirectionDownstream = "downstream"
)

// Assertion is one check on a finished run. Which fields apply depends on
// Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Label is the scalar vertex checked by posterior_mean,
	// posterior_variance, probability and converged.
	Label string `yaml:"label,omitempty"`

	// Expect and Tolerance bound the estimate: |estimate - Expect| <= Tolerance.
	Expect    *float64 `yaml:"expect,omitempty"`
	Tolerance float64  `yaml:"tolerance,omitempty"`

	// Above is the threshold of a probability assertion.
	Above float64 `yaml:"above,omitempty"`

	// Min and Max bound acceptance rates; Max also bounds R̂.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Targets are the vertices of a differentiable assertion.
	Targets []string `yaml:"targets,omitempty"`

	// Differentiable is the expected verdict; nil means true.
	Differentiable *bool `yaml:"differentiable,omitempty"`

	// Origin, Direction and Boundary describe a lambda section; Labels is
	// the expected set of labels it reaches, origins excluded.
	Origin    []string `yaml:"origin,omitempty"`
	Direction string   `yaml:"direction,omitempty"`
	Boundary  bool     `yaml:"boundary,omitempty"`
	Labels    []string `yaml:"labels,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The model path is
// resolved relative to the scenario file.
//
// Returns error if:
//   - File cannot be read
//   - YAML is malformed or has unknown fields
//   - Required fields are missing
//   - The run configuration is invalid
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative model path
// against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	scenario := Scenario{Config: config.Default()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := os.Stat(s.Model); err != nil {
		return fmt.Errorf("model file not found: %s", s.Model)
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s.Config.Chains); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, chains int) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertPosteriorMean, AssertPosteriorVariance, AssertProbability:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for %s", index, a.Type)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
		if a.Tolerance <= 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be positive for %s", index, a.Type)
		}
	case AssertAcceptance:
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for acceptance", index)
		}
	case AssertConverged:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for converged", index)
		}
		if a.Max == nil {
			return fmt.Errorf("assertions[%d]: max is required for converged", index)
		}
		if chains < 2 {
			return fmt.Errorf("assertions[%d]: converged needs at least two chains, config has %d", index, chains)
		}
	case AssertDifferentiable:
		if len(a.Targets) == 0 {
			return fmt.Errorf("assertions[%d]: targets list is required for differentiable", index)
		}
	case AssertLambdaSection:
		if len(a.Origin) == 0 {
			return fmt.Errorf("assertions[%d]: origin list is required for lambda_section", index)
		}
		if a.Direction != DirectionUpstream && a.Direction != DirectionDownstream {
			return fmt.Errorf("assertions[%d]: direction must be %q or %q, got %q", index, DirectionUpstream, DirectionDownstream, a.Direction)
		}
	case AssertReproducible:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
