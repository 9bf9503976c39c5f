package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the part of a Result that is stable across platforms and
// library versions: which assertions held and how many states each chain
// kept. Sampled numbers and fingerprints are left out.
type Snapshot struct {
	Scenario   string              `json:"scenario"`
	RunID      string              `json:"run_id"`
	Pass       bool                `json:"pass"`
	Chains     []ChainSnapshot     `json:"chains"`
	Assertions []AssertionSnapshot `json:"assertions"`
}

// ChainSnapshot is the stable part of a ChainResult.
type ChainSnapshot struct {
	Index  int `json:"index"`
	States int `json:"states"`
}

// AssertionSnapshot is the stable part of an AssertionResult.
type AssertionSnapshot struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
	Pass  bool   `json:"pass"`
}

// Snapshot returns the golden view of r.
func (r *Result) Snapshot() Snapshot {
	s := Snapshot{
		Scenario:   r.Scenario,
		RunID:      r.RunID,
		Pass:       r.Pass,
		Chains:     make([]ChainSnapshot, len(r.Chains)),
		Assertions: make([]AssertionSnapshot, len(r.Assertions)),
	}
	for i, c := range r.Chains {
		s.Chains[i] = ChainSnapshot{Index: c.Index, States: c.States}
	}
	for i, a := range r.Assertions {
		s.Assertions[i] = AssertionSnapshot{Type: a.Type, Label: a.Label, Pass: a.Pass}
	}
	return s
}

// MarshalSnapshot renders the snapshot of r as indented JSON with a
// trailing newline.
func MarshalSnapshot(r *Result) ([]byte, error) {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's snapshot against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
