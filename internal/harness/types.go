package harness

// ChainResult describes one chain as read back from the store.
type ChainResult struct {
	Index       int     `json:"index"`
	States      int     `json:"states"`
	Acceptance  float64 `json:"acceptance"`
	Fingerprint string  `json:"fingerprint"`
}

// Estimate is the pooled posterior estimate of one scalar vertex.
type Estimate struct {
	Label    string  `json:"label"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// AssertionResult is the outcome of one assertion.
type AssertionResult struct {
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
	Pass  bool   `json:"pass"`

	// Message explains a failure. It carries sampled numbers, so golden
	// snapshots leave it out.
	Message string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	Scenario string `json:"scenario"`
	RunID    string `json:"run_id"`

	Chains     []ChainResult     `json:"chains"`
	Posterior  []Estimate        `json:"posterior"`
	Assertions []AssertionResult `json:"assertions"`

	// Errors contains the failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult(scenario, runID string) *Result {
	return &Result{
		Pass:       true,
		Scenario:   scenario,
		RunID:      runID,
		Chains:     []ChainResult{},
		Posterior:  []Estimate{},
		Assertions: []AssertionResult{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record appends an assertion outcome, failing the result on err.
func (r *Result) record(a Assertion, err error) {
	out := AssertionResult{Type: a.Type, Label: a.Label, Pass: err == nil}
	if err != nil {
		out.Message = err.Error()
		r.AddError(err.Error())
	}
	r.Assertions = append(r.Assertions, out)
}
