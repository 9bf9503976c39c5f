package mcmc

import (
	"fmt"
	"iter"
	"log/slog"
	"math"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/random"
)

// Sampler runs Metropolis-Hastings over one graph.
//
// Thread-safety: a Sampler and its graph belong to one goroutine.
type Sampler struct {
	g       *graph.Graph
	latents []*graph.Vertex

	selector    VariableSelector
	proposal    ProposalDistribution
	application ApplicationStrategy
	calculator  LogProbCalculator
	rejection   RejectionStrategy
	random      random.Source
	temperature TemperatureSchedule
	listeners   []ProposalListener
	metrics     *Metrics
	logger      *slog.Logger

	// sections caches each latent's downstream lambda section. The wiring
	// cannot change while the sampler owns the graph.
	sections map[graph.ID]graph.LambdaSection

	state    State
	step     int
	accepted int
	logProb  float64
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLatents restricts sampling to the given latents. By default every
// latent in the graph is sampled.
func WithLatents(vs ...*graph.Vertex) Option {
	return func(s *Sampler) {
		s.latents = append([]*graph.Vertex(nil), vs...)
	}
}

// WithSelector sets the variable selector (default SingleVariableSelector).
func WithSelector(sel VariableSelector) Option {
	return func(s *Sampler) { s.selector = sel }
}

// WithProposal sets the proposal distribution (default PriorProposal).
func WithProposal(p ProposalDistribution) Option {
	return func(s *Sampler) { s.proposal = p }
}

// WithApplication sets the application strategy (default CascadeApplication).
func WithApplication(a ApplicationStrategy) Option {
	return func(s *Sampler) { s.application = a }
}

// WithLogProbCalculator sets the calculator (default LambdaSectionLogProb).
func WithLogProbCalculator(c LogProbCalculator) Option {
	return func(s *Sampler) { s.calculator = c }
}

// WithRejection sets the rejection strategy (default RollbackRejection).
func WithRejection(r RejectionStrategy) Option {
	return func(s *Sampler) { s.rejection = r }
}

// WithRandom sets the random source used for proposals and the acceptance
// test. By default the graph's own source is used.
func WithRandom(r random.Source) Option {
	return func(s *Sampler) { s.random = r }
}

// WithTemperature sets the temperature schedule (default constant 1).
func WithTemperature(t TemperatureSchedule) Option {
	return func(s *Sampler) { s.temperature = t }
}

// WithListeners adds proposal listeners.
func WithListeners(ls ...ProposalListener) Option {
	return func(s *Sampler) { s.listeners = append(s.listeners, ls...) }
}

// WithMetrics records step outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Sampler) { s.metrics = m }
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// New prepares a sampler for g.
//
// Every vertex is brought up to date first: latents without a value are
// drawn from their priors and deterministic vertices are recomputed. The
// configuration is then validated eagerly; a *ConfigError means nothing
// was sampled.
func New(g *graph.Graph, opts ...Option) (*Sampler, error) {
	s := &Sampler{
		g:           g,
		selector:    SingleVariableSelector{},
		proposal:    PriorProposal{},
		application: CascadeApplication{},
		calculator:  LambdaSectionLogProb{},
		rejection:   &RollbackRejection{},
		random:      g.Random(),
		temperature: ConstantTemperature(1),
		logger:      slog.New(slog.DiscardHandler),
		state:       StateInitial,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.latents == nil {
		s.latents = g.Latents()
	}

	if len(s.latents) == 0 {
		return nil, configError(ErrCodeNoLatents, "graph has no latent vertices to sample")
	}
	for _, v := range s.latents {
		if !v.IsLatent() {
			return nil, configError(ErrCodeNoLatents, "%s is not a latent vertex", v.Name())
		}
	}
	if len(s.selector.Select(s.latents, 0)) == 0 {
		return nil, configError(ErrCodeEmptyProposal, "selector chose no vertices")
	}

	if err := g.LazyEval(g.Vertices()...); err != nil {
		return nil, fmt.Errorf("initial evaluation: %w", err)
	}

	s.sections = make(map[graph.ID]graph.LambdaSection, len(s.latents))
	for _, v := range s.latents {
		sec, err := g.DownstreamLambdaSection([]*graph.Vertex{v}, false)
		if err != nil {
			return nil, err
		}
		s.sections[v.ID()] = sec
	}

	lp, err := g.JointLogProb()
	if err != nil {
		return nil, err
	}
	if impossible(lp) {
		return nil, configError(ErrCodeImpossibleStart, "starting state has log-probability %v", lp)
	}
	s.logProb = lp
	return s, nil
}

// Graph returns the sampled graph.
func (s *Sampler) Graph() *graph.Graph { return s.g }

// Latents returns the sampled latents.
func (s *Sampler) Latents() []*graph.Vertex { return append([]*graph.Vertex(nil), s.latents...) }

// State returns the sampler's position in its step cycle.
func (s *Sampler) State() State { return s.state }

// Steps returns the number of completed steps.
func (s *Sampler) Steps() int { return s.step }

// AcceptanceRate returns the fraction of completed steps that were accepted.
func (s *Sampler) AcceptanceRate() float64 {
	if s.step == 0 {
		return 0
	}
	return float64(s.accepted) / float64(s.step)
}

// LogProb returns the joint log-probability of the current state.
func (s *Sampler) LogProb() float64 { return s.logProb }

// Finish moves the sampler to its terminal state. Further steps fail.
func (s *Sampler) Finish() error {
	return s.transition(StateTerminal)
}

func (s *Sampler) transition(to State) error {
	if !isAllowedTransition(s.state, to) {
		return &TransitionError{From: s.state, To: to}
	}
	s.state = to
	return nil
}

// StepResult describes one completed step.
type StepResult struct {
	// Step is the zero-based step number.
	Step int

	// Vertices are the latents the step proposed to change.
	Vertices []graph.ID

	// Accepted reports whether the proposal was kept.
	Accepted bool

	// Impossible reports a proposal with zero probability (-Inf or NaN
	// log-probability). Impossible proposals are always rejected.
	Impossible bool

	// LogProb is the joint log-probability after the step.
	LogProb float64
}

// Step runs one proposal through the full cycle and returns its outcome.
// A rejected step is a normal outcome, not an error. Errors are structural
// and leave the sampler terminal.
func (s *Sampler) Step() (StepResult, error) {
	res, err := s.runStep()
	if err != nil {
		s.state = StateTerminal
	}
	return res, err
}

func (s *Sampler) runStep() (StepResult, error) {
	res := StepResult{Step: s.step}
	if s.state.IsTerminal() {
		return res, &TransitionError{From: s.state, To: StateProposalGenerated}
	}

	chosen := s.selector.Select(s.latents, s.step)
	if len(chosen) == 0 {
		return res, configError(ErrCodeEmptyProposal, "selector chose no vertices at step %d", s.step)
	}
	res.Vertices = graph.IDs(chosen)
	section := s.section(chosen)

	before, err := s.calculator.LogProb(s.g, section)
	if err != nil {
		return res, err
	}
	s.rejection.Prepare(s.g, section)

	p, err := s.proposal.Propose(s.g, chosen, s.random)
	if err != nil {
		return res, err
	}
	if p.Len() == 0 {
		return res, configError(ErrCodeEmptyProposal, "proposal changed no vertices at step %d", s.step)
	}
	if err := s.transition(StateProposalGenerated); err != nil {
		return res, err
	}
	for _, l := range s.listeners {
		l.OnProposalCreated(p)
	}

	if err := s.application.Apply(s.g, p); err != nil {
		return res, err
	}
	if err := s.transition(StateApplied); err != nil {
		return res, err
	}

	after, err := s.calculator.LogProb(s.g, section)
	if err != nil {
		return res, err
	}
	if err := s.transition(StateEvaluated); err != nil {
		return res, err
	}

	delta := after - before
	res.Impossible = impossible(after)
	res.Accepted = !res.Impossible && s.accept(delta, p)

	switch {
	case res.Accepted:
		if err := s.transition(StateAccepted); err != nil {
			return res, err
		}
		s.logProb += delta
		s.accepted++
		s.metrics.observe(OutcomeAccepted, delta, p.Len())
	default:
		if err := s.rejection.Reject(s.g, p); err != nil {
			return res, err
		}
		if err := s.transition(StateRejected); err != nil {
			return res, err
		}
		for _, l := range s.listeners {
			l.OnProposalRejected(p)
		}
		if res.Impossible {
			s.logger.Debug("impossible proposal rejected", "step", s.step, "vertices", res.Vertices, "log_prob", after)
			s.metrics.observe(OutcomeImpossible, delta, p.Len())
		} else {
			s.metrics.observe(OutcomeRejected, delta, p.Len())
		}
	}

	res.LogProb = s.logProb
	s.step++
	return res, nil
}

// accept runs the Metropolis-Hastings test:
//
//	log(u) < delta/T + log q(from | to) − log q(to | from)
//
// A ratio of one or more accepts without drawing u.
func (s *Sampler) accept(delta float64, p *Proposal) bool {
	logR := delta/s.temperature.Temperature(s.step) + p.LogProbReverse - p.LogProbForward
	if math.IsNaN(logR) {
		return false
	}
	if logR >= 0 {
		return true
	}
	return math.Log(s.random.Float64()) < logR
}

// section returns the union of the chosen latents' downstream sections.
func (s *Sampler) section(chosen []*graph.Vertex) graph.LambdaSection {
	sec := s.sections[chosen[0].ID()]
	for _, v := range chosen[1:] {
		sec = sec.Union(s.sections[v.ID()])
	}
	return sec
}

func impossible(lp float64) bool {
	return math.IsNaN(lp) || math.IsInf(lp, -1)
}

// =============================================================================
// Sample generation
// =============================================================================

// GenerateConfig controls how many steps run and which are kept.
type GenerateConfig struct {
	// Samples is the number of steps to run.
	Samples int

	// Drop discards the first Drop steps as burn-in.
	Drop int

	// DownSample keeps every DownSample-th step after the burn-in. Zero
	// keeps every step.
	DownSample int
}

// Validate checks the configuration.
func (c GenerateConfig) Validate() error {
	if c.Samples <= 0 {
		return configError(ErrCodeInvalidSampleCount, "samples must be positive, got %d", c.Samples)
	}
	if c.Drop < 0 || c.Drop >= c.Samples {
		return configError(ErrCodeInvalidDrop, "drop must be in [0, %d), got %d", c.Samples, c.Drop)
	}
	if c.DownSample < 0 {
		return configError(ErrCodeInvalidDownSample, "down-sample interval must be at least 1, got %d", c.DownSample)
	}
	return nil
}

func (c GenerateConfig) keep(i int) bool {
	interval := max(c.DownSample, 1)
	return i >= c.Drop && (i-c.Drop)%interval == 0
}

// Stream returns an iterator over the kept network states. The iterator
// runs one step per iteration; stopping early simply stops sampling. A
// structural error is yielded once and ends the iteration.
//
// The configuration and record set are validated before the iterator is
// returned.
func (s *Sampler) Stream(record []*graph.Vertex, cfg GenerateConfig) (iter.Seq2[NetworkState, error], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, configError(ErrCodeNoRecordedVertices, "no vertices to record")
	}
	if _, err := s.g.Resolve(graph.IDs(record)); err != nil {
		return nil, err
	}

	return func(yield func(NetworkState, error) bool) {
		for i := 0; i < cfg.Samples; i++ {
			if _, err := s.Step(); err != nil {
				yield(NetworkState{}, err)
				return
			}
			if !cfg.keep(i) {
				continue
			}
			if !yield(captureState(record, s.logProb), nil) {
				return
			}
		}
	}, nil
}

// Generate runs a complete sampling run, records the given vertices after
// every kept step, and finishes the sampler.
func (s *Sampler) Generate(record []*graph.Vertex, cfg GenerateConfig) (*Samples, error) {
	seq, err := s.Stream(record, cfg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("sampling started",
		"latents", len(s.latents),
		"samples", cfg.Samples,
		"drop", cfg.Drop,
		"down_sample", cfg.DownSample,
	)
	out := newSamples(graph.IDs(record))
	for st, err := range seq {
		if err != nil {
			return nil, err
		}
		out.append(st)
	}
	if err := s.Finish(); err != nil {
		return nil, err
	}
	s.logger.Info("sampling finished",
		"steps", s.step,
		"kept", out.Size(),
		"acceptance", s.AcceptanceRate(),
		"log_prob", s.logProb,
	)
	return out, nil
}
