package mcmc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/random"
	"github.com/roach88/probgraph/internal/tensor"
)

// Proposal records a proposed change to a set of latents: their values
// before (From) and after (To), and the proposal's own log-densities in
// both directions for the Hastings correction.
type Proposal struct {
	Vertices []*graph.Vertex
	From     []tensor.Tensor
	To       []tensor.Tensor

	// LogProbForward is log q(to | from).
	LogProbForward float64

	// LogProbReverse is log q(from | to).
	LogProbReverse float64
}

// Add records a new value for v. The current value becomes From.
func (p *Proposal) Add(v *graph.Vertex, to tensor.Tensor) {
	p.Vertices = append(p.Vertices, v)
	p.From = append(p.From, v.Value())
	p.To = append(p.To, to)
}

// Len returns the number of vertices in the proposal.
func (p *Proposal) Len() int { return len(p.Vertices) }

// Apply sets every vertex to its To value. It does not cascade.
func (p *Proposal) Apply() error {
	for i, v := range p.Vertices {
		if err := v.SetValue(p.To[i]); err != nil {
			return fmt.Errorf("apply proposal to %s: %w", v.Name(), err)
		}
	}
	return nil
}

// Reject sets every vertex back to its From value. It does not cascade.
func (p *Proposal) Reject() error {
	for i, v := range p.Vertices {
		if err := v.SetValue(p.From[i]); err != nil {
			return fmt.Errorf("reject proposal for %s: %w", v.Name(), err)
		}
	}
	return nil
}

// ProposalDistribution draws new values for the chosen latents.
//
// Implementations must not change vertex values: the sampler applies the
// proposal through its ApplicationStrategy.
type ProposalDistribution interface {
	Propose(g *graph.Graph, vertices []*graph.Vertex, r random.Source) (*Proposal, error)
}

// PriorProposal draws each chosen latent from its own prior, given the
// current values of its parents.
//
// The prior proposal is not symmetric: q(to | from) is the prior density of
// to, and q(from | to) the prior density of from. Both terms are computed
// and reported so the acceptance test stays exact.
type PriorProposal struct{}

// Propose implements ProposalDistribution.
func (PriorProposal) Propose(g *graph.Graph, vertices []*graph.Vertex, r random.Source) (*Proposal, error) {
	p := &Proposal{}
	for _, v := range vertices {
		params, err := g.ParentValues(v)
		if err != nil {
			return nil, err
		}
		d := v.Distribution()
		to, err := d.Sample(r, params, v.Shape())
		if err != nil {
			return nil, fmt.Errorf("prior proposal for %s: %w", v.Name(), err)
		}
		forward, err := d.LogProb(to, params)
		if err != nil {
			return nil, err
		}
		reverse, err := d.LogProb(v.Value(), params)
		if err != nil {
			return nil, err
		}
		p.Add(v, to)
		p.LogProbForward += forward
		p.LogProbReverse += reverse
	}
	return p, nil
}

// GaussianProposal is a random walk: each element of each chosen latent
// moves by a Gaussian step. Sigma is the default step size; PerVertex
// overrides it by vertex id. The walk is symmetric, so the forward and
// reverse terms are equal.
//
// Only floating-point latents can be walked.
type GaussianProposal struct {
	Sigma     float64
	PerVertex map[graph.ID]float64
}

// NewGaussianProposal creates a random-walk proposal with step size sigma.
func NewGaussianProposal(sigma float64) *GaussianProposal {
	return &GaussianProposal{Sigma: sigma, PerVertex: make(map[graph.ID]float64)}
}

func (gp *GaussianProposal) sigmaFor(id graph.ID) float64 {
	if s, ok := gp.PerVertex[id]; ok {
		return s
	}
	return gp.Sigma
}

// Propose implements ProposalDistribution.
func (gp *GaussianProposal) Propose(_ *graph.Graph, vertices []*graph.Vertex, r random.Source) (*Proposal, error) {
	p := &Proposal{}
	for _, v := range vertices {
		if !v.Kind().Has(tensor.FloatingPoint) {
			return nil, fmt.Errorf("gaussian proposal for %s: %s values cannot take a gaussian step", v.Name(), v.Kind())
		}
		sigma := gp.sigmaFor(v.ID())
		if !(sigma > 0) || math.IsInf(sigma, 0) {
			return nil, fmt.Errorf("gaussian proposal for %s: step size %v", v.Name(), sigma)
		}

		step := distuv.Normal{Mu: 0, Sigma: sigma, Src: r}
		from := v.Value()
		data := from.Data()
		var logq float64
		for i := range data {
			dx := step.Rand()
			data[i] += dx
			logq += step.LogProb(dx)
		}
		to, err := tensor.New(from.Shape(), data)
		if err != nil {
			return nil, err
		}
		p.Add(v, to)
		p.LogProbForward += logq
		p.LogProbReverse += logq
	}
	return p, nil
}
