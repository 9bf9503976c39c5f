package mcmc

import "github.com/roach88/probgraph/internal/graph"

// VariableSelector chooses the latents a step changes.
type VariableSelector interface {
	Select(latents []*graph.Vertex, step int) []*graph.Vertex
}

// SingleVariableSelector changes one latent per step, cycling through them
// in id order.
type SingleVariableSelector struct{}

// Select implements VariableSelector.
func (SingleVariableSelector) Select(latents []*graph.Vertex, step int) []*graph.Vertex {
	if len(latents) == 0 {
		return nil
	}
	return []*graph.Vertex{latents[step%len(latents)]}
}

// FullVariableSelector changes every latent every step.
type FullVariableSelector struct{}

// Select implements VariableSelector.
func (FullVariableSelector) Select(latents []*graph.Vertex, _ int) []*graph.Vertex {
	return latents
}

// ApplicationStrategy pushes a proposal's values through the graph.
type ApplicationStrategy interface {
	Apply(g *graph.Graph, p *Proposal) error
}

// CascadeApplication sets the proposed values and cascades from them.
// Cascade never enters a probabilistic child, so exactly the downstream
// lambda sections of the changed latents are recomputed.
type CascadeApplication struct{}

// Apply implements ApplicationStrategy.
func (CascadeApplication) Apply(g *graph.Graph, p *Proposal) error {
	if err := p.Apply(); err != nil {
		return err
	}
	return g.Cascade(p.Vertices...)
}

// LogProbCalculator measures the log-probability a step can change.
// section is the union of the chosen latents' downstream lambda sections.
// Before and after values only need to agree in what they leave out.
type LogProbCalculator interface {
	LogProb(g *graph.Graph, section graph.LambdaSection) (float64, error)
}

// LambdaSectionLogProb sums the log-probabilities of the section's
// probabilistic vertices: the changed latents and the boundary below them.
// Every other vertex contributes the same amount before and after.
type LambdaSectionLogProb struct{}

// LogProb implements LogProbCalculator.
func (LambdaSectionLogProb) LogProb(g *graph.Graph, section graph.LambdaSection) (float64, error) {
	return g.LogProbOf(section.Probabilistic())
}

// JointLogProb sums over the whole graph. It gives the same acceptance
// decisions as LambdaSectionLogProb at a higher cost.
type JointLogProb struct{}

// LogProb implements LogProbCalculator.
func (JointLogProb) LogProb(g *graph.Graph, _ graph.LambdaSection) (float64, error) {
	return g.JointLogProb()
}

// RejectionStrategy restores the graph after a rejected step. Prepare is
// called before the proposal is applied; Reject only after a rejection.
// Afterwards every vertex value must be bit-identical to its state before
// the step.
type RejectionStrategy interface {
	Prepare(g *graph.Graph, section graph.LambdaSection)
	Reject(g *graph.Graph, p *Proposal) error
}

// RollbackRejection snapshots every vertex the step can change and writes
// the snapshot back on rejection. Nothing is recomputed.
type RollbackRejection struct {
	snapshot graph.Snapshot
}

// Prepare implements RejectionStrategy.
func (r *RollbackRejection) Prepare(g *graph.Graph, section graph.LambdaSection) {
	r.snapshot = g.Snapshot(section.Affected())
}

// Reject implements RejectionStrategy.
func (r *RollbackRejection) Reject(g *graph.Graph, _ *Proposal) error {
	g.Restore(r.snapshot)
	return nil
}

// CascadeRejection puts the old latent values back and cascades again.
// It keeps no state; recomputation is deterministic, so the restored values
// are bit-identical.
type CascadeRejection struct{}

// Prepare implements RejectionStrategy.
func (CascadeRejection) Prepare(*graph.Graph, graph.LambdaSection) {}

// Reject implements RejectionStrategy.
func (CascadeRejection) Reject(g *graph.Graph, p *Proposal) error {
	if err := p.Reject(); err != nil {
		return err
	}
	return g.Cascade(p.Vertices...)
}
