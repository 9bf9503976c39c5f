package mcmc

import (
	"sync"

	"github.com/roach88/probgraph/internal/graph"
)

// ProposalListener observes proposals as the sampler makes them.
//
// OnProposalCreated runs for every proposal before the acceptance test;
// OnProposalRejected runs after a rejected proposal has been undone.
// Listeners must not change vertex values.
type ProposalListener interface {
	OnProposalCreated(p *Proposal)
	OnProposalRejected(p *Proposal)
}

// AcceptanceTracker counts proposals and acceptances per vertex.
//
// Thread-safety: safe for concurrent use, so one tracker may observe
// several chains.
type AcceptanceTracker struct {
	mu       sync.Mutex
	proposed map[graph.ID]int
	rejected map[graph.ID]int
}

// NewAcceptanceTracker creates an empty tracker.
func NewAcceptanceTracker() *AcceptanceTracker {
	return &AcceptanceTracker{
		proposed: make(map[graph.ID]int),
		rejected: make(map[graph.ID]int),
	}
}

// OnProposalCreated implements ProposalListener.
func (a *AcceptanceTracker) OnProposalCreated(p *Proposal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range p.Vertices {
		a.proposed[v.ID()]++
	}
}

// OnProposalRejected implements ProposalListener.
func (a *AcceptanceTracker) OnProposalRejected(p *Proposal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range p.Vertices {
		a.rejected[v.ID()]++
	}
}

// Proposed returns how many proposals included id.
func (a *AcceptanceTracker) Proposed(id graph.ID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.proposed[id]
}

// Rate returns the fraction of proposals for id that were accepted, or 0
// if none were made.
func (a *AcceptanceTracker) Rate(id graph.ID) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.proposed[id]
	if n == 0 {
		return 0
	}
	return float64(n-a.rejected[id]) / float64(n)
}

// Overall returns the acceptance rate across all vertices.
func (a *AcceptanceTracker) Overall() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n, r int
	for id, c := range a.proposed {
		n += c
		r += a.rejected[id]
	}
	if n == 0 {
		return 0
	}
	return float64(n-r) / float64(n)
}
