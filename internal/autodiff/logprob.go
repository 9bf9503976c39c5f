package autodiff

import (
	"fmt"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// LogProbGradient returns the gradient of the summed log-probability of the
// given probabilistic vertices with respect to each wrt vertex. Each entry
// has the shape of its wrt vertex; every wrt vertex gets an entry, zero
// when the log-probability does not depend on it.
//
// A probabilistic vertex contributes through its own value (when it is a
// wrt vertex) and through each parameter: directly when the parameter is a
// wrt vertex, and by reverse mode when the parameter is deterministic.
// Every distribution involved must implement graph.GradientDistribution.
func LogProbGradient(g *graph.Graph, probabilistic []*graph.Vertex, wrt []*graph.Vertex) (Partials, error) {
	out := newPartials()
	isWrt := make(map[graph.ID]bool, len(wrt))
	for _, w := range wrt {
		isWrt[w.ID()] = true
		out.byID[w.ID()] = tensor.Zeros(w.Shape())
	}

	for _, v := range probabilistic {
		if !v.IsProbabilistic() {
			return out, &graph.Error{Code: graph.ErrCodeNotProbabilistic, Message: "log-probability gradient of a " + v.Role().String() + " vertex", Vertex: v.ID()}
		}
		d, ok := v.Distribution().(graph.GradientDistribution)
		if !ok {
			return out, blocked(v, v.Distribution().Name()+" has no log-density gradient")
		}
		if !v.HasValue() {
			return out, missingValue(v)
		}
		params, err := g.ParentValues(v)
		if err != nil {
			return out, err
		}
		dx, dparams, err := d.DLogProb(v.Value(), params)
		if err != nil {
			return out, fmt.Errorf("log-density gradient of %s: %w", v.Name(), err)
		}

		if isWrt[v.ID()] {
			if err := out.byID[v.ID()].AddInPlace(dx); err != nil {
				return out, err
			}
		}

		parents, err := g.Resolve(v.Parents())
		if err != nil {
			return out, err
		}
		for i, p := range parents {
			if err := addThroughParameter(g, out, isWrt, wrt, p, dparams[i]); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// addThroughParameter adds the contribution of dlogp/dp to the gradient.
func addThroughParameter(g *graph.Graph, out Partials, isWrt map[graph.ID]bool, wrt []*graph.Vertex, p *graph.Vertex, dp tensor.Tensor) error {
	switch {
	case p.IsProbabilistic():
		if !isWrt[p.ID()] {
			return nil
		}
		return out.byID[p.ID()].AddInPlace(dp)
	case p.IsDeterministic() && p.IsDifferentiable():
		partials, err := Reverse(g, p, wrt...)
		if err != nil {
			return err
		}
		for _, id := range partials.IDs() {
			dpdw, _ := partials.Get(id)
			c, err := tensor.ContractTrailing(dpdw, dp)
			if err != nil {
				return fmt.Errorf("contract at %s: %w", p.Name(), err)
			}
			if err := out.byID[id].AddInPlace(c); err != nil {
				return err
			}
		}
	}
	return nil
}
