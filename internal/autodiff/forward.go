package autodiff

import (
	"fmt"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// Forward computes the partial derivatives of each "of" vertex with respect
// to wrt, laid out as of⊗wrt.
//
// The seed is wrt itself with the identity as its partial. Vertices are
// settled in ascending id order, which is topological, so every parent
// partial is final before a child combines them through its Jacobian.
// Probabilistic children are never entered. The walk stops once every "of"
// vertex is settled; an "of" vertex that wrt cannot reach has no entry.
func Forward(g *graph.Graph, wrt *graph.Vertex, of ...*graph.Vertex) (Partials, error) {
	out := newPartials()
	if !wrt.HasValue() {
		return out, missingValue(wrt)
	}

	partial := map[graph.ID]tensor.Tensor{wrt.ID(): tensor.Identity(wrt.Shape())}
	pending := make(map[graph.ID]bool, len(of))
	for _, v := range of {
		pending[v.ID()] = true
	}
	delete(pending, wrt.ID())

	q := graph.NewMinQueue()
	if err := pushChildren(g, q, wrt); err != nil {
		return out, err
	}
	for q.Len() > 0 && len(pending) > 0 {
		v := mustVertex(g, q.Pop())
		p, err := forwardStep(g, v, partial)
		if err != nil {
			return out, err
		}
		partial[v.ID()] = p
		delete(pending, v.ID())
		if err := pushChildren(g, q, v); err != nil {
			return out, err
		}
	}

	for _, v := range of {
		if p, ok := partial[v.ID()]; ok {
			out.byID[v.ID()] = p
		}
	}
	return out, nil
}

// forwardStep sums the chain-rule contribution of every parent that has a
// partial.
func forwardStep(g *graph.Graph, v *graph.Vertex, partial map[graph.ID]tensor.Tensor) (tensor.Tensor, error) {
	if !v.HasValue() {
		return tensor.Tensor{}, missingValue(v)
	}
	op := v.Operation().(graph.DifferentiableOperation)
	inputs, err := g.ParentValues(v)
	if err != nil {
		return tensor.Tensor{}, err
	}

	var acc tensor.Tensor
	for i, pid := range v.Parents() {
		pp, ok := partial[pid]
		if !ok {
			continue
		}
		jac, err := op.Jacobian(inputs, v.Value(), i)
		if err != nil {
			return tensor.Tensor{}, fmt.Errorf("jacobian of %s: %w", v.Name(), err)
		}
		c, err := tensor.ChainForward(jac, v.Shape(), inputs[i].Shape(), pp)
		if err != nil {
			return tensor.Tensor{}, fmt.Errorf("chain rule at %s: %w", v.Name(), err)
		}
		if acc.IsEmpty() {
			acc = c
			continue
		}
		if err := acc.AddInPlace(c); err != nil {
			return tensor.Tensor{}, err
		}
	}
	return acc, nil
}

// pushChildren enqueues the children derivatives can flow into.
func pushChildren(g *graph.Graph, q *graph.Queue, v *graph.Vertex) error {
	children, err := g.Resolve(v.Children())
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.IsDeterministic() && c.IsDifferentiable() {
			q.Push(c.ID())
		}
	}
	return nil
}

func mustVertex(g *graph.Graph, id graph.ID) *graph.Vertex {
	v, ok := g.Vertex(id)
	if !ok {
		panic(fmt.Sprintf("autodiff: queued vertex %s not in graph", id))
	}
	return v
}
