package autodiff

import (
	"fmt"

	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// Reverse computes the partial derivatives of "of" with respect to each wrt
// vertex, laid out as wrt⊗of.
//
// The seed is "of" with the identity (shape⊗shape). Vertices are visited in
// descending id order so that every child has pushed its contribution
// before a vertex hands its accumulated derivative on to its parents.
// Contributions from several children are summed, which is what makes
// diamonds come out right. Derivatives flow upstream only through
// differentiable deterministic vertices. An observed "of" has no partials.
func Reverse(g *graph.Graph, of *graph.Vertex, wrt ...*graph.Vertex) (Partials, error) {
	out := newPartials()
	if of.IsObserved() || len(wrt) == 0 {
		return out, nil
	}
	if !of.HasValue() {
		return out, missingValue(of)
	}

	wanted := make(map[graph.ID]bool, len(wrt))
	for _, v := range wrt {
		wanted[v.ID()] = true
	}

	// acc entries are owned here and updated in place.
	acc := map[graph.ID]tensor.Tensor{of.ID(): tensor.Identity(of.Shape())}
	q := graph.NewMaxQueue()
	q.Push(of.ID())

	for q.Len() > 0 {
		v := mustVertex(g, q.Pop())
		a := acc[v.ID()]
		if wanted[v.ID()] {
			out.byID[v.ID()] = a
			delete(wanted, v.ID())
			if len(wanted) == 0 {
				break
			}
		}
		if !v.IsDeterministic() || !v.IsDifferentiable() {
			continue
		}
		if err := reverseStep(g, v, a, acc, q, wanted); err != nil {
			return out, err
		}
	}
	return out, nil
}

// reverseStep hands v's accumulated derivative to its parents.
func reverseStep(g *graph.Graph, v *graph.Vertex, a tensor.Tensor, acc map[graph.ID]tensor.Tensor, q *graph.Queue, wanted map[graph.ID]bool) error {
	if !v.HasValue() {
		return missingValue(v)
	}
	op := v.Operation().(graph.DifferentiableOperation)
	inputs, err := g.ParentValues(v)
	if err != nil {
		return err
	}
	parents, err := g.Resolve(v.Parents())
	if err != nil {
		return err
	}

	for i, p := range parents {
		if !p.IsDifferentiable() && !wanted[p.ID()] {
			continue
		}
		jac, err := op.Jacobian(inputs, v.Value(), i)
		if err != nil {
			return fmt.Errorf("jacobian of %s: %w", v.Name(), err)
		}
		c, err := tensor.ChainReverse(jac, v.Shape(), inputs[i].Shape(), a)
		if err != nil {
			return fmt.Errorf("chain rule at %s: %w", v.Name(), err)
		}
		if prev, ok := acc[p.ID()]; ok {
			if err := prev.AddInPlace(c); err != nil {
				return err
			}
		} else {
			acc[p.ID()] = c
		}
		q.Push(p.ID())
	}
	return nil
}
