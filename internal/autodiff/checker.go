package autodiff

import (
	"github.com/roach88/probgraph/internal/graph"
	"github.com/roach88/probgraph/internal/tensor"
)

// IsDifferentiable reports whether the targets' log-probability can be
// differentiated with respect to every latent it depends on.
func IsDifferentiable(g *graph.Graph, targets ...*graph.Vertex) bool {
	return CheckDifferentiable(g, targets...) == nil
}

// CheckDifferentiable is IsDifferentiable with the reason.
//
// Every probabilistic target must hold floating-point values or be observed.
// The walk then goes breadth first from the targets' parents. A visited
// vertex that has no Jacobian and is not provably constant fails the check.
// Expansion continues only through differentiable, non-probabilistic
// vertices: a probabilistic vertex's value is a draw, so derivatives stop
// there.
//
// Returns a *NotDifferentiableError naming the first blocking vertex found.
func CheckDifferentiable(g *graph.Graph, targets ...*graph.Vertex) error {
	c := checker{g: g, constant: make(map[graph.ID]bool)}

	for _, t := range targets {
		if t.IsProbabilistic() && !t.IsObserved() && !t.Kind().Has(tensor.FloatingPoint) {
			return blocked(t, "latent with "+t.Kind().String()+" values")
		}
	}

	visited := make(map[graph.ID]bool)
	var queue []*graph.Vertex
	enqueueParents := func(v *graph.Vertex) error {
		parents, err := g.Resolve(v.Parents())
		if err != nil {
			return err
		}
		for _, p := range parents {
			if !visited[p.ID()] {
				visited[p.ID()] = true
				queue = append(queue, p)
			}
		}
		return nil
	}
	for _, t := range targets {
		if err := enqueueParents(t); err != nil {
			return err
		}
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		differentiable := v.IsDifferentiable()
		if !differentiable {
			constant, err := c.provablyConstant(v)
			if err != nil {
				return err
			}
			if !constant {
				return blocked(v, "no Jacobian and depends on a latent")
			}
			continue
		}
		if v.IsProbabilistic() {
			continue
		}
		if err := enqueueParents(v); err != nil {
			return err
		}
	}
	return nil
}

// checker memoises constancy across one CheckDifferentiable call.
type checker struct {
	g        *graph.Graph
	constant map[graph.ID]bool
}

// provablyConstant reports whether v's value cannot change while latents
// are resampled: v is a constant, an observation, or a deterministic vertex
// whose ancestors are all constants or observations. The walk stops at the
// first unobserved probabilistic ancestor.
func (c *checker) provablyConstant(v *graph.Vertex) (bool, error) {
	if known, ok := c.constant[v.ID()]; ok {
		return known, nil
	}

	stack := []*graph.Vertex{v}
	for len(stack) > 0 {
		head := stack[len(stack)-1]
		if _, ok := c.constant[head.ID()]; ok {
			stack = stack[:len(stack)-1]
			continue
		}

		switch {
		case head.IsConstant(), head.IsObserved():
			c.constant[head.ID()] = true
			stack = stack[:len(stack)-1]
			continue
		case head.IsProbabilistic():
			// Every stack entry is an ancestor of v.
			c.constant[head.ID()] = false
			c.constant[v.ID()] = false
			return false, nil
		}

		parents, err := c.g.Resolve(head.Parents())
		if err != nil {
			return false, err
		}
		var pending []*graph.Vertex
		for _, p := range parents {
			known, ok := c.constant[p.ID()]
			if !ok {
				pending = append(pending, p)
				continue
			}
			if !known {
				c.constant[head.ID()] = false
				c.constant[v.ID()] = false
				return false, nil
			}
		}
		if len(pending) > 0 {
			stack = append(stack, pending...)
			continue
		}
		c.constant[head.ID()] = true
		stack = stack[:len(stack)-1]
	}
	return c.constant[v.ID()], nil
}
