package graph

import (
	"fmt"

	"github.com/roach88/probgraph/internal/tensor"
)

// Cascade pushes changed values forward through the graph.
//
// Vertices are visited lowest id first. Each visited vertex is brought up to
// date (deterministic vertices are recomputed, probabilistic vertices without
// a value are sampled) and each of its deterministic children is enqueued
// once. Probabilistic children are never enqueued: their value is a draw,
// not a function of the parents. Only their log-probability is affected,
// which callers recompute separately.
//
// Deterministic parents that have never been computed are lazily evaluated
// before their child is recomputed.
func (g *Graph) Cascade(changed ...*Vertex) error {
	q := NewMinQueue()
	for _, v := range changed {
		if err := g.owns(v); err != nil {
			return err
		}
		q.Push(v.id)
	}

	for q.Len() > 0 {
		v := g.mustAt(q.Pop())
		if v.role == RoleDeterministic {
			if err := g.LazyEval(g.unvalued(v.parents)...); err != nil {
				return err
			}
		}
		if err := g.update(v); err != nil {
			return err
		}
		for _, c := range v.children {
			if !g.mustAt(c).IsProbabilistic() {
				q.Push(c)
			}
		}
	}
	return nil
}

// SetAndCascade sets v's value and cascades the change.
func (g *Graph) SetAndCascade(v *Vertex, value tensor.Tensor) error {
	if err := g.owns(v); err != nil {
		return err
	}
	if err := v.SetValue(value); err != nil {
		return err
	}
	return g.Cascade(v)
}

// Eval computes the targets from their ancestors, depth first.
//
// A "calculated" set spans the whole call: a shared ancestor reached along
// several paths (a diamond) is computed once. Every deterministic vertex
// reached is recomputed even if it already has a value; probabilistic
// vertices keep any value they have.
func (g *Graph) Eval(targets ...*Vertex) error {
	calculated := make(map[ID]bool)
	return g.pull(targets,
		func(v *Vertex) bool { return calculated[v.id] },
		func(v *Vertex) { calculated[v.id] = true },
	)
}

// LazyEval computes the targets, descending only into ancestors that have
// no value yet.
//
// Unlike Eval there is no memory across the call: a vertex counts as
// computed exactly when it has a value. Targets themselves are always
// brought up to date.
func (g *Graph) LazyEval(targets ...*Vertex) error {
	return g.pull(targets, (*Vertex).HasValue, nil)
}

// pull is the explicit-stack traversal shared by Eval and LazyEval. done
// reports whether a vertex counts as computed; mark, if non-nil, records a
// vertex as computed and makes pull skip repeated stack entries.
func (g *Graph) pull(targets []*Vertex, done func(*Vertex) bool, mark func(*Vertex)) error {
	stack := make([]ID, 0, len(targets))
	for _, t := range targets {
		if err := g.owns(t); err != nil {
			return err
		}
		stack = append(stack, t.id)
	}

	for len(stack) > 0 {
		head := g.mustAt(stack[len(stack)-1])
		if mark != nil && done(head) {
			stack = stack[:len(stack)-1]
			continue
		}

		var pending []ID
		if !(head.IsProbabilistic() && head.HasValue()) {
			pending = g.pending(head, done)
		}
		if len(pending) > 0 {
			stack = append(stack, pending...)
			continue
		}

		stack = stack[:len(stack)-1]
		if err := g.update(head); err != nil {
			return err
		}
		if mark != nil {
			mark(head)
		}
	}
	return nil
}

// pending returns v's distinct parents that are not done.
func (g *Graph) pending(v *Vertex, done func(*Vertex) bool) []ID {
	var out []ID
	for i, pid := range v.parents {
		if duplicateBefore(v.parents, i) {
			continue
		}
		if !done(g.mustAt(pid)) {
			out = append(out, pid)
		}
	}
	return out
}

func duplicateBefore(ids []ID, i int) bool {
	for _, id := range ids[:i] {
		if id == ids[i] {
			return true
		}
	}
	return false
}

// unvalued returns v's parents that have no value.
func (g *Graph) unvalued(parents []ID) []*Vertex {
	var out []*Vertex
	for _, pid := range parents {
		if p := g.mustAt(pid); !p.HasValue() {
			out = append(out, p)
		}
	}
	return out
}

// update brings one vertex up to date from its parents' current values.
func (g *Graph) update(v *Vertex) error {
	switch v.role {
	case RoleDeterministic:
		return g.recompute(v)
	case RoleProbabilistic:
		if v.HasValue() {
			return nil
		}
		return g.sample(v)
	default:
		return nil
	}
}

func (g *Graph) recompute(v *Vertex) error {
	inputs, err := g.parentValues(v)
	if err != nil {
		return err
	}
	out, err := v.op.Compute(inputs)
	if err != nil {
		return classify(v.id, v.op.Name(), err)
	}
	if !out.Shape().Equal(v.sig.Shape) {
		return newError(ErrCodeShapeMismatch, v.id, "%s produced shape %s, expected %s", v.op.Name(), out.Shape(), v.sig.Shape)
	}
	v.value = out.AsKind(v.sig.Kind)
	return nil
}

func (g *Graph) sample(v *Vertex) error {
	params, err := g.parentValues(v)
	if err != nil {
		return err
	}
	out, err := v.dist.Sample(g.random, params, v.sig.Shape)
	if err != nil {
		return fmt.Errorf("sample %s: %w", v.Name(), classify(v.id, v.dist.Name(), err))
	}
	v.value = out.AsKind(v.sig.Kind)
	return nil
}
