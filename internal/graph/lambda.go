package graph

import "slices"

// LambdaSection is the part of a graph reachable from a set of origin
// vertices without passing through a probabilistic vertex.
//
// When one latent changes, only its downstream lambda section can change
// value or log-probability: deterministic descendants are recomputed and the
// probabilistic boundary vertices see new parameters. Everything past the
// boundary is unaffected.
//
// A LambdaSection is a read-only snapshot of the wiring at the time it was
// computed. All id lists are ascending.
type LambdaSection struct {
	origin       []ID
	probOrigin   []ID
	vertices     []ID
	boundary     []ID
	withBoundary bool
}

// Origin returns the start vertices.
func (s LambdaSection) Origin() []ID { return slices.Clone(s.origin) }

// Vertices returns the reachable vertices, not including the origin. The
// boundary is included when the section was built with includeBoundary.
func (s LambdaSection) Vertices() []ID { return slices.Clone(s.vertices) }

// Boundary returns the probabilistic vertices where expansion stopped.
func (s LambdaSection) Boundary() []ID { return slices.Clone(s.boundary) }

// Probabilistic returns the probabilistic origins plus the boundary: every
// vertex whose log-probability a change to the origin can affect.
func (s LambdaSection) Probabilistic() []ID {
	return union(s.probOrigin, s.boundary)
}

// Affected returns the origin plus every reachable vertex, boundary
// included: every vertex whose value a change to the origin can affect.
func (s LambdaSection) Affected() []ID {
	return union(union(s.origin, s.vertices), s.boundary)
}

// IncludesBoundary reports whether Vertices contains the boundary.
func (s LambdaSection) IncludesBoundary() bool { return s.withBoundary }

// Contains reports whether id is in Vertices.
func (s LambdaSection) Contains(id ID) bool {
	_, ok := slices.BinarySearch(s.vertices, id)
	return ok
}

// Union merges two sections computed in the same direction. A vertex that
// is an origin of either section is an origin of the result, never a
// reachable or boundary vertex.
func (s LambdaSection) Union(o LambdaSection) LambdaSection {
	origin := union(s.origin, o.origin)
	return LambdaSection{
		origin:       origin,
		probOrigin:   union(s.probOrigin, o.probOrigin),
		vertices:     minus(union(s.vertices, o.vertices), origin),
		boundary:     minus(union(s.boundary, o.boundary), origin),
		withBoundary: s.withBoundary || o.withBoundary,
	}
}

// UpstreamLambdaSection walks parents from the given vertices.
func (g *Graph) UpstreamLambdaSection(from []*Vertex, includeBoundary bool) (LambdaSection, error) {
	return g.lambdaSection(from, includeBoundary, func(v *Vertex) []ID { return v.parents })
}

// DownstreamLambdaSection walks children from the given vertices.
func (g *Graph) DownstreamLambdaSection(from []*Vertex, includeBoundary bool) (LambdaSection, error) {
	return g.lambdaSection(from, includeBoundary, func(v *Vertex) []ID { return v.children })
}

// lambdaSection is a breadth-first walk that expands origins and
// non-probabilistic vertices and stops at probabilistic ones.
func (g *Graph) lambdaSection(from []*Vertex, includeBoundary bool, next func(*Vertex) []ID) (LambdaSection, error) {
	s := LambdaSection{withBoundary: includeBoundary}
	visited := make(map[ID]bool, len(from))
	queue := make([]ID, 0, len(from))
	for _, v := range from {
		if err := g.owns(v); err != nil {
			return LambdaSection{}, err
		}
		if visited[v.id] {
			continue
		}
		visited[v.id] = true
		s.origin = append(s.origin, v.id)
		if v.IsProbabilistic() {
			s.probOrigin = append(s.probOrigin, v.id)
		}
		queue = append(queue, v.id)
	}

	for len(queue) > 0 {
		v := g.mustAt(queue[0])
		queue = queue[1:]
		for _, n := range next(v) {
			if visited[n] {
				continue
			}
			visited[n] = true
			if g.mustAt(n).IsProbabilistic() {
				s.boundary = append(s.boundary, n)
				if includeBoundary {
					s.vertices = append(s.vertices, n)
				}
				continue
			}
			s.vertices = append(s.vertices, n)
			queue = append(queue, n)
		}
	}

	slices.Sort(s.origin)
	slices.Sort(s.probOrigin)
	slices.Sort(s.vertices)
	slices.Sort(s.boundary)
	return s, nil
}

// union merges two ascending id lists.
func union(a, b []ID) []ID {
	out := make([]ID, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// minus removes the ids in drop from the ascending list a.
func minus(a, drop []ID) []ID {
	out := make([]ID, 0, len(a))
	for _, id := range a {
		if _, found := slices.BinarySearch(drop, id); !found {
			out = append(out, id)
		}
	}
	return out
}
