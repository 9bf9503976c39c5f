package graph

import (
	"fmt"
	"math"
	"slices"

	"github.com/roach88/probgraph/internal/random"
	"github.com/roach88/probgraph/internal/tensor"
)

// Graph is an arena of vertices indexed by id.
//
// Vertices are created through Constant, Deterministic and Probabilistic and
// are never removed. Edges are id lists; the arena resolves ids back to
// vertices.
type Graph struct {
	ids    *IDAllocator
	random random.Source

	// vertices[i] holds the vertex with id base+i, nil for ids the
	// allocator handed to someone else.
	vertices []*Vertex
	base     ID
	labels   map[string]ID
}

// Option configures a Graph.
type Option func(*Graph)

// WithIDAllocator injects the allocator the graph takes vertex ids from.
func WithIDAllocator(a *IDAllocator) Option {
	return func(g *Graph) {
		g.ids = a
	}
}

// WithRandom injects the random source used to sample probabilistic
// vertices that have no value when they are evaluated.
func WithRandom(r random.Source) Option {
	return func(g *Graph) {
		g.random = r
	}
}

// New creates an empty graph. Without options it allocates ids from 1 and
// samples with random.New(0).
func New(opts ...Option) *Graph {
	g := &Graph{labels: make(map[string]ID)}
	for _, opt := range opts {
		opt(g)
	}
	if g.ids == nil {
		g.ids = NewIDAllocator()
	}
	if g.random == nil {
		g.random = random.New(0)
	}
	g.base = g.ids.Current() + 1
	return g
}

// Random returns the graph's random source.
func (g *Graph) Random() random.Source {
	return g.random
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	n := 0
	for _, v := range g.vertices {
		if v != nil {
			n++
		}
	}
	return n
}

// Vertex resolves an id.
func (g *Graph) Vertex(id ID) (*Vertex, bool) {
	v := g.at(id)
	return v, v != nil
}

// at resolves an id, returning nil for ids outside the arena.
func (g *Graph) at(id ID) *Vertex {
	i := int64(id - g.base)
	if i < 0 || i >= int64(len(g.vertices)) {
		return nil
	}
	return g.vertices[i]
}

// mustAt resolves an id known to be an edge endpoint.
func (g *Graph) mustAt(id ID) *Vertex {
	v := g.at(id)
	if v == nil {
		panic(fmt.Sprintf("graph: dangling edge to %s", id))
	}
	return v
}

// ByLabel returns the vertex with the given label.
func (g *Graph) ByLabel(label string) (*Vertex, bool) {
	id, ok := g.labels[label]
	if !ok {
		return nil, false
	}
	return g.Vertex(id)
}

// SetLabel names a vertex. Labels are unique within a graph.
func (g *Graph) SetLabel(v *Vertex, label string) error {
	if err := g.owns(v); err != nil {
		return err
	}
	if existing, ok := g.labels[label]; ok && existing != v.id {
		return newError(ErrCodeDuplicateLabel, v.id, "label %q already names %s", label, existing)
	}
	if v.label != "" {
		delete(g.labels, v.label)
	}
	v.label = label
	if label != "" {
		g.labels[label] = v.id
	}
	return nil
}

// Vertices returns every vertex in ascending id order.
func (g *Graph) Vertices() []*Vertex {
	return g.filter(func(*Vertex) bool { return true })
}

// ProbabilisticVertices returns every probabilistic vertex in ascending id order.
func (g *Graph) ProbabilisticVertices() []*Vertex {
	return g.filter((*Vertex).IsProbabilistic)
}

// Latents returns every unobserved probabilistic vertex in ascending id
// order.
func (g *Graph) Latents() []*Vertex {
	return g.filter((*Vertex).IsLatent)
}

// Observed returns every observed vertex in ascending id order.
func (g *Graph) Observed() []*Vertex {
	return g.filter((*Vertex).IsObserved)
}

func (g *Graph) filter(keep func(*Vertex) bool) []*Vertex {
	out := make([]*Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		if v != nil && keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Resolve maps ids to vertices, failing on ids outside the graph.
func (g *Graph) Resolve(ids []ID) ([]*Vertex, error) {
	out := make([]*Vertex, len(ids))
	for i, id := range ids {
		v := g.at(id)
		if v == nil {
			return nil, newError(ErrCodeUnknownVertex, id, "vertex not in graph")
		}
		out[i] = v
	}
	return out, nil
}

// IDs returns the ids of vs in the given order.
func IDs(vs []*Vertex) []ID {
	out := make([]ID, len(vs))
	for i, v := range vs {
		out[i] = v.id
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

// Constant adds a constant vertex holding value.
func (g *Graph) Constant(value tensor.Tensor) (*Vertex, error) {
	if value.IsEmpty() {
		return nil, newError(ErrCodeMissingValue, 0, "constant requires a value")
	}
	v := &Vertex{role: RoleConstant, sig: value.Signature(), value: value}
	g.add(v)
	return v, nil
}

// Deterministic adds a vertex computing op over parents. The output
// signature is inferred immediately; the value is computed on the first
// Eval, LazyEval or Cascade that reaches it.
func (g *Graph) Deterministic(op Operation, parents ...*Vertex) (*Vertex, error) {
	sig, err := g.inferOperation(0, op, parents)
	if err != nil {
		return nil, err
	}
	v := &Vertex{role: RoleDeterministic, op: op, sig: sig}
	g.add(v)
	g.wire(v, parents)
	return v, nil
}

// Probabilistic adds a vertex drawn from d parameterised by params. A nil
// shape is inferred by broadcasting the parameter shapes.
func (g *Graph) Probabilistic(d Distribution, shape tensor.Shape, params ...*Vertex) (*Vertex, error) {
	sig, err := g.inferDistribution(0, d, shape, params)
	if err != nil {
		return nil, err
	}
	v := &Vertex{role: RoleProbabilistic, dist: d, sig: sig}
	g.add(v)
	g.wire(v, params)
	return v, nil
}

func (g *Graph) add(v *Vertex) {
	v.id = g.ids.Next()
	for g.base+ID(len(g.vertices)) < v.id {
		g.vertices = append(g.vertices, nil)
	}
	g.vertices = append(g.vertices, v)
}

func (g *Graph) wire(v *Vertex, parents []*Vertex) {
	v.parents = make([]ID, len(parents))
	for i, p := range parents {
		v.parents[i] = p.id
		p.addChild(v.id)
	}
}

func (g *Graph) owns(v *Vertex) error {
	if v == nil || g.at(v.id) != v {
		id := ID(0)
		if v != nil {
			id = v.id
		}
		return newError(ErrCodeUnknownVertex, id, "vertex does not belong to this graph")
	}
	return nil
}

func (g *Graph) signatures(parents []*Vertex) ([]tensor.Signature, error) {
	sigs := make([]tensor.Signature, len(parents))
	for i, p := range parents {
		if err := g.owns(p); err != nil {
			return nil, err
		}
		sigs[i] = p.sig
	}
	return sigs, nil
}

func (g *Graph) inferOperation(v ID, op Operation, parents []*Vertex) (tensor.Signature, error) {
	sigs, err := g.signatures(parents)
	if err != nil {
		return tensor.Signature{}, err
	}
	sig, err := op.Infer(sigs)
	if err != nil {
		return tensor.Signature{}, classify(v, op.Name(), err)
	}
	return sig, nil
}

func (g *Graph) inferDistribution(v ID, d Distribution, shape tensor.Shape, params []*Vertex) (tensor.Signature, error) {
	sigs, err := g.signatures(params)
	if err != nil {
		return tensor.Signature{}, err
	}
	if shape == nil {
		shape = tensor.Shape{}
		for _, s := range sigs {
			shape, err = tensor.BroadcastShape(d.Name(), shape, s.Shape)
			if err != nil {
				return tensor.Signature{}, classify(v, d.Name(), err)
			}
		}
	}
	if err := shape.Validate(); err != nil {
		return tensor.Signature{}, classify(v, d.Name(), err)
	}
	if err := d.Check(sigs, shape); err != nil {
		return tensor.Signature{}, classify(v, d.Name(), err)
	}
	return tensor.Signature{Shape: shape.Clone(), Kind: d.Kind()}, nil
}

// classify wraps a collaborator error in a graph Error with a matching code.
func classify(v ID, name string, err error) error {
	code := ErrCodeInvalidEdge
	switch {
	case tensor.IsShapeError(err):
		code = ErrCodeShapeMismatch
	case tensor.IsCapabilityError(err):
		code = ErrCodeCapability
	}
	return &Error{Code: code, Vertex: v, Message: name + " rejected its inputs", Err: err}
}

// SetParents rewires the inputs of a deterministic or probabilistic vertex.
//
// The new parents must produce the same output signature as the old ones.
// Rewiring fails with CYCLIC_GRAPH if a new parent is the vertex itself or
// one of its descendants, and with ID_ORDER if a new parent was created
// after the vertex, which would break ascending id as a topological order.
func (g *Graph) SetParents(v *Vertex, parents ...*Vertex) error {
	if err := g.owns(v); err != nil {
		return err
	}
	if v.role == RoleConstant {
		return newError(ErrCodeInvalidEdge, v.id, "constant vertices have no parents")
	}
	for _, p := range parents {
		if err := g.owns(p); err != nil {
			return err
		}
	}
	if path := g.cyclePath(v, parents); path != nil {
		return NewCycleError(v.id, path)
	}
	for _, p := range parents {
		if p.id >= v.id {
			return newError(ErrCodeIDOrder, v.id, "parent %s was created after its child", p.id)
		}
	}

	var sig tensor.Signature
	var err error
	if v.role == RoleDeterministic {
		sig, err = g.inferOperation(v.id, v.op, parents)
	} else {
		sig, err = g.inferDistribution(v.id, v.dist, v.sig.Shape, parents)
	}
	if err != nil {
		return err
	}
	if !sig.Equal(v.sig) {
		return newError(ErrCodeShapeMismatch, v.id, "new parents produce %s, vertex is %s", sig, v.sig)
	}

	for _, old := range v.parents {
		g.mustAt(old).removeChild(v.id)
	}
	g.wire(v, parents)
	return nil
}

// cyclePath returns the path from v down to a candidate parent if adding
// the edge would close a cycle, nil otherwise. It walks v's descendants
// with an explicit stack.
func (g *Graph) cyclePath(v *Vertex, parents []*Vertex) []ID {
	targets := make(map[ID]bool, len(parents))
	for _, p := range parents {
		if p.id == v.id {
			return []ID{v.id, v.id}
		}
		targets[p.id] = true
	}

	from := map[ID]ID{v.id: 0}
	stack := []ID{v.id}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.mustAt(id).children {
			if _, seen := from[c]; seen {
				continue
			}
			from[c] = id
			if targets[c] {
				path := []ID{c}
				for at := c; at != v.id; {
					at = from[at]
					path = append(path, at)
				}
				slices.Reverse(path)
				return append(path, v.id)
			}
			stack = append(stack, c)
		}
	}
	return nil
}

// =============================================================================
// Log-probability
// =============================================================================

// LogProb returns the log density of a probabilistic vertex's current value
// given its parents' current values. An out-of-support value yields -Inf.
func (g *Graph) LogProb(v *Vertex) (float64, error) {
	if v.role != RoleProbabilistic {
		return 0, newError(ErrCodeNotProbabilistic, v.id, "log-probability of a %s vertex", v.role)
	}
	if !v.HasValue() {
		return 0, newError(ErrCodeMissingValue, v.id, "log-probability of a vertex without value")
	}
	params, err := g.parentValues(v)
	if err != nil {
		return 0, err
	}
	lp, err := v.dist.LogProb(v.value, params)
	if err != nil {
		return 0, fmt.Errorf("log-probability of %s: %w", v.Name(), err)
	}
	return lp, nil
}

// LogProbOf sums LogProb over the given probabilistic vertices. It stops
// early once the sum is -Inf.
func (g *Graph) LogProbOf(ids []ID) (float64, error) {
	total := 0.0
	for _, id := range ids {
		v := g.at(id)
		if v == nil {
			return 0, newError(ErrCodeUnknownVertex, id, "vertex not in graph")
		}
		lp, err := g.LogProb(v)
		if err != nil {
			return 0, err
		}
		total += lp
		if math.IsInf(total, -1) {
			return total, nil
		}
	}
	return total, nil
}

// JointLogProb sums LogProb over every probabilistic vertex.
func (g *Graph) JointLogProb() (float64, error) {
	return g.LogProbOf(IDs(g.ProbabilisticVertices()))
}

// parentValues collects the parents' current values in order.
func (g *Graph) parentValues(v *Vertex) ([]tensor.Tensor, error) {
	inputs := make([]tensor.Tensor, len(v.parents))
	for i, pid := range v.parents {
		p := g.mustAt(pid)
		if !p.HasValue() {
			return nil, newError(ErrCodeMissingValue, v.id, "parent %s has no value", p.Name())
		}
		inputs[i] = p.value
	}
	return inputs, nil
}

// ParentValues is parentValues for callers outside the package, such as
// proposal distributions and the differentiation engine.
func (g *Graph) ParentValues(v *Vertex) ([]tensor.Tensor, error) {
	return g.parentValues(v)
}

// =============================================================================
// Snapshots
// =============================================================================

// Snapshot captures the exact values of a set of vertices.
type Snapshot struct {
	ids    []ID
	values []tensor.Tensor
}

// Len returns the number of captured vertices.
func (s Snapshot) Len() int { return len(s.ids) }

// Snapshot captures the current values of the given vertices, including
// the absence of a value.
func (g *Graph) Snapshot(ids []ID) Snapshot {
	s := Snapshot{ids: append([]ID(nil), ids...), values: make([]tensor.Tensor, len(ids))}
	for i, id := range ids {
		s.values[i] = g.mustAt(id).value
	}
	return s
}

// Restore puts back the values captured by Snapshot. Tensors are immutable,
// so restored values are bit-identical to the captured ones.
func (g *Graph) Restore(s Snapshot) {
	for i, id := range s.ids {
		g.mustAt(id).value = s.values[i]
	}
}
