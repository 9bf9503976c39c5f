package graph

import (
	"github.com/roach88/probgraph/internal/tensor"
)

// Role is the fixed role of a vertex.
type Role int

const (
	// RoleConstant vertices hold a value fixed at construction.
	RoleConstant Role = iota + 1
	// RoleDeterministic vertices compute a pure function of their parents.
	RoleDeterministic
	// RoleProbabilistic vertices are random draws, possibly observed.
	RoleProbabilistic
)

func (r Role) String() string {
	switch r {
	case RoleConstant:
		return "constant"
	case RoleDeterministic:
		return "deterministic"
	case RoleProbabilistic:
		return "probabilistic"
	default:
		return "unknown"
	}
}

// Vertex is one node of a Graph.
//
// Identity, role, operation or distribution, and signature never change
// after construction. Value and the observed flag change during propagation
// and sampling.
type Vertex struct {
	id    ID
	label string
	role  Role

	op   Operation    // RoleDeterministic only
	dist Distribution // RoleProbabilistic only
	sig  tensor.Signature

	parents  []ID // ordered, duplicates allowed
	children []ID // ascending, distinct, derived from parents

	value    tensor.Tensor
	observed bool
}

// ID returns the vertex's id.
func (v *Vertex) ID() ID { return v.id }

// Label returns the vertex's label, or "" if unlabelled.
func (v *Vertex) Label() string { return v.label }

// Name returns the label if set, else the id.
func (v *Vertex) Name() string {
	if v.label != "" {
		return v.label
	}
	return v.id.String()
}

// Role returns the vertex's role.
func (v *Vertex) Role() Role { return v.role }

// Operation returns the operation of a deterministic vertex, nil otherwise.
func (v *Vertex) Operation() Operation { return v.op }

// Distribution returns the distribution of a probabilistic vertex, nil
// otherwise.
func (v *Vertex) Distribution() Distribution { return v.dist }

// Shape returns the shape of the vertex's values.
func (v *Vertex) Shape() tensor.Shape { return v.sig.Shape.Clone() }

// Kind returns the value kind of the vertex's values.
func (v *Vertex) Kind() tensor.Kind { return v.sig.Kind }

// Signature returns shape and kind together.
func (v *Vertex) Signature() tensor.Signature {
	return tensor.Signature{Shape: v.Shape(), Kind: v.sig.Kind}
}

// Parents returns a copy of the ordered parent ids.
func (v *Vertex) Parents() []ID { return append([]ID(nil), v.parents...) }

// Children returns a copy of the ascending child ids.
func (v *Vertex) Children() []ID { return append([]ID(nil), v.children...) }

func (v *Vertex) IsConstant() bool      { return v.role == RoleConstant }
func (v *Vertex) IsDeterministic() bool { return v.role == RoleDeterministic }
func (v *Vertex) IsProbabilistic() bool { return v.role == RoleProbabilistic }

// IsObserved reports whether the vertex holds an externally fixed value.
func (v *Vertex) IsObserved() bool { return v.observed }

// IsLatent reports whether the vertex is an unobserved probabilistic vertex.
func (v *Vertex) IsLatent() bool { return v.role == RoleProbabilistic && !v.observed }

// IsDifferentiable reports whether derivatives can flow through the vertex:
// a deterministic vertex whose operation has a Jacobian, or a probabilistic
// vertex with floating-point values. Constants report false; callers treat
// them as provably constant instead.
func (v *Vertex) IsDifferentiable() bool {
	switch v.role {
	case RoleDeterministic:
		_, ok := v.op.(DifferentiableOperation)
		return ok
	case RoleProbabilistic:
		return v.sig.Kind.Has(tensor.FloatingPoint)
	default:
		return false
	}
}

// HasValue reports whether the vertex currently holds a value.
func (v *Vertex) HasValue() bool { return !v.value.IsEmpty() }

// Value returns the current value, empty if none.
func (v *Vertex) Value() tensor.Tensor { return v.value }

// SetValue replaces the vertex's value without propagating. The value must
// have the vertex's shape; it is relabelled with the vertex's kind.
func (v *Vertex) SetValue(t tensor.Tensor) error {
	if t.IsEmpty() {
		return newError(ErrCodeMissingValue, v.id, "cannot set an empty value")
	}
	if !t.Shape().Equal(v.sig.Shape) {
		return &Error{
			Code:    ErrCodeShapeMismatch,
			Vertex:  v.id,
			Message: "value shape " + t.Shape().String() + " does not match vertex shape " + v.sig.Shape.String(),
		}
	}
	v.value = t.AsKind(v.sig.Kind)
	return nil
}

// Observe fixes the value of a probabilistic vertex. Observed vertices are
// never resampled and contribute a log-probability term.
func (v *Vertex) Observe(t tensor.Tensor) error {
	if v.role != RoleProbabilistic {
		return newError(ErrCodeNotProbabilistic, v.id, "only probabilistic vertices can be observed (role %s)", v.role)
	}
	if err := v.SetValue(t); err != nil {
		return err
	}
	v.observed = true
	return nil
}

// Unobserve makes an observed vertex latent again. Its value is kept.
func (v *Vertex) Unobserve() {
	v.observed = false
}

func (v *Vertex) addChild(c ID) {
	for i, existing := range v.children {
		if existing == c {
			return
		}
		if existing > c {
			v.children = append(v.children, 0)
			copy(v.children[i+1:], v.children[i:])
			v.children[i] = c
			return
		}
	}
	v.children = append(v.children, c)
}

func (v *Vertex) removeChild(c ID) {
	for i, existing := range v.children {
		if existing == c {
			v.children = append(v.children[:i], v.children[i+1:]...)
			return
		}
	}
}
