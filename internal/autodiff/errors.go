package autodiff

import (
	"errors"
	"fmt"

	"github.com/roach88/probgraph/internal/graph"
)

// NotDifferentiableError reports the vertex that blocks differentiation.
type NotDifferentiableError struct {
	// Vertex is the blocking vertex.
	Vertex graph.ID

	// Name is the vertex label, or its id when unlabelled.
	Name string

	// Reason describes why the vertex blocks.
	Reason string
}

func (e *NotDifferentiableError) Error() string {
	return fmt.Sprintf("not differentiable at %s: %s", e.Name, e.Reason)
}

// IsNotDifferentiable reports whether err is a NotDifferentiableError.
func IsNotDifferentiable(err error) bool {
	var nd *NotDifferentiableError
	return errors.As(err, &nd)
}

func blocked(v *graph.Vertex, reason string) *NotDifferentiableError {
	return &NotDifferentiableError{Vertex: v.ID(), Name: v.Name(), Reason: reason}
}

func missingValue(v *graph.Vertex) error {
	return &graph.Error{
		Code:    graph.ErrCodeMissingValue,
		Message: "differentiation needs an evaluated value",
		Vertex:  v.ID(),
	}
}
