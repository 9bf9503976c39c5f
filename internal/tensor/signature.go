package tensor

import "fmt"

// Signature describes a value's shape and kind without holding elements.
// Graph construction infers signatures before any value exists.
type Signature struct {
	Shape Shape
	Kind  Kind
}

// Signature returns the tensor's shape and kind.
func (t Tensor) Signature() Signature {
	return Signature{Shape: t.Shape(), Kind: t.kind}
}

// Equal reports whether shape and kind both match.
func (s Signature) Equal(o Signature) bool {
	return s.Kind == o.Kind && s.Shape.Equal(o.Shape)
}

func (s Signature) String() string {
	return fmt.Sprintf("%s%s", s.Kind, s.Shape)
}
