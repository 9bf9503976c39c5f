package tensor

import (
	"fmt"
	"strings"
)

// Shape is the list of dimension lengths of a tensor. The empty shape is a
// scalar.
type Shape []int

// Size returns the number of elements. A scalar has size 1.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// IsScalar reports whether the shape holds exactly one element.
func (s Shape) IsScalar() bool {
	return s.Size() == 1
}

// Equal reports whether both shapes have the same dimensions.
// A nil shape equals an empty shape.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no storage with s.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Validate rejects non-positive dimensions. Zero-size tensors are not
// representable.
func (s Shape) Validate() error {
	for i, d := range s {
		if d <= 0 {
			return &ShapeError{
				Op:      "shape",
				Left:    s,
				Message: fmt.Sprintf("dimension %d has non-positive length %d", i, d),
			}
		}
	}
	return nil
}

// String renders the shape as [d0 d1 ...].
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Concat returns a⊗b, the shape of a derivative of a value of shape a with
// respect to a value of shape b.
func Concat(a, b Shape) Shape {
	out := make(Shape, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
