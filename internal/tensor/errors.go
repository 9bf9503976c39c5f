package tensor

import (
	"errors"
	"fmt"
)

// ShapeError reports incompatible or invalid shapes.
type ShapeError struct {
	// Op names the operation that rejected the shapes.
	Op string

	// Left and Right are the offending shapes. Right is nil for unary checks.
	Left  Shape
	Right Shape

	// Message is a human-readable description.
	Message string
}

func (e *ShapeError) Error() string {
	if e.Right != nil {
		return fmt.Sprintf("%s: %s (shapes %s and %s)", e.Op, e.Message, e.Left, e.Right)
	}
	return fmt.Sprintf("%s: %s (shape %s)", e.Op, e.Message, e.Left)
}

// CapabilityError reports an operation applied to a kind lacking a trait.
type CapabilityError struct {
	Op   string
	Kind Kind
	Need Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s values are not %s", e.Op, e.Kind, e.Need)
}

// IsShapeError returns true if err is or wraps a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsCapabilityError returns true if err is or wraps a CapabilityError.
func IsCapabilityError(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

func mismatch(op string, a, b Shape) error {
	return &ShapeError{Op: op, Left: a, Right: b, Message: "shapes do not match"}
}
