package graph

import (
	"errors"
	"fmt"
)

// Error is a structural error detected while building or propagating a
// graph. Structural errors are fatal: nothing in this package retries or
// recovers from them.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Vertex identifies the offending vertex, zero if none.
	Vertex ID

	// Err is the underlying cause, if any (for example a tensor.ShapeError).
	Err error
}

// ErrorCode categorizes structural errors.
type ErrorCode string

const (
	// ErrCodeCyclicGraph indicates an edge would close a cycle.
	ErrCodeCyclicGraph ErrorCode = "CYCLIC_GRAPH"

	// ErrCodeShapeMismatch indicates incompatible value shapes.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"

	// ErrCodeIndexOutOfBounds indicates an index outside a tensor or list.
	ErrCodeIndexOutOfBounds ErrorCode = "INDEX_OUT_OF_BOUNDS"

	// ErrCodeUnknownVertex indicates a vertex that does not belong to the graph.
	ErrCodeUnknownVertex ErrorCode = "UNKNOWN_VERTEX"

	// ErrCodeIDOrder indicates a parent created after its child.
	ErrCodeIDOrder ErrorCode = "ID_ORDER"

	// ErrCodeNotProbabilistic indicates a probabilistic-only operation
	// (observe, log-probability) on another role.
	ErrCodeNotProbabilistic ErrorCode = "NOT_PROBABILISTIC"

	// ErrCodeCapability indicates an operation applied to a value kind
	// lacking the required capability.
	ErrCodeCapability ErrorCode = "CAPABILITY"

	// ErrCodeMissingValue indicates a computation read a vertex with no value.
	ErrCodeMissingValue ErrorCode = "MISSING_VALUE"

	// ErrCodeDuplicateLabel indicates a label already used in the graph.
	ErrCodeDuplicateLabel ErrorCode = "DUPLICATE_LABEL"

	// ErrCodeInvalidEdge indicates parents on a constant vertex or a
	// parent count the vertex's operation does not accept.
	ErrCodeInvalidEdge ErrorCode = "INVALID_EDGE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Vertex != 0 {
		msg = fmt.Sprintf("%s (vertex=%s)", msg, e.Vertex)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCycleError returns true if the error is a cyclic graph error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCyclicGraph)
}

// IsShapeError returns true if the error is a shape mismatch.
func IsShapeError(err error) bool {
	return hasCode(err, ErrCodeShapeMismatch)
}

// Code returns the code of the first graph Error in err's chain, or "".
func Code(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return Code(err) == code
}

func newError(code ErrorCode, v ID, format string, args ...any) *Error {
	return &Error{Code: code, Vertex: v, Message: fmt.Sprintf(format, args...)}
}

// NewCycleError creates an Error for an edge that would close a cycle
// through the given path of ids.
func NewCycleError(v ID, path []ID) *Error {
	return &Error{
		Code:    ErrCodeCyclicGraph,
		Vertex:  v,
		Message: fmt.Sprintf("parent would create cycle %v", path),
	}
}
