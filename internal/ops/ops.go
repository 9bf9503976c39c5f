// Package ops is the closed set of operations a deterministic vertex can
// compute.
//
// Every operation validates its inputs in Infer, computes in Compute, and,
// when differentiable, supplies its local Jacobian laid out as
// output-shape ⊗ input-shape. Floor and GreaterThan have no Jacobian and are
// therefore not differentiable.
package ops

import (
	"fmt"
	"sort"

	"github.com/roach88/probgraph/internal/tensor"
)

// Kind enumerates the operations.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindSub
	KindMul
	KindDiv
	KindNeg
	KindExp
	KindLog
	KindSin
	KindCos
	KindFloor
	KindSum
	KindMatMul
	KindGreaterThan
	KindWhere
)

var kindNames = map[Kind]string{
	KindAdd:         "add",
	KindSub:         "sub",
	KindMul:         "mul",
	KindDiv:         "div",
	KindNeg:         "neg",
	KindExp:         "exp",
	KindLog:         "log",
	KindSin:         "sin",
	KindCos:         "cos",
	KindFloor:       "floor",
	KindSum:         "sum",
	KindMatMul:      "matmul",
	KindGreaterThan: "gt",
	KindWhere:       "where",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(k))
}

// Op is the behaviour every operation provides. It matches the graph
// package's Operation interface.
type Op interface {
	Name() string
	Infer(inputs []tensor.Signature) (tensor.Signature, error)
	Compute(inputs []tensor.Tensor) (tensor.Tensor, error)
}

// New returns the operation of the given kind.
func New(k Kind) (Op, error) {
	switch k {
	case KindAdd, KindSub, KindMul, KindDiv:
		return elementwise{kind: k}, nil
	case KindNeg, KindExp, KindLog, KindSin, KindCos:
		return unary{kind: k}, nil
	case KindFloor:
		return floor{}, nil
	case KindSum:
		return sum{}, nil
	case KindMatMul:
		return matmul{}, nil
	case KindGreaterThan:
		return greaterThan{}, nil
	case KindWhere:
		return where{}, nil
	default:
		return nil, fmt.Errorf("unknown operation kind %d", int(k))
	}
}

// Lookup returns the operation with the given name.
func Lookup(name string) (Op, bool) {
	for k, n := range kindNames {
		if n == name {
			op, err := New(k)
			return op, err == nil
		}
	}
	return nil, false
}

// Names lists every operation name in sorted order.
func Names() []string {
	names := make([]string, 0, len(kindNames))
	for _, n := range kindNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Convenience constructors for building graphs in code.

func Add() Op         { return elementwise{kind: KindAdd} }
func Sub() Op         { return elementwise{kind: KindSub} }
func Mul() Op         { return elementwise{kind: KindMul} }
func Div() Op         { return elementwise{kind: KindDiv} }
func Neg() Op         { return unary{kind: KindNeg} }
func Exp() Op         { return unary{kind: KindExp} }
func Log() Op         { return unary{kind: KindLog} }
func Sin() Op         { return unary{kind: KindSin} }
func Cos() Op         { return unary{kind: KindCos} }
func Floor() Op       { return floor{} }
func Sum() Op         { return sum{} }
func MatMul() Op      { return matmul{} }
func GreaterThan() Op { return greaterThan{} }
func Where() Op       { return where{} }

// =============================================================================
// Helpers
// =============================================================================

func arity(name string, inputs []tensor.Signature, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("%s takes %d inputs, got %d", name, n, len(inputs))
	}
	return nil
}

func capable(name string, sig tensor.Signature, c tensor.Capability) error {
	if !sig.Kind.Has(c) {
		return &tensor.CapabilityError{Op: name, Kind: sig.Kind, Need: c}
	}
	return nil
}

// elementwiseJacobian builds d(out)/d(in) for an element-wise operation
// whose k-th output depends only on the k-th input element (or on the single
// element of a broadcast scalar input) with local derivative d[k].
func elementwiseJacobian(out, in tensor.Shape, d []float64) (tensor.Tensor, error) {
	n := out.Size()
	if in.Size() == 1 {
		return tensor.New(tensor.Concat(out, in), d)
	}
	data := make([]float64, n*n)
	for k := 0; k < n; k++ {
		data[k*n+k] = d[k]
	}
	return tensor.New(tensor.Concat(out, in), data)
}

// broadcastData returns t's elements repeated to length n if t is a scalar.
func broadcastData(t tensor.Tensor, n int) []float64 {
	data := t.Data()
	if len(data) == n {
		return data
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = data[0]
	}
	return out
}
