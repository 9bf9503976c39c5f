// Package tensor provides the dense float64 values carried by graph vertices.
//
// A Tensor is an immutable value: every arithmetic method returns a new
// tensor and never writes to its receiver. The one exception is AddInPlace,
// which is named as such so that aliasing is visible at the call site; it is
// only used on accumulators the caller allocated itself.
//
// Every tensor has a value Kind (Double, Integer, Boolean). Kinds are
// composed from orthogonal capabilities:
//
//   - Numeric: arithmetic (Add, Sub, Mul, Div, Neg, Floor, Sum)
//   - FloatingPoint: transcendental functions (Exp, Log, Sin, Cos)
//   - BooleanMaskable: selection masks (Where)
//
// Operations check the capability they need and fail with a CapabilityError
// rather than relying on a type hierarchy.
//
// Broadcasting is limited to scalar-with-tensor. Anything else must match
// shapes exactly.
//
// Layout helpers (ChainForward, ChainReverse, SwapGroups, ContractTrailing)
// treat a tensor of shape a⊗b as a row-major |a|×|b| matrix and delegate to
// gonum/mat. They are the only linear algebra the differentiation engine
// needs.
package tensor
