// Package autodiff differentiates through a probabilistic graph.
//
// Three tools live here:
//
//   - The differentiability checker decides whether derivatives of a set of
//     target vertices can flow back to every latent they depend on. A
//     vertex without a Jacobian blocks the flow unless its value is provably
//     constant (it depends only on constants and observations).
//   - Forward mode seeds one with-respect-to vertex and pushes partials
//     down in ascending id order.
//   - Reverse mode seeds one "of" vertex and pulls vector-Jacobian products
//     up in descending id order.
//
// Both modes read the values already held by the graph: every vertex they
// visit must have been evaluated. Neither mode checks differentiability on
// its own; they simply refuse to step through vertices without a Jacobian.
// Run CheckDifferentiable first when the graph comes from outside.
//
// Layouts follow the tensor package: a forward partial of O with respect to
// W has shape O⊗W, a reverse partial has shape W⊗O. tensor.SwapGroups
// converts between the two.
package autodiff
