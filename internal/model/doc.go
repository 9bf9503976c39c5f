// Package model compiles CUE model descriptions into graphs.
//
// A model description names the model and lists its vertices in
// declaration order:
//
//	name: "regression"
//	vertices: [
//		{label: "mu", constant: 0},
//		{label: "sigma", constant: 1},
//		{label: "x", dist: "gaussian", params: ["mu", "sigma"]},
//		{label: "y", op: "exp", inputs: ["x"]},
//		{label: "obs", dist: "gaussian", params: ["y", "sigma"], observe: 2.5},
//	]
//
// Every entry is exactly one of a constant, an operation over earlier
// labels, or a distribution over earlier labels. Declaration order is
// construction order, so vertex ids follow the declaration and every
// reference points backwards.
//
// Labels are NFC-normalised on the way in, so a label typed with combining
// characters and one typed precomposed name the same vertex.
package model
