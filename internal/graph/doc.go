// Package graph implements the vertex graph of a probabilistic model and the
// propagation protocol every inference algorithm builds on.
//
// # Graph Model
//
// A Graph is an arena of vertices indexed by id. Edges are stored as id
// lists: each vertex holds its ordered parent ids and the derived, ascending
// list of child ids. Ids come from the graph's own IDAllocator, so a vertex
// always has a higher id than each of its parents and ascending id is a valid
// topological order. SetParents refuses rewiring that would introduce a cycle
// (CYCLIC_GRAPH) or a parent newer than its child (ID_ORDER).
//
// Each vertex has one of three roles:
//
//   - Constant: value fixed at construction
//   - Deterministic: value is Operation.Compute over the parents' values
//   - Probabilistic: value is a draw from a Distribution parameterised by the
//     parents' values, or an externally observed value
//
// # Propagation
//
// Cascade pushes a change forward in ascending-id order using a min-heap and
// never enqueues probabilistic children. Eval and LazyEval pull values
// backwards from targets with an explicit stack. Eval remembers what it
// computed during the call and never recomputes a vertex twice; LazyEval
// treats any vertex that already has a value as computed and keeps no
// memory, so shared ancestors without values may be recomputed.
//
// # Lambda Sections
//
// UpstreamLambdaSection and DownstreamLambdaSection return the vertices
// reachable from a start set without passing through a probabilistic
// vertex. The probabilistic vertices where expansion stopped form the
// boundary.
//
// # Concurrency
//
// A Graph is not safe for concurrent use. Independent chains each own a
// Graph built with its own IDAllocator and random source.
package graph
