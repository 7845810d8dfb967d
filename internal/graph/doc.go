// Package graph provides the node/edge/subgraph types shared by every other
// lcagraph package, the role query shape understood by graph stores, and the
// error taxonomy of the compiler pipeline.
//
// This package imports nothing internal. Stores, the matrix compiler and the
// bundle writer all depend on it, never the other way around.
//
// Key constraints:
//   - Node ids are the raw integer identifiers assigned by the store; nothing
//     in this package renumbers them
//   - Node kind decides how an edge is interpreted during compilation
//   - Edges carry no sign; sign comes from the target matrix convention
package graph
