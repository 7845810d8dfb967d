// Package compiler turns graph subgraphs into sparse matrix vectors.
//
// A database subgraph compiles to two vectors:
//
//   - biosphere: elementary flow -> activity edges, row = flow, col = activity
//   - technosphere: product -> activity edges (consumption, flipped) followed
//     by activity -> product edges (production), row = product, col = activity
//
// An impact category subgraph compiles to one characterization vector: every
// edge into the subgraph, row = source node, pinned to global column 0.
//
// Rows and columns are raw node ids. Nothing is renumbered; ids that do not
// fit in int32 fail with INDEX_OVERFLOW. Empty selections produce zero-length
// vectors, never errors.
package compiler
