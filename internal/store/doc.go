// Package store provides the graph store: subgraphs, nodes and edges in
// SQLite (mattn/go-sqlite3) or Postgres (pgx), plus an in-memory store with
// the same behaviour for tests.
//
// # Lifecycle
//
// A store is opened explicitly (Open, OpenPostgres, NewMemory) and closed by
// its owner. There is no package-level connection.
//
// # Ordering
//
// Every list query orders by id, and edge role queries order by edge id, so
// repeated compilations of the same graph state see identical input.
//
// # Modification tracking
//
// Creating a node bumps its subgraph's modified time; creating an edge bumps
// the subgraphs of both endpoints. Compilation never touches modified.
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: edges must reference existing nodes
package store
