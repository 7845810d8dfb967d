package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/querysql"
)

// CreateSubgraph inserts a subgraph. A zero ID lets the database assign one;
// a zero Modified is replaced by the store clock.
func (s *Store) CreateSubgraph(ctx context.Context, sg graph.Subgraph) (graph.Subgraph, error) {
	if sg.Name == "" {
		return graph.Subgraph{}, fmt.Errorf("create subgraph: name is required")
	}
	if !sg.Kind.Valid() {
		return graph.Subgraph{}, fmt.Errorf("create subgraph %q: unknown kind %q", sg.Name, sg.Kind)
	}
	if sg.Modified.IsZero() {
		sg.Modified = s.now()
	}

	id, err := s.insert(ctx, "subgraphs",
		[]string{"name", "kind", "modified"},
		[]any{sg.Name, string(sg.Kind), toMillis(sg.Modified)},
		sg.ID)
	if err != nil {
		return graph.Subgraph{}, fmt.Errorf("create subgraph %q: %w", sg.Name, err)
	}
	sg.ID = id
	sg.Modified = fromMillis(toMillis(sg.Modified))
	return sg, nil
}

// CreateNode inserts a node and bumps its subgraph's modified time.
func (s *Store) CreateNode(ctx context.Context, n graph.Node) (graph.Node, error) {
	if !n.Kind.Valid() {
		return graph.Node{}, fmt.Errorf("create node %q: unknown kind %q", n.Name, n.Kind)
	}
	if _, err := s.Subgraph(ctx, n.SubgraphID); err != nil {
		return graph.Node{}, fmt.Errorf("create node %q: %w", n.Name, err)
	}

	id, err := s.insert(ctx, "nodes",
		[]string{"name", "kind", "unit", "location", "subgraph_id"},
		[]any{n.Name, string(n.Kind), nullString(n.Unit), nullString(n.Location), n.SubgraphID},
		n.ID)
	if err != nil {
		return graph.Node{}, fmt.Errorf("create node %q: %w", n.Name, err)
	}
	n.ID = id

	if err := s.TouchSubgraph(ctx, n.SubgraphID); err != nil {
		return graph.Node{}, err
	}
	return n, nil
}

// CreateEdge inserts an edge and bumps the subgraphs of both endpoints.
// Both endpoints must exist.
func (s *Store) CreateEdge(ctx context.Context, e graph.Edge) (graph.Edge, error) {
	from, err := s.Node(ctx, e.FromNodeID)
	if err != nil {
		return graph.Edge{}, fmt.Errorf("create edge: from node: %w", err)
	}
	to, err := s.Node(ctx, e.ToNodeID)
	if err != nil {
		return graph.Edge{}, fmt.Errorf("create edge: to node: %w", err)
	}

	id, err := s.insert(ctx, "edges",
		[]string{"from_node_id", "to_node_id", "amount"},
		[]any{e.FromNodeID, e.ToNodeID, e.Amount},
		e.ID)
	if err != nil {
		return graph.Edge{}, fmt.Errorf("create edge %d->%d: %w", e.FromNodeID, e.ToNodeID, err)
	}
	e.ID = id

	if err := s.TouchSubgraph(ctx, from.SubgraphID); err != nil {
		return graph.Edge{}, err
	}
	if to.SubgraphID != from.SubgraphID {
		if err := s.TouchSubgraph(ctx, to.SubgraphID); err != nil {
			return graph.Edge{}, err
		}
	}
	return e, nil
}

// TouchSubgraph records a structural change to the subgraph.
func (s *Store) TouchSubgraph(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx,
		s.rebind("UPDATE subgraphs SET modified = ? WHERE id = ?"),
		toMillis(s.now()), id)
	if err != nil {
		return fmt.Errorf("touch subgraph %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch subgraph %d: %w", id, err)
	}
	if n == 0 {
		return graph.NewNotFoundError("subgraph", id)
	}
	return nil
}

// insert adds a row and returns its id. A non-zero explicitID is stored
// as-is; Postgres sequences are advanced past it.
func (s *Store) insert(ctx context.Context, table string, cols []string, vals []any, explicitID int64) (int64, error) {
	if explicitID < 0 {
		return 0, fmt.Errorf("invalid id %d", explicitID)
	}
	if explicitID > 0 {
		cols = append([]string{"id"}, cols...)
		vals = append([]any{explicitID}, vals...)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		table, strings.Join(cols, ", "), placeholders)

	var id int64
	if err := s.q.QueryRowContext(ctx, s.rebind(query), vals...).Scan(&id); err != nil {
		return 0, err
	}

	if explicitID > 0 && s.dialect == querysql.Postgres {
		seq := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT MAX(id) FROM %s))",
			table, table)
		if _, err := s.q.ExecContext(ctx, seq); err != nil {
			return 0, fmt.Errorf("advance %s sequence: %w", table, err)
		}
	}
	return id, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
