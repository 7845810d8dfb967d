package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lcagraph/internal/graph"
)

const subgraphColumns = "id, name, kind, modified"

const nodeColumns = "id, name, kind, unit, location, subgraph_id"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubgraph(r rowScanner) (graph.Subgraph, error) {
	var sg graph.Subgraph
	var kind string
	var modified int64
	if err := r.Scan(&sg.ID, &sg.Name, &kind, &modified); err != nil {
		return graph.Subgraph{}, err
	}
	sg.Kind = graph.SubgraphKind(kind)
	sg.Modified = fromMillis(modified)
	return sg, nil
}

func scanNode(r rowScanner) (graph.Node, error) {
	var n graph.Node
	var kind string
	var unit, location sql.NullString
	if err := r.Scan(&n.ID, &n.Name, &kind, &unit, &location, &n.SubgraphID); err != nil {
		return graph.Node{}, err
	}
	n.Kind = graph.NodeKind(kind)
	if unit.Valid {
		n.Unit = &unit.String
	}
	if location.Valid {
		n.Location = &location.String
	}
	return n, nil
}

// Subgraph returns the subgraph with the given id.
// Returns a NOT_FOUND error if it does not exist.
func (s *Store) Subgraph(ctx context.Context, id int64) (graph.Subgraph, error) {
	row := s.q.QueryRowContext(ctx,
		s.rebind("SELECT "+subgraphColumns+" FROM subgraphs WHERE id = ?"), id)
	sg, err := scanSubgraph(row)
	if isNoRows(err) {
		return graph.Subgraph{}, graph.NewNotFoundError("subgraph", id)
	}
	if err != nil {
		return graph.Subgraph{}, fmt.Errorf("get subgraph %d: %w", id, err)
	}
	return sg, nil
}

// SubgraphByName returns the lowest-id subgraph with exactly this name.
func (s *Store) SubgraphByName(ctx context.Context, name string) (graph.Subgraph, error) {
	row := s.q.QueryRowContext(ctx,
		s.rebind("SELECT "+subgraphColumns+" FROM subgraphs WHERE name = ? ORDER BY id ASC LIMIT 1"), name)
	sg, err := scanSubgraph(row)
	if isNoRows(err) {
		return graph.Subgraph{}, &graph.Error{
			Code:    graph.ErrCodeNotFound,
			Message: fmt.Sprintf("subgraph %q not found", name),
		}
	}
	if err != nil {
		return graph.Subgraph{}, fmt.Errorf("get subgraph %q: %w", name, err)
	}
	return sg, nil
}

// ListSubgraphs returns every subgraph ordered by id.
func (s *Store) ListSubgraphs(ctx context.Context) ([]graph.Subgraph, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+subgraphColumns+" FROM subgraphs ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list subgraphs: %w", err)
	}
	defer rows.Close()

	var out []graph.Subgraph
	for rows.Next() {
		sg, err := scanSubgraph(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subgraph: %w", err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subgraphs: %w", err)
	}
	return out, nil
}

// Node returns the node with the given id.
func (s *Store) Node(ctx context.Context, id int64) (graph.Node, error) {
	row := s.q.QueryRowContext(ctx,
		s.rebind("SELECT "+nodeColumns+" FROM nodes WHERE id = ?"), id)
	n, err := scanNode(row)
	if isNoRows(err) {
		return graph.Node{}, graph.NewNotFoundError("node", id)
	}
	if err != nil {
		return graph.Node{}, fmt.Errorf("get node %d: %w", id, err)
	}
	return n, nil
}

// Nodes returns the nodes of a subgraph ordered by id.
func (s *Store) Nodes(ctx context.Context, subgraphID int64) ([]graph.Node, error) {
	rows, err := s.q.QueryContext(ctx,
		s.rebind("SELECT "+nodeColumns+" FROM nodes WHERE subgraph_id = ? ORDER BY id ASC"), subgraphID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []graph.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return out, nil
}

// EdgesByRoles runs a role query. Edges come back in ascending edge id order.
func (s *Store) EdgesByRoles(ctx context.Context, q graph.RoleQuery) ([]graph.EdgeTuple, error) {
	query, params, err := s.compiler.Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query edges %s: %w", q, err)
	}
	defer rows.Close()

	var out []graph.EdgeTuple
	for rows.Next() {
		var e graph.EdgeTuple
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Amount); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return out, nil
}

// EdgesInto returns every edge whose target node belongs to the subgraph.
func (s *Store) EdgesInto(ctx context.Context, subgraphID int64) ([]graph.EdgeTuple, error) {
	return s.EdgesByRoles(ctx, graph.EdgesInto(subgraphID))
}

// Stats counts the nodes of a subgraph and the edges whose target lives in it.
func (s *Store) Stats(ctx context.Context, subgraphID int64) (Stats, error) {
	var st Stats
	err := s.q.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM nodes WHERE subgraph_id = ?"), subgraphID).Scan(&st.Nodes)
	if err != nil {
		return Stats{}, fmt.Errorf("count nodes: %w", err)
	}
	err = s.q.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM edges e JOIN nodes t ON e.to_node_id = t.id WHERE t.subgraph_id = ?"),
		subgraphID).Scan(&st.Edges)
	if err != nil {
		return Stats{}, fmt.Errorf("count edges: %w", err)
	}
	return st, nil
}
