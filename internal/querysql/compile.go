// Package querysql compiles graph role queries to parameterized SQL for the
// SQLite and Postgres graph stores.
//
// Every compiled query orders by edge id so that stores return edges in a
// stable order, and every value is passed as a parameter, never interpolated.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/lcagraph/internal/graph"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = iota
	// Postgres uses $1, $2, ... placeholders.
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// SQLCompiler compiles graph.RoleQuery values to SQL.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// predicate is one "column = ?" conjunct.
type predicate struct {
	column string
	value  any
}

// Compile converts a role query to SQL selecting (from_node_id, to_node_id,
// amount). Returns (sql, params, error).
func (c *SQLCompiler) Compile(q graph.RoleQuery) (string, []any, error) {
	if q.SubgraphID <= 0 {
		return "", nil, fmt.Errorf("role query: invalid subgraph id %d", q.SubgraphID)
	}
	if q.FromKind != "" && !q.FromKind.Valid() {
		return "", nil, fmt.Errorf("role query: unknown from kind %q", q.FromKind)
	}
	if q.ToKind != "" && !q.ToKind.Valid() {
		return "", nil, fmt.Errorf("role query: unknown to kind %q", q.ToKind)
	}

	var preds []predicate
	if q.FromKind != "" {
		preds = append(preds, predicate{"f.kind", string(q.FromKind)})
	}
	if q.ToKind != "" {
		preds = append(preds, predicate{"t.kind", string(q.ToKind)})
	}
	switch q.Anchor {
	case graph.From:
		preds = append(preds, predicate{"f.subgraph_id", q.SubgraphID})
	case graph.To:
		preds = append(preds, predicate{"t.subgraph_id", q.SubgraphID})
	default:
		return "", nil, fmt.Errorf("role query: invalid anchor %d", int(q.Anchor))
	}

	where, params := compileAnd(preds)

	sql := "SELECT e.from_node_id, e.to_node_id, e.amount" +
		" FROM edges e" +
		" JOIN nodes f ON e.from_node_id = f.id" +
		" JOIN nodes t ON e.to_node_id = t.id" +
		" WHERE " + where +
		" ORDER BY " + stableOrderKey()

	return c.Rebind(sql), params, nil
}

// compileAnd joins predicates with AND, collecting parameters in order.
func compileAnd(preds []predicate) (string, []any) {
	parts := make([]string, 0, len(preds))
	params := make([]any, 0, len(preds))
	for _, p := range preds {
		parts = append(parts, p.column+" = ?")
		params = append(params, p.value)
	}
	return strings.Join(parts, " AND "), params
}

// stableOrderKey is the mandatory ORDER BY of every edge query.
func stableOrderKey() string {
	return "e.id ASC"
}

// Rebind rewrites ? placeholders for the compiler's dialect. Question marks
// inside single-quoted literals are left alone.
func (c *SQLCompiler) Rebind(query string) string {
	return Rebind(c.Dialect, query)
}

// Rebind rewrites ? placeholders for d.
func Rebind(d Dialect, query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
