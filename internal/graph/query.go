package graph

import (
	"context"
	"fmt"
)

// Endpoint selects one side of an edge.
type Endpoint int

const (
	// From is the edge source.
	From Endpoint = iota
	// To is the edge target.
	To
)

func (e Endpoint) String() string {
	if e == From {
		return "from"
	}
	return "to"
}

// RoleQuery selects edges by the kinds of their endpoints and by the subgraph
// membership of one anchor endpoint.
//
// An empty FromKind or ToKind matches any node kind. Anchor names the endpoint
// whose node must belong to SubgraphID.
//
//	RoleQuery{FromKind: NodeProduct, ToKind: NodeActivity, Anchor: To, SubgraphID: 7}
//
// selects every product->activity edge whose activity lives in subgraph 7.
type RoleQuery struct {
	FromKind   NodeKind
	ToKind     NodeKind
	Anchor     Endpoint
	SubgraphID int64
}

func (q RoleQuery) String() string {
	from, to := string(q.FromKind), string(q.ToKind)
	if from == "" {
		from = "*"
	}
	if to == "" {
		to = "*"
	}
	return fmt.Sprintf("%s->%s (%s in subgraph %d)", from, to, q.Anchor, q.SubgraphID)
}

// Reader is the read side of a graph store as seen by the compiler.
//
// Implementations must return edges in a stable order (ascending edge id) so
// that compiling the same graph state twice yields identical bundles.
type Reader interface {
	Subgraph(ctx context.Context, id int64) (Subgraph, error)
	ListSubgraphs(ctx context.Context) ([]Subgraph, error)
	EdgesByRoles(ctx context.Context, q RoleQuery) ([]EdgeTuple, error)
}

// EdgesInto is the characterization query: every edge whose target node
// belongs to the subgraph, regardless of node kinds.
func EdgesInto(subgraphID int64) RoleQuery {
	return RoleQuery{Anchor: To, SubgraphID: subgraphID}
}
