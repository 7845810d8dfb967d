package graph

import "time"

// SubgraphKind classifies a subgraph and gates which compile operation applies.
type SubgraphKind string

const (
	// KindDatabase is a process database compiled to biosphere and
	// technosphere matrices.
	KindDatabase SubgraphKind = "database"

	// KindImpactCategory is a characterization set compiled to a single
	// column vector.
	KindImpactCategory SubgraphKind = "impact category"
)

// Valid reports whether k is a known subgraph kind.
func (k SubgraphKind) Valid() bool {
	return k == KindDatabase || k == KindImpactCategory
}

// NodeKind is the role of a node during compilation.
type NodeKind string

const (
	NodeElementary NodeKind = "elementary"
	NodeProduct    NodeKind = "product"
	NodeActivity   NodeKind = "activity"
	NodeMidpoint   NodeKind = "midpoint"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeElementary, NodeProduct, NodeActivity, NodeMidpoint:
		return true
	}
	return false
}

// Subgraph is a named, independently compilable collection of nodes.
//
// Modified records the last structural change of the subgraph content. It is
// never bumped by compilation and never embedded in a compiled bundle.
type Subgraph struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Kind     SubgraphKind `json:"kind"`
	Modified time.Time    `json:"modified"`
}

// Node belongs to exactly one subgraph.
type Node struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Kind       NodeKind `json:"kind"`
	Unit       *string  `json:"unit,omitempty"`
	Location   *string  `json:"location,omitempty"`
	SubgraphID int64    `json:"subgraph_id"`
}

// Edge is a directed, weighted link between two nodes.
type Edge struct {
	ID         int64   `json:"id"`
	FromNodeID int64   `json:"from_node_id"`
	ToNodeID   int64   `json:"to_node_id"`
	Amount     float64 `json:"amount"`
}

// EdgeTuple is the projection of an edge returned by role queries.
type EdgeTuple struct {
	FromID int64
	ToID   int64
	Amount float64
}
