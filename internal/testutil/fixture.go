package testutil

import (
	"context"
	"fmt"

	"github.com/roach88/lcagraph/internal/graph"
)

// Writer is the write side of a graph store. Both store.Store and
// store.Memory satisfy it.
type Writer interface {
	CreateSubgraph(ctx context.Context, sg graph.Subgraph) (graph.Subgraph, error)
	CreateNode(ctx context.Context, n graph.Node) (graph.Node, error)
	CreateEdge(ctx context.Context, e graph.Edge) (graph.Edge, error)
}

// Fixture ids. They are fixed so that compiled bundles can be compared
// against literal expectations.
const (
	DatabaseID       int64 = 1
	ImpactCategoryID int64 = 2

	ActivityID   int64 = 10
	ProductID    int64 = 20
	FlowID       int64 = 30
	MidpointID   int64 = 40
	BiosphereID  int64 = 100
	ConsumeID    int64 = 101
	ProduceID    int64 = 102
	CharactersID int64 = 103
)

// Fixture names.
const (
	DatabaseName       = "US EEIO 1.1"
	ImpactCategoryName = "Climate Change"
)

// Fixture is the reference graph: one database with an activity, a product
// and an elementary flow, and one impact category with a midpoint.
//
//	30 (flow)     -> 10 (activity)  2.5  biosphere
//	20 (product)  -> 10 (activity)  1.0  consumption
//	10 (activity) -> 20 (product)   5.0  production
//	30 (flow)     -> 40 (midpoint)  1.0  characterization
type Fixture struct {
	Database       graph.Subgraph
	ImpactCategory graph.Subgraph
}

// Builder populates a graph store.
type Builder struct {
	ctx context.Context
	w   Writer
	err error
}

// NewBuilder returns a builder that writes through w. The first error stops
// every later call; check it with Err.
func NewBuilder(ctx context.Context, w Writer) *Builder {
	return &Builder{ctx: ctx, w: w}
}

// Subgraph creates a subgraph with an explicit id.
func (b *Builder) Subgraph(id int64, name string, kind graph.SubgraphKind) graph.Subgraph {
	if b.err != nil {
		return graph.Subgraph{}
	}
	sg, err := b.w.CreateSubgraph(b.ctx, graph.Subgraph{ID: id, Name: name, Kind: kind})
	if err != nil {
		b.err = fmt.Errorf("fixture subgraph %d: %w", id, err)
	}
	return sg
}

// Node creates a node with an explicit id.
func (b *Builder) Node(id, subgraphID int64, name string, kind graph.NodeKind, unit string) graph.Node {
	if b.err != nil {
		return graph.Node{}
	}
	n := graph.Node{ID: id, Name: name, Kind: kind, SubgraphID: subgraphID}
	if unit != "" {
		n.Unit = &unit
	}
	n, err := b.w.CreateNode(b.ctx, n)
	if err != nil {
		b.err = fmt.Errorf("fixture node %d: %w", id, err)
	}
	return n
}

// Edge creates an edge with an explicit id.
func (b *Builder) Edge(id, from, to int64, amount float64) graph.Edge {
	if b.err != nil {
		return graph.Edge{}
	}
	e, err := b.w.CreateEdge(b.ctx, graph.Edge{ID: id, FromNodeID: from, ToNodeID: to, Amount: amount})
	if err != nil {
		b.err = fmt.Errorf("fixture edge %d: %w", id, err)
	}
	return e
}

// Err returns the first error encountered.
func (b *Builder) Err() error {
	return b.err
}

// Seed writes the reference graph.
func Seed(ctx context.Context, w Writer) (Fixture, error) {
	b := NewBuilder(ctx, w)

	db := b.Subgraph(DatabaseID, DatabaseName, graph.KindDatabase)
	ic := b.Subgraph(ImpactCategoryID, ImpactCategoryName, graph.KindImpactCategory)

	b.Node(ActivityID, DatabaseID, "electricity production", graph.NodeActivity, "")
	b.Node(ProductID, DatabaseID, "electricity", graph.NodeProduct, "kWh")
	b.Node(FlowID, DatabaseID, "carbon dioxide", graph.NodeElementary, "kg")
	b.Node(MidpointID, ImpactCategoryID, ImpactCategoryName, graph.NodeMidpoint, "kg CO2-eq.")

	b.Edge(BiosphereID, FlowID, ActivityID, 2.5)
	b.Edge(ConsumeID, ProductID, ActivityID, 1.0)
	b.Edge(ProduceID, ActivityID, ProductID, 5.0)
	b.Edge(CharactersID, FlowID, MidpointID, 1.0)

	if err := b.Err(); err != nil {
		return Fixture{}, err
	}
	return Fixture{Database: db, ImpactCategory: ic}, nil
}
