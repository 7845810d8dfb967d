package compiler

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/lcagraph/internal/bundle"
	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/naming"
)

// Logical matrix names.
const (
	MatrixBiosphere        = "biosphere_matrix"
	MatrixTechnosphere     = "technosphere_matrix"
	MatrixCharacterization = "characterization_matrix"
)

// CharacterizationColumn is the global column every characterization entry
// is pinned to.
const CharacterizationColumn = 0

// Role queries, parameterized by subgraph id.
func biosphereQuery(id int64) graph.RoleQuery {
	return graph.RoleQuery{FromKind: graph.NodeElementary, ToKind: graph.NodeActivity, Anchor: graph.To, SubgraphID: id}
}

func consumptionQuery(id int64) graph.RoleQuery {
	return graph.RoleQuery{FromKind: graph.NodeProduct, ToKind: graph.NodeActivity, Anchor: graph.To, SubgraphID: id}
}

func productionQuery(id int64) graph.RoleQuery {
	return graph.RoleQuery{FromKind: graph.NodeActivity, ToKind: graph.NodeProduct, Anchor: graph.From, SubgraphID: id}
}

// Compile dispatches on the subgraph kind.
func Compile(ctx context.Context, r graph.Reader, sg graph.Subgraph) ([]bundle.Vector, error) {
	switch sg.Kind {
	case graph.KindDatabase:
		return CompileLCI(ctx, r, sg)
	case graph.KindImpactCategory:
		return CompileLCIA(ctx, r, sg)
	default:
		return nil, &graph.Error{
			Code:       graph.ErrCodeInvalidSubgraphKind,
			Message:    fmt.Sprintf("subgraph %q has unknown kind %q", sg.Name, sg.Kind),
			SubgraphID: sg.ID,
		}
	}
}

// CompileLCI compiles a database subgraph into its biosphere and
// technosphere vectors, in that order.
func CompileLCI(ctx context.Context, r graph.Reader, sg graph.Subgraph) ([]bundle.Vector, error) {
	if sg.Kind != graph.KindDatabase {
		return nil, graph.NewInvalidKindError(sg, graph.KindDatabase)
	}

	bio, err := compileBiosphere(ctx, r, sg)
	if err != nil {
		return nil, err
	}
	tech, err := compileTechnosphere(ctx, r, sg)
	if err != nil {
		return nil, err
	}
	return []bundle.Vector{bio, tech}, nil
}

// CompileLCIA compiles an impact category subgraph into its
// characterization vector.
func CompileLCIA(ctx context.Context, r graph.Reader, sg graph.Subgraph) ([]bundle.Vector, error) {
	if sg.Kind != graph.KindImpactCategory {
		return nil, graph.NewInvalidKindError(sg, graph.KindImpactCategory)
	}

	edges, err := selectEdges(ctx, r, graph.EdgesInto(sg.ID))
	if err != nil {
		return nil, err
	}

	col := CharacterizationColumn
	v := bundle.Vector{
		Matrix:      MatrixCharacterization,
		Name:        naming.ResourceName(sg.Name, naming.SuffixCharacterization),
		Indices:     make([]bundle.Index, 0, len(edges)),
		Data:        make([]float64, 0, len(edges)),
		GlobalIndex: &col,
	}
	for _, e := range edges {
		row, err := toIndex(sg, e.FromID)
		if err != nil {
			return nil, err
		}
		v.Indices = append(v.Indices, bundle.Index{Row: row, Col: CharacterizationColumn})
		v.Data = append(v.Data, e.Amount)
	}
	return []bundle.Vector{v}, nil
}

func compileBiosphere(ctx context.Context, r graph.Reader, sg graph.Subgraph) (bundle.Vector, error) {
	edges, err := selectEdges(ctx, r, biosphereQuery(sg.ID))
	if err != nil {
		return bundle.Vector{}, err
	}

	v := bundle.Vector{
		Matrix:  MatrixBiosphere,
		Name:    naming.ResourceName(sg.Name, naming.SuffixBiosphere),
		Indices: make([]bundle.Index, 0, len(edges)),
		Data:    make([]float64, 0, len(edges)),
	}
	for _, e := range edges {
		idx, err := edgeIndex(sg, e.FromID, e.ToID)
		if err != nil {
			return bundle.Vector{}, err
		}
		v.Indices = append(v.Indices, idx)
		v.Data = append(v.Data, e.Amount)
	}
	return v, nil
}

// compileTechnosphere emits consumption entries first, then production. Flip
// is true exactly on the consumption prefix.
func compileTechnosphere(ctx context.Context, r graph.Reader, sg graph.Subgraph) (bundle.Vector, error) {
	consumed, err := selectEdges(ctx, r, consumptionQuery(sg.ID))
	if err != nil {
		return bundle.Vector{}, err
	}
	produced, err := selectEdges(ctx, r, productionQuery(sg.ID))
	if err != nil {
		return bundle.Vector{}, err
	}

	n := len(consumed) + len(produced)
	v := bundle.Vector{
		Matrix:  MatrixTechnosphere,
		Name:    naming.ResourceName(sg.Name, naming.SuffixTechnosphere),
		Indices: make([]bundle.Index, 0, n),
		Data:    make([]float64, 0, n),
		Flip:    make([]bool, 0, n),
	}

	// product -> activity: row is the product (from), col the activity (to).
	for _, e := range consumed {
		idx, err := edgeIndex(sg, e.FromID, e.ToID)
		if err != nil {
			return bundle.Vector{}, err
		}
		v.Indices = append(v.Indices, idx)
		v.Data = append(v.Data, e.Amount)
		v.Flip = append(v.Flip, true)
	}

	// activity -> product: row is the product (to), col the activity (from).
	for _, e := range produced {
		idx, err := edgeIndex(sg, e.ToID, e.FromID)
		if err != nil {
			return bundle.Vector{}, err
		}
		v.Indices = append(v.Indices, idx)
		v.Data = append(v.Data, e.Amount)
		v.Flip = append(v.Flip, false)
	}
	return v, nil
}

func selectEdges(ctx context.Context, r graph.Reader, q graph.RoleQuery) ([]graph.EdgeTuple, error) {
	edges, err := r.EdgesByRoles(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q, err)
	}
	return edges, nil
}

func edgeIndex(sg graph.Subgraph, rowID, colID int64) (bundle.Index, error) {
	row, err := toIndex(sg, rowID)
	if err != nil {
		return bundle.Index{}, err
	}
	col, err := toIndex(sg, colID)
	if err != nil {
		return bundle.Index{}, err
	}
	return bundle.Index{Row: row, Col: col}, nil
}

// toIndex narrows a node id to the container's int32 index type.
func toIndex(sg graph.Subgraph, id int64) (int32, error) {
	if id < math.MinInt32 || id > math.MaxInt32 {
		return 0, &graph.Error{
			Code:       graph.ErrCodeIndexOverflow,
			Message:    fmt.Sprintf("node id %d does not fit in an int32 index", id),
			SubgraphID: sg.ID,
		}
	}
	return int32(id), nil
}
