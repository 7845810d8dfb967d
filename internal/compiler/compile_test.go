package compiler

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lcagraph/internal/bundle"
	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/store"
	"github.com/roach88/lcagraph/internal/testutil"
)

func seededStore(t *testing.T) (*store.Memory, testutil.Fixture) {
	t.Helper()
	st := store.NewMemory(store.WithClock(testutil.NewDeterministicClock().Now))
	fx, err := testutil.Seed(context.Background(), st)
	require.NoError(t, err)
	return st, fx
}

func TestCompileLCI(t *testing.T) {
	st, fx := seededStore(t)

	vectors, err := CompileLCI(context.Background(), st, fx.Database)
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	bio := vectors[0]
	assert.Equal(t, MatrixBiosphere, bio.Matrix)
	assert.Equal(t, "us_eeio_1.1 biosphere", bio.Name)
	assert.Equal(t, []bundle.Index{{Row: 30, Col: 10}}, bio.Indices)
	assert.Equal(t, []float64{2.5}, bio.Data)
	assert.Nil(t, bio.Flip)
	assert.Nil(t, bio.GlobalIndex)

	tech := vectors[1]
	assert.Equal(t, MatrixTechnosphere, tech.Matrix)
	assert.Equal(t, "us_eeio_1.1 technosphere", tech.Name)
	assert.Equal(t, []bundle.Index{{Row: 20, Col: 10}, {Row: 20, Col: 10}}, tech.Indices)
	assert.Equal(t, []float64{1.0, 5.0}, tech.Data)
	assert.Equal(t, []bool{true, false}, tech.Flip)
}

func TestCompileLCIA(t *testing.T) {
	st, fx := seededStore(t)

	vectors, err := CompileLCIA(context.Background(), st, fx.ImpactCategory)
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	cf := vectors[0]
	assert.Equal(t, MatrixCharacterization, cf.Matrix)
	assert.Equal(t, "climate_change characterization", cf.Name)
	assert.Equal(t, []bundle.Index{{Row: 30, Col: 0}}, cf.Indices)
	assert.Equal(t, []float64{1.0}, cf.Data)
	require.NotNil(t, cf.GlobalIndex)
	assert.Equal(t, 0, *cf.GlobalIndex)
	assert.Nil(t, cf.Flip)
}

func TestCompile_KindGate(t *testing.T) {
	st, fx := seededStore(t)
	ctx := context.Background()

	_, err := CompileLCI(ctx, st, fx.ImpactCategory)
	require.Error(t, err)
	assert.True(t, graph.IsInvalidKind(err))

	_, err = CompileLCIA(ctx, st, fx.Database)
	require.Error(t, err)
	assert.True(t, graph.IsInvalidKind(err))

	_, err = Compile(ctx, st, graph.Subgraph{ID: 9, Name: "odd", Kind: "spreadsheet"})
	require.Error(t, err)
	assert.True(t, graph.IsInvalidKind(err))
}

func TestCompile_Dispatch(t *testing.T) {
	st, fx := seededStore(t)
	ctx := context.Background()

	lci, err := Compile(ctx, st, fx.Database)
	require.NoError(t, err)
	assert.Len(t, lci, 2)

	lcia, err := Compile(ctx, st, fx.ImpactCategory)
	require.NoError(t, err)
	assert.Len(t, lcia, 1)
}

func TestCompile_EmptySubgraphs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	b := testutil.NewBuilder(ctx, st)
	db := b.Subgraph(1, "empty db", graph.KindDatabase)
	ic := b.Subgraph(2, "empty ic", graph.KindImpactCategory)
	require.NoError(t, b.Err())

	lci, err := CompileLCI(ctx, st, db)
	require.NoError(t, err)
	require.Len(t, lci, 2)
	assert.Equal(t, 0, lci[0].Len())
	assert.Equal(t, 0, lci[1].Len())
	assert.NotNil(t, lci[1].Flip, "technosphere always carries a flip array")
	assert.NoError(t, lci[1].Validate())

	lcia, err := CompileLCIA(ctx, st, ic)
	require.NoError(t, err)
	require.Len(t, lcia, 1)
	assert.Equal(t, 0, lcia[0].Len())
	require.NotNil(t, lcia[0].GlobalIndex)
}

func TestCompileLCI_MembershipAnchoredOnActivity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	b := testutil.NewBuilder(ctx, st)
	db := b.Subgraph(1, "db", graph.KindDatabase)
	b.Subgraph(2, "other", graph.KindDatabase)
	b.Node(10, 1, "activity", graph.NodeActivity, "")
	b.Node(20, 2, "foreign product", graph.NodeProduct, "")
	b.Node(30, 2, "foreign flow", graph.NodeElementary, "")
	b.Node(11, 2, "foreign activity", graph.NodeActivity, "")
	b.Edge(1, 20, 10, 1.5) // consumed by our activity
	b.Edge(2, 10, 20, 3.0) // produced by our activity
	b.Edge(3, 30, 10, 0.2) // emitted by our activity
	b.Edge(4, 30, 11, 9.9) // belongs to the other database
	require.NoError(t, b.Err())

	vectors, err := CompileLCI(ctx, st, db)
	require.NoError(t, err)

	assert.Equal(t, []bundle.Index{{Row: 30, Col: 10}}, vectors[0].Indices)
	assert.Equal(t, []bundle.Index{{Row: 20, Col: 10}, {Row: 20, Col: 10}}, vectors[1].Indices)
	assert.Equal(t, []float64{1.5, 3.0}, vectors[1].Data)
}

func TestCompileLCI_FlipPrefix(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	b := testutil.NewBuilder(ctx, st)
	db := b.Subgraph(1, "db", graph.KindDatabase)
	b.Node(10, 1, "a1", graph.NodeActivity, "")
	b.Node(11, 1, "a2", graph.NodeActivity, "")
	b.Node(20, 1, "p1", graph.NodeProduct, "")
	b.Node(21, 1, "p2", graph.NodeProduct, "")
	// Production edges first by id, consumption later: output order must
	// still put consumption first.
	b.Edge(1, 10, 20, 1)
	b.Edge(2, 11, 21, 1)
	b.Edge(3, 20, 11, 0.5)
	b.Edge(4, 21, 10, 0.25)
	b.Edge(5, 20, 10, 0.125)
	require.NoError(t, b.Err())

	vectors, err := CompileLCI(ctx, st, db)
	require.NoError(t, err)

	tech := vectors[1]
	assert.Equal(t, []bool{true, true, true, false, false}, tech.Flip)
	assert.Equal(t, []bundle.Index{
		{Row: 20, Col: 11}, {Row: 21, Col: 10}, {Row: 20, Col: 10},
		{Row: 20, Col: 10}, {Row: 21, Col: 11},
	}, tech.Indices)
	assert.Equal(t, []float64{0.5, 0.25, 0.125, 1, 1}, tech.Data)
}

func TestCompileLCI_Idempotent(t *testing.T) {
	st, fx := seededStore(t)
	ctx := context.Background()

	first, err := CompileLCI(ctx, st, fx.Database)
	require.NoError(t, err)
	second, err := CompileLCI(ctx, st, fx.Database)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// edgeReader serves canned edges to exercise paths a real store cannot reach.
type edgeReader struct {
	edges []graph.EdgeTuple
	err   error
}

func (r edgeReader) Subgraph(context.Context, int64) (graph.Subgraph, error) {
	return graph.Subgraph{}, errors.New("unused")
}

func (r edgeReader) ListSubgraphs(context.Context) ([]graph.Subgraph, error) {
	return nil, errors.New("unused")
}

func (r edgeReader) EdgesByRoles(context.Context, graph.RoleQuery) ([]graph.EdgeTuple, error) {
	return r.edges, r.err
}

func TestCompile_IndexOverflow(t *testing.T) {
	r := edgeReader{edges: []graph.EdgeTuple{{FromID: math.MaxInt32 + 1, ToID: 10, Amount: 1}}}
	ctx := context.Background()

	_, err := CompileLCI(ctx, r, graph.Subgraph{ID: 1, Name: "db", Kind: graph.KindDatabase})
	require.Error(t, err)
	assert.True(t, graph.IsIndexOverflow(err))

	_, err = CompileLCIA(ctx, r, graph.Subgraph{ID: 2, Name: "ic", Kind: graph.KindImpactCategory})
	require.Error(t, err)
	assert.True(t, graph.IsIndexOverflow(err))
}

func TestCompile_MaxInt32Fits(t *testing.T) {
	r := edgeReader{edges: []graph.EdgeTuple{{FromID: math.MaxInt32, ToID: 1, Amount: 1}}}

	vectors, err := CompileLCIA(context.Background(), r, graph.Subgraph{ID: 2, Name: "ic", Kind: graph.KindImpactCategory})
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), vectors[0].Indices[0].Row)
}

func TestCompile_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	r := edgeReader{err: boom}

	_, err := CompileLCI(context.Background(), r, graph.Subgraph{ID: 1, Name: "db", Kind: graph.KindDatabase})
	require.ErrorIs(t, err, boom)
}

// The consumption and production edges between the same product/activity
// pair land on the same cell with opposite flips. Both survive packaging.
func TestEndToEnd_FlipClassesKeptApart(t *testing.T) {
	st, fx := seededStore(t)

	vectors, err := CompileLCI(context.Background(), st, fx.Database)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "us_eeio_1.1.zip")
	w := bundle.Create(path, fx.Database.Name, true, false)
	for _, v := range vectors {
		require.NoError(t, w.AddVector(v))
	}
	require.NoError(t, w.Finalize())

	pkg, err := bundle.Load(path)
	require.NoError(t, err)

	bio, ok := pkg.Resource("us_eeio_1.1 biosphere")
	require.True(t, ok)
	assert.Equal(t, []bundle.Index{{Row: 30, Col: 10}}, bio.Indices)
	assert.Equal(t, []float64{2.5}, bio.Data)

	tech, ok := pkg.Resource("us_eeio_1.1 technosphere")
	require.True(t, ok)
	assert.Equal(t, []bundle.Index{{Row: 20, Col: 10}, {Row: 20, Col: 10}}, tech.Indices)
	assert.Equal(t, []float64{1.0, 5.0}, tech.Data)
	assert.Equal(t, []bool{true, false}, tech.Flip)
}
