package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lcagraph/internal/graph"
)

// lciFixture builds the database/activity/product/flow graph:
//
//	20 (product) -> 10 (activity)   2.5  consumption
//	10 (activity) -> 20 (product)   1.0  production
//	30 (flow)     -> 10 (activity)  0.7  biosphere
type lciFixture struct {
	db, bio graph.Subgraph
}

func seedLCI(t *testing.T, st GraphStore) lciFixture {
	t.Helper()
	ctx := context.Background()

	db, err := st.CreateSubgraph(ctx, graph.Subgraph{ID: 1, Name: "US EEIO 1.1", Kind: graph.KindDatabase})
	require.NoError(t, err)
	bio, err := st.CreateSubgraph(ctx, graph.Subgraph{ID: 2, Name: "biosphere", Kind: graph.KindDatabase})
	require.NoError(t, err)

	for _, n := range []graph.Node{
		{ID: 10, Name: "electricity production", Kind: graph.NodeActivity, SubgraphID: db.ID},
		{ID: 20, Name: "electricity", Kind: graph.NodeProduct, Unit: strPtr("kWh"), SubgraphID: db.ID},
		{ID: 30, Name: "carbon dioxide", Kind: graph.NodeElementary, Unit: strPtr("kg"), SubgraphID: bio.ID},
	} {
		_, err := st.CreateNode(ctx, n)
		require.NoError(t, err)
	}
	for _, e := range []graph.Edge{
		{ID: 100, FromNodeID: 20, ToNodeID: 10, Amount: 2.5},
		{ID: 101, FromNodeID: 10, ToNodeID: 20, Amount: 1.0},
		{ID: 102, FromNodeID: 30, ToNodeID: 10, Amount: 0.7},
	} {
		_, err := st.CreateEdge(ctx, e)
		require.NoError(t, err)
	}
	return lciFixture{db: db, bio: bio}
}

func TestCreateSubgraph_AssignsID(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()

		a, err := st.CreateSubgraph(ctx, graph.Subgraph{Name: "a", Kind: graph.KindDatabase})
		require.NoError(t, err)
		b, err := st.CreateSubgraph(ctx, graph.Subgraph{Name: "b", Kind: graph.KindImpactCategory})
		require.NoError(t, err)

		assert.Positive(t, a.ID)
		assert.Greater(t, b.ID, a.ID)
		assert.False(t, a.Modified.IsZero())

		got, err := st.Subgraph(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b, got)
	})
}

func TestCreateSubgraph_Validation(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()

		_, err := st.CreateSubgraph(ctx, graph.Subgraph{Kind: graph.KindDatabase})
		assert.Error(t, err)

		_, err = st.CreateSubgraph(ctx, graph.Subgraph{Name: "x", Kind: "spreadsheet"})
		assert.Error(t, err)
	})
}

func TestSubgraph_NotFound(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		_, err := st.Subgraph(context.Background(), 42)
		require.Error(t, err)
		assert.True(t, graph.IsNotFound(err))

		_, err = st.SubgraphByName(context.Background(), "nope")
		assert.True(t, graph.IsNotFound(err))
	})
}

func TestSubgraphByName_LowestID(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		_, err := st.CreateSubgraph(ctx, graph.Subgraph{ID: 7, Name: "dup", Kind: graph.KindDatabase})
		require.NoError(t, err)
		_, err = st.CreateSubgraph(ctx, graph.Subgraph{ID: 3, Name: "dup", Kind: graph.KindDatabase})
		require.NoError(t, err)

		sg, err := st.SubgraphByName(ctx, "dup")
		require.NoError(t, err)
		assert.Equal(t, int64(3), sg.ID)
	})
}

func TestListSubgraphs_OrderedByID(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		for _, id := range []int64{5, 2, 9} {
			_, err := st.CreateSubgraph(ctx, graph.Subgraph{ID: id, Name: "sg", Kind: graph.KindDatabase})
			require.NoError(t, err)
		}

		list, err := st.ListSubgraphs(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []int64{2, 5, 9}, []int64{list[0].ID, list[1].ID, list[2].ID})
	})
}

func TestCreateNode_RequiresSubgraph(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		_, err := st.CreateNode(context.Background(), graph.Node{Name: "n", Kind: graph.NodeProduct, SubgraphID: 99})
		require.Error(t, err)
		assert.True(t, graph.IsNotFound(err))
	})
}

func TestCreateNode_BumpsModified(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		sg, err := st.CreateSubgraph(ctx, graph.Subgraph{Name: "db", Kind: graph.KindDatabase})
		require.NoError(t, err)

		_, err = st.CreateNode(ctx, graph.Node{Name: "n", Kind: graph.NodeProduct, SubgraphID: sg.ID})
		require.NoError(t, err)

		after, err := st.Subgraph(ctx, sg.ID)
		require.NoError(t, err)
		assert.True(t, after.Modified.After(sg.Modified))
	})
}

func TestCreateEdge_RequiresEndpoints(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		sg, err := st.CreateSubgraph(ctx, graph.Subgraph{Name: "db", Kind: graph.KindDatabase})
		require.NoError(t, err)
		n, err := st.CreateNode(ctx, graph.Node{Name: "n", Kind: graph.NodeProduct, SubgraphID: sg.ID})
		require.NoError(t, err)

		_, err = st.CreateEdge(ctx, graph.Edge{FromNodeID: n.ID, ToNodeID: 999, Amount: 1})
		require.Error(t, err)
		assert.True(t, graph.IsNotFound(err))
	})
}

func TestCreateEdge_BumpsBothSubgraphs(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		fx := seedLCI(t, st)

		db, err := st.Subgraph(ctx, fx.db.ID)
		require.NoError(t, err)
		bio, err := st.Subgraph(ctx, fx.bio.ID)
		require.NoError(t, err)

		// The last edge (30 -> 10) touched bio then db.
		assert.True(t, db.Modified.After(bio.Modified) || db.Modified.Equal(bio.Modified))
		assert.True(t, bio.Modified.After(fx.bio.Modified))
	})
}

func TestNodes_OrderedAndCopied(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		fx := seedLCI(t, st)

		nodes, err := st.Nodes(ctx, fx.db.ID)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, int64(10), nodes[0].ID)
		assert.Nil(t, nodes[0].Unit)
		assert.Equal(t, int64(20), nodes[1].ID)
		require.NotNil(t, nodes[1].Unit)
		assert.Equal(t, "kWh", *nodes[1].Unit)
	})
}

func TestEdgesByRoles(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		fx := seedLCI(t, st)

		tests := []struct {
			name string
			q    graph.RoleQuery
			want []graph.EdgeTuple
		}{
			{
				name: "biosphere anchored on activity",
				q:    graph.RoleQuery{FromKind: graph.NodeElementary, ToKind: graph.NodeActivity, Anchor: graph.To, SubgraphID: fx.db.ID},
				want: []graph.EdgeTuple{{FromID: 30, ToID: 10, Amount: 0.7}},
			},
			{
				name: "consumption",
				q:    graph.RoleQuery{FromKind: graph.NodeProduct, ToKind: graph.NodeActivity, Anchor: graph.To, SubgraphID: fx.db.ID},
				want: []graph.EdgeTuple{{FromID: 20, ToID: 10, Amount: 2.5}},
			},
			{
				name: "production",
				q:    graph.RoleQuery{FromKind: graph.NodeActivity, ToKind: graph.NodeProduct, Anchor: graph.From, SubgraphID: fx.db.ID},
				want: []graph.EdgeTuple{{FromID: 10, ToID: 20, Amount: 1.0}},
			},
			{
				name: "anchor outside subgraph",
				q:    graph.RoleQuery{FromKind: graph.NodeElementary, ToKind: graph.NodeActivity, Anchor: graph.To, SubgraphID: fx.bio.ID},
				want: nil,
			},
			{
				name: "edges into subgraph in id order",
				q:    graph.EdgesInto(fx.db.ID),
				want: []graph.EdgeTuple{
					{FromID: 20, ToID: 10, Amount: 2.5},
					{FromID: 10, ToID: 20, Amount: 1.0},
					{FromID: 30, ToID: 10, Amount: 0.7},
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := st.EdgesByRoles(ctx, tt.q)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func TestEdgesByRoles_InvalidSubgraph(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		_, err := st.EdgesByRoles(context.Background(), graph.EdgesInto(0))
		assert.Error(t, err)
	})
}

func TestStats(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		fx := seedLCI(t, st)

		stats, err := st.Stats(context.Background(), fx.db.ID)
		require.NoError(t, err)
		assert.Equal(t, Stats{Nodes: 2, Edges: 3}, stats)
	})
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := st.WithTx(ctx, func(w GraphWriter) error {
			if _, err := w.CreateSubgraph(ctx, graph.Subgraph{Name: "tmp", Kind: graph.KindDatabase}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		list, err := st.ListSubgraphs(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestWithTx_Commits(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()

		err := st.WithTx(ctx, func(w GraphWriter) error {
			sg, err := w.CreateSubgraph(ctx, graph.Subgraph{Name: "db", Kind: graph.KindDatabase})
			if err != nil {
				return err
			}
			_, err = w.CreateNode(ctx, graph.Node{Name: "n", Kind: graph.NodeActivity, SubgraphID: sg.ID})
			return err
		})
		require.NoError(t, err)

		sg, err := st.SubgraphByName(ctx, "db")
		require.NoError(t, err)
		nodes, err := st.Nodes(ctx, sg.ID)
		require.NoError(t, err)
		assert.Len(t, nodes, 1)
	})
}

func TestSeedBasicData_Idempotent(t *testing.T) {
	backends(t, func(t *testing.T, st GraphStore) {
		ctx := context.Background()

		require.NoError(t, SeedBasicData(ctx, st))
		require.NoError(t, SeedBasicData(ctx, st))

		list, err := st.ListSubgraphs(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, BasicDatabaseName, list[0].Name)
		assert.Equal(t, graph.KindDatabase, list[0].Kind)
		assert.Equal(t, BasicImpactCategoryName, list[1].Name)
		assert.Equal(t, graph.KindImpactCategory, list[1].Kind)

		nodes, err := st.Nodes(ctx, list[1].ID)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, graph.NodeMidpoint, nodes[0].Kind)
		require.NotNil(t, nodes[0].Unit)
		assert.Equal(t, BasicMidpointUnit, *nodes[0].Unit)
	})
}

func TestMemory_WithTxSerializesWriters(t *testing.T) {
	m := NewMemory(WithClock(fixedClock()))
	ctx := context.Background()

	inTx := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- m.WithTx(ctx, func(w GraphWriter) error {
			_, err := w.CreateSubgraph(ctx, graph.Subgraph{Name: "rolled back", Kind: graph.KindDatabase})
			close(inTx)
			if err != nil {
				return err
			}
			<-release
			return errors.New("abort")
		})
	}()
	<-inTx

	created := make(chan error, 1)
	go func() {
		_, err := m.CreateSubgraph(ctx, graph.Subgraph{Name: "outside", Kind: graph.KindDatabase})
		created <- err
	}()

	select {
	case <-created:
		t.Fatal("write outside the transaction completed while it was open")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.EqualError(t, <-txDone, "abort")
	require.NoError(t, <-created)

	list, err := m.ListSubgraphs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "outside", list[0].Name)
}
