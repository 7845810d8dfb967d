package store

import (
	"context"
	"fmt"

	"github.com/roach88/lcagraph/internal/graph"
)

// Basic data installed by SeedBasicData.
const (
	BasicDatabaseName       = "US EEIO 1.1"
	BasicImpactCategoryName = "Climate Change"
	BasicMidpointUnit       = "kg CO2-eq."
)

// SeedBasicData installs the default database and impact category, plus the
// impact category's midpoint node. Existing subgraphs with these names are
// left as they are, so seeding twice is a no-op.
func SeedBasicData(ctx context.Context, st GraphStore) error {
	// Lookups happen before the transaction: the SQLite store has a single
	// connection and the transaction holds it.
	haveDB, err := hasSubgraph(ctx, st, BasicDatabaseName)
	if err != nil {
		return err
	}
	haveIC, err := hasSubgraph(ctx, st, BasicImpactCategoryName)
	if err != nil {
		return err
	}
	if haveDB && haveIC {
		return nil
	}

	return st.WithTx(ctx, func(w GraphWriter) error {
		if !haveDB {
			if _, err := w.CreateSubgraph(ctx, graph.Subgraph{Name: BasicDatabaseName, Kind: graph.KindDatabase}); err != nil {
				return fmt.Errorf("seed %q: %w", BasicDatabaseName, err)
			}
		}
		if haveIC {
			return nil
		}

		ic, err := w.CreateSubgraph(ctx, graph.Subgraph{Name: BasicImpactCategoryName, Kind: graph.KindImpactCategory})
		if err != nil {
			return fmt.Errorf("seed %q: %w", BasicImpactCategoryName, err)
		}
		unit := BasicMidpointUnit
		_, err = w.CreateNode(ctx, graph.Node{
			Name:       BasicImpactCategoryName,
			Kind:       graph.NodeMidpoint,
			Unit:       &unit,
			SubgraphID: ic.ID,
		})
		if err != nil {
			return fmt.Errorf("seed midpoint: %w", err)
		}
		return nil
	})
}

func hasSubgraph(ctx context.Context, st GraphStore, name string) (bool, error) {
	_, err := st.SubgraphByName(ctx, name)
	if err == nil {
		return true, nil
	}
	if graph.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("seed %q: %w", name, err)
}
