package loader

import (
	"context"
	"fmt"

	"github.com/roach88/lcagraph/internal/graph"
)

// Writer is the write side of a graph store.
type Writer interface {
	CreateSubgraph(ctx context.Context, sg graph.Subgraph) (graph.Subgraph, error)
	CreateNode(ctx context.Context, n graph.Node) (graph.Node, error)
	CreateEdge(ctx context.Context, e graph.Edge) (graph.Edge, error)
}

// ApplyResult reports what Apply created.
type ApplyResult struct {
	Subgraphs map[string]int64 // subgraph name -> id
	Nodes     map[string]int64 // node label -> id
	Edges     int
}

// Check cross-references the definition: every node names a declared
// subgraph, every edge names declared nodes, and explicit ids are unique.
func (d *Definition) Check() []error {
	var errs []error

	subgraphs := make(map[string]bool, len(d.Subgraphs))
	sgIDs := make(map[int64]string)
	for _, sg := range d.Subgraphs {
		subgraphs[sg.Name] = true
		if sg.ID == 0 {
			continue
		}
		if other, ok := sgIDs[sg.ID]; ok {
			errs = append(errs, &DefinitionError{
				Field:   "id",
				Message: fmt.Sprintf("subgraph %q reuses id %d of subgraph %q", sg.Name, sg.ID, other),
				Pos:     sg.Pos,
			})
			continue
		}
		sgIDs[sg.ID] = sg.Name
	}

	nodes := make(map[string]bool, len(d.Nodes))
	nodeIDs := make(map[int64]string)
	for _, n := range d.Nodes {
		nodes[n.Label] = true
		if !subgraphs[n.Subgraph] {
			errs = append(errs, &DefinitionError{
				Field:   "node.subgraph",
				Message: fmt.Sprintf("node %q references undefined subgraph %q", n.Label, n.Subgraph),
				Pos:     n.Pos,
			})
		}
		if n.ID == 0 {
			continue
		}
		if other, ok := nodeIDs[n.ID]; ok {
			errs = append(errs, &DefinitionError{
				Field:   "id",
				Message: fmt.Sprintf("node %q reuses id %d of node %q", n.Label, n.ID, other),
				Pos:     n.Pos,
			})
			continue
		}
		nodeIDs[n.ID] = n.Label
	}

	edgeIDs := make(map[int64]bool)
	for i, e := range d.Edges {
		if !nodes[e.From] {
			errs = append(errs, &DefinitionError{
				Field:   "edge.from",
				Message: fmt.Sprintf("edge %d references undefined node %q", i, e.From),
				Pos:     e.Pos,
			})
		}
		if !nodes[e.To] {
			errs = append(errs, &DefinitionError{
				Field:   "edge.to",
				Message: fmt.Sprintf("edge %d references undefined node %q", i, e.To),
				Pos:     e.Pos,
			})
		}
		if e.ID == 0 {
			continue
		}
		if edgeIDs[e.ID] {
			errs = append(errs, &DefinitionError{
				Field:   "id",
				Message: fmt.Sprintf("edge %d reuses id %d", i, e.ID),
				Pos:     e.Pos,
			})
		}
		edgeIDs[e.ID] = true
	}

	return errs
}

// Apply writes the definition through w: subgraphs, then nodes, then edges.
// Run it inside a transaction to make the import all-or-nothing.
func (d *Definition) Apply(ctx context.Context, w Writer) (ApplyResult, error) {
	res := ApplyResult{
		Subgraphs: make(map[string]int64, len(d.Subgraphs)),
		Nodes:     make(map[string]int64, len(d.Nodes)),
	}

	for _, def := range d.Subgraphs {
		sg, err := w.CreateSubgraph(ctx, graph.Subgraph{ID: def.ID, Name: def.Name, Kind: def.Kind})
		if err != nil {
			return res, fmt.Errorf("apply subgraph %q: %w", def.Name, err)
		}
		res.Subgraphs[def.Name] = sg.ID
	}

	for _, def := range d.Nodes {
		sgID, ok := res.Subgraphs[def.Subgraph]
		if !ok {
			return res, fmt.Errorf("apply node %q: undefined subgraph %q", def.Label, def.Subgraph)
		}
		n, err := w.CreateNode(ctx, graph.Node{
			ID:         def.ID,
			Name:       def.Name,
			Kind:       def.Kind,
			Unit:       def.Unit,
			Location:   def.Location,
			SubgraphID: sgID,
		})
		if err != nil {
			return res, fmt.Errorf("apply node %q: %w", def.Label, err)
		}
		res.Nodes[def.Label] = n.ID
	}

	for i, def := range d.Edges {
		from, okFrom := res.Nodes[def.From]
		to, okTo := res.Nodes[def.To]
		if !okFrom || !okTo {
			return res, fmt.Errorf("apply edge %d: undefined node %q or %q", i, def.From, def.To)
		}
		if _, err := w.CreateEdge(ctx, graph.Edge{ID: def.ID, FromNodeID: from, ToNodeID: to, Amount: def.Amount}); err != nil {
			return res, fmt.Errorf("apply edge %d: %w", i, err)
		}
		res.Edges++
	}

	return res, nil
}
