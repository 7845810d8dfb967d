// Package loader reads graph definitions written in CUE.
//
// A definition directory holds one CUE package with three top-level fields:
//
//	subgraph: "US EEIO 1.1": {kind: "database"}
//
//	node: electricity: {
//		subgraph: "US EEIO 1.1"
//		kind:     "product"
//		unit:     "kWh"
//	}
//
//	edge: [
//		{from: "electricity", to: "electricity_production", amount: 1.0},
//	]
//
// Subgraphs are keyed by name. Nodes are keyed by a label that edges refer
// to; the node name defaults to the label. Any subgraph, node or edge may pin
// its id with an id field.
package loader
