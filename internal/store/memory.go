package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/lcagraph/internal/graph"
)

// Memory is an in-process graph store with the same ordering and integrity
// rules as the SQL stores.
//
// Writers are serialized: WithTx holds the write lock for the whole call, so
// writes from other goroutines wait for the transaction instead of being
// lost to its rollback. Reads are not blocked and may observe uncommitted
// changes.
type Memory struct {
	writeMu   sync.Mutex
	mu        sync.RWMutex
	subgraphs map[int64]graph.Subgraph
	nodes     map[int64]graph.Node
	edges     map[int64]graph.Edge
	nextID    int64
	now       func() time.Time
}

var (
	_ GraphStore = (*Store)(nil)
	_ GraphStore = (*Memory)(nil)
)

// NewMemory returns an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	// Options target *Store; borrow its clock.
	cfg := &Store{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Memory{
		subgraphs: make(map[int64]graph.Subgraph),
		nodes:     make(map[int64]graph.Node),
		edges:     make(map[int64]graph.Edge),
		now:       cfg.now,
	}
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func (m *Memory) allocID(explicit int64, taken func(int64) bool) (int64, error) {
	if explicit < 0 {
		return 0, fmt.Errorf("invalid id %d", explicit)
	}
	if explicit > 0 {
		if taken(explicit) {
			return 0, fmt.Errorf("id %d already exists", explicit)
		}
		if explicit > m.nextID {
			m.nextID = explicit
		}
		return explicit, nil
	}
	for {
		m.nextID++
		if !taken(m.nextID) {
			return m.nextID, nil
		}
	}
}

func (m *Memory) CreateSubgraph(_ context.Context, sg graph.Subgraph) (graph.Subgraph, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.createSubgraph(sg)
}

func (m *Memory) createSubgraph(sg graph.Subgraph) (graph.Subgraph, error) {
	if sg.Name == "" {
		return graph.Subgraph{}, fmt.Errorf("create subgraph: name is required")
	}
	if !sg.Kind.Valid() {
		return graph.Subgraph{}, fmt.Errorf("create subgraph %q: unknown kind %q", sg.Name, sg.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.allocID(sg.ID, func(id int64) bool { _, ok := m.subgraphs[id]; return ok })
	if err != nil {
		return graph.Subgraph{}, fmt.Errorf("create subgraph %q: %w", sg.Name, err)
	}
	sg.ID = id
	if sg.Modified.IsZero() {
		sg.Modified = m.now()
	}
	sg.Modified = fromMillis(toMillis(sg.Modified))
	m.subgraphs[id] = sg
	return sg, nil
}

func (m *Memory) CreateNode(_ context.Context, n graph.Node) (graph.Node, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.createNode(n)
}

func (m *Memory) createNode(n graph.Node) (graph.Node, error) {
	if !n.Kind.Valid() {
		return graph.Node{}, fmt.Errorf("create node %q: unknown kind %q", n.Name, n.Kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subgraphs[n.SubgraphID]; !ok {
		return graph.Node{}, fmt.Errorf("create node %q: %w", n.Name, graph.NewNotFoundError("subgraph", n.SubgraphID))
	}
	id, err := m.allocID(n.ID, func(id int64) bool { _, ok := m.nodes[id]; return ok })
	if err != nil {
		return graph.Node{}, fmt.Errorf("create node %q: %w", n.Name, err)
	}
	n.ID = id
	n.Unit = copyString(n.Unit)
	n.Location = copyString(n.Location)
	m.nodes[id] = n
	m.touch(n.SubgraphID)
	return n, nil
}

func (m *Memory) CreateEdge(_ context.Context, e graph.Edge) (graph.Edge, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.createEdge(e)
}

func (m *Memory) createEdge(e graph.Edge) (graph.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, ok := m.nodes[e.FromNodeID]
	if !ok {
		return graph.Edge{}, fmt.Errorf("create edge: from node: %w", graph.NewNotFoundError("node", e.FromNodeID))
	}
	to, ok := m.nodes[e.ToNodeID]
	if !ok {
		return graph.Edge{}, fmt.Errorf("create edge: to node: %w", graph.NewNotFoundError("node", e.ToNodeID))
	}
	id, err := m.allocID(e.ID, func(id int64) bool { _, ok := m.edges[id]; return ok })
	if err != nil {
		return graph.Edge{}, fmt.Errorf("create edge %d->%d: %w", e.FromNodeID, e.ToNodeID, err)
	}
	e.ID = id
	m.edges[id] = e
	m.touch(from.SubgraphID)
	m.touch(to.SubgraphID)
	return e, nil
}

// TouchSubgraph records a structural change to the subgraph.
func (m *Memory) TouchSubgraph(_ context.Context, id int64) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subgraphs[id]; !ok {
		return graph.NewNotFoundError("subgraph", id)
	}
	m.touch(id)
	return nil
}

// touch must be called with mu held.
func (m *Memory) touch(id int64) {
	sg := m.subgraphs[id]
	sg.Modified = fromMillis(toMillis(m.now()))
	m.subgraphs[id] = sg
}

func (m *Memory) Subgraph(_ context.Context, id int64) (graph.Subgraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sg, ok := m.subgraphs[id]
	if !ok {
		return graph.Subgraph{}, graph.NewNotFoundError("subgraph", id)
	}
	return sg, nil
}

func (m *Memory) SubgraphByName(_ context.Context, name string) (graph.Subgraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range slices.Sorted(maps.Keys(m.subgraphs)) {
		if sg := m.subgraphs[id]; sg.Name == name {
			return sg, nil
		}
	}
	return graph.Subgraph{}, &graph.Error{
		Code:    graph.ErrCodeNotFound,
		Message: fmt.Sprintf("subgraph %q not found", name),
	}
}

func (m *Memory) ListSubgraphs(_ context.Context) ([]graph.Subgraph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []graph.Subgraph
	for _, id := range slices.Sorted(maps.Keys(m.subgraphs)) {
		out = append(out, m.subgraphs[id])
	}
	return out, nil
}

func (m *Memory) Nodes(_ context.Context, subgraphID int64) ([]graph.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []graph.Node
	for _, id := range slices.Sorted(maps.Keys(m.nodes)) {
		if n := m.nodes[id]; n.SubgraphID == subgraphID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) EdgesByRoles(_ context.Context, q graph.RoleQuery) ([]graph.EdgeTuple, error) {
	if q.SubgraphID <= 0 {
		return nil, fmt.Errorf("role query: invalid subgraph id %d", q.SubgraphID)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []graph.EdgeTuple
	for _, id := range slices.Sorted(maps.Keys(m.edges)) {
		e := m.edges[id]
		from, to := m.nodes[e.FromNodeID], m.nodes[e.ToNodeID]
		if q.FromKind != "" && from.Kind != q.FromKind {
			continue
		}
		if q.ToKind != "" && to.Kind != q.ToKind {
			continue
		}
		anchor := to
		if q.Anchor == graph.From {
			anchor = from
		}
		if anchor.SubgraphID != q.SubgraphID {
			continue
		}
		out = append(out, graph.EdgeTuple{FromID: e.FromNodeID, ToID: e.ToNodeID, Amount: e.Amount})
	}
	return out, nil
}

func (m *Memory) Stats(_ context.Context, subgraphID int64) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st Stats
	for _, n := range m.nodes {
		if n.SubgraphID == subgraphID {
			st.Nodes++
		}
	}
	for _, e := range m.edges {
		if m.nodes[e.ToNodeID].SubgraphID == subgraphID {
			st.Edges++
		}
	}
	return st, nil
}

// WithTx applies fn atomically: on error every change made through the
// writer is discarded. Other writers wait until fn returns.
func (m *Memory) WithTx(_ context.Context, fn func(GraphWriter) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	snap := memorySnapshot{
		subgraphs: maps.Clone(m.subgraphs),
		nodes:     maps.Clone(m.nodes),
		edges:     maps.Clone(m.edges),
		nextID:    m.nextID,
	}
	m.mu.RUnlock()

	if err := fn(memoryTx{m}); err != nil {
		m.mu.Lock()
		m.subgraphs, m.nodes, m.edges, m.nextID = snap.subgraphs, snap.nodes, snap.edges, snap.nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// memoryTx writes on behalf of WithTx, which already holds writeMu.
type memoryTx struct{ m *Memory }

func (tx memoryTx) CreateSubgraph(_ context.Context, sg graph.Subgraph) (graph.Subgraph, error) {
	return tx.m.createSubgraph(sg)
}

func (tx memoryTx) CreateNode(_ context.Context, n graph.Node) (graph.Node, error) {
	return tx.m.createNode(n)
}

func (tx memoryTx) CreateEdge(_ context.Context, e graph.Edge) (graph.Edge, error) {
	return tx.m.createEdge(e)
}

type memorySnapshot struct {
	subgraphs map[int64]graph.Subgraph
	nodes     map[int64]graph.Node
	edges     map[int64]graph.Edge
	nextID    int64
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
