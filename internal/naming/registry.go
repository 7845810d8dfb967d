package naming

import (
	"errors"
	"sort"
	"sync"

	"github.com/roach88/lcagraph/internal/graph"
)

// Registry tracks which subgraph owns each sanitized token.
//
// Thread-safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	owners map[string]int64
	tokens map[int64]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[string]int64),
		tokens: make(map[int64]string),
	}
}

// Claim records that subgraph id owns Sanitize(name) and returns the token.
// Claiming the token of another subgraph fails with SANITIZATION_COLLISION.
// A subgraph that is renamed releases its previous token.
func (r *Registry) Claim(id int64, name string) (string, error) {
	token := Sanitize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[token]; ok && owner != id {
		return "", graph.NewCollisionError(token, owner, id)
	}
	if prev, ok := r.tokens[id]; ok && prev != token {
		delete(r.owners, prev)
	}
	r.owners[token] = id
	r.tokens[id] = token
	return token, nil
}

// Collisions groups subgraph ids by token and returns only the tokens shared
// by more than one subgraph. Ids within a group are sorted ascending.
func Collisions(subgraphs []graph.Subgraph) map[string][]int64 {
	groups := make(map[string][]int64)
	for _, sg := range subgraphs {
		token := Sanitize(sg.Name)
		groups[token] = append(groups[token], sg.ID)
	}
	for token, ids := range groups {
		if len(ids) < 2 {
			delete(groups, token)
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return groups
}

// CheckCollisions returns one SANITIZATION_COLLISION error per shared token,
// joined, or nil when every subgraph has its own token.
func CheckCollisions(subgraphs []graph.Subgraph) error {
	groups := Collisions(subgraphs)
	if len(groups) == 0 {
		return nil
	}
	tokens := make([]string, 0, len(groups))
	for token := range groups {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	errs := make([]error, 0, len(tokens))
	for _, token := range tokens {
		errs = append(errs, graph.NewCollisionError(token, groups[token]...))
	}
	return errors.Join(errs...)
}
