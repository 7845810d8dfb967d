package publish

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory keeps published bundles in process. Used by tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Publish(_ context.Context, filename string, content []byte) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("filename is required")
	}
	key := ObjectKey(filename)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), content...)
	return key, nil
}

func (m *Memory) Fetch(_ context.Context, filename string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[ObjectKey(filename)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	prefix := Prefix + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for key := range m.data {
		out = append(out, strings.TrimPrefix(key, prefix))
	}
	sort.Strings(out)
	return out, nil
}
