package storygraph

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memStore keeps projects as JSON so every Load returns a decoded document,
// the same shape a real store hands back.
type memStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string][]byte{}}
}

func (m *memStore) Load(_ context.Context, project string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[project]
	if !ok {
		return NewProject(), nil
	}
	p := &Project{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *memStore) Save(_ context.Context, project string, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	m.docs[project] = raw
	m.saves++
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var errDiskFull = errors.New("disk full")

func mustNode(t *testing.T, g *Graph, typ NodeType) *Node {
	t.Helper()
	n, err := g.CreateNode(typ, Position{})
	require.NoError(t, err)
	return n
}

func mustEdge(t *testing.T, g *Graph, src, dst *Node, sp, dp Port) Edge {
	t.Helper()
	e, ok := g.CreateEdge(src.ID, dst.ID, sp, dp)
	require.True(t, ok, "edge %s.%s -> %s.%s", src.ID, sp, dst.ID, dp)
	return e
}

func strPtr(s string) *string { return &s }
