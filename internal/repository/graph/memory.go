// Package graph persists task relationship edges.
package graph

import (
	"context"
	"sync"

	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
)

// MemoryStore keeps edges in process memory. Used for graph.driver=memory and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	edges []domgraph.Edge
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Link stores e. Storing an existing edge is a no-op.
func (m *MemoryStore) Link(_ context.Context, e domgraph.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.edges {
		if x == e {
			return nil
		}
	}
	m.edges = append(m.edges, e)
	return nil
}

// Unlink removes e if present.
func (m *MemoryStore) Unlink(_ context.Context, e domgraph.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.edges {
		if x == e {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return nil
		}
	}
	return nil
}

// Edges returns every edge touching taskID in insertion order.
func (m *MemoryStore) Edges(_ context.Context, taskID string) ([]domgraph.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domgraph.Edge
	for _, e := range m.edges {
		if e.Source == taskID || e.Target == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

// DetachAll removes every edge touching taskID.
func (m *MemoryStore) DetachAll(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.edges[:0]
	for _, e := range m.edges {
		if e.Source != taskID && e.Target != taskID {
			kept = append(kept, e)
		}
	}
	m.edges = kept
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }
