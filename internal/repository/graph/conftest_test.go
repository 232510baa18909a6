package graph

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/kailas-cloud/taskctx/internal/db"
	"github.com/kailas-cloud/taskctx/internal/db/sqlite"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
)

var _ hashStore = (*fakeHashStore)(nil)

// fakeHashStore is an in-memory hashStore.
type fakeHashStore struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	failAll error
}

func newFakeHashStore() *fakeHashStore {
	return &fakeHashStore{hashes: make(map[string]map[string]string)}
}

func (f *fakeHashStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		h, ok := f.hashes[it.Key]
		if !ok {
			h = make(map[string]string)
			f.hashes[it.Key] = h
		}
		for k, v := range it.Fields {
			h[k] = v
		}
	}
	return nil
}

func (f *fakeHashStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeHashStore) HDelMulti(_ context.Context, items []db.HashDelItem) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		for _, fld := range it.Fields {
			delete(f.hashes[it.Key], fld)
		}
		if len(f.hashes[it.Key]) == 0 {
			delete(f.hashes, it.Key)
		}
	}
	return nil
}

func (f *fakeHashStore) Del(_ context.Context, keys ...string) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.hashes, k)
	}
	return nil
}

func (f *fakeHashStore) Ping(context.Context) error { return f.failAll }

var errStoreDown = errors.New("store down")

type store interface {
	Link(ctx context.Context, e domgraph.Edge) error
	Unlink(ctx context.Context, e domgraph.Edge) error
	Edges(ctx context.Context, taskID string) ([]domgraph.Edge, error)
	DetachAll(ctx context.Context, taskID string) error
	Ping(ctx context.Context) error
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	d, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteStore(d.ORM())
}

func stores(t *testing.T) map[string]store {
	t.Helper()
	return map[string]store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(newFakeHashStore()),
		"sqlite": newSQLiteStore(t),
	}
}

func edge(s, tgt string, typ domgraph.RelationshipType) domgraph.Edge {
	return domgraph.Edge{Source: s, Target: tgt, Type: typ}
}

func sorted(edges []domgraph.Edge) []domgraph.Edge {
	out := append([]domgraph.Edge(nil), edges...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Type < b.Type
	})
	return out
}
