package graph

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/taskctx/internal/db"
	"github.com/kailas-cloud/taskctx/internal/domain"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
)

// hashStore is the consumer interface for the Redis graph (ISP).
type hashStore interface {
	db.HashStore
	db.Pinger
}

// RedisStore keeps adjacency in two hashes per task:
// out:<id> holds "TYPE|target" fields, in:<id> holds "TYPE|source" fields.
// Field values are the creation time in unix millis.
type RedisStore struct {
	store hashStore
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed graph store.
func NewRedisStore(s hashStore) *RedisStore {
	return &RedisStore{store: s, now: time.Now}
}

// Link stores e in both adjacency hashes.
func (r *RedisStore) Link(ctx context.Context, e domgraph.Edge) error {
	ts := strconv.FormatInt(r.now().UnixMilli(), 10)
	err := r.store.HSetMulti(ctx, []db.HashSetItem{
		{Key: outKey(e.Source), Fields: map[string]string{field(e.Type, e.Target): ts}},
		{Key: inKey(e.Target), Fields: map[string]string{field(e.Type, e.Source): ts}},
	})
	if err != nil {
		return fmt.Errorf("link %s -%s-> %s: %w", e.Source, e.Type, e.Target, err)
	}
	return nil
}

// Unlink removes e from both adjacency hashes.
func (r *RedisStore) Unlink(ctx context.Context, e domgraph.Edge) error {
	err := r.store.HDelMulti(ctx, []db.HashDelItem{
		{Key: outKey(e.Source), Fields: []string{field(e.Type, e.Target)}},
		{Key: inKey(e.Target), Fields: []string{field(e.Type, e.Source)}},
	})
	if err != nil {
		return fmt.Errorf("unlink %s -%s-> %s: %w", e.Source, e.Type, e.Target, err)
	}
	return nil
}

// Edges returns every edge touching taskID, outgoing first, each group ordered by creation time.
func (r *RedisStore) Edges(ctx context.Context, taskID string) ([]domgraph.Edge, error) {
	out, err := r.store.HGetAll(ctx, outKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("outgoing edges %s: %w", taskID, err)
	}
	in, err := r.store.HGetAll(ctx, inKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("incoming edges %s: %w", taskID, err)
	}

	edges := make([]domgraph.Edge, 0, len(out)+len(in))
	edges = append(edges, decode(out, func(t domgraph.RelationshipType, other string) domgraph.Edge {
		return domgraph.Edge{Source: taskID, Target: other, Type: t}
	})...)
	edges = append(edges, decode(in, func(t domgraph.RelationshipType, other string) domgraph.Edge {
		return domgraph.Edge{Source: other, Target: taskID, Type: t}
	})...)
	return edges, nil
}

// DetachAll removes every edge touching taskID, including the mirrored entries on neighbours.
func (r *RedisStore) DetachAll(ctx context.Context, taskID string) error {
	edges, err := r.Edges(ctx, taskID)
	if err != nil {
		return err
	}

	items := make([]db.HashDelItem, 0, len(edges))
	for _, e := range edges {
		if e.Source == taskID {
			items = append(items, db.HashDelItem{Key: inKey(e.Target), Fields: []string{field(e.Type, taskID)}})
		} else {
			items = append(items, db.HashDelItem{Key: outKey(e.Source), Fields: []string{field(e.Type, taskID)}})
		}
	}
	if err := r.store.HDelMulti(ctx, items); err != nil {
		return fmt.Errorf("detach neighbours of %s: %w", taskID, err)
	}
	if err := r.store.Del(ctx, outKey(taskID), inKey(taskID)); err != nil {
		return fmt.Errorf("detach %s: %w", taskID, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("graph store: %w", err)
	}
	return nil
}

func outKey(id string) string { return domain.KeyPrefix + "graph:out:" + id }
func inKey(id string) string  { return domain.KeyPrefix + "graph:in:" + id }

func field(t domgraph.RelationshipType, other string) string {
	return string(t) + "|" + other
}

type entry struct {
	edge domgraph.Edge
	ts   int64
	key  string
}

// decode parses adjacency fields, skipping malformed ones, ordered by creation time then field.
func decode(m map[string]string, build func(domgraph.RelationshipType, string) domgraph.Edge) []domgraph.Edge {
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		typ, other, ok := strings.Cut(k, "|")
		if !ok || other == "" || !domgraph.RelationshipType(typ).IsValid() {
			continue
		}
		ts, _ := strconv.ParseInt(v, 10, 64)
		entries = append(entries, entry{edge: build(domgraph.RelationshipType(typ), other), ts: ts, key: k})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ts != entries[j].ts {
			return entries[i].ts < entries[j].ts
		}
		return entries[i].key < entries[j].key
	})

	out := make([]domgraph.Edge, len(entries))
	for i := range entries {
		out[i] = entries[i].edge
	}
	return out
}
