// Package graph manages task relationships and traverses the task graph.
package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/activity"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/task"
	"github.com/kailas-cloud/taskctx/internal/logger"
	"github.com/kailas-cloud/taskctx/internal/metrics"
)

// Depth bounds used when the configuration leaves them unset.
const (
	DefaultDepth = 2
	MaxDepth     = 5
)

// Config bounds traversal depth.
type Config struct {
	DefaultDepth int
	MaxDepth     int
}

// Service handles relationship writes and graph reads.
type Service struct {
	store    Store
	tasks    TaskReader
	activity ActivityLogger
	cfg      Config
}

// New creates a graph service.
func New(store Store, tasks TaskReader, act ActivityLogger, cfg Config) *Service {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = MaxDepth
	}
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = min(DefaultDepth, cfg.MaxDepth)
	}
	return &Service{store: store, tasks: tasks, activity: act, cfg: cfg}
}

// DefaultDepth returns the traversal depth used when the caller gives none.
func (s *Service) DefaultDepth() int { return s.cfg.DefaultDepth }

// Ping checks the graph store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("graph store: %w", err)
	}
	return nil
}

// Graph returns every task reachable from taskID within depth hops, following edges in
// either direction. Nodes are unique by id and edges by (source, target, type).
// depth above the configured maximum is clamped. Tasks the principal cannot read are
// left out together with their edges.
func (s *Service) Graph(ctx context.Context, principal, taskID string, depth int) (domgraph.Graph, error) {
	if depth < 1 {
		return domgraph.Graph{}, fmt.Errorf("depth %d: %w", depth, domain.ErrInvalidInput)
	}
	depth = min(depth, s.cfg.MaxDepth)

	if _, err := s.tasks.Task(ctx, principal, taskID); err != nil {
		return domgraph.Graph{}, fmt.Errorf("get task %s: %w", taskID, err)
	}

	order := []string{taskID}
	seen := map[string]bool{taskID: true}
	var edges []domgraph.Edge
	seenEdge := make(map[domgraph.Edge]bool)

	frontier := []string{taskID}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			adj, err := s.store.Edges(ctx, id)
			if err != nil {
				return domgraph.Graph{}, fmt.Errorf("edges of %s: %w", id, err)
			}
			for _, e := range adj {
				if !seenEdge[e] {
					seenEdge[e] = true
					edges = append(edges, e)
				}
				other := e.Other(id)
				if !seen[other] {
					seen[other] = true
					order = append(order, other)
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	rows, err := s.tasks.TasksByID(ctx, principal, order)
	if err != nil {
		return domgraph.Graph{}, fmt.Errorf("load graph nodes: %w", err)
	}

	g := domgraph.Graph{Nodes: make([]domgraph.Node, 0, len(order)), Edges: make([]domgraph.Edge, 0, len(edges))}
	for _, id := range order {
		if t, ok := rows[id]; ok {
			g.Nodes = append(g.Nodes, toNode(&t))
		}
	}
	for _, e := range edges {
		if _, ok := rows[e.Source]; !ok {
			continue
		}
		if _, ok := rows[e.Target]; !ok {
			continue
		}
		g.Edges = append(g.Edges, e)
	}

	metrics.GraphNodesReturned.Observe(float64(len(g.Nodes)))
	logger.FromContext(ctx).Debug("Graph traversed",
		zap.String("task_id", taskID),
		zap.Int("depth", depth),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
	)
	return g, nil
}

// Relate creates a typed relationship between two tasks the principal can read.
// Relating an existing pair again is a no-op.
func (s *Service) Relate(ctx context.Context, principal, source, target, relType string) error {
	e, src, err := s.edge(ctx, principal, source, target, relType)
	if err != nil {
		return err
	}

	exists, err := s.exists(ctx, e)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.store.Link(ctx, e); err != nil {
		return fmt.Errorf("link: %w", err)
	}

	s.logActivity(ctx, activity.TypeRelationshipCreated,
		fmt.Sprintf("Created %s relationship between tasks", e.Type), principal, &src)
	return nil
}

// Unrelate removes a relationship. A missing relationship yields domain.ErrNotFound.
func (s *Service) Unrelate(ctx context.Context, principal, source, target, relType string) error {
	e, src, err := s.edge(ctx, principal, source, target, relType)
	if err != nil {
		return err
	}

	exists, err := s.exists(ctx, e)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s relationship %s -> %s: %w", e.Type, e.Source, e.Target, domain.ErrNotFound)
	}

	if err := s.store.Unlink(ctx, e); err != nil {
		return fmt.Errorf("unlink: %w", err)
	}

	s.logActivity(ctx, activity.TypeRelationshipDeleted,
		fmt.Sprintf("Deleted %s relationship between tasks", e.Type), principal, &src)
	return nil
}

// Related returns the tasks adjacent to taskID, optionally restricted to one relationship type.
func (s *Service) Related(ctx context.Context, principal, taskID, relType string) ([]domgraph.Neighbor, error) {
	var want domgraph.RelationshipType
	if relType != "" {
		t, err := domgraph.ParseRelationshipType(relType)
		if err != nil {
			return nil, err
		}
		want = t
	}

	if _, err := s.tasks.Task(ctx, principal, taskID); err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	adj, err := s.store.Edges(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("edges of %s: %w", taskID, err)
	}

	type key struct {
		id  string
		typ domgraph.RelationshipType
	}
	var (
		keys []key
		ids  []string
	)
	seen := make(map[key]bool)
	for _, e := range adj {
		if want != "" && e.Type != want {
			continue
		}
		k := key{id: e.Other(taskID), typ: e.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		ids = append(ids, k.id)
	}

	rows, err := s.tasks.TasksByID(ctx, principal, ids)
	if err != nil {
		return nil, fmt.Errorf("load related tasks: %w", err)
	}

	out := make([]domgraph.Neighbor, 0, len(keys))
	for _, k := range keys {
		if t, ok := rows[k.id]; ok {
			out = append(out, domgraph.Neighbor{Node: toNode(&t), Type: k.typ})
		}
	}
	return out, nil
}

// Detach removes every relationship of taskID.
func (s *Service) Detach(ctx context.Context, principal, taskID string) error {
	if _, err := s.tasks.Task(ctx, principal, taskID); err != nil {
		return fmt.Errorf("get task %s: %w", taskID, err)
	}
	if err := s.store.DetachAll(ctx, taskID); err != nil {
		return fmt.Errorf("detach %s: %w", taskID, err)
	}
	return nil
}

// edge validates the request and checks that the principal can read both endpoints.
func (s *Service) edge(
	ctx context.Context, principal, source, target, relType string,
) (domgraph.Edge, task.Task, error) {
	t, err := domgraph.ParseRelationshipType(relType)
	if err != nil {
		return domgraph.Edge{}, task.Task{}, err
	}
	e, err := domgraph.NewEdge(source, target, t)
	if err != nil {
		return domgraph.Edge{}, task.Task{}, err
	}

	src, err := s.tasks.Task(ctx, principal, source)
	if err != nil {
		return domgraph.Edge{}, task.Task{}, fmt.Errorf("source task: %w", err)
	}
	if _, err := s.tasks.Task(ctx, principal, target); err != nil {
		return domgraph.Edge{}, task.Task{}, fmt.Errorf("target task: %w", err)
	}
	return e, src, nil
}

func (s *Service) exists(ctx context.Context, e domgraph.Edge) (bool, error) {
	adj, err := s.store.Edges(ctx, e.Source)
	if err != nil {
		return false, fmt.Errorf("edges of %s: %w", e.Source, err)
	}
	for _, x := range adj {
		if x == e {
			return true, nil
		}
	}
	return false, nil
}

// logActivity records the change; a failure is logged and does not undo it.
func (s *Service) logActivity(ctx context.Context, typ, title, principal string, src *task.Task) {
	if s.activity == nil {
		return
	}
	err := s.activity.Log(ctx, activity.Entry{
		Type:        typ,
		Title:       title,
		EntityID:    src.ID,
		EntityType:  activity.EntityTask,
		UserID:      principal,
		WorkspaceID: src.WorkspaceID,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to record activity",
			zap.String("type", typ),
			zap.String("task_id", src.ID),
			zap.Error(err),
		)
	}
}

func toNode(t *task.Task) domgraph.Node {
	return domgraph.Node{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
	}
}
