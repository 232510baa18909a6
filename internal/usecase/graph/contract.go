package graph

import (
	"context"

	"github.com/kailas-cloud/taskctx/internal/domain/activity"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/task"
)

// Store persists relationship edges.
type Store interface {
	// Link stores e; storing an existing edge is a no-op.
	Link(ctx context.Context, e domgraph.Edge) error
	Unlink(ctx context.Context, e domgraph.Edge) error
	// Edges returns every edge whose source or target is taskID.
	Edges(ctx context.Context, taskID string) ([]domgraph.Edge, error)
	DetachAll(ctx context.Context, taskID string) error
	Ping(ctx context.Context) error
}

// TaskReader loads task rows from the relational store.
type TaskReader interface {
	Task(ctx context.Context, principal, taskID string) (task.Task, error)
	// TasksByID returns the readable tasks among ids; others are omitted.
	TasksByID(ctx context.Context, principal string, ids []string) (map[string]task.Task, error)
}

// ActivityLogger records user activity.
type ActivityLogger interface {
	Log(ctx context.Context, e activity.Entry) error
}
