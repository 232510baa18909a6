package chi

import (
	"context"

	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/search/query"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
	healthuc "github.com/kailas-cloud/taskctx/internal/usecase/health"
)

// Retriever serves the context search and task-context flows.
type Retriever interface {
	Search(ctx context.Context, q query.Query) ([]result.Result, error)
	TaskContext(ctx context.Context, principal, taskID string) ([]result.Result, error)
}

// GraphManager serves task relationship management and traversal.
type GraphManager interface {
	Graph(ctx context.Context, principal, taskID string, depth int) (domgraph.Graph, error)
	Relate(ctx context.Context, principal, source, target, relType string) error
	Unrelate(ctx context.Context, principal, source, target, relType string) error
	Related(ctx context.Context, principal, taskID, relType string) ([]domgraph.Neighbor, error)
	Detach(ctx context.Context, principal, taskID string) error
	DefaultDepth() int
}

// UsageReporter builds LLM usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
