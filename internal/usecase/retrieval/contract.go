package retrieval

import (
	"context"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
	"github.com/kailas-cloud/taskctx/internal/domain/task"
	"github.com/kailas-cloud/taskctx/internal/usecase/ranking"
)

// CandidateFetcher reads the tasks and transcripts a principal may see.
type CandidateFetcher interface {
	TaskCandidates(ctx context.Context, f candidate.Filter) ([]candidate.Candidate, error)
	TranscriptCandidates(ctx context.Context, f candidate.Filter) ([]candidate.Candidate, error)
	Task(ctx context.Context, principal, taskID string) (task.Task, error)
	CanAccessWorkspace(ctx context.Context, principal, workspaceID string) (bool, error)
}

// Embedder vectorizes the query or anchor task text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Ranker scores candidates against a query vector.
type Ranker interface {
	Rank(ctx context.Context, query []float32, cands []candidate.Candidate, p ranking.Profile) ([]ranking.Scored, error)
}

// SnippetRefiner produces the LLM-refined snippet for a search hit.
type SnippetRefiner interface {
	Refine(ctx context.Context, c *candidate.Candidate, query string) string
}
