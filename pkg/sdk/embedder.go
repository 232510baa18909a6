package taskctx

import (
	"context"

	"github.com/kailas-cloud/taskctx/internal/domain"
)

// Embedder converts text to vector embeddings.
// Without one the client ranks by substring match.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Completer answers a single prompt. Used to refine transcript snippets.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (CompletionResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// CompletionResult carries the completion text and token counts.
type CompletionResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}

type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // caller-supplied embedder
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	r, err := a.inner.Complete(ctx, req.Prompt, req.MaxTokens)
	if err != nil {
		return domain.CompletionResult{}, err //nolint:wrapcheck // caller-supplied completer
	}
	return domain.CompletionResult{
		Text:         r.Text,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
