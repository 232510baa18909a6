package llm

import (
	"context"

	"github.com/kailas-cloud/taskctx/internal/domain"
)

// Unavailable stands in for the provider when no API key is configured.
// Every call fails with domain.ErrProviderUnavailable.
type Unavailable struct{}

// Embed implements domain.Embedder.
func (Unavailable) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, domain.ErrProviderUnavailable
}

// Complete implements domain.Completer.
func (Unavailable) Complete(context.Context, domain.CompletionRequest) (domain.CompletionResult, error) {
	return domain.CompletionResult{}, domain.ErrProviderUnavailable
}

// HealthCheck implements domain.HealthChecker.
func (Unavailable) HealthCheck(context.Context) error {
	return domain.ErrProviderUnavailable
}
