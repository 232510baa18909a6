package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context, kind Kind) error
	Record(kind Kind, tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// NewLimiter builds a provider rate limiter. perSec <= 0 disables limiting.
func NewLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	burst := int(perSec)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// guard applies the pre- and post-call policy shared by every provider operation.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type guard struct {
	kind     Kind
	provider string
	model    string
	budget   BudgetChecker
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func (g *guard) before(ctx context.Context) error {
	if g.budget != nil {
		if err := g.budget.Check(ctx, g.kind); err != nil {
			g.logger.Error("Budget exceeded",
				zap.String("kind", string(g.kind)),
				zap.String("provider", g.provider),
				zap.String("model", g.model),
				zap.Error(err),
			)
			return fmt.Errorf("budget check: %w", err)
		}
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err() //nolint:wrapcheck // cancellation is not a rate limit
			}
			return fmt.Errorf("wait for rate limiter: %v: %w", err, domain.ErrRateLimited)
		}
	}
	return nil
}

func (g *guard) after(tokens int) {
	if g.budget == nil || tokens <= 0 {
		return
	}
	g.budget.Record(g.kind, int64(tokens))
	remaining := metrics.LLMBudgetTokensRemaining
	remaining.WithLabelValues(g.provider, "daily").Set(float64(g.budget.RemainingDaily()))
	remaining.WithLabelValues(g.provider, "monthly").Set(float64(g.budget.RemainingMonthly()))
}

// InstrumentedEmbedder wraps an Embedder with budget enforcement, rate limiting and logging.
type InstrumentedEmbedder struct {
	guard
	inner domain.Embedder
}

// NewInstrumentedEmbedder wraps an embedder. budget and limiter may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	budget BudgetChecker, limiter *rate.Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		guard: guard{
			kind: KindEmbedding, provider: provider, model: model,
			budget: budget, limiter: limiter, logger: logger,
		},
		inner: inner,
	}
}

// Embed checks budget, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.before(ctx); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.after(result.TotalTokens)
	domain.UsageFromContext(ctx).AddEmbedding(result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// InstrumentedCompleter wraps a Completer with budget enforcement, rate limiting and logging.
type InstrumentedCompleter struct {
	guard
	inner domain.Completer
}

// NewInstrumentedCompleter wraps a completer. budget and limiter may be nil.
func NewInstrumentedCompleter(
	inner domain.Completer, provider, model string,
	budget BudgetChecker, limiter *rate.Limiter, logger *zap.Logger,
) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		guard: guard{
			kind: KindCompletion, provider: provider, model: model,
			budget: budget, limiter: limiter, logger: logger,
		},
		inner: inner,
	}
}

// Complete checks budget, delegates to the inner completer, and records usage.
func (p *InstrumentedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	if err := p.before(ctx); err != nil {
		return domain.CompletionResult{}, err
	}

	start := time.Now()
	result, err := p.inner.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		p.logger.Warn("Completion request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}

	p.after(result.TotalTokens)
	domain.UsageFromContext(ctx).AddCompletion(result.TotalTokens)

	p.logger.Debug("Completion request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}
