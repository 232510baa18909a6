package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/config"
	dbRedis "github.com/kailas-cloud/taskctx/internal/db/redis"
	"github.com/kailas-cloud/taskctx/internal/db/sqlite"
	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/metrics"
	activityrepo "github.com/kailas-cloud/taskctx/internal/repository/activity"
	budgetrepo "github.com/kailas-cloud/taskctx/internal/repository/budget"
	candidaterepo "github.com/kailas-cloud/taskctx/internal/repository/candidate"
	graphrepo "github.com/kailas-cloud/taskctx/internal/repository/graph"
	chiTransport "github.com/kailas-cloud/taskctx/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/taskctx/internal/transport/openai"
	graphuc "github.com/kailas-cloud/taskctx/internal/usecase/graph"
	healthuc "github.com/kailas-cloud/taskctx/internal/usecase/health"
	llmuc "github.com/kailas-cloud/taskctx/internal/usecase/llm"
	"github.com/kailas-cloud/taskctx/internal/usecase/ranking"
	retrievaluc "github.com/kailas-cloud/taskctx/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/taskctx/internal/usecase/usage"
)

// app is the assembled service: the HTTP handler plus the resources it holds.
type app struct {
	handler http.Handler
	mode    string
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp is the composition root. The retrieval mode is fixed here for the
// lifetime of the process: semantic when an LLM key is configured, lexical otherwise.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	store, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		return fail(fmt.Errorf("migrate database: %w", err))
	}

	var redisStore *dbRedis.Store
	if cfg.Redis.Enabled() {
		redisStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			return fail(fmt.Errorf("create redis store: %w", err))
		}
		a.closers = append(a.closers, redisStore.Close)
		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			return fail(fmt.Errorf("redis not ready: %w", err))
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	metrics.Register()

	candidates := candidaterepo.New(store.ORM())
	activities := activityrepo.New(store.ORM())

	// Pass nil interfaces (not typed nil pointers) when no budget is tracked.
	var (
		budgetChecker llmuc.BudgetChecker
		budgetReader  usageuc.BudgetReader
	)
	budget := buildBudget(ctx, cfg, redisStore, logger)
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	var (
		embedder  domain.Embedder  = llmuc.Unavailable{}
		completer domain.Completer = llmuc.Unavailable{}
		llmHealth healthuc.LLMChecker
	)
	if cfg.LLM.Enabled() {
		limiter := llmuc.NewLimiter(cfg.LLM.RatePerSec)

		base := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.EmbeddingModel,
			Dimensions: cfg.LLM.Dimensions,
			Provider:   cfg.LLM.Provider,
			Logger:     logger,
		})
		embedder = llmuc.NewInstrumentedEmbedder(
			base, cfg.LLM.Provider, cfg.LLM.EmbeddingModel, budgetChecker, limiter, logger,
		)
		completer = llmuc.NewInstrumentedCompleter(
			openaiTransport.NewCompleter(&openaiTransport.Config{
				APIKey:   cfg.LLM.APIKey,
				BaseURL:  cfg.LLM.BaseURL,
				Model:    cfg.LLM.ChatModel,
				Provider: cfg.LLM.Provider,
				Logger:   logger,
			}),
			cfg.LLM.Provider, cfg.LLM.ChatModel, budgetChecker, limiter, logger,
		)
		llmHealth = base
	}

	ranker := ranking.NewRanker(embedder, cfg.Ranking.EmbeddingConcurrency)
	snippets := ranking.NewSnippets(completer, cfg.LLM.Enabled() && cfg.Ranking.LLMSnippetsEnabled())
	if budget != nil {
		snippets.WithBudget(budget)
	}

	retrievalSvc := retrievaluc.New(candidates, embedder, ranker, snippets, retrievaluc.Config{
		Semantic:    cfg.LLM.Enabled(),
		Search:      profile(cfg.Ranking.Search),
		TaskContext: profile(cfg.Ranking.TaskContext),
	})
	a.mode = retrievalSvc.Mode()

	graphSvc := graphuc.New(buildGraphStore(cfg.Graph.Driver, store, redisStore), candidates, activities, graphuc.Config{
		DefaultDepth: cfg.Graph.DefaultDepth,
		MaxDepth:     cfg.Graph.MaxDepth,
	})

	healthSvc := healthuc.New(store, graphSvc, llmHealth)
	usageSvc := usageuc.New(budgetReader)

	server := chiTransport.NewServer(retrievalSvc, graphSvc, usageSvc, healthSvc, logger)
	a.handler = chiTransport.NewRouter(server, chiTransport.AuthConfig{
		APIKeys:   cfg.Auth.APIKeys,
		DevHeader: cfg.Auth.DevPrincipalHeader,
	})

	logger.Info("Service assembled",
		zap.String("mode", a.mode),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel),
		zap.Int("embedding_concurrency", cfg.Ranking.EmbeddingConcurrency),
		zap.Bool("budget", budgetChecker != nil),
	)
	return a, nil
}

// buildBudget returns a shared tracker for embed and complete calls, or nil in lexical mode.
// Counters persist in Redis when it is configured.
func buildBudget(
	ctx context.Context, cfg *config.Config, redisStore *dbRedis.Store, logger *zap.Logger,
) *llmuc.BudgetTracker {
	if !cfg.LLM.Enabled() {
		return nil
	}
	b := cfg.LLM.Budget
	action := llmuc.BudgetActionWarn
	if b.Action == "reject" {
		action = llmuc.BudgetActionReject
	}
	tracker := llmuc.NewBudgetTracker(cfg.LLM.Provider, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger)
	if redisStore != nil {
		tracker.WithStore(ctx, budgetrepo.New(redisStore, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
	}
	return tracker
}

func buildGraphStore(driver string, store *sqlite.DB, redisStore *dbRedis.Store) graphuc.Store {
	switch driver {
	case "redis":
		return graphrepo.NewRedisStore(redisStore)
	case "memory":
		return graphrepo.NewMemoryStore()
	default:
		return graphrepo.NewSQLiteStore(store.ORM())
	}
}

func profile(p config.ProfileConfig) retrievaluc.Profile {
	taskMin, transcriptMin := p.Thresholds()
	return retrievaluc.Profile{
		Profile: ranking.Profile{
			TaskThreshold:       taskMin,
			TranscriptThreshold: transcriptMin,
			Limit:               p.Limit,
		},
		TaskLimit:              p.TaskLimit,
		TranscriptLimit:        p.TranscriptLimit,
		LexicalTaskLimit:       p.LexicalTaskLimit,
		LexicalTranscriptLimit: p.LexicalTranscriptLimit,
	}
}
