package taskctx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/taskctx/internal/config"
	"github.com/kailas-cloud/taskctx/internal/db/sqlite"
	"github.com/kailas-cloud/taskctx/internal/domain"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/search/query"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
	activityrepo "github.com/kailas-cloud/taskctx/internal/repository/activity"
	candidaterepo "github.com/kailas-cloud/taskctx/internal/repository/candidate"
	graphrepo "github.com/kailas-cloud/taskctx/internal/repository/graph"
	graphuc "github.com/kailas-cloud/taskctx/internal/usecase/graph"
	healthuc "github.com/kailas-cloud/taskctx/internal/usecase/health"
	llmuc "github.com/kailas-cloud/taskctx/internal/usecase/llm"
	"github.com/kailas-cloud/taskctx/internal/usecase/ranking"
	retrievaluc "github.com/kailas-cloud/taskctx/internal/usecase/retrieval"
)

// Internal interfaces, swapped out in tests.
type retrievalUseCase interface {
	Search(ctx context.Context, q query.Query) ([]result.Result, error)
	TaskContext(ctx context.Context, principal, taskID string) ([]result.Result, error)
	Mode() string
}

type graphUseCase interface {
	Graph(ctx context.Context, principal, taskID string, depth int) (domgraph.Graph, error)
	Relate(ctx context.Context, principal, source, target, relType string) error
	Unrelate(ctx context.Context, principal, source, target, relType string) error
	Related(ctx context.Context, principal, taskID, relType string) ([]domgraph.Neighbor, error)
	Detach(ctx context.Context, principal, taskID string) error
	DefaultDepth() int
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the taskctx SDK entry point.
type Client struct {
	store     *sqlite.DB
	retrieval retrievalUseCase
	graph     graphUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New opens the database, applies the schema and wires the engine.
// The retrieval mode is fixed for the client's lifetime: semantic when an
// embedder is configured, lexical otherwise.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		refine:       true,
		concurrency:  1,
		defaultDepth: graphuc.DefaultDepth,
		maxDepth:     graphuc.MaxDepth,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.dbPath == "" {
		return nil, errors.New("taskctx: database path required (use WithSQLite)")
	}

	store, err := sqlite.Open(ctx, cfg.dbPath)
	if err != nil {
		return nil, fmt.Errorf("taskctx: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("taskctx: migrate: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

func wireClient(store *sqlite.DB, cfg *clientConfig, obs *observer) *Client {
	candidates := candidaterepo.New(store.ORM())

	var (
		embedder  domain.Embedder  = llmuc.Unavailable{}
		completer domain.Completer = llmuc.Unavailable{}
		llmHealth healthuc.LLMChecker
	)
	if cfg.embedder != nil {
		embedder = cfg.embedder
		if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
			llmHealth = hc
		}
	}
	if cfg.completer != nil {
		completer = cfg.completer
	}

	searchProfile, taskContextProfile := defaultProfiles()
	retrieval := retrievaluc.New(
		candidates,
		embedder,
		ranking.NewRanker(embedder, cfg.concurrency),
		ranking.NewSnippets(completer, cfg.completer != nil && cfg.refine),
		retrievaluc.Config{
			Semantic:    cfg.embedder != nil,
			Search:      searchProfile,
			TaskContext: taskContextProfile,
		},
	)

	graph := graphuc.New(
		graphrepo.NewSQLiteStore(store.ORM()),
		candidates,
		activityrepo.New(store.ORM()),
		graphuc.Config{DefaultDepth: cfg.defaultDepth, MaxDepth: cfg.maxDepth},
	)

	return &Client{
		store:     store,
		retrieval: retrieval,
		graph:     graph,
		healthSvc: healthuc.New(store, graph, llmHealth),
		obs:       obs,
	}
}

// defaultProfiles returns the ranking profiles the service ships with.
func defaultProfiles() (search, taskContext retrievaluc.Profile) {
	var d config.Config
	d.ApplyDefaults()
	return profile(d.Ranking.Search), profile(d.Ranking.TaskContext)
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

// Close releases the database.
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("taskctx: %w", err)
	}
	return nil
}

// Mode reports "semantic" or "lexical".
func (c *Client) Mode() string { return c.retrieval.Mode() }

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Health checks the database, the graph store and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// Search ranks the principal's tasks and transcripts against text.
// An empty workspace searches every workspace the principal can read.
func (c *Client) Search(ctx context.Context, principal, text, workspace string) (res []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	q, err := query.New(text, workspace, principal)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	found, err := c.retrieval.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return resultsFromDomain(found), nil
}

// TaskContext returns the tasks and transcripts related to taskID.
func (c *Client) TaskContext(ctx context.Context, principal, taskID string) (res []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("task_context", start, err) }()

	found, err := c.retrieval.TaskContext(ctx, principal, taskID)
	if err != nil {
		return nil, fmt.Errorf("task context %s: %w", taskID, err)
	}
	return resultsFromDomain(found), nil
}

// Relate creates source -[rel]-> target. Repeating an existing relationship is a no-op.
func (c *Client) Relate(ctx context.Context, principal, source, target string, rel RelationshipType) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("relate", start, err) }()

	if err = c.graph.Relate(ctx, principal, source, target, string(rel)); err != nil {
		return fmt.Errorf("relate: %w", err)
	}
	return nil
}

// Unrelate removes source -[rel]-> target.
func (c *Client) Unrelate(ctx context.Context, principal, source, target string, rel RelationshipType) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("unrelate", start, err) }()

	if err = c.graph.Unrelate(ctx, principal, source, target, string(rel)); err != nil {
		return fmt.Errorf("unrelate: %w", err)
	}
	return nil
}

// Related lists the direct neighbours of taskID. An empty rel matches every type.
func (c *Client) Related(
	ctx context.Context, principal, taskID string, rel RelationshipType,
) (out []Neighbor, err error) {
	start := time.Now()
	defer func() { c.obs.observe("related", start, err) }()

	ns, err := c.graph.Related(ctx, principal, taskID, string(rel))
	if err != nil {
		return nil, fmt.Errorf("related: %w", err)
	}
	out = make([]Neighbor, len(ns))
	for i, n := range ns {
		out[i] = Neighbor{Node: nodeFromDomain(n.Node), Type: RelationshipType(n.Type)}
	}
	return out, nil
}

// Graph traverses relationships around taskID in both directions.
// depth 0 selects the configured default.
func (c *Client) Graph(ctx context.Context, principal, taskID string, depth int) (g Graph, err error) {
	start := time.Now()
	defer func() { c.obs.observe("graph", start, err) }()

	if depth == 0 {
		depth = c.graph.DefaultDepth()
	}
	dg, err := c.graph.Graph(ctx, principal, taskID, depth)
	if err != nil {
		return Graph{}, fmt.Errorf("graph: %w", err)
	}
	return graphFromDomain(dg), nil
}

// Detach removes every relationship of taskID.
func (c *Client) Detach(ctx context.Context, principal, taskID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("detach", start, err) }()

	if err = c.graph.Detach(ctx, principal, taskID); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}
