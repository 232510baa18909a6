package taskctx

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/taskctx/internal/domain"
	openaiTransport "github.com/kailas-cloud/taskctx/internal/transport/openai"
)

// Default OpenAI models used by WithOpenAI.
const (
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultChatModel      = "gpt-3.5-turbo"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	dbPath string

	embedder  domain.Embedder
	completer domain.Completer
	refine    bool

	concurrency  int
	defaultDepth int
	maxDepth     int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithSQLite sets the database file. Required.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dbPath = path
	})
}

// WithEmbedder enables semantic ranking with a custom embedding provider.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = &embedderAdapter{inner: e}
	})
}

// WithCompleter enables LLM-refined transcript snippets in Search.
func WithCompleter(cm Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = &completerAdapter{inner: cm}
	})
}

// WithOpenAI uses an OpenAI-compatible API for embeddings and snippet refinement.
// An empty baseURL selects the public endpoint. An empty apiKey leaves the client lexical.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		if apiKey == "" {
			return
		}
		c.embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Model:    DefaultEmbeddingModel,
			Provider: "openai",
		})
		c.completer = openaiTransport.NewCompleter(&openaiTransport.Config{
			APIKey:   apiKey,
			BaseURL:  baseURL,
			Model:    DefaultChatModel,
			Provider: "openai",
		})
	})
}

// WithSnippetRefinement toggles LLM-refined snippets when a completer is set.
// Default: enabled.
func WithSnippetRefinement(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.refine = enabled
	})
}

// WithEmbeddingConcurrency bounds in-flight embedding calls per ranking pass (1..5).
// Default: 1.
func WithEmbeddingConcurrency(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.concurrency = n
	})
}

// WithGraphDepth sets the default and maximum traversal depth.
// Defaults: 2 and 5.
func WithGraphDepth(defaultDepth, maxDepth int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultDepth = defaultDepth
		c.maxDepth = maxDepth
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
