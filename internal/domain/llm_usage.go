package domain

import (
	"context"
	"sync"
)

type llmUsageKey struct{}

// LLMUsage collects token usage for a single HTTP request.
// The handler puts a pointer into the context before calling the service;
// ranking workers add to it concurrently; the handler reads it for response headers.
type LLMUsage struct {
	mu             sync.Mutex
	totalTokens    int
	embeddingCalls int
	completions    int
}

// NewContextWithUsage returns a context with an LLM usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *LLMUsage) {
	u := &LLMUsage{}
	return context.WithValue(ctx, llmUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *LLMUsage {
	u, _ := ctx.Value(llmUsageKey{}).(*LLMUsage)
	return u
}

// AddEmbedding records one embedding call.
func (u *LLMUsage) AddEmbedding(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += tokens
	u.embeddingCalls++
	u.mu.Unlock()
}

// AddCompletion records one completion call.
func (u *LLMUsage) AddCompletion(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += tokens
	u.completions++
	u.mu.Unlock()
}

// TotalTokens returns tokens consumed so far.
func (u *LLMUsage) TotalTokens() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// EmbeddingCalls returns the number of embedding calls made.
func (u *LLMUsage) EmbeddingCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingCalls
}

// Used reports whether any LLM call was made.
func (u *LLMUsage) Used() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.embeddingCalls > 0 || u.completions > 0
}
