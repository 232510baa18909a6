// Package result holds ranked retrieval results.
package result

import "github.com/kailas-cloud/taskctx/internal/domain/candidate"

// Result is a single ranked hit.
type Result struct {
	kind      candidate.Kind
	id        string
	title     string
	snippet   string
	relevance float64
}

// New creates a search result.
func New(kind candidate.Kind, id, title, snippet string, relevance float64) Result {
	return Result{kind: kind, id: id, title: title, snippet: snippet, relevance: relevance}
}

// Kind returns the entity kind (task or transcript).
func (r Result) Kind() candidate.Kind { return r.kind }

// ID returns the entity identifier.
func (r Result) ID() string { return r.id }

// Title returns the task title or meeting title.
func (r Result) Title() string { return r.title }

// Snippet returns the excerpt shown to the user.
func (r Result) Snippet() string { return r.snippet }

// Relevance returns the cosine similarity, or 1.0 for lexical matches.
func (r Result) Relevance() float64 { return r.relevance }

// WithSnippet returns a copy of r with a different snippet.
func (r Result) WithSnippet(s string) Result {
	r.snippet = s
	return r
}
