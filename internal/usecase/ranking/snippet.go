package ranking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
	"github.com/kailas-cloud/taskctx/internal/logger"
	"github.com/kailas-cloud/taskctx/internal/metrics"
)

// Snippet window sizes, in runes.
const (
	anchorMargin      = 100
	aroundBefore      = 50
	aroundLength      = 200
	refineInputRunes  = 10000
	refineOutputRunes = 200
	refineMaxTokens   = 100
)

const refinePrompt = `Given this query: "%s"

Find the most relevant section (maximum 200 characters) from this transcript:
"""
%s
"""

Return ONLY the relevant section, no additional text.`

// CompletionBudget reports whether a refinement call may spend tokens now.
type CompletionBudget interface {
	AllowCompletion() bool
}

// Snippets extracts the excerpt shown with a result.
type Snippets struct {
	completer domain.Completer
	refine    bool
	budget    CompletionBudget
}

// NewSnippets creates an extractor. A nil completer or refine=false disables LLM refinement.
func NewSnippets(completer domain.Completer, refine bool) *Snippets {
	return &Snippets{completer: completer, refine: refine && completer != nil}
}

// WithBudget makes Refine fall back to the default snippet without calling the
// completer while b refuses completions.
func (s *Snippets) WithBudget(b CompletionBudget) *Snippets {
	s.budget = b
	return s
}

// Default returns the candidate's summary or description.
func Default(c *candidate.Candidate) string {
	metrics.SnippetsTotal.WithLabelValues("default").Inc()
	return c.SecondaryText()
}

// Anchored returns the content window around the first case-insensitive occurrence of
// title: 100 runes before it to len(title)+100 runes after its start, clamped.
// ok is false when content does not contain title.
func Anchored(c *candidate.Candidate, title string) (snippet string, ok bool) {
	content := []rune(c.Content())
	needle := []rune(strings.ToLower(title))
	pos := indexFold(content, needle)
	if pos < 0 {
		return "", false
	}
	metrics.SnippetsTotal.WithLabelValues("anchored").Inc()
	return window(content, pos-anchorMargin, pos+len(needle)+anchorMargin), true
}

// Around returns the lexical-mode window: 200 runes starting 50 before the first match
// of query in content. Falls back to the summary.
func Around(c *candidate.Candidate, query string) string {
	content := []rune(c.Content())
	pos := indexFold(content, []rune(strings.ToLower(strings.TrimSpace(query))))
	if pos < 0 {
		metrics.SnippetsTotal.WithLabelValues("fallback").Inc()
		return c.SecondaryText()
	}
	metrics.SnippetsTotal.WithLabelValues("around").Inc()
	start := pos - aroundBefore
	return window(content, start, start+aroundLength)
}

// Refine asks the completer for the section of a transcript most relevant to query.
// Any failure or an empty answer yields the default snippet; it never fails.
func (s *Snippets) Refine(ctx context.Context, c *candidate.Candidate, query string) string {
	if !s.refine || c.Kind() != candidate.KindTranscript || c.Content() == "" {
		return Default(c)
	}
	if s.budget != nil && !s.budget.AllowCompletion() {
		logger.FromContext(ctx).Debug("Token budget spent, skipping snippet refinement", zap.String("id", c.ID()))
		return Default(c)
	}

	content := []rune(c.Content())
	if len(content) > refineInputRunes {
		content = content[:refineInputRunes]
	}

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Prompt:    fmt.Sprintf(refinePrompt, query, string(content)),
		MaxTokens: refineMaxTokens,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Snippet refinement failed, using summary",
			zap.String("id", c.ID()),
			zap.Error(err),
		)
		return Default(c)
	}

	text := []rune(strings.TrimSpace(res.Text))
	if len(text) == 0 {
		return Default(c)
	}
	if len(text) > refineOutputRunes {
		text = text[:refineOutputRunes]
	}
	metrics.SnippetsTotal.WithLabelValues("llm").Inc()
	return string(text)
}

// indexFold returns the rune offset of the first occurrence of lower-cased needle in
// hay, ignoring case, or -1. strings.ToLower maps rune to rune, so offsets line up.
func indexFold(hay, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
	lower := []rune(strings.ToLower(string(hay)))
	for i := 0; i+len(needle) <= len(lower); i++ {
		if runesEqual(lower[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func window(r []rune, start, end int) string {
	start = max(start, 0)
	end = min(end, len(r))
	if start >= end {
		return ""
	}
	return string(r[start:end])
}
