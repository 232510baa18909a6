// Package retrieval implements free-text context search and task-anchored context lookup.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
	"github.com/kailas-cloud/taskctx/internal/domain/search/query"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
	"github.com/kailas-cloud/taskctx/internal/domain/task"
	"github.com/kailas-cloud/taskctx/internal/logger"
	"github.com/kailas-cloud/taskctx/internal/metrics"
	"github.com/kailas-cloud/taskctx/internal/usecase/ranking"
)

// Mode labels.
const (
	ModeSemantic = "semantic"
	ModeLexical  = "lexical"
)

const (
	flowSearch      = "search"
	flowTaskContext = "task_context"
)

// Profile configures one retrieval flow.
type Profile struct {
	ranking.Profile
	TaskLimit              int
	TranscriptLimit        int
	LexicalTaskLimit       int
	LexicalTranscriptLimit int
}

// Config is resolved once at startup. Semantic is false when no LLM provider is configured.
type Config struct {
	Semantic    bool
	Search      Profile
	TaskContext Profile
}

// Service retrieves ranked context for a free-text query or an anchor task.
type Service struct {
	fetch    CandidateFetcher
	embed    Embedder
	ranker   Ranker
	snippets SnippetRefiner
	cfg      Config
}

// New creates a retrieval service. embed, ranker and snippets are unused in lexical mode.
func New(fetch CandidateFetcher, embed Embedder, ranker Ranker, snippets SnippetRefiner, cfg Config) *Service {
	return &Service{fetch: fetch, embed: embed, ranker: ranker, snippets: snippets, cfg: cfg}
}

// Mode returns the startup-resolved ranking mode.
func (s *Service) Mode() string {
	if s.cfg.Semantic {
		return ModeSemantic
	}
	return ModeLexical
}

// Search returns the tasks and transcripts most relevant to q.
func (s *Service) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	if q.Scoped() {
		ok, err := s.fetch.CanAccessWorkspace(ctx, q.Principal(), q.Workspace())
		if err != nil {
			return nil, fmt.Errorf("check workspace access: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("workspace %s: %w", q.Workspace(), domain.ErrUnauthorized)
		}
	}

	metrics.RetrievalRequestsTotal.WithLabelValues(flowSearch, s.Mode()).Inc()

	var (
		results []result.Result
		err     error
	)
	if s.cfg.Semantic {
		results, err = s.searchSemantic(ctx, q)
	} else {
		results, err = s.searchLexical(ctx, q)
	}
	if err != nil {
		return nil, err
	}

	metrics.ResultsReturned.WithLabelValues(flowSearch).Observe(float64(len(results)))
	return results, nil
}

func (s *Service) searchSemantic(ctx context.Context, q query.Query) ([]result.Result, error) {
	p := s.cfg.Search

	emb, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	f := candidate.Filter{Principal: q.Principal(), WorkspaceID: q.Workspace()}
	cands, err := s.fetchBoth(ctx, f, p.TaskLimit, p.TranscriptLimit)
	if err != nil {
		return nil, err
	}

	scored, err := s.ranker.Rank(ctx, emb.Embedding, cands, p.Profile)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("Search ranked",
		zap.Int("candidates", len(cands)),
		zap.Int("kept", len(scored)),
	)

	out := make([]result.Result, 0, len(scored))
	for i := range scored {
		c := &scored[i].Candidate
		out = append(out, toResult(c, s.snippets.Refine(ctx, c, q.Text()), scored[i].Relevance))
	}
	return out, nil
}

func (s *Service) searchLexical(ctx context.Context, q query.Query) ([]result.Result, error) {
	p := s.cfg.Search

	f := candidate.Filter{Principal: q.Principal(), WorkspaceID: q.Workspace(), Contains: q.Text()}
	tasks, transcripts, err := s.fetchSplit(ctx, f, p.LexicalTaskLimit, p.LexicalTranscriptLimit)
	if err != nil {
		return nil, err
	}

	scored := ranking.Lexical(q.Text(), tasks, transcripts, p.LexicalTaskLimit, p.LexicalTranscriptLimit)

	out := make([]result.Result, 0, len(scored))
	for i := range scored {
		c := &scored[i].Candidate
		snippet := c.SecondaryText()
		if c.Kind() == candidate.KindTranscript {
			snippet = ranking.Around(c, q.Text())
		}
		out = append(out, toResult(c, snippet, scored[i].Relevance))
	}
	return out, nil
}

// TaskContext returns the tasks and transcripts related to the anchor task.
func (s *Service) TaskContext(ctx context.Context, principal, taskID string) ([]result.Result, error) {
	if principal == "" {
		return nil, fmt.Errorf("missing principal: %w", domain.ErrUnauthorized)
	}

	anchor, err := s.fetch.Task(ctx, principal, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	metrics.RetrievalRequestsTotal.WithLabelValues(flowTaskContext, s.Mode()).Inc()
	ctx = logger.With(ctx, zap.String("anchor_task", anchor.ID))

	var results []result.Result
	if s.cfg.Semantic {
		results, err = s.taskContextSemantic(ctx, principal, &anchor)
	} else {
		results, err = s.taskContextLexical(ctx, principal, &anchor)
	}
	if err != nil {
		return nil, err
	}

	metrics.ResultsReturned.WithLabelValues(flowTaskContext).Observe(float64(len(results)))
	return results, nil
}

func (s *Service) taskContextSemantic(ctx context.Context, principal string, anchor *task.Task) ([]result.Result, error) {
	p := s.cfg.TaskContext

	emb, err := s.embed.Embed(ctx, anchor.Text())
	if err != nil {
		return nil, fmt.Errorf("embed task: %w", err)
	}

	f := candidate.Filter{Principal: principal, WorkspaceID: anchor.WorkspaceID, ExcludeTaskID: anchor.ID}
	cands, err := s.fetchBoth(ctx, f, p.TaskLimit, p.TranscriptLimit)
	if err != nil {
		return nil, err
	}

	scored, err := s.ranker.Rank(ctx, emb.Embedding, cands, p.Profile)
	if err != nil {
		return nil, err
	}

	return anchoredResults(scored, anchor.Title), nil
}

func (s *Service) taskContextLexical(ctx context.Context, principal string, anchor *task.Task) ([]result.Result, error) {
	p := s.cfg.TaskContext

	word := anchor.FirstWord()
	if word == "" {
		return []result.Result{}, nil
	}

	f := candidate.Filter{
		Principal:     principal,
		WorkspaceID:   anchor.WorkspaceID,
		ExcludeTaskID: anchor.ID,
		Contains:      word,
	}
	tasks, transcripts, err := s.fetchSplit(ctx, f, p.LexicalTaskLimit, p.LexicalTranscriptLimit)
	if err != nil {
		return nil, err
	}

	scored := ranking.Lexical(word, tasks, transcripts, p.LexicalTaskLimit, p.LexicalTranscriptLimit)
	return anchoredResults(scored, anchor.Title), nil
}

// anchoredResults uses the window around the anchor title for transcripts that mention it.
func anchoredResults(scored []ranking.Scored, title string) []result.Result {
	out := make([]result.Result, 0, len(scored))
	for i := range scored {
		c := &scored[i].Candidate
		snippet, ok := ranking.Anchored(c, title)
		if !ok {
			snippet = ranking.Default(c)
		}
		out = append(out, toResult(c, snippet, scored[i].Relevance))
	}
	return out
}

func (s *Service) fetchBoth(ctx context.Context, f candidate.Filter, taskLimit, transcriptLimit int) ([]candidate.Candidate, error) {
	tasks, transcripts, err := s.fetchSplit(ctx, f, taskLimit, transcriptLimit)
	if err != nil {
		return nil, err
	}
	return append(tasks, transcripts...), nil
}

func (s *Service) fetchSplit(
	ctx context.Context, f candidate.Filter, taskLimit, transcriptLimit int,
) ([]candidate.Candidate, []candidate.Candidate, error) {
	f.Limit = taskLimit
	tasks, err := s.fetch.TaskCandidates(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch task candidates: %w", err)
	}

	f.Limit = transcriptLimit
	transcripts, err := s.fetch.TranscriptCandidates(ctx, f)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch transcript candidates: %w", err)
	}

	logger.FromContext(ctx).Debug("Candidates fetched",
		zap.Int("tasks", len(tasks)),
		zap.Int("transcripts", len(transcripts)),
		zap.Int("task_limit", taskLimit),
		zap.Int("transcript_limit", transcriptLimit),
	)
	return tasks, transcripts, nil
}

func toResult(c *candidate.Candidate, snippet string, relevance float64) result.Result {
	return result.New(c.Kind(), c.ID(), c.PrimaryText(), snippet, relevance)
}
