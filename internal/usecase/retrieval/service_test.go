package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
	"github.com/kailas-cloud/taskctx/internal/domain/search/query"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
	"github.com/kailas-cloud/taskctx/internal/domain/task"
	"github.com/kailas-cloud/taskctx/internal/metrics"
	"github.com/kailas-cloud/taskctx/internal/usecase/ranking"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockFetcher struct {
	tasks       []candidate.Candidate
	transcripts []candidate.Candidate
	anchors     map[string]task.Task
	workspaces  map[string]bool
	fetchErr    error

	taskFilters       []candidate.Filter
	transcriptFilters []candidate.Filter
}

func filterCands(in []candidate.Candidate, f candidate.Filter) []candidate.Candidate {
	needle := strings.ToLower(f.Contains)
	var out []candidate.Candidate
	for i := range in {
		c := &in[i]
		if f.ExcludeTaskID != "" && c.ID() == f.ExcludeTaskID {
			continue
		}
		if needle != "" && !ranking.Matches(c, needle) {
			continue
		}
		out = append(out, *c)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (m *mockFetcher) TaskCandidates(_ context.Context, f candidate.Filter) ([]candidate.Candidate, error) {
	m.taskFilters = append(m.taskFilters, f)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return filterCands(m.tasks, f), nil
}

func (m *mockFetcher) TranscriptCandidates(_ context.Context, f candidate.Filter) ([]candidate.Candidate, error) {
	m.transcriptFilters = append(m.transcriptFilters, f)
	return filterCands(m.transcripts, f), nil
}

func (m *mockFetcher) Task(_ context.Context, _, taskID string) (task.Task, error) {
	t, ok := m.anchors[taskID]
	if !ok {
		return task.Task{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *mockFetcher) CanAccessWorkspace(_ context.Context, _, workspaceID string) (bool, error) {
	return m.workspaces[workspaceID], nil
}

type mockEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	v, ok := m.vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("unknown text %q: %w", text, domain.ErrProviderError)
	}
	return domain.EmbeddingResult{Embedding: v}, nil
}

type mockRefiner struct{ calls int }

func (m *mockRefiner) Refine(_ context.Context, c *candidate.Candidate, q string) string {
	m.calls++
	if c.Kind() == candidate.KindTranscript {
		return "refined:" + q
	}
	return c.SecondaryText()
}

// --- Helpers ---

func vecAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

var testConfig = Config{
	Search: Profile{
		Profile:                ranking.Profile{TaskThreshold: 0.5, TranscriptThreshold: 0.5, Limit: 10},
		TaskLimit:              20,
		TranscriptLimit:        10,
		LexicalTaskLimit:       5,
		LexicalTranscriptLimit: 5,
	},
	TaskContext: Profile{
		Profile:                ranking.Profile{TaskThreshold: 0.6, TranscriptThreshold: 0.5, Limit: 8},
		TaskLimit:              20,
		TranscriptLimit:        10,
		LexicalTaskLimit:       5,
		LexicalTranscriptLimit: 3,
	},
}

func newService(f *mockFetcher, emb *mockEmbedder, semantic bool) (*Service, *mockRefiner) {
	cfg := testConfig
	cfg.Semantic = semantic
	ref := &mockRefiner{}
	return New(f, emb, ranking.NewRanker(emb, 2), ref, cfg), ref
}

func mustQuery(t *testing.T, text, workspace string) query.Query {
	t.Helper()
	q, err := query.New(text, workspace, "user-1")
	require.NoError(t, err)
	return q
}

func resultIDs(rs []result.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID()
	}
	return out
}

// --- Search ---

func TestSearch_Semantic(t *testing.T) {
	f := &mockFetcher{
		tasks: []candidate.Candidate{
			candidate.New(candidate.KindTask, "t1", "Buy milk", "at the store", ""),
			candidate.New(candidate.KindTask, "t2", "Call bank", "about the loan", ""),
		},
		transcripts: []candidate.Candidate{
			candidate.New(candidate.KindTranscript, "m1", "Grocery sync", "shopping list", "we need milk and eggs"),
		},
	}
	emb := &mockEmbedder{vectors: map[string][]float32{
		"milk":                       {1, 0},
		"Buy milk at the store":      vecAt(0.8),
		"Call bank about the loan":   vecAt(0.2),
		"Grocery sync shopping list": vecAt(0.9),
	}}
	svc, ref := newService(f, emb, true)

	got, err := svc.Search(context.Background(), mustQuery(t, "milk", ""))
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "t1"}, resultIDs(got))
	assert.Equal(t, "refined:milk", got[0].Snippet())
	assert.Equal(t, candidate.KindTranscript, got[0].Kind())
	assert.Equal(t, "Grocery sync", got[0].Title())
	assert.Equal(t, "at the store", got[1].Snippet())
	assert.InDelta(t, 0.9, got[0].Relevance(), 1e-6)
	assert.Equal(t, 2, ref.calls)

	require.Len(t, f.taskFilters, 1)
	assert.Equal(t, 20, f.taskFilters[0].Limit)
	assert.Equal(t, "user-1", f.taskFilters[0].Principal)
	assert.Empty(t, f.taskFilters[0].Contains)
	assert.Equal(t, 10, f.transcriptFilters[0].Limit)
}

func TestSearch_QueryEmbeddingFailure(t *testing.T) {
	emb := &mockEmbedder{err: fmt.Errorf("upstream: %w", domain.ErrProviderError)}
	svc, _ := newService(&mockFetcher{}, emb, true)

	_, err := svc.Search(context.Background(), mustQuery(t, "milk", ""))
	assert.True(t, errors.Is(err, domain.ErrProviderError))
}

func TestSearch_WorkspaceAccessDenied(t *testing.T) {
	f := &mockFetcher{workspaces: map[string]bool{"ws-ok": true}}
	svc, _ := newService(f, &mockEmbedder{}, false)

	_, err := svc.Search(context.Background(), mustQuery(t, "milk", "ws-other"))
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.Empty(t, f.taskFilters)

	_, err = svc.Search(context.Background(), mustQuery(t, "milk", "ws-ok"))
	require.NoError(t, err)
	assert.Equal(t, "ws-ok", f.taskFilters[0].WorkspaceID)
}

func TestSearch_LexicalOutage(t *testing.T) {
	f := &mockFetcher{
		tasks: []candidate.Candidate{
			candidate.New(candidate.KindTask, "t1", "Weekly meeting prep", "", ""),
			candidate.New(candidate.KindTask, "t2", "Fix login", "", ""),
			candidate.New(candidate.KindTask, "t3", "Agenda", "for the Meeting", ""),
			candidate.New(candidate.KindTask, "t4", "Refactor", "", ""),
			candidate.New(candidate.KindTask, "t5", "Write docs", "", ""),
		},
		transcripts: []candidate.Candidate{
			candidate.New(candidate.KindTranscript, "m1", "Standup", "daily", "release talk"),
			candidate.New(candidate.KindTranscript, "m2", "Retro", "what went well", "the next meeting is Friday"),
			candidate.New(candidate.KindTranscript, "m3", "Planning", "goals", "estimates"),
		},
	}
	emb := &mockEmbedder{err: domain.ErrProviderUnavailable}
	svc, ref := newService(f, emb, false)

	got, err := svc.Search(context.Background(), mustQuery(t, "meeting", ""))
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "t3", "m2"}, resultIDs(got))
	for _, r := range got {
		assert.Equal(t, 1.0, r.Relevance())
	}
	assert.Equal(t, "the next meeting is Friday", got[2].Snippet())
	assert.Zero(t, ref.calls)
	assert.Equal(t, "meeting", f.taskFilters[0].Contains)
	assert.Equal(t, 5, f.taskFilters[0].Limit)
	assert.Equal(t, ModeLexical, svc.Mode())
}

// --- TaskContext ---

func taskContextFetcher() *mockFetcher {
	content := strings.Repeat(".", 300) + "deploy service" + strings.Repeat("!", 300)
	return &mockFetcher{
		anchors: map[string]task.Task{
			"anchor": {ID: "anchor", WorkspaceID: "ws-1", Title: "Deploy service", Description: "to prod"},
		},
		tasks: []candidate.Candidate{
			candidate.New(candidate.KindTask, "anchor", "Deploy service", "to prod", ""),
			candidate.New(candidate.KindTask, "t1", "Deploy docs", "site", ""),
			candidate.New(candidate.KindTask, "t2", "Rollback plan", "for deploy", ""),
		},
		transcripts: []candidate.Candidate{
			candidate.New(candidate.KindTranscript, "m1", "Ops", "ops summary", content),
			candidate.New(candidate.KindTranscript, "m2", "Design", "design summary", "no mention"),
		},
	}
}

func TestTaskContext_Semantic(t *testing.T) {
	f := taskContextFetcher()
	emb := &mockEmbedder{vectors: map[string][]float32{
		"Deploy service to prod":   {1, 0},
		"Deploy docs site":         vecAt(0.55),
		"Rollback plan for deploy": vecAt(0.7),
		"Ops ops summary":          vecAt(0.9),
		"Design design summary":    vecAt(0.52),
	}}
	svc, ref := newService(f, emb, true)

	got, err := svc.TaskContext(context.Background(), "user-1", "anchor")
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "t2", "m2"}, resultIDs(got))
	assert.Equal(t, strings.Repeat(".", 100)+"deploy service"+strings.Repeat("!", 100), got[0].Snippet())
	assert.Equal(t, "for deploy", got[1].Snippet())
	assert.Equal(t, "design summary", got[2].Snippet())
	assert.Zero(t, ref.calls)

	assert.Equal(t, "anchor", f.taskFilters[0].ExcludeTaskID)
	assert.Equal(t, "ws-1", f.taskFilters[0].WorkspaceID)
}

func TestTaskContext_Lexical(t *testing.T) {
	f := taskContextFetcher()
	svc, _ := newService(f, &mockEmbedder{}, false)

	got, err := svc.TaskContext(context.Background(), "user-1", "anchor")
	require.NoError(t, err)

	assert.Equal(t, []string{"t1", "t2", "m1"}, resultIDs(got))
	assert.Equal(t, "Deploy", f.taskFilters[0].Contains)
	assert.Equal(t, 3, f.transcriptFilters[0].Limit)
	for _, r := range got {
		assert.Equal(t, 1.0, r.Relevance())
	}
}

func TestTaskContext_NotFound(t *testing.T) {
	svc, _ := newService(&mockFetcher{}, &mockEmbedder{}, true)

	_, err := svc.TaskContext(context.Background(), "user-1", "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestTaskContext_FetchError(t *testing.T) {
	f := taskContextFetcher()
	f.fetchErr = errors.New("disk I/O error")
	svc, _ := newService(f, &mockEmbedder{}, false)

	_, err := svc.TaskContext(context.Background(), "user-1", "anchor")
	assert.ErrorContains(t, err, "fetch task candidates")
}
