package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/search/query"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
	healthuc "github.com/kailas-cloud/taskctx/internal/usecase/health"
)

const (
	taskA     = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	taskB     = "550e8400-e29b-41d4-a716-446655440000"
	workspace = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	userID    = "user-1"
)

// --- Mocks ---

type mockRetriever struct {
	results []result.Result
	err     error
	tokens  int
	panics  bool

	gotQuery     query.Query
	gotPrincipal string
	gotTask      string
}

func (m *mockRetriever) Search(ctx context.Context, q query.Query) ([]result.Result, error) {
	if m.panics {
		panic("boom")
	}
	m.gotQuery = q
	if m.tokens > 0 {
		domain.UsageFromContext(ctx).AddEmbedding(m.tokens)
	}
	return m.results, m.err
}

func (m *mockRetriever) TaskContext(ctx context.Context, principal, taskID string) ([]result.Result, error) {
	m.gotPrincipal = principal
	m.gotTask = taskID
	return m.results, m.err
}

type relateCall struct {
	principal, source, target, relType string
}

type mockGraph struct {
	graph     domgraph.Graph
	neighbors []domgraph.Neighbor
	err       error

	related   relateCall
	unrelated relateCall
	gotDepth  int
	gotType   string
	detached  string
}

func (m *mockGraph) Graph(_ context.Context, _, _ string, depth int) (domgraph.Graph, error) {
	m.gotDepth = depth
	return m.graph, m.err
}

func (m *mockGraph) Relate(_ context.Context, principal, source, target, relType string) error {
	m.related = relateCall{principal, source, target, relType}
	return m.err
}

func (m *mockGraph) Unrelate(_ context.Context, principal, source, target, relType string) error {
	m.unrelated = relateCall{principal, source, target, relType}
	return m.err
}

func (m *mockGraph) Related(_ context.Context, _, _, relType string) ([]domgraph.Neighbor, error) {
	m.gotType = relType
	return m.neighbors, m.err
}

func (m *mockGraph) Detach(_ context.Context, _, taskID string) error {
	m.detached = taskID
	return m.err
}

func (m *mockGraph) DefaultDepth() int { return 2 }

type mockUsage struct {
	report    domusage.Report
	gotPeriod domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.gotPeriod = period
	return m.report
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- Helpers ---

type fixture struct {
	retriever *mockRetriever
	graph     *mockGraph
	usage     *mockUsage
	health    *mockHealth
	handler   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		retriever: &mockRetriever{},
		graph:     &mockGraph{},
		usage:     &mockUsage{},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
	}
	srv := NewServer(f.retriever, f.graph, f.usage, f.health, zap.NewNop())
	f.handler = NewRouter(srv, AuthConfig{})
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", userID)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func relationshipBody(source, target, relType string) string {
	return fmt.Sprintf(`{"sourceTaskId":%q,"targetTaskId":%q,"relationshipType":%q}`, source, target, relType)
}

// --- Context retrieval ---

func TestSearchContext_OK(t *testing.T) {
	f := newFixture()
	f.retriever.tokens = 42
	f.retriever.results = []result.Result{
		result.New(candidate.KindTask, taskA, "Deploy service", "Roll out v2", 0.91),
		result.New(candidate.KindTranscript, taskB, "Weekly sync", "we discussed the deploy", 0.62),
	}

	rr := f.do(t, "GET", "/api/context/search?query=deploy&workspaceId="+workspace, "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "42", rr.Header().Get("X-LLM-Tokens"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "deploy", f.retriever.gotQuery.Text())
	assert.Equal(t, workspace, f.retriever.gotQuery.Workspace())
	assert.Equal(t, userID, f.retriever.gotQuery.Principal())

	resp := decodeBody[resultsResponse](t, rr)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, resultItem{
		Type: "task", ID: taskA, Title: "Deploy service", Snippet: "Roll out v2", Relevance: 0.91,
	}, resp.Results[0])
	assert.Equal(t, "transcript", resp.Results[1].Type)
}

func TestSearchContext_NoLLMHeaderWithoutCalls(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/context/search?query=deploy", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-LLM-Tokens"))
	resp := decodeBody[resultsResponse](t, rr)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearchContext_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing query", "/api/context/search"},
		{"blank query", "/api/context/search?query=%20%20"},
		{"bad workspace", "/api/context/search?query=deploy&workspaceId=not-a-uuid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rr := f.do(t, "GET", tt.target, "")

			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, codeValidationFailed, decodeBody[errorResponse](t, rr).Code)
		})
	}
}

func TestSearchContext_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{fmt.Errorf("workspace: %w", domain.ErrUnauthorized), http.StatusForbidden, codeForbidden},
		{fmt.Errorf("task: %w", domain.ErrNotFound), http.StatusNotFound, codeNotFound},
		{fmt.Errorf("embed: %w", domain.ErrQuotaExceeded), http.StatusPaymentRequired, codeQuotaExceeded},
		{fmt.Errorf("embed: %w", domain.ErrRateLimited), http.StatusTooManyRequests, codeRateLimited},
		{fmt.Errorf("embed: %w", domain.ErrProviderError), http.StatusBadGateway, codeProviderError},
		{domain.ErrProviderUnavailable, http.StatusServiceUnavailable, codeProviderUnavailable},
		{errors.New("sqlite: disk I/O error"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture()
			f.retriever.err = tt.err

			rr := f.do(t, "GET", "/api/context/search?query=deploy", "")

			require.Equal(t, tt.wantCode, rr.Code)
			resp := decodeBody[errorResponse](t, rr)
			assert.Equal(t, tt.wantBody, resp.Code)
			assert.NotContains(t, resp.Message, "sqlite")
		})
	}
}

func TestTaskContext_OK(t *testing.T) {
	f := newFixture()
	f.retriever.results = []result.Result{
		result.New(candidate.KindTask, taskB, "Write runbook", "ops docs", 0.7),
	}

	rr := f.do(t, "GET", "/api/context/task/"+taskA, "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, taskA, f.retriever.gotTask)
	assert.Equal(t, userID, f.retriever.gotPrincipal)
	assert.Len(t, decodeBody[resultsResponse](t, rr).Results, 1)
}

func TestTaskContext_InvalidID(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/context/task/123", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.retriever.gotTask)
}

func TestTaskContext_NotFound(t *testing.T) {
	f := newFixture()
	f.retriever.err = fmt.Errorf("get task: %w", domain.ErrNotFound)

	rr := f.do(t, "GET", "/api/context/task/"+taskA, "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// --- Relationships ---

func TestCreateRelationship_Created(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "POST", "/api/tasks/relationships", relationshipBody(taskA, taskB, "DEPENDS_ON"))

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, relateCall{userID, taskA, taskB, "DEPENDS_ON"}, f.graph.related)
	assert.Equal(t, "Relationship DEPENDS_ON created successfully", decodeBody[messageResponse](t, rr).Message)
}

func TestCreateRelationship_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"sourceTaskId":`},
		{"missing type", relationshipBody(taskA, taskB, "")},
		{"bad source", relationshipBody("abc", taskB, "BLOCKS")},
		{"missing target", relationshipBody(taskA, "", "BLOCKS")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rr := f.do(t, "POST", "/api/tasks/relationships", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Empty(t, f.graph.related.source)
		})
	}
}

func TestCreateRelationship_DomainValidation(t *testing.T) {
	f := newFixture()
	f.graph.err = fmt.Errorf("task cannot relate to itself: %w", domain.ErrInvalidInput)

	rr := f.do(t, "POST", "/api/tasks/relationships", relationshipBody(taskA, taskA, "BLOCKS"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rr).Message, "cannot relate to itself")
}

func TestDeleteRelationship_NoContent(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "DELETE", "/api/tasks/relationships", relationshipBody(taskA, taskB, "BLOCKS"))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, relateCall{userID, taskA, taskB, "BLOCKS"}, f.graph.unrelated)
}

func TestDeleteRelationship_Missing(t *testing.T) {
	f := newFixture()
	f.graph.err = fmt.Errorf("edge: %w", domain.ErrNotFound)

	rr := f.do(t, "DELETE", "/api/tasks/relationships", relationshipBody(taskA, taskB, "BLOCKS"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRelatedTasks(t *testing.T) {
	f := newFixture()
	f.graph.neighbors = []domgraph.Neighbor{
		{Node: domgraph.Node{ID: taskB, Title: "Write runbook", Status: "todo"}, Type: domgraph.Blocks},
	}

	rr := f.do(t, "GET", "/api/tasks/"+taskA+"/related?relationshipType=BLOCKS", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "BLOCKS", f.graph.gotType)
	resp := decodeBody[relatedResponse](t, rr)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, taskNode{ID: taskB, Title: "Write runbook", Status: "todo", RelationshipType: "BLOCKS"}, resp.Tasks[0])
}

// --- Graph ---

func TestTaskGraph_DefaultDepth(t *testing.T) {
	f := newFixture()
	f.graph.graph = domgraph.Graph{
		Nodes: []domgraph.Node{{ID: taskA, Title: "A"}, {ID: taskB, Title: "B"}},
		Edges: []domgraph.Edge{{Source: taskA, Target: taskB, Type: domgraph.DependsOn}},
	}

	rr := f.do(t, "GET", "/api/tasks/"+taskA+"/graph", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, f.graph.gotDepth)
	resp := decodeBody[graphResponse](t, rr)
	assert.Len(t, resp.Nodes, 2)
	assert.Equal(t, []graphEdge{{Source: taskA, Target: taskB, Type: "DEPENDS_ON"}}, resp.Relationships)
}

func TestTaskGraph_ExplicitDepth(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/tasks/"+taskA+"/graph?depth=4", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 4, f.graph.gotDepth)
	resp := decodeBody[graphResponse](t, rr)
	assert.NotNil(t, resp.Nodes)
	assert.NotNil(t, resp.Relationships)
}

func TestTaskGraph_BadDepth(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/tasks/"+taskA+"/graph?depth=deep", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDetachTask(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "DELETE", "/api/tasks/"+taskA+"/graph", "")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, taskA, f.graph.detached)
}

// --- Ops endpoints ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status   healthuc.Status
		wantCode int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture()
			f.health.report = healthuc.Report{
				Status: tt.status,
				Checks: map[string]healthuc.CheckResult{healthuc.ComponentLLM: healthuc.CheckDisabled},
			}

			req := httptest.NewRequest("GET", "/health", http.NoBody)
			rr := httptest.NewRecorder()
			f.handler.ServeHTTP(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			resp := decodeBody[healthResponse](t, rr)
			assert.Equal(t, string(tt.status), resp.Status)
			assert.Equal(t, "disabled", resp.Checks["llm"])
		})
	}
}

func TestGetUsage(t *testing.T) {
	f := newFixture()
	f.usage.report = domusage.NewReport(domusage.PeriodMonth, 1769904000000, 1772323200000,
		domusage.Tokens{Embedding: 1200, Completion: 300},
		domusage.Budget{TokensLimit: 1000, TokensRemaining: 0, ResetsAt: 1772323200000})

	rr := f.do(t, "GET", "/usage?period=month", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domusage.PeriodMonth, f.usage.gotPeriod)
	resp := decodeBody[usageResponse](t, rr)
	assert.Equal(t, "month", resp.Period)
	assert.Equal(t, int64(1500), resp.TokensUsed)
	assert.Equal(t, int64(1200), resp.EmbeddingTokens)
	assert.Equal(t, int64(300), resp.CompletionTokens)
	assert.True(t, resp.Budget.IsExhausted)
	require.NotNil(t, resp.PeriodStartAt)
	require.NotNil(t, resp.Budget.ResetsAt)
}

func TestGetUsage_DefaultsToDay(t *testing.T) {
	f := newFixture()
	f.usage.report = domusage.NewReport(domusage.PeriodDay, 0, 0, domusage.Tokens{}, domusage.Budget{})

	rr := f.do(t, "GET", "/usage", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domusage.PeriodDay, f.usage.gotPeriod)
	resp := decodeBody[usageResponse](t, rr)
	assert.Nil(t, resp.PeriodStartAt)
	assert.False(t, resp.Budget.IsExhausted)
}

func TestGetUsage_InvalidPeriod(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/usage?period=year", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

// --- Router ---

func TestRouter_NotFound(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "GET", "/api/unknown", "")

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newFixture()

	rr := f.do(t, "PUT", "/api/tasks/relationships", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_RequiresPrincipal(t *testing.T) {
	f := newFixture()

	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/context/search?query=x", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_RecoversPanic(t *testing.T) {
	f := newFixture()
	f.retriever.panics = true

	rr := f.do(t, "GET", "/api/context/search?query=deploy", "")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, codeInternalError, decodeBody[errorResponse](t, rr).Code)
}
