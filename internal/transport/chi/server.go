package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/domain"
	"github.com/kailas-cloud/taskctx/internal/domain/search/query"
	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
	logpkg "github.com/kailas-cloud/taskctx/internal/logger"
	healthuc "github.com/kailas-cloud/taskctx/internal/usecase/health"
)

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeUnauthorized        = "unauthorized"
	codeForbidden           = "forbidden"
	codeNotFound            = "not_found"
	codeMethodNotAllowed    = "method_not_allowed"
	codeQuotaExceeded       = "llm_quota_exceeded"
	codeRateLimited         = "rate_limited"
	codeProviderError       = "llm_provider_error"
	codeProviderUnavailable = "llm_provider_unavailable"
	codeInternalError       = "internal_error"
)

// maxBodyBytes bounds relationship request bodies.
const maxBodyBytes = 1 << 16

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the taskctx API.
type Server struct {
	retrieval     Retriever
	graph         GraphManager
	usage         UsageReporter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval Retriever,
	graph GraphManager,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		retrieval: retrieval,
		graph:     graph,
		usage:     usage,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrUnauthorized, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, codeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusServiceUnavailable, codeProviderUnavailable),
	}
	return s
}

// SearchContext handles GET /api/context/search.
func (s *Server) SearchContext(w http.ResponseWriter, r *http.Request) {
	workspace := r.URL.Query().Get("workspaceId")
	if workspace != "" {
		if err := validateID("workspaceId", workspace); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}

	q, err := query.New(r.URL.Query().Get("query"), workspace, PrincipalFromContext(r.Context()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.retrieval.Search(ctx, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setLLMHeaders(w, usage)
	writeJSON(w, http.StatusOK, resultsResponse{Results: resultsToDTO(results)})
}

// TaskContext handles GET /api/context/task/{taskId}.
func (s *Server) TaskContext(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if err := validateID("taskId", taskID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.retrieval.TaskContext(ctx, PrincipalFromContext(r.Context()), taskID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setLLMHeaders(w, usage)
	writeJSON(w, http.StatusOK, resultsResponse{Results: resultsToDTO(results)})
}

// CreateRelationship handles POST /api/tasks/relationships.
func (s *Server) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRelationship(w, r)
	if !ok {
		return
	}

	err := s.graph.Relate(r.Context(), PrincipalFromContext(r.Context()),
		req.SourceTaskID, req.TargetTaskID, req.RelationshipType)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{
		Message: fmt.Sprintf("Relationship %s created successfully", req.RelationshipType),
	})
}

// DeleteRelationship handles DELETE /api/tasks/relationships.
func (s *Server) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRelationship(w, r)
	if !ok {
		return
	}

	err := s.graph.Unrelate(r.Context(), PrincipalFromContext(r.Context()),
		req.SourceTaskID, req.TargetTaskID, req.RelationshipType)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RelatedTasks handles GET /api/tasks/{taskId}/related.
func (s *Server) RelatedTasks(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if err := validateID("taskId", taskID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	neighbors, err := s.graph.Related(r.Context(), PrincipalFromContext(r.Context()),
		taskID, r.URL.Query().Get("relationshipType"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	tasks := make([]taskNode, len(neighbors))
	for i, n := range neighbors {
		tasks[i] = nodeToDTO(n.Node)
		tasks[i].RelationshipType = string(n.Type)
	}
	writeJSON(w, http.StatusOK, relatedResponse{Tasks: tasks})
}

// TaskGraph handles GET /api/tasks/{taskId}/graph.
func (s *Server) TaskGraph(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if err := validateID("taskId", taskID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	depth := s.graph.DefaultDepth()
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "depth must be an integer")
			return
		}
		depth = d
	}

	g, err := s.graph.Graph(r.Context(), PrincipalFromContext(r.Context()), taskID, depth)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, graphToDTO(g))
}

// DetachTask handles DELETE /api/tasks/{taskId}/graph.
func (s *Server) DetachTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if err := validateID("taskId", taskID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := s.graph.Detach(r.Context(), PrincipalFromContext(r.Context()), taskID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, usageToDTO(&report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeRelationship(w http.ResponseWriter, r *http.Request) (relationshipRequest, bool) {
	var req relationshipRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return req, false
	}
	if req.RelationshipType == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "relationshipType is required")
		return req, false
	}
	if err := validateID("sourceTaskId", req.SourceTaskID); err != nil {
		s.handleDomainError(w, r, err)
		return req, false
	}
	if err := validateID("targetTaskId", req.TargetTaskID); err != nil {
		s.handleDomainError(w, r, err)
		return req, false
	}
	return req, true
}

// validateID checks that a path, query or body identifier is a UUID.
func validateID(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required: %w", name, domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(raw); err != nil {
		return fmt.Errorf("%s must be a UUID: %w", name, domain.ErrInvalidInput)
	}
	return nil
}

func setLLMHeaders(w http.ResponseWriter, usage *domain.LLMUsage) {
	if usage != nil && usage.Used() {
		w.Header().Set("X-LLM-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnauthorized,
		domain.ErrNotFound,
		domain.ErrQuotaExceeded,
		domain.ErrRateLimited,
		domain.ErrProviderError,
		domain.ErrProviderUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler reports invalid input with its full message.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func millisToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
