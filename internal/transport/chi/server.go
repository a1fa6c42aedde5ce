package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/domain"
	"github.com/kailas-cloud/vecgraph/internal/domain/crawl"
	logpkg "github.com/kailas-cloud/vecgraph/internal/logger"
	"github.com/kailas-cloud/vecgraph/internal/metrics"
	"github.com/kailas-cloud/vecgraph/internal/transport/api"
	healthuc "github.com/kailas-cloud/vecgraph/internal/usecase/health"
	"github.com/kailas-cloud/vecgraph/internal/usecase/query"
)

const (
	// maxEventBytes caps a webhook body. Batched completion events carry whole pages.
	maxEventBytes = 64 << 20
	// retryAfterSeconds is advertised on 503 responses.
	retryAfterSeconds = 5
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the webhook, query and operational endpoints.
type Server struct {
	ingest        Ingestor
	search        Searcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ingest Ingestor, search Searcher, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		ingest: ingest,
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidEvent, http.StatusBadRequest, api.ErrorResponseCodeInvalidEvent),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, api.ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrEntityNotFound, http.StatusNotFound, api.ErrorResponseCodeEntityNotFound),
		sentinelHandler(domain.ErrCrawlNotFound, http.StatusNotFound, api.ErrorResponseCodeCrawlNotFound),
		sentinelHandler(domain.ErrOverloaded, http.StatusServiceUnavailable, api.ErrorResponseCodeOverloaded),
		sentinelHandler(domain.ErrStoreUnavailable,
			http.StatusServiceUnavailable, api.ErrorResponseCodeStoreUnavailable),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, api.ErrorResponseCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, api.ErrorResponseCodeEmbeddingProviderError),
	}
	return s
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/webhooks/crawl", s.CrawlWebhook)
	r.Get("/crawls/{id}", s.GetCrawl)
	r.Post("/search", s.Search)
	r.Get("/entities/search", s.SearchEntities)
	r.Get("/entities/{id}/connections", s.EntityConnections)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, api.ErrorResponseCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, api.ErrorResponseCodeBadRequest, "method not allowed")
	})
}

// CrawlWebhook handles POST /webhooks/crawl.
func (s *Server) CrawlWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	evt, err := crawl.ParseEvent(body)
	if err != nil {
		metrics.CrawlEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		s.handleDomainError(w, err)
		return
	}

	logpkg.FromContext(r.Context()).Debug("Crawl event received",
		zap.String("crawl_id", evt.ID),
		zap.String("type", string(evt.Type)),
		zap.Int("pages", len(evt.Pages)),
	)

	if err := s.ingest.HandleEvent(r.Context(), evt); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, api.AcceptedResponse{Status: "accepted"})
}

// GetCrawl handles GET /crawls/{id}.
func (s *Server) GetCrawl(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ingest.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), query.Request{
		Query:       req.Query,
		VectorLimit: derefInt(req.VectorLimit),
		GraphDepth:  derefInt(req.GraphDepth),
		Rerank:      req.Rerank,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, api.SearchResponse{
		Results:  api.SearchResults(resp.Results),
		Strategy: string(resp.Strategy),
		Entities: resp.Entities,
	})
}

// EntityConnections handles GET /entities/{id}/connections.
func (s *Server) EntityConnections(w http.ResponseWriter, r *http.Request) {
	var depth int
	var types []string
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "depth", q, &depth); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid depth: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", false, false, "types", q, &types); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid types: "+err.Error())
		return
	}

	conns, err := s.search.EntityConnections(r.Context(), chi.URLParam(r, "id"), depth, types)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ConnectionsResponse{Connections: api.Connections(conns)})
}

// SearchEntities handles GET /entities/search.
func (s *Server) SearchEntities(w http.ResponseWriter, r *http.Request) {
	var (
		text  string
		types []string
		limit int
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "query", q, &text); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid query: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", false, false, "types", q, &types); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid types: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid limit: "+err.Error())
		return
	}

	nodes, err := s.search.SearchEntities(r.Context(), text, types, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.EntitiesResponse{Entities: api.Entities(nodes)})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, api.HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code api.ErrorResponseCode, message string) {
	writeJSON(w, status, api.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client message without exposing internals.
// Validation errors keep their detail since it only describes the input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidEvent) || errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEntityNotFound,
		domain.ErrCrawlNotFound,
		domain.ErrOverloaded,
		domain.ErrStoreUnavailable,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code api.ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, api.ErrorResponseCodeInternalError, "internal error")
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
