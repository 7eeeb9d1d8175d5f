package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
	"github.com/kailas-cloud/retriever/internal/metrics"
	healthuc "github.com/kailas-cloud/retriever/internal/usecase/health"
)

// maxRequestBytes bounds the search request body.
const maxRequestBytes = 1 << 20

// Searcher runs a retrieval for one question.
type Searcher interface {
	SearchText(
		ctx context.Context, question string, history []query.Message, filters map[string]string, topK int,
	) (result.Synthesized, error)
}

// HealthReporter aggregates dependency health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the retrieval HTTP API.
type Server struct {
	search        Searcher
	health        HealthReporter
	defaultTopK   int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultTopK applies when a request omits top_k.
func NewServer(search Searcher, health HealthReporter, defaultTopK int, logger *zap.Logger) *Server {
	if defaultTopK <= 0 {
		defaultTopK = query.DefaultTopK
	}
	s := &Server{
		search:      search,
		health:      health,
		defaultTopK: defaultTopK,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, ErrorCodeSearchUnavailable),
		sentinelHandler(domain.ErrSearchIndexError, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, ErrorCodeUpstreamError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeUpstreamError),
	}
	return s
}

// Router builds the chi router with the middleware stack.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/search", s.Search)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := s.defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
		if topK <= 0 {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "top_k must be positive")
			return
		}
	}

	res, err := s.search.SearchText(r.Context(), req.Question, req.History, req.Filters, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, res.Metadata.EmbeddingTokens)
	writeJSON(w, http.StatusOK, searchResponseFrom(&res))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, tokens int) {
	if tokens > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidQuery) {
		// validation details are safe and useful to the caller
		return err.Error()
	}
	sentinels := []error{
		domain.ErrRateLimited,
		domain.ErrSearchUnavailable,
		domain.ErrSearchIndexError,
		domain.ErrCompletionProviderError,
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
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
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
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
