// Package chi exposes the search engine over an HTTP JSON API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/domain"
	embeddinguc "github.com/solenne-labs/tendex/internal/usecase/embedding"
	searchuc "github.com/solenne-labs/tendex/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the search and ingestion use cases over HTTP.
type Server struct {
	search        *searchuc.Service
	embedding     *embeddinguc.Client
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, embedding *embeddinguc.Client, logger *zap.Logger) *Server {
	s := &Server{
		search:    search,
		embedding: embedding,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrAuthentication, http.StatusBadGateway, codeAuthFailed),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrVectorStore, http.StatusBadGateway, codeVectorStore),
		sentinelHandler(domain.ErrCacheCapacity, http.StatusRequestEntityTooLarge, codePayloadTooLarge),
	}
	return s
}

// Routes registers the API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/collections/{collection}/search", s.SearchDocuments)
	r.Post("/v1/collections/{collection}/documents", s.AddDocuments)
	r.Get("/v1/stats", s.GetStats)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// SearchDocuments handles POST /v1/collections/{collection}/search.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tctx, err := req.Context.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), searchuc.Params{
		Query:      req.Query,
		Collection: collection,
		Limit:      req.Limit,
		MinScore:   req.MinScore,
		Context:    tctx,
		Filters:    req.Filters,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = resultToDTO(&results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items: items,
		Total: len(items),
	})
}

// AddDocuments handles POST /v1/collections/{collection}/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req addDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.search.AddDocuments(r.Context(), collection, req.Documents, req.Metadatas, req.IDs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addDocumentsResponse{
		DocumentsAdded:   res.DocumentsAdded,
		Collection:       res.Collection,
		IDs:              res.IDs,
		TotalCharacters:  res.TotalCharacters,
		EstimatedCostUSD: res.EstimatedCostUSD,
		DurationMs:       res.Duration.Milliseconds(),
	})
}

// GetStats handles GET /v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	st := s.search.Stats(r.Context())
	emb := s.embedding.Stats()

	writeJSON(w, http.StatusOK, statsResponse{
		TotalSearches:   st.TotalSearches,
		DocumentsAdded:  st.DocumentsAdded,
		AvgSearchTimeMs: st.AvgSearchTime.Milliseconds(),
		Collections:     st.Collections,
		Embedding: embeddingStats{
			TotalRequests:    emb.TotalRequests,
			CacheHits:        emb.CacheHits,
			APICalls:         emb.APICalls,
			TotalTokens:      emb.TotalTokens,
			EstimatedCostUSD: emb.EstimatedCostUSD,
			AvgLatencyMs:     emb.AvgLatency.Milliseconds(),
		},
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h := s.search.HealthCheck(r.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !h.Healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:     status,
		Components: h.Components,
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

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrCollectionNotFound,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrAuthentication,
		domain.ErrEmbeddingProvider,
		domain.ErrVectorStore,
		domain.ErrCacheCapacity,
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

// validationHandler surfaces the full validation message; field-level detail
// is safe to echo back to the caller.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, ve.Error())
	return true
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
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
