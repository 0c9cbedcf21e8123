// Package search implements contextual retrieval over the vector store:
// query enrichment, metadata filtering, similarity scoring, and contextual
// re-ranking for public-procurement documents.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/domain"
	"github.com/solenne-labs/tendex/internal/domain/search/request"
	"github.com/solenne-labs/tendex/internal/domain/search/result"
	"github.com/solenne-labs/tendex/internal/domain/tender"
)

// overFetchFactor compensates for neighbors dropped by the similarity
// floor, so the final result count is not starved.
const overFetchFactor = 2

// DefaultCollections are created at startup when missing.
var DefaultCollections = map[string]string{
	"regulatory":        "Procurement code, contract terms, case law, sector norms",
	"award_history":     "Published award results, post-award analyses, sector patterns",
	"client_references": "Delivered projects, quantified ROI, satisfaction feedback",
	"winning_templates": "Winning technical memos, proven structures per sector",
	"competitor_intel":  "Competitor profiles, strategies, pricing grids",
}

// Params are the search inputs. A zero Limit means the default limit; a nil
// MinScore means the default floor. An explicit zero MinScore disables the
// floor entirely.
type Params struct {
	Query      string
	Collection string
	Limit      int
	MinScore   *float64
	Context    *tender.Context
	Filters    map[string]any
}

// AddResult summarizes one document ingestion.
type AddResult struct {
	DocumentsAdded   int
	Collection       string
	IDs              []string
	TotalCharacters  int
	EstimatedCostUSD float64
	Duration         time.Duration
}

// Stats is a snapshot of engine counters.
type Stats struct {
	TotalSearches  int64
	DocumentsAdded int64
	AvgSearchTime  time.Duration
	Collections    map[string]int
}

// Health reports per-component availability.
type Health struct {
	Healthy    bool
	Components map[string]string
}

// Metrics carries the optional engine instrumentation. Any field may be nil.
type Metrics struct {
	SearchesTotal  *prometheus.CounterVec
	SearchDuration prometheus.Histogram
}

// Option configures a Service.
type Option func(*Service)

// WithBuyerClasses overrides the institution-class keyword vocabulary used
// by the relevance scorer.
func WithBuyerClasses(rule BuyerClassRule) Option {
	return func(s *Service) { s.buyerClasses = rule }
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service orchestrates contextual search and ingestion.
type Service struct {
	store        domain.VectorStore
	embed        Embedder
	buyerClasses BuyerClassRule
	metrics      Metrics
	logger       *zap.Logger

	colMu       sync.Mutex
	collections map[string]domain.Collection

	mu            sync.Mutex
	totalSearches int64
	// okSearches counts only searches whose latency entered the average.
	okSearches     int64
	documentsAdded int64
	avgSearchTime  time.Duration
}

// New creates the search service.
func New(store domain.VectorStore, embed Embedder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		embed:        embed,
		buyerClasses: DefaultBuyerClasses,
		logger:       logger,
		collections:  make(map[string]domain.Collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitDefaultCollections creates the default collections if missing.
// Per-collection failures are logged and skipped, not fatal.
func (s *Service) InitDefaultCollections(ctx context.Context) {
	for name, description := range DefaultCollections {
		if _, err := s.collection(ctx, name, map[string]any{"description": description}); err != nil {
			s.logger.Warn("Failed to initialize collection",
				zap.String("collection", name),
				zap.Error(err),
			)
			continue
		}
		s.logger.Debug("Collection initialized", zap.String("collection", name))
	}
}

// Search runs one contextual retrieval pass: validate, enrich, embed,
// over-fetch, score, re-rank, truncate. The search counter increments even
// on failure so rate denominators stay accurate.
func (s *Service) Search(ctx context.Context, params Params) ([]result.Result, error) {
	start := time.Now()

	s.mu.Lock()
	s.totalSearches++
	s.mu.Unlock()

	outcome := "error"
	defer func() {
		if s.metrics.SearchesTotal != nil {
			s.metrics.SearchesTotal.WithLabelValues(params.Collection, outcome).Inc()
		}
	}()

	limit := params.Limit
	if limit == 0 {
		limit = request.DefaultLimit
	}
	minScore := request.DefaultMinScore
	if params.MinScore != nil {
		minScore = *params.MinScore
	}
	req, err := request.New(params.Query, limit, minScore, params.Context, params.Filters)
	if err != nil {
		return nil, err
	}

	enriched := EnrichQuery(req.Query(), req.Context())
	filter := BuildFilter(req.Context(), req.Filters())

	vector, err := s.embed.Embed(ctx, enriched)
	if err != nil {
		return nil, domain.WrapEngineError("search", params.Collection, len(req.Query()), req.Limit(), err)
	}

	col, err := s.collection(ctx, params.Collection, nil)
	if err != nil {
		return nil, domain.WrapEngineError("search", params.Collection, len(req.Query()), req.Limit(), err)
	}

	raw, err := col.Query(ctx, vector, overFetchFactor*req.Limit(), filter)
	if err != nil {
		return nil, domain.WrapEngineError("search", params.Collection, len(req.Query()), req.Limit(), err)
	}

	results, err := s.scoreResults(raw, req, params.Collection)
	if err != nil {
		return nil, domain.WrapEngineError("search", params.Collection, len(req.Query()), req.Limit(), err)
	}

	elapsed := time.Since(start)
	s.recordSearch(elapsed)
	if s.metrics.SearchDuration != nil {
		s.metrics.SearchDuration.Observe(elapsed.Seconds())
	}
	outcome = "success"

	s.logger.Debug("Search completed",
		zap.String("collection", params.Collection),
		zap.Int("query_length", len(req.Query())),
		zap.Int("results", len(results)),
		zap.Duration("duration", elapsed),
	)

	return results, nil
}

// scoreResults converts raw neighbors into scored results: distance to
// similarity, floor filtering, contextual re-ranking, truncation.
func (s *Service) scoreResults(raw domain.QueryResult, req request.Request, collectionName string) ([]result.Result, error) {
	results := make([]result.Result, 0, len(raw.Documents))

	for i, doc := range raw.Documents {
		if i >= len(raw.Distances) {
			break
		}
		var metadata map[string]any
		if i < len(raw.Metadatas) {
			metadata = raw.Metadatas[i]
		}

		similarity := 1.0 - raw.Distances[i]
		if similarity < 0 {
			similarity = 0
		}
		if similarity < req.MinScore() {
			continue
		}

		res, err := result.New(doc, metadata, similarity, collectionName)
		if err != nil {
			return nil, fmt.Errorf("building result %d: %w", i, err)
		}

		if req.Context() != nil {
			relevance := Relevance(metadata, req.Context(), similarity, s.buyerClasses)
			res, err = res.WithRelevance(relevance)
			if err != nil {
				return nil, fmt.Errorf("scoring result %d: %w", i, err)
			}
		}

		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RankScore() > results[j].RankScore()
	})

	if len(results) > req.Limit() {
		results = results[:req.Limit()]
	}
	return results, nil
}

// AddDocuments ingests documents into a collection. Missing ids are
// generated; metadata is enriched with ingestion attributes.
func (s *Service) AddDocuments(ctx context.Context, collectionName string, documents []string, metadatas []map[string]any, ids []string) (AddResult, error) {
	start := time.Now()

	if len(documents) == 0 {
		return AddResult{}, domain.NewValidationError("documents", len(documents), "must not be empty")
	}
	for i, doc := range documents {
		if strings.TrimSpace(doc) == "" {
			return AddResult{}, domain.NewValidationError("documents", i, "document must not be blank")
		}
	}
	if metadatas != nil && len(metadatas) != len(documents) {
		return AddResult{}, domain.NewValidationError("metadatas", len(metadatas),
			fmt.Sprintf("must match documents count %d", len(documents)))
	}
	if ids != nil && len(ids) != len(documents) {
		return AddResult{}, domain.NewValidationError("ids", len(ids),
			fmt.Sprintf("must match documents count %d", len(documents)))
	}

	col, err := s.collection(ctx, collectionName, nil)
	if err != nil {
		return AddResult{}, domain.WrapEngineError("add_documents", collectionName, 0, len(documents), err)
	}

	// Documents are embedded with the same model as queries so both live in
	// one vector space.
	vectors, err := s.embed.EmbedBatch(ctx, documents)
	if err != nil {
		return AddResult{}, domain.WrapEngineError("add_documents", collectionName, 0, len(documents), err)
	}

	if ids == nil {
		ids = make([]string, len(documents))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	enriched := make([]map[string]any, len(documents))
	for i := range documents {
		meta := make(map[string]any)
		if metadatas != nil {
			for k, v := range metadatas[i] {
				meta[k] = v
			}
		}
		meta["added_at"] = now
		meta["collection"] = collectionName
		meta["document_length"] = len(documents[i])
		enriched[i] = meta
	}

	if err := col.Add(ctx, documents, vectors, enriched, ids); err != nil {
		return AddResult{}, domain.WrapEngineError("add_documents", collectionName, 0, len(documents), err)
	}

	s.mu.Lock()
	s.documentsAdded += int64(len(documents))
	s.mu.Unlock()

	var totalChars int
	for _, doc := range documents {
		totalChars += len(doc)
	}

	res := AddResult{
		DocumentsAdded:   len(documents),
		Collection:       collectionName,
		IDs:              ids,
		TotalCharacters:  totalChars,
		EstimatedCostUSD: s.embed.EstimateCost(documents),
		Duration:         time.Since(start),
	}

	s.logger.Info("Documents added",
		zap.String("collection", collectionName),
		zap.Int("count", res.DocumentsAdded),
		zap.Int("total_characters", res.TotalCharacters),
		zap.Float64("estimated_cost_usd", res.EstimatedCostUSD),
	)

	return res, nil
}

// Stats returns engine counters plus best-effort per-collection document
// counts for the collections touched so far.
func (s *Service) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	st := Stats{
		TotalSearches:  s.totalSearches,
		DocumentsAdded: s.documentsAdded,
		AvgSearchTime:  s.avgSearchTime,
	}
	s.mu.Unlock()

	s.colMu.Lock()
	handles := make(map[string]domain.Collection, len(s.collections))
	for name, col := range s.collections {
		handles[name] = col
	}
	s.colMu.Unlock()

	st.Collections = make(map[string]int, len(handles))
	for name, col := range handles {
		count, err := col.Count(ctx)
		if err != nil {
			s.logger.Warn("Failed to count collection", zap.String("collection", name), zap.Error(err))
			continue
		}
		st.Collections[name] = count
	}
	return st
}

// HealthCheck probes the embedder, the vector store, and a minimal search.
func (s *Service) HealthCheck(ctx context.Context) Health {
	h := Health{Components: make(map[string]string)}

	if err := s.embed.HealthCheck(ctx); err != nil {
		h.Components["embedding"] = err.Error()
	} else {
		h.Components["embedding"] = "ok"
	}

	if _, err := s.store.Heartbeat(ctx); err != nil {
		h.Components["vector_store"] = err.Error()
	} else {
		h.Components["vector_store"] = "ok"
	}

	noFloor := 0.0
	if _, err := s.Search(ctx, Params{
		Query:      "health probe",
		Collection: "regulatory",
		Limit:      1,
		MinScore:   &noFloor,
	}); err != nil {
		h.Components["search"] = err.Error()
	} else {
		h.Components["search"] = "ok"
	}

	h.Healthy = true
	for _, status := range h.Components {
		if status != "ok" {
			h.Healthy = false
			break
		}
	}
	return h
}

// collection resolves a handle, caching it per name for the lifetime of the
// service. Concurrent first-access races are tolerated; get-or-create is
// idempotent at the store boundary.
func (s *Service) collection(ctx context.Context, name string, metadata map[string]any) (domain.Collection, error) {
	s.colMu.Lock()
	col, ok := s.collections[name]
	s.colMu.Unlock()
	if ok {
		return col, nil
	}

	col, err := s.store.GetOrCreateCollection(ctx, name, metadata)
	if err != nil {
		return nil, err
	}

	s.colMu.Lock()
	s.collections[name] = col
	s.colMu.Unlock()
	return col, nil
}

func (s *Service) recordSearch(elapsed time.Duration) {
	s.mu.Lock()
	// Incremental mean over successful searches only; failed searches bump
	// totalSearches but never reach here.
	s.okSearches++
	s.avgSearchTime += (elapsed - s.avgSearchTime) / time.Duration(s.okSearches)
	s.mu.Unlock()
}
