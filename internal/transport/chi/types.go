package chi

import (
	"github.com/solenne-labs/tendex/internal/domain/search/result"
	"github.com/solenne-labs/tendex/internal/domain/tender"
)

// Error response codes. Stable machine-readable strings, not HTTP reasons.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "collection_not_found"
	codeRateLimited      = "rate_limited"
	codeProviderError    = "embedding_provider_error"
	codeAuthFailed       = "embedding_auth_failed"
	codeVectorStore      = "vector_store_error"
	codePayloadTooLarge  = "payload_too_large"
	codeInternalError    = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type tenderContextDTO struct {
	Procedure           string         `json:"procedure,omitempty"`
	Sector              string         `json:"sector,omitempty"`
	EstimatedAmount     int64          `json:"estimated_amount,omitempty"`
	TechnicalDomains    []string       `json:"technical_domains,omitempty"`
	Buyer               string         `json:"buyer,omitempty"`
	GeographicScope     string         `json:"geographic_scope,omitempty"`
	CriteriaWeights     map[string]int `json:"criteria_weights,omitempty"`
	Certifications      []string       `json:"certifications,omitempty"`
	IncumbentInfo       string         `json:"incumbent_info,omitempty"`
	CompetitionLevel    string         `json:"competition_level,omitempty"`
	StrategicImportance string         `json:"strategic_importance,omitempty"`
}

func (d *tenderContextDTO) toDomain() (*tender.Context, error) {
	if d == nil {
		return nil, nil
	}
	domains := make([]tender.TechnicalDomain, len(d.TechnicalDomains))
	for i, td := range d.TechnicalDomains {
		domains[i] = tender.TechnicalDomain(td)
	}
	return tender.New(tender.Context{
		Procedure:           tender.Procedure(d.Procedure),
		Sector:              tender.Sector(d.Sector),
		EstimatedAmount:     d.EstimatedAmount,
		TechnicalDomains:    domains,
		Buyer:               d.Buyer,
		GeographicScope:     d.GeographicScope,
		CriteriaWeights:     d.CriteriaWeights,
		Certifications:      d.Certifications,
		IncumbentInfo:       d.IncumbentInfo,
		CompetitionLevel:    d.CompetitionLevel,
		StrategicImportance: d.StrategicImportance,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// MinScore is a pointer so an explicit 0 is distinguishable from an
	// omitted field, which falls back to the default floor.
	MinScore *float64          `json:"min_score,omitempty"`
	Filters  map[string]any    `json:"filters,omitempty"`
	Context  *tenderContextDTO `json:"context,omitempty"`
}

type searchResultItem struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
	Relevance  *float64       `json:"relevance,omitempty"`
	Confidence string         `json:"confidence"`
	Collection string         `json:"collection"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

func resultToDTO(r *result.Result) searchResultItem {
	item := searchResultItem{
		Content:    r.Content(),
		Metadata:   r.Metadata(),
		Similarity: r.Similarity(),
		Confidence: r.ConfidenceLevel(),
		Collection: r.Collection(),
	}
	if rel, ok := r.Relevance(); ok {
		item.Relevance = &rel
	}
	return item
}

type addDocumentsRequest struct {
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
}

type addDocumentsResponse struct {
	DocumentsAdded   int      `json:"documents_added"`
	Collection       string   `json:"collection"`
	IDs              []string `json:"ids"`
	TotalCharacters  int      `json:"total_characters"`
	EstimatedCostUSD float64  `json:"estimated_cost_usd"`
	DurationMs       int64    `json:"duration_ms"`
}

type embeddingStats struct {
	TotalRequests    int64   `json:"total_requests"`
	CacheHits        int64   `json:"cache_hits"`
	APICalls         int64   `json:"api_calls"`
	TotalTokens      int64   `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	AvgLatencyMs     int64   `json:"avg_latency_ms"`
}

type statsResponse struct {
	TotalSearches   int64          `json:"total_searches"`
	DocumentsAdded  int64          `json:"documents_added"`
	AvgSearchTimeMs int64          `json:"avg_search_time_ms"`
	Collections     map[string]int `json:"collections"`
	Embedding       embeddingStats `json:"embedding"`
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}
