// Package result defines the scored search result value type.
package result

import (
	"fmt"

	"github.com/solenne-labs/tendex/internal/domain/tender"
)

// Result is a single scored search hit. Immutable after construction.
type Result struct {
	content      string
	metadata     map[string]any
	similarity   float64
	collection   string
	procedure    string
	sector       string
	amountBand   string
	relevance    float64
	hasRelevance bool
}

// New validates scores and creates a result. Procedure, sector, and amount
// band tags are projected from metadata when present.
func New(content string, metadata map[string]any, similarity float64, collection string) (Result, error) {
	if similarity < 0.0 || similarity > 1.0 {
		return Result{}, fmt.Errorf("similarity score %v outside [0.0, 1.0]", similarity)
	}

	return Result{
		content:    content,
		metadata:   metadata,
		similarity: similarity,
		collection: collection,
		procedure:  metaString(metadata, tender.MetaProcedure),
		sector:     metaString(metadata, tender.MetaSector),
		amountBand: metaString(metadata, tender.MetaAmountBand),
	}, nil
}

// WithRelevance returns a copy carrying a contextual relevance score.
func (r Result) WithRelevance(relevance float64) (Result, error) {
	if relevance < 0.0 || relevance > 1.0 {
		return Result{}, fmt.Errorf("relevance score %v outside [0.0, 1.0]", relevance)
	}
	r.relevance = relevance
	r.hasRelevance = true
	return r, nil
}

// Content returns the document text.
func (r *Result) Content() string { return r.content }

// Metadata returns the document metadata.
func (r *Result) Metadata() map[string]any { return r.metadata }

// Similarity returns the vector similarity score in [0,1].
func (r *Result) Similarity() float64 { return r.similarity }

// Collection returns the source collection name.
func (r *Result) Collection() string { return r.collection }

// Procedure returns the procedure tag projected from metadata ("" if absent).
func (r *Result) Procedure() string { return r.procedure }

// Sector returns the sector tag projected from metadata ("" if absent).
func (r *Result) Sector() string { return r.sector }

// AmountBand returns the amount band tag projected from metadata ("" if absent).
func (r *Result) AmountBand() string { return r.amountBand }

// Relevance returns the contextual relevance score and whether one was set.
func (r *Result) Relevance() (float64, bool) { return r.relevance, r.hasRelevance }

// RankScore returns the score used for ordering: relevance when present,
// similarity otherwise.
func (r *Result) RankScore() float64 {
	if r.hasRelevance {
		return r.relevance
	}
	return r.similarity
}

// ConfidenceLevel buckets the similarity score for display:
// "high" above 0.8, "medium" above 0.6, "low" otherwise.
func (r *Result) ConfidenceLevel() string {
	switch {
	case r.similarity > 0.8:
		return "high"
	case r.similarity > 0.6:
		return "medium"
	default:
		return "low"
	}
}

func metaString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}
