// Package request defines the validated search request value type.
package request

import (
	"strings"

	"github.com/solenne-labs/tendex/internal/domain"
	"github.com/solenne-labs/tendex/internal/domain/tender"
)

// Search parameter limits.
const (
	MinLimit        = 1
	MaxLimit        = 100
	DefaultLimit    = 5
	DefaultMinScore = 0.5
)

// Request is a validated search request. Construct with New; a zero
// Request is not valid.
type Request struct {
	query    string
	limit    int
	minScore float64
	context  *tender.Context
	filters  map[string]any
}

// New validates search parameters and returns a request.
// Violations fail fast with a ValidationError naming the offending field.
func New(
	query string,
	limit int,
	minScore float64,
	tctx *tender.Context,
	filters map[string]any,
) (Request, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Request{}, domain.NewValidationError("query", query, "must not be empty")
	}
	if limit < MinLimit || limit > MaxLimit {
		return Request{}, domain.NewValueOutOfRange("limit", limit, MinLimit, MaxLimit)
	}
	if minScore < 0.0 || minScore > 1.0 {
		return Request{}, domain.NewValueOutOfRange("min_similarity_score", minScore, 0.0, 1.0)
	}

	return Request{
		query:    trimmed,
		limit:    limit,
		minScore: minScore,
		context:  tctx,
		filters:  filters,
	}, nil
}

// Query returns the trimmed search query text.
func (r *Request) Query() string { return r.query }

// Limit returns the maximum number of results to return.
func (r *Request) Limit() int { return r.limit }

// MinScore returns the similarity floor.
func (r *Request) MinScore() float64 { return r.minScore }

// Context returns the tender context, or nil.
func (r *Request) Context() *tender.Context { return r.context }

// Filters returns caller-supplied metadata filters, or nil.
func (r *Request) Filters() map[string]any { return r.filters }
