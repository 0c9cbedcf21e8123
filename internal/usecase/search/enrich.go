package search

import (
	"strings"

	"github.com/solenne-labs/tendex/internal/domain/tender"
)

// EnrichQuery expands the query with the tender context attributes that
// carry topical signal. Parts join with " - " in a fixed order so the same
// query and context always produce the same enriched string.
func EnrichQuery(query string, tctx *tender.Context) string {
	if tctx == nil {
		return query
	}

	parts := []string{query}

	if tctx.Procedure != "" {
		parts = append(parts, "tender "+string(tctx.Procedure))
	}
	if tctx.Sector != "" {
		parts = append(parts, "sector "+string(tctx.Sector))
	}
	if tctx.EstimatedAmount > 0 {
		parts = append(parts, "amount "+tctx.AmountBand())
	}
	if len(tctx.TechnicalDomains) > 0 {
		domains := make([]string, len(tctx.TechnicalDomains))
		for i, d := range tctx.TechnicalDomains {
			domains[i] = string(d)
		}
		parts = append(parts, "technologies "+strings.Join(domains, " "))
	}
	if tctx.Buyer != "" {
		parts = append(parts, "buyer "+tctx.Buyer)
	}

	return strings.Join(parts, " - ")
}

// BuildFilter derives a metadata filter from the tender context: equality
// per scalar attribute, membership for the technical domains. Caller keys
// in extra win on conflict. Returns nil when nothing filters.
func BuildFilter(tctx *tender.Context, extra map[string]any) map[string]any {
	filter := make(map[string]any)

	if tctx != nil {
		if tctx.Sector != "" {
			filter[tender.MetaSector] = string(tctx.Sector)
		}
		if tctx.Procedure != "" {
			filter[tender.MetaProcedure] = string(tctx.Procedure)
		}
		if tctx.EstimatedAmount > 0 {
			filter[tender.MetaAmountBand] = tctx.AmountBand()
		}
		if len(tctx.TechnicalDomains) > 0 {
			domains := make([]string, len(tctx.TechnicalDomains))
			for i, d := range tctx.TechnicalDomains {
				domains[i] = string(d)
			}
			filter[tender.MetaTechnicalDomain] = map[string]any{"$in": domains}
		}
	}

	for k, v := range extra {
		filter[k] = v
	}

	if len(filter) == 0 {
		return nil
	}
	return filter
}
