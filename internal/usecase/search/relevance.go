package search

import (
	"strings"

	"github.com/solenne-labs/tendex/internal/domain/tender"
)

// Relevance bonuses. Additive, independently applied, capped at 1.0 total.
const (
	sectorBonus     = 0.10
	procedureBonus  = 0.10
	amountBandBonus = 0.08
	buyerClassBonus = 0.05
)

// BuyerClassRule is the keyword vocabulary for the same-institution-class
// heuristic: a bonus applies when any keyword appears in both the context
// buyer and the document buyer, case-insensitively.
type BuyerClassRule []string

// DefaultBuyerClasses covers the common public-buyer families.
var DefaultBuyerClasses = BuyerClassRule{"region", "department", "ministry", "hospital", "university"}

// sharedClass reports whether any class keyword appears in both names.
func (r BuyerClassRule) sharedClass(a, b string) bool {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	for _, class := range r {
		if strings.Contains(a, class) && strings.Contains(b, class) {
			return true
		}
	}
	return false
}

// Relevance adjusts a base similarity with context-agreement bonuses. No
// context returns the base unchanged. The buyer-class bonus applies at most
// once. The result never exceeds 1.0 and never drops below base.
func Relevance(metadata map[string]any, tctx *tender.Context, base float64, buyerClasses BuyerClassRule) float64 {
	if tctx == nil {
		return base
	}

	bonus := 0.0

	if tctx.Sector != "" && metaString(metadata, tender.MetaSector) == string(tctx.Sector) {
		bonus += sectorBonus
	}
	if tctx.Procedure != "" && metaString(metadata, tender.MetaProcedure) == string(tctx.Procedure) {
		bonus += procedureBonus
	}
	if tctx.EstimatedAmount > 0 && metaString(metadata, tender.MetaAmountBand) == tctx.AmountBand() {
		bonus += amountBandBonus
	}
	if docBuyer := metaString(metadata, tender.MetaBuyer); tctx.Buyer != "" && docBuyer != "" {
		if buyerClasses.sharedClass(tctx.Buyer, docBuyer) {
			bonus += buyerClassBonus
		}
	}

	score := base + bonus
	if score > 1.0 {
		return 1.0
	}
	return score
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
