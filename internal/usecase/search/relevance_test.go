package search

import (
	"math"
	"testing"

	"github.com/solenne-labs/tendex/internal/domain/tender"
)

func TestRelevance_NoContext(t *testing.T) {
	if got := Relevance(map[string]any{"sector": "State"}, nil, 0.7, DefaultBuyerClasses); got != 0.7 {
		t.Errorf("Relevance() = %v, want base unchanged", got)
	}
}

func TestRelevance_Bonuses(t *testing.T) {
	tctx := &tender.Context{
		Procedure:       tender.Open,
		Sector:          tender.Territorial,
		EstimatedAmount: 750_000,
		Buyer:           "Nouvelle-Aquitaine Region",
	}

	tests := []struct {
		name     string
		metadata map[string]any
		want     float64
	}{
		{
			"no matches",
			map[string]any{"sector": "Hospital"},
			0.5,
		},
		{
			"sector only",
			map[string]any{"sector": "Territorial"},
			0.6,
		},
		{
			"sector and procedure",
			map[string]any{"sector": "Territorial", "procedure": "Open"},
			0.7,
		},
		{
			"all exact matches plus buyer class",
			map[string]any{
				"sector":      "Territorial",
				"procedure":   "Open",
				"amount_band": "500k-1M",
				"buyer":       "Occitanie Region",
			},
			0.5 + 0.10 + 0.10 + 0.08 + 0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Relevance(tt.metadata, tctx, 0.5, DefaultBuyerClasses)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Relevance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelevance_ClampsAtOne(t *testing.T) {
	tctx := &tender.Context{
		Procedure:       tender.Open,
		Sector:          tender.Territorial,
		EstimatedAmount: 750_000,
		Buyer:           "University of Lyon",
	}
	metadata := map[string]any{
		"sector":      "Territorial",
		"procedure":   "Open",
		"amount_band": "500k-1M",
		"buyer":       "University of Bordeaux",
	}

	if got := Relevance(metadata, tctx, 0.95, DefaultBuyerClasses); got != 1.0 {
		t.Errorf("Relevance() = %v, want clamped to 1.0", got)
	}
}

func TestRelevance_BuyerClassAppliesOnce(t *testing.T) {
	// Both "region" and "department" appear in both names; the bonus must
	// apply for the first shared class only.
	tctx := &tender.Context{Buyer: "Region department joint office"}
	metadata := map[string]any{"buyer": "Another region department office"}

	got := Relevance(metadata, tctx, 0.5, DefaultBuyerClasses)
	if math.Abs(got-0.55) > 1e-9 {
		t.Errorf("Relevance() = %v, want 0.55 (single buyer-class bonus)", got)
	}
}

func TestRelevance_BuyerClassCaseInsensitive(t *testing.T) {
	tctx := &tender.Context{Buyer: "MINISTRY of Finance"}
	metadata := map[string]any{"buyer": "ministry of health"}

	got := Relevance(metadata, tctx, 0.5, DefaultBuyerClasses)
	if math.Abs(got-0.55) > 1e-9 {
		t.Errorf("Relevance() = %v, want 0.55", got)
	}
}

func TestRelevance_CustomRule(t *testing.T) {
	rule := BuyerClassRule{"agency"}
	tctx := &tender.Context{Buyer: "Space Agency"}
	metadata := map[string]any{"buyer": "Environment Agency"}

	if got := Relevance(metadata, tctx, 0.5, rule); math.Abs(got-0.55) > 1e-9 {
		t.Errorf("Relevance() = %v, want 0.55 with custom rule", got)
	}
	if got := Relevance(metadata, tctx, 0.5, BuyerClassRule{}); got != 0.5 {
		t.Errorf("Relevance() = %v, want 0.5 with empty rule", got)
	}
}
