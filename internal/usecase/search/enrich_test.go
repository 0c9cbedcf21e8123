package search

import (
	"reflect"
	"testing"

	"github.com/solenne-labs/tendex/internal/domain/tender"
)

func TestEnrichQuery_NoContext(t *testing.T) {
	if got := EnrichQuery("digital platform", nil); got != "digital platform" {
		t.Errorf("EnrichQuery() = %q, want query unchanged", got)
	}
}

func TestEnrichQuery_FullContextOrder(t *testing.T) {
	tctx := &tender.Context{
		Procedure:        tender.Open,
		Sector:           tender.Territorial,
		EstimatedAmount:  750_000,
		TechnicalDomains: []tender.TechnicalDomain{tender.Development, tender.DataAI},
		Buyer:            "Nouvelle-Aquitaine Region",
	}

	got := EnrichQuery("citizen services platform", tctx)
	want := "citizen services platform" +
		" - tender Open" +
		" - sector Territorial" +
		" - amount 500k-1M" +
		" - technologies Development Data/AI" +
		" - buyer Nouvelle-Aquitaine Region"
	if got != want {
		t.Errorf("EnrichQuery() =\n%q\nwant\n%q", got, want)
	}
}

func TestEnrichQuery_PartialContext(t *testing.T) {
	tctx := &tender.Context{Sector: tender.Hospital}

	got := EnrichQuery("patient records", tctx)
	if got != "patient records - sector Hospital" {
		t.Errorf("EnrichQuery() = %q", got)
	}
}

func TestBuildFilter_Empty(t *testing.T) {
	if got := BuildFilter(nil, nil); got != nil {
		t.Errorf("BuildFilter() = %v, want nil", got)
	}
	if got := BuildFilter(&tender.Context{}, nil); got != nil {
		t.Errorf("BuildFilter(empty context) = %v, want nil", got)
	}
}

func TestBuildFilter_FromContext(t *testing.T) {
	tctx := &tender.Context{
		Procedure:        tender.Restricted,
		Sector:           tender.State,
		EstimatedAmount:  50_000,
		TechnicalDomains: []tender.TechnicalDomain{tender.Cybersecurity, tender.InfraCloud},
	}

	got := BuildFilter(tctx, nil)
	want := map[string]any{
		tender.MetaSector:     "State",
		tender.MetaProcedure:  "Restricted",
		tender.MetaAmountBand: "25k-100k",
		tender.MetaTechnicalDomain: map[string]any{
			"$in": []string{"Cybersecurity", "Infrastructure/Cloud"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildFilter() = %v, want %v", got, want)
	}
}

func TestBuildFilter_CallerKeysWin(t *testing.T) {
	tctx := &tender.Context{Sector: tender.State}
	extra := map[string]any{
		tender.MetaSector: "Hospital",
		"year":            2024,
	}

	got := BuildFilter(tctx, extra)
	if got[tender.MetaSector] != "Hospital" {
		t.Errorf("sector = %v, want caller-supplied value to win", got[tender.MetaSector])
	}
	if got["year"] != 2024 {
		t.Errorf("year = %v", got["year"])
	}
}
