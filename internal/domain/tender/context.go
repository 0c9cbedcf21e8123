// Package tender models the public-procurement context attached to search
// requests: procedure type, buyer sector, estimated amount, and the derived
// attributes used for query enrichment, filtering, and relevance scoring.
package tender

import (
	"fmt"
	"strings"
	"time"

	"github.com/solenne-labs/tendex/internal/domain"
)

// Procedure is a public procurement procedure type.
type Procedure string

// Procurement procedures.
const (
	Adapted               Procedure = "MAPA"
	Open                  Procedure = "Open"
	Restricted            Procedure = "Restricted"
	CompetitiveDialogue   Procedure = "Competitive dialogue"
	InnovationPartnership Procedure = "Innovation partnership"
	Contest               Procedure = "Contest"
)

// Sector is a public buyer sector.
type Sector string

// Buyer sectors.
const (
	State        Sector = "State"
	Territorial  Sector = "Territorial"
	Hospital     Sector = "Hospital"
	Education    Sector = "Education"
	PublicAgency Sector = "Public agency"
	Defense      Sector = "Defense"
)

// TechnicalDomain is an IT delivery domain involved in a tender.
type TechnicalDomain string

// Technical domains.
const (
	Development   TechnicalDomain = "Development"
	InfraCloud    TechnicalDomain = "Infrastructure/Cloud"
	Cybersecurity TechnicalDomain = "Cybersecurity"
	DataAI        TechnicalDomain = "Data/AI"
	Consulting    TechnicalDomain = "Consulting"
	Integration   TechnicalDomain = "Integration"
	Support       TechnicalDomain = "Support/Maintenance"
)

// Metadata keys under which context attributes appear in document metadata.
const (
	MetaSector          = "sector"
	MetaProcedure       = "procedure"
	MetaAmountBand      = "amount_band"
	MetaTechnicalDomain = "technical_domain"
	MetaBuyer           = "buyer"
)

// AmountBandUnspecified is the band reported when no amount is known.
const AmountBandUnspecified = "unspecified"

// Context carries the structured attributes of a tender. It is immutable
// after construction; derived values are computed, never stored.
type Context struct {
	Procedure           Procedure
	Sector              Sector
	EstimatedAmount     int64 // EUR, 0 = unknown
	TechnicalDomains    []TechnicalDomain
	Buyer               string
	GeographicScope     string
	Deadline            time.Time
	CriteriaWeights     map[string]int // percent per criterion, sum <= 100
	Certifications      []string
	IncumbentInfo       string
	CompetitionLevel    string
	StrategicImportance string
}

// New validates and returns a tender context.
func New(c Context) (*Context, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Context) validate() error {
	var total int
	for _, w := range c.CriteriaWeights {
		total += w
	}
	if total > 100 {
		return domain.NewValidationError("criteria_weights", total,
			fmt.Sprintf("weights sum to %d%%, must not exceed 100%%", total))
	}
	return nil
}

// AmountBand maps the estimated amount onto the benchmarking band.
func (c *Context) AmountBand() string {
	if c.EstimatedAmount <= 0 {
		return AmountBandUnspecified
	}
	switch amount := c.EstimatedAmount; {
	case amount < 25_000:
		return "0-25k"
	case amount < 100_000:
		return "25k-100k"
	case amount < 500_000:
		return "100k-500k"
	case amount < 1_000_000:
		return "500k-1M"
	case amount < 5_000_000:
		return "1M-5M"
	default:
		return "5M+"
	}
}

// FormalismLevel reports the procedural formalism required by the
// procedure type and amount: "minimum", "standard", or "maximum".
func (c *Context) FormalismLevel() string {
	switch c.Procedure {
	case Adapted:
		return "minimum"
	case Open, Restricted:
		if c.EstimatedAmount > 1_000_000 {
			return "maximum"
		}
		return "standard"
	default:
		return "maximum"
	}
}

// PriceSensitivity derives a [0,1] price weight from the criteria
// weighting, defaulting to 0.5 when no weighting is known.
func (c *Context) PriceSensitivity() float64 {
	if len(c.CriteriaWeights) == 0 {
		return 0.5
	}
	w, ok := c.CriteriaWeights["price"]
	if !ok {
		w = 50
	}
	return float64(w) / 100.0
}

// TechnicalComplexity tiers the tender by the technical domains involved:
// "low", "medium", or "high". Three or more domains, or any inherently
// complex domain, tiers as high.
func (c *Context) TechnicalComplexity() string {
	if len(c.TechnicalDomains) == 0 {
		return "low"
	}

	hasComplex := false
	for _, d := range c.TechnicalDomains {
		switch d {
		case Cybersecurity, DataAI, Integration:
			hasComplex = true
		}
	}

	switch {
	case len(c.TechnicalDomains) >= 3 || hasComplex:
		return "high"
	case len(c.TechnicalDomains) == 2:
		return "medium"
	default:
		return "low"
	}
}

// SearchContext renders the context as a single search-oriented phrase,
// suitable for embedding alongside a query.
func (c *Context) SearchContext() string {
	parts := []string{fmt.Sprintf("Tender %s sector %s", c.Procedure, c.Sector)}
	if c.EstimatedAmount > 0 {
		parts = append(parts, "amount "+c.AmountBand())
	}
	if len(c.TechnicalDomains) > 0 {
		names := make([]string, len(c.TechnicalDomains))
		for i, d := range c.TechnicalDomains {
			names[i] = string(d)
		}
		parts = append(parts, "technical domains: "+strings.Join(names, ", "))
	}
	if c.Buyer != "" {
		parts = append(parts, "buyer: "+c.Buyer)
	}
	if c.GeographicScope != "" {
		parts = append(parts, "scope: "+c.GeographicScope)
	}
	return strings.Join(parts, " - ")
}

// SearchKeywords lists the context attributes as search keywords.
func (c *Context) SearchKeywords() []string {
	keywords := []string{string(c.Procedure), string(c.Sector)}
	for _, d := range c.TechnicalDomains {
		keywords = append(keywords, string(d))
	}
	keywords = append(keywords, c.AmountBand())
	if c.Buyer != "" {
		keywords = append(keywords, c.Buyer)
	}
	if c.GeographicScope != "" {
		keywords = append(keywords, c.GeographicScope)
	}
	return keywords
}
