package embedding

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// defaultCostPer1K is the price assumed for models missing from the table.
const defaultCostPer1K = 0.0001

// modelCostPer1K is the provider price per 1000 tokens, in USD.
var modelCostPer1K = map[string]float64{
	"text-embedding-3-large": 0.00013,
	"text-embedding-3-small": 0.00002,
	"text-embedding-ada-002": 0.0001,
}

func costPer1K(model string) float64 {
	if cost, ok := modelCostPer1K[model]; ok {
		return cost
	}
	return defaultCostPer1K
}

// CostPer1K returns the USD price per 1000 tokens for a model, falling back
// to a flat default for unknown models.
func CostPer1K(model string) float64 { return costPer1K(model) }

// TokenCounter estimates the token count of one text.
type TokenCounter func(text string) int

// newTokenCounter returns a tokenizer-backed counter for the model, or a
// word-count heuristic when no tokenizer is available for it.
func newTokenCounter(model string) TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return approximateTokens
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// approximateTokens estimates tokens as words times 1.3, matching the
// cache's savings heuristic.
func approximateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}
