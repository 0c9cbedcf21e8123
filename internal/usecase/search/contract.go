package search

import "context"

// Embedder vectorizes text for retrieval and ingestion. Queries and stored
// documents must go through the same embedder so their vectors are
// comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EstimateCost(texts []string) float64
	HealthCheck(ctx context.Context) error
}
