package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder vectorizes multiple texts, preserving input order.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProviderResult carries vectors and token usage from a single provider call.
// Vectors are returned in the order the texts were submitted.
type ProviderResult struct {
	Vectors      [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbeddingProvider is the external provider boundary: one batched API call.
type EmbeddingProvider interface {
	CreateEmbeddings(ctx context.Context, texts []string, model string) (ProviderResult, error)
}
