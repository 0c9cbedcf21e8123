package domain

import "context"

// QueryResult holds raw nearest neighbors as parallel slices, one element
// per neighbor, ordered by ascending distance.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []map[string]any
	Distances []float64
}

// Collection is a handle to one vector collection. Add takes one embedding
// per document, computed by the caller; documents and queries must share the
// same vector space, so the store never embeds anything itself.
type Collection interface {
	Query(ctx context.Context, vector []float32, topK int, filter map[string]any) (QueryResult, error)
	Add(ctx context.Context, documents []string, embeddings [][]float32, metadatas []map[string]any, ids []string) error
	Count(ctx context.Context) (int, error)
}

// VectorStore is the external vector database boundary.
// GetOrCreateCollection is idempotent; concurrent first-access races to
// create the same collection are tolerated.
type VectorStore interface {
	GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error)
	Heartbeat(ctx context.Context) (int64, error)
}
