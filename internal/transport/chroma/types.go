package chroma

// collectionRecord represents a Chroma collection response.
type collectionRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// createCollectionRequest is the request body for creating a collection.
type createCollectionRequest struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GetOrCreate bool           `json:"get_or_create"`
}

// addRequest is the request body for adding documents with their vectors.
type addRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas,omitempty"`
}

// queryRequest is the request body for a nearest-neighbor query.
type queryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// queryResponse is the response from a query. Outer slices are grouped per
// query embedding; we always send exactly one.
type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// heartbeatResponse is the response from the heartbeat endpoint.
type heartbeatResponse struct {
	Nanosecond int64 `json:"nanosecond heartbeat"`
}
