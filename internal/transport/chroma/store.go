// Package chroma implements the domain VectorStore over Chroma's REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/domain"
)

const defaultTimeout = 60 * time.Second

// Store is a Chroma REST client implementing domain.VectorStore.
type Store struct {
	baseURL    string
	tenant     string
	database   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the Chroma connection settings.
type Config struct {
	URL      string
	Tenant   string
	Database string
	Timeout  time.Duration
}

// NewStore creates a Chroma-backed vector store.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if cfg.Tenant == "" {
		cfg.Tenant = "default_tenant"
	}
	if cfg.Database == "" {
		cfg.Database = "default_database"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Store{
		baseURL:    cfg.URL,
		tenant:     cfg.Tenant,
		database:   cfg.Database,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// GetOrCreateCollection resolves a collection handle, creating the
// collection if it does not exist. Safe to race from concurrent callers.
func (s *Store) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (domain.Collection, error) {
	body := createCollectionRequest{
		Name:        name,
		Metadata:    metadata,
		GetOrCreate: true,
	}

	var rec collectionRecord
	if err := s.do(ctx, http.MethodPost, s.collectionsURL(), body, &rec); err != nil {
		return nil, fmt.Errorf("get or create collection %q: %w", name, err)
	}

	s.logger.Debug("Resolved collection",
		zap.String("collection", name),
		zap.String("collection_id", rec.ID),
	)

	return &collection{store: s, id: rec.ID, name: name}, nil
}

// Heartbeat verifies server availability and returns its nanosecond clock.
func (s *Store) Heartbeat(ctx context.Context) (int64, error) {
	var hb heartbeatResponse
	url := fmt.Sprintf("%s/api/v2/heartbeat", s.baseURL)
	if err := s.do(ctx, http.MethodGet, url, nil, &hb); err != nil {
		return 0, fmt.Errorf("heartbeat: %w", err)
	}
	return hb.Nanosecond, nil
}

func (s *Store) collectionsURL() string {
	return fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s/collections", s.baseURL, s.tenant, s.database)
}

// do sends one JSON request and decodes the response into out (when non-nil).
// Non-2xx statuses map onto the vector store sentinels.
func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status 404", domain.ErrCollectionNotFound)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", domain.ErrVectorStore, resp.StatusCode, string(payload))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding response: %v", domain.ErrVectorStore, err)
		}
	}
	return nil
}

// collection is a handle bound to one resolved collection id.
type collection struct {
	store *Store
	id    string
	name  string
}

// Query returns the topK nearest neighbors for vector, optionally filtered
// by a metadata predicate.
func (c *collection) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) (domain.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	body := queryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        topK,
		Where:           filter,
		Include:         []string{"documents", "metadatas", "distances"},
	}

	var resp queryResponse
	url := fmt.Sprintf("%s/%s/query", c.store.collectionsURL(), c.id)
	if err := c.store.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return domain.QueryResult{}, fmt.Errorf("query collection %q: %w", c.name, err)
	}

	// One query embedding yields one result group.
	var result domain.QueryResult
	if len(resp.IDs) > 0 {
		result.IDs = resp.IDs[0]
	}
	if len(resp.Documents) > 0 {
		result.Documents = resp.Documents[0]
	}
	if len(resp.Metadatas) > 0 {
		result.Metadatas = resp.Metadatas[0]
	}
	if len(resp.Distances) > 0 {
		result.Distances = resp.Distances[0]
	}

	c.store.logger.Debug("Queried collection",
		zap.String("collection", c.name),
		zap.Int("results", len(result.IDs)),
	)

	return result, nil
}

// Add stores documents and their precomputed embeddings under the given
// ids. One embedding per document is required.
func (c *collection) Add(ctx context.Context, documents []string, embeddings [][]float32, metadatas []map[string]any, ids []string) error {
	if len(documents) == 0 {
		return nil
	}
	if len(embeddings) != len(documents) {
		return fmt.Errorf("add to collection %q: %d embeddings for %d documents", c.name, len(embeddings), len(documents))
	}

	body := addRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Documents:  documents,
		Metadatas:  metadatas,
	}

	url := fmt.Sprintf("%s/%s/add", c.store.collectionsURL(), c.id)
	if err := c.store.do(ctx, http.MethodPost, url, body, nil); err != nil {
		return fmt.Errorf("add to collection %q: %w", c.name, err)
	}

	c.store.logger.Debug("Added documents",
		zap.String("collection", c.name),
		zap.Int("count", len(documents)),
	)
	return nil
}

// Count returns the number of documents in the collection.
func (c *collection) Count(ctx context.Context) (int, error) {
	var count int
	url := fmt.Sprintf("%s/%s/count", c.store.collectionsURL(), c.id)
	if err := c.store.do(ctx, http.MethodGet, url, nil, &count); err != nil {
		return 0, fmt.Errorf("count collection %q: %w", c.name, err)
	}
	return count, nil
}
