package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/domain"
	embeddinguc "github.com/solenne-labs/tendex/internal/usecase/embedding"
	searchuc "github.com/solenne-labs/tendex/internal/usecase/search"
)

type fakeProvider struct {
	err error
}

func (p *fakeProvider) CreateEmbeddings(_ context.Context, texts []string, _ string) (domain.ProviderResult, error) {
	if p.err != nil {
		return domain.ProviderResult{}, p.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return domain.ProviderResult{Vectors: vectors, TotalTokens: 10 * len(texts)}, nil
}

type fakeCollection struct {
	queryRes  domain.QueryResult
	queryErr  error
	addErr    error
	added     []string
	addedVecs [][]float32
	count     int
}

func (c *fakeCollection) Query(_ context.Context, _ []float32, _ int, _ map[string]any) (domain.QueryResult, error) {
	if c.queryErr != nil {
		return domain.QueryResult{}, c.queryErr
	}
	return c.queryRes, nil
}

func (c *fakeCollection) Add(_ context.Context, documents []string, embeddings [][]float32, _ []map[string]any, _ []string) error {
	if c.addErr != nil {
		return c.addErr
	}
	c.added = append(c.added, documents...)
	c.addedVecs = append(c.addedVecs, embeddings...)
	return nil
}

func (c *fakeCollection) Count(_ context.Context) (int, error) { return c.count, nil }

type fakeStore struct {
	col    *fakeCollection
	getErr error
}

func (s *fakeStore) GetOrCreateCollection(_ context.Context, _ string, _ map[string]any) (domain.Collection, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.col, nil
}

func (s *fakeStore) Heartbeat(_ context.Context) (int64, error) { return 1, nil }

func newTestServer(t *testing.T, store *fakeStore, provider *fakeProvider) *Server {
	t.Helper()
	logger := zap.NewNop()
	embedClient := embeddinguc.NewClient(embeddinguc.Config{
		Model:             "text-embedding-3-large",
		RequestsPerMinute: 600000,
	}, provider, nil, logger)
	searchSvc := searchuc.New(store, embedClient, logger)
	return NewServer(searchSvc, embedClient, logger)
}

func newTestRouter(s *Server) *chirouter.Mux {
	r := chirouter.NewRouter()
	s.Routes(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSearchDocuments_OK(t *testing.T) {
	store := &fakeStore{col: &fakeCollection{
		queryRes: domain.QueryResult{
			IDs:       []string{"a", "b"},
			Documents: []string{"first doc", "second doc"},
			Metadatas: []map[string]any{{"sector": "State"}, {"sector": "Hospital"}},
			Distances: []float64{0.1, 0.2},
		},
	}}
	r := newTestRouter(newTestServer(t, store, &fakeProvider{}))

	rr := doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{
		Query: "procurement thresholds",
		Limit: 5,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, want 2", resp.Total)
	}
	if resp.Items[0].Content != "first doc" {
		t.Errorf("first content = %q", resp.Items[0].Content)
	}
	if resp.Items[0].Collection != "regulatory" {
		t.Errorf("collection = %q, want regulatory", resp.Items[0].Collection)
	}
	if resp.Items[0].Confidence != "high" {
		t.Errorf("confidence = %q, want high", resp.Items[0].Confidence)
	}
}

func TestSearchDocuments_WithContext_IncludesRelevance(t *testing.T) {
	store := &fakeStore{col: &fakeCollection{
		queryRes: domain.QueryResult{
			IDs:       []string{"a"},
			Documents: []string{"doc"},
			Metadatas: []map[string]any{{"sector": "Territorial"}},
			Distances: []float64{0.3},
		},
	}}
	r := newTestRouter(newTestServer(t, store, &fakeProvider{}))

	rr := doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{
		Query:   "query",
		Context: &tenderContextDTO{Sector: "Territorial", Procedure: "Open"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Items))
	}
	if resp.Items[0].Relevance == nil {
		t.Fatal("expected relevance score with context")
	}
	// Base 0.7 plus the sector bonus.
	if *resp.Items[0].Relevance <= resp.Items[0].Similarity {
		t.Errorf("relevance %v should exceed similarity %v", *resp.Items[0].Relevance, resp.Items[0].Similarity)
	}
}

func TestSearchDocuments_MinScoreDefaultAndExplicitZero(t *testing.T) {
	// Distances 0.1/0.6 give similarities 0.9/0.4.
	store := &fakeStore{col: &fakeCollection{
		queryRes: domain.QueryResult{
			IDs:       []string{"a", "b"},
			Documents: []string{"near doc", "far doc"},
			Metadatas: []map[string]any{nil, nil},
			Distances: []float64{0.1, 0.6},
		},
	}}
	r := newTestRouter(newTestServer(t, store, &fakeProvider{}))

	// Omitted min_score applies the default floor and drops the far doc.
	rr := doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{Query: "q"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp searchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Content != "near doc" {
		t.Fatalf("omitted min_score: total = %d, want only the near doc", resp.Total)
	}

	// An explicit zero floor keeps both.
	zero := 0.0
	rr = doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{Query: "q", MinScore: &zero})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("explicit zero min_score: total = %d, want 2", resp.Total)
	}
}

func TestSearchDocuments_InvalidBody(t *testing.T) {
	r := newTestRouter(newTestServer(t, &fakeStore{col: &fakeCollection{}}, &fakeProvider{}))

	req := httptest.NewRequest("POST", "/v1/collections/regulatory/search", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeBadRequest {
		t.Errorf("code = %q, want %q", resp.Code, codeBadRequest)
	}
}

func TestSearchDocuments_EmptyQuery(t *testing.T) {
	r := newTestRouter(newTestServer(t, &fakeStore{col: &fakeCollection{}}, &fakeProvider{}))

	rr := doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{Query: "   "})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, codeValidationFailed)
	}
}

func TestSearchDocuments_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rate limited", domain.NewProviderError(429, "", "slow down", nil), http.StatusTooManyRequests, codeRateLimited},
		{"auth failed", domain.NewProviderError(401, "", "bad key", nil), http.StatusBadGateway, codeAuthFailed},
		{"server error", domain.NewProviderError(500, "", "oops", nil), http.StatusBadGateway, codeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{err: tt.err}
			srv := newTestServer(t, &fakeStore{col: &fakeCollection{}}, provider)
			r := newTestRouter(srv)

			rr := doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{Query: "q"})

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			var resp errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestSearchDocuments_CollectionNotFound(t *testing.T) {
	store := &fakeStore{getErr: domain.ErrCollectionNotFound}
	r := newTestRouter(newTestServer(t, store, &fakeProvider{}))

	rr := doJSON(t, r, "POST", "/v1/collections/missing/search", searchRequest{Query: "q"})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body = %s", rr.Code, rr.Body.String())
	}
}

func TestAddDocuments_OK(t *testing.T) {
	col := &fakeCollection{}
	r := newTestRouter(newTestServer(t, &fakeStore{col: col}, &fakeProvider{}))

	rr := doJSON(t, r, "POST", "/v1/collections/regulatory/documents", addDocumentsRequest{
		Documents: []string{"doc one", "doc two"},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp addDocumentsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DocumentsAdded != 2 {
		t.Errorf("DocumentsAdded = %d, want 2", resp.DocumentsAdded)
	}
	if len(resp.IDs) != 2 {
		t.Errorf("IDs = %d, want 2 generated", len(resp.IDs))
	}
	if resp.TotalCharacters != len("doc one")+len("doc two") {
		t.Errorf("TotalCharacters = %d", resp.TotalCharacters)
	}
	if len(col.added) != 2 {
		t.Errorf("store received %d documents, want 2", len(col.added))
	}
	// Ingested documents carry vectors from the same embedder the search
	// path uses.
	if len(col.addedVecs) != 2 || len(col.addedVecs[0]) == 0 {
		t.Errorf("store received vectors %v, want one per document", col.addedVecs)
	}
}

func TestAddDocuments_EmptyList(t *testing.T) {
	r := newTestRouter(newTestServer(t, &fakeStore{col: &fakeCollection{}}, &fakeProvider{}))

	rr := doJSON(t, r, "POST", "/v1/collections/regulatory/documents", addDocumentsRequest{})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q, want %q", resp.Code, codeValidationFailed)
	}
}

func TestGetStats(t *testing.T) {
	store := &fakeStore{col: &fakeCollection{count: 3, queryRes: domain.QueryResult{
		IDs: []string{"a"}, Documents: []string{"doc"}, Distances: []float64{0.1},
	}}}
	srv := newTestServer(t, store, &fakeProvider{})
	r := newTestRouter(srv)

	// One search so the stats have something to report.
	doJSON(t, r, "POST", "/v1/collections/regulatory/search", searchRequest{Query: "q"})

	rr := doJSON(t, r, "GET", "/v1/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp statsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalSearches != 1 {
		t.Errorf("TotalSearches = %d, want 1", resp.TotalSearches)
	}
	if resp.Collections["regulatory"] != 3 {
		t.Errorf("Collections[regulatory] = %d, want 3", resp.Collections["regulatory"])
	}
	if resp.Embedding.APICalls != 1 {
		t.Errorf("Embedding.APICalls = %d, want 1", resp.Embedding.APICalls)
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	store := &fakeStore{col: &fakeCollection{}}
	r := newTestRouter(newTestServer(t, store, &fakeProvider{}))

	rr := doJSON(t, r, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Components["vector_store"] != "ok" {
		t.Errorf("vector_store = %q, want ok", resp.Components["vector_store"])
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	store := &fakeStore{col: &fakeCollection{queryErr: domain.ErrVectorStore}}
	r := newTestRouter(newTestServer(t, store, &fakeProvider{}))

	rr := doJSON(t, r, "GET", "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body = %s", rr.Code, rr.Body.String())
	}
}
