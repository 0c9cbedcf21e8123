// Package openai adapts the OpenAI embeddings API to the domain
// EmbeddingProvider contract, translating transport failures into typed
// provider errors.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/domain"
)

// Provider is a batched embedding provider backed by the OpenAI API.
type Provider struct {
	client        *openai.Client
	dimensions    int
	user          string
	requestsTotal *prometheus.CounterVec
	tokensTotal   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	logger        *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Dimensions int
	User       string
}

// Metrics carries the optional transport-level instrumentation. Any field
// may be nil.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
	TokensTotal   *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
}

// NewProvider creates an OpenAI embedding provider.
func NewProvider(cfg Config, m Metrics, logger *zap.Logger) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client:        openai.NewClientWithConfig(clientCfg),
		dimensions:    cfg.Dimensions,
		user:          cfg.User,
		requestsTotal: m.RequestsTotal,
		tokensTotal:   m.TokensTotal,
		duration:      m.Duration,
		logger:        logger,
	}
}

// CreateEmbeddings vectorizes texts in one API call. Vectors come back in
// submission order regardless of the order the API reports them in.
func (p *Provider) CreateEmbeddings(ctx context.Context, texts []string, model string) (domain.ProviderResult, error) {
	if len(texts) == 0 {
		return domain.ProviderResult{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           p.user,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		p.count(p.requestsTotal, model, "error")
		perr := translate(err)
		p.logger.Warn("Embedding request failed",
			zap.String("model", model),
			zap.Int("batch_size", len(texts)),
			zap.Error(perr),
		)
		return domain.ProviderResult{}, perr
	}

	if len(resp.Data) != len(texts) {
		p.count(p.requestsTotal, model, "error")
		return domain.ProviderResult{}, fmt.Errorf("embedding response has %d vectors for %d texts: %w",
			len(resp.Data), len(texts), domain.ErrEmbeddingProvider)
	}

	p.count(p.requestsTotal, model, "success")
	if p.duration != nil {
		p.duration.WithLabelValues(model).Observe(elapsed.Seconds())
	}
	if p.tokensTotal != nil && resp.Usage.TotalTokens > 0 {
		p.tokensTotal.WithLabelValues(model).Add(float64(resp.Usage.TotalTokens))
	}

	// The API echoes an index per datum; order by it rather than trusting
	// response order.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return domain.ProviderResult{}, fmt.Errorf("embedding response index %d out of range: %w",
				d.Index, domain.ErrEmbeddingProvider)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return domain.ProviderResult{}, fmt.Errorf("embedding response missing vector for text %d: %w",
				i, domain.ErrEmbeddingProvider)
		}
	}

	return domain.ProviderResult{
		Vectors:      vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", translate(err))
	}
	return nil
}

func (p *Provider) count(vec *prometheus.CounterVec, model, result string) {
	if vec != nil {
		vec.WithLabelValues(model, result).Inc()
	}
}

// translate converts go-openai errors into typed domain provider errors so
// upper layers can branch on status without importing the SDK.
func translate(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if detail := extractDetail(reqErr.Body); detail != "" {
			body = detail
		}
		return domain.NewProviderError(reqErr.HTTPStatusCode, "", body, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return domain.NewProviderError(apiErr.HTTPStatusCode, code, apiErr.Message, err)
	}

	// Status 0 marks errors that never produced an HTTP response.
	return domain.NewProviderError(0, "", err.Error(), err)
}

// extractDetail pulls the "detail" field from a JSON error body, used by
// some OpenAI-compatible gateways instead of the standard error envelope.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
