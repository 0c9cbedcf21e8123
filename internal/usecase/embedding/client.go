// Package embedding wraps the external embedding provider with caching,
// rate limiting, bounded retries, batching, and cost accounting.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solenne-labs/tendex/internal/domain"
)

const (
	// maxConcurrentChunks bounds parallel provider calls within one wave.
	maxConcurrentChunks = 3
	// wavePause separates consecutive waves of parallel chunks.
	wavePause = 500 * time.Millisecond
)

// Cache is the local contract for the embedding cache. Get never fails;
// Set fails only when an entry exceeds the per-entry size ceiling.
type Cache interface {
	Get(text, model string) ([]float32, bool)
	Set(text, model string, vec []float32) error
}

// Config holds the client settings.
type Config struct {
	Model             string
	BatchSize         int
	RequestsPerMinute int
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Stats is a snapshot of client usage counters.
type Stats struct {
	TotalRequests    int64
	CacheHits        int64
	APICalls         int64
	TotalTokens      int64
	EstimatedCostUSD float64
	AvgLatency       time.Duration
}

// Client is a cache-first embedding client over an external provider.
type Client struct {
	provider domain.EmbeddingProvider
	cache    Cache
	model    string

	batchSize    int
	maxRetries   int
	retryBackoff time.Duration
	minInterval  time.Duration
	wavePause    time.Duration

	countTokens TokenCounter
	budget      *BudgetTracker
	logger      *zap.Logger

	rlMu        sync.Mutex
	nextAllowed time.Time

	mu         sync.Mutex
	requests   int64
	cacheHits  int64
	apiCalls   int64
	tokens     int64
	costUSD    float64
	avgLatency time.Duration
}

// NewClient creates an embedding client. cache may be nil to disable
// caching entirely.
func NewClient(cfg Config, provider domain.EmbeddingProvider, cache Cache, logger *zap.Logger) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	return &Client{
		provider:     provider,
		cache:        cache,
		model:        cfg.Model,
		batchSize:    cfg.BatchSize,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		minInterval:  time.Minute / time.Duration(cfg.RequestsPerMinute),
		wavePause:    wavePause,
		countTokens:  newTokenCounter(cfg.Model),
		logger:       logger,
	}
}

// WithBudget attaches a token budget enforced before every provider call.
func (c *Client) WithBudget(budget *BudgetTracker) *Client {
	c.budget = budget
	return c
}

// Embed vectorizes one text, consulting the cache first.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedAll vectorizes texts in input order. Cached texts are served from
// the cache; only the misses reach the provider, and results are stitched
// back by input index.
func (c *Client) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	c.requests += int64(len(texts))
	c.mu.Unlock()

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(text, c.model); ok {
				vectors[i] = vec
				c.mu.Lock()
				c.cacheHits++
				c.mu.Unlock()
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	for offset := 0; offset < len(missTexts); offset += c.batchSize {
		end := offset + c.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		chunk := missTexts[offset:end]

		result, err := c.callProvider(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embed %d texts: %w", len(chunk), err)
		}

		for j, vec := range result.Vectors {
			vectors[missIdx[offset+j]] = vec
			if err := c.cacheSet(chunk[j], vec); err != nil {
				return nil, err
			}
		}
	}

	return vectors, nil
}

// EmbedBatch vectorizes a large corpus: cache-aware like EmbedAll, with
// miss chunks processed in waves of up to three concurrent provider calls
// and a pause between waves. The first chunk failure cancels the rest.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	c.requests += int64(len(texts))
	c.mu.Unlock()

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if c.cache != nil {
			if vec, ok := c.cache.Get(text, c.model); ok {
				vectors[i] = vec
				c.mu.Lock()
				c.cacheHits++
				c.mu.Unlock()
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	type chunk struct {
		offset int
		texts  []string
	}
	var chunks []chunk
	for offset := 0; offset < len(missTexts); offset += c.batchSize {
		end := offset + c.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		chunks = append(chunks, chunk{offset: offset, texts: missTexts[offset:end]})
	}

	for wave := 0; wave < len(chunks); wave += maxConcurrentChunks {
		if wave > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.wavePause):
			}
		}

		end := wave + maxConcurrentChunks
		if end > len(chunks) {
			end = len(chunks)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, ch := range chunks[wave:end] {
			ch := ch
			g.Go(func() error {
				result, err := c.callProvider(gctx, ch.texts)
				if err != nil {
					return fmt.Errorf("embed chunk at %d: %w", ch.offset, err)
				}
				for j, vec := range result.Vectors {
					vectors[missIdx[ch.offset+j]] = vec
					if err := c.cacheSet(ch.texts[j], vec); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// EstimateCost returns the projected provider cost in USD for embedding
// texts without a cache, using the model's per-1k-token price.
func (c *Client) EstimateCost(texts []string) float64 {
	var tokens int
	for _, text := range texts {
		tokens += c.countTokens(text)
	}
	return float64(tokens) / 1000 * costPer1K(c.model)
}

// Stats returns a snapshot of the usage counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalRequests:    c.requests,
		CacheHits:        c.cacheHits,
		APICalls:         c.apiCalls,
		TotalTokens:      c.tokens,
		EstimatedCostUSD: c.costUSD,
		AvgLatency:       c.avgLatency,
	}
}

// HealthCheck verifies the provider is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if hc, ok := c.provider.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	_, err := c.callProvider(ctx, []string{"ping"})
	return err
}

// callProvider runs one rate-limited provider call with bounded retries on
// retryable errors. The cache is never consulted here; retries hit the
// provider directly.
func (c *Client) callProvider(ctx context.Context, texts []string) (domain.ProviderResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff << (attempt - 1)
			c.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return domain.ProviderResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if c.budget != nil {
			if err := c.budget.Check(); err != nil {
				return domain.ProviderResult{}, err
			}
		}
		if err := c.waitTurn(ctx); err != nil {
			return domain.ProviderResult{}, err
		}

		start := time.Now()
		result, err := c.provider.CreateEmbeddings(ctx, texts, c.model)
		elapsed := time.Since(start)

		c.recordCall(elapsed)

		if err == nil {
			if c.budget != nil {
				c.budget.Record(int64(result.TotalTokens))
			}
			c.recordUsage(result.TotalTokens)
			return result, nil
		}

		lastErr = err
		var perr *domain.ProviderError
		if !errors.As(err, &perr) || !perr.Retryable() {
			return domain.ProviderResult{}, err
		}
	}
	return domain.ProviderResult{}, lastErr
}

// waitTurn reserves the next provider-call slot, enforcing the minimum
// inter-request interval across concurrent callers.
func (c *Client) waitTurn(ctx context.Context) error {
	c.rlMu.Lock()
	now := time.Now()
	next := c.nextAllowed
	if next.Before(now) {
		next = now
	}
	c.nextAllowed = next.Add(c.minInterval)
	c.rlMu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (c *Client) cacheSet(text string, vec []float32) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Set(text, c.model, vec)
}

func (c *Client) recordCall(elapsed time.Duration) {
	c.mu.Lock()
	c.apiCalls++
	c.avgLatency += (elapsed - c.avgLatency) / time.Duration(c.apiCalls)
	c.mu.Unlock()
}

func (c *Client) recordUsage(tokens int) {
	if tokens <= 0 {
		return
	}
	c.mu.Lock()
	c.tokens += int64(tokens)
	c.costUSD += float64(tokens) / 1000 * costPer1K(c.model)
	c.mu.Unlock()
}
