package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/solenne-labs/tendex/internal/config"
	logpkg "github.com/solenne-labs/tendex/internal/logger"
	"github.com/solenne-labs/tendex/internal/metrics"
	"github.com/solenne-labs/tendex/internal/repository/embcache"
	chiTransport "github.com/solenne-labs/tendex/internal/transport/chi"
	"github.com/solenne-labs/tendex/internal/transport/chroma"
	openaiEmb "github.com/solenne-labs/tendex/internal/transport/openai"
	embeddinguc "github.com/solenne-labs/tendex/internal/usecase/embedding"
	searchuc "github.com/solenne-labs/tendex/internal/usecase/search"
	"github.com/solenne-labs/tendex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tendex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_store_url", cfg.VectorStore.URL),
		zap.String("model", cfg.Embedding.Model),
	)

	// Register engine metrics explicitly (no init())
	metrics.RegisterEngineMetrics()

	// Vector store
	store, err := chroma.NewStore(chroma.Config{
		URL:      cfg.VectorStore.URL,
		Tenant:   cfg.VectorStore.Tenant,
		Database: cfg.VectorStore.Database,
		Timeout:  time.Duration(cfg.VectorStore.TimeoutSec) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}

	ctx := context.Background()
	if _, err := store.Heartbeat(ctx); err != nil {
		logger.Warn("Vector store not reachable at startup", zap.Error(err))
	} else {
		logger.Info("Connected to vector store")
	}

	// Embedding cache — optional, file-backed
	var cache embeddinguc.Cache
	if cfg.Cache.Enabled {
		cacheStore, err := embcache.New(embcache.Config{
			Dir:             cfg.Cache.Dir,
			TTL:             time.Duration(cfg.Cache.TTLHours) * time.Hour,
			MaxSizeBytes:    cfg.Cache.MaxSizeMB * 1024 * 1024,
			MaxEntryBytes:   cfg.Cache.MaxEntryKB * 1024,
			CostPer1KTokens: embeddinguc.CostPer1K(cfg.Embedding.Model),
		}, metrics.EmbeddingCacheTotal, logger)
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		cache = cacheStore
		logger.Info("Embedding cache enabled", zap.String("dir", cfg.Cache.Dir))
	}

	// Embedding provider
	provider := openaiEmb.NewProvider(openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	}, openaiEmb.Metrics{
		RequestsTotal: metrics.EmbeddingRequestsTotal,
		TokensTotal:   metrics.EmbeddingTokensTotal,
		Duration:      metrics.EmbeddingRequestDuration,
	}, logger)

	embedClient := embeddinguc.NewClient(embeddinguc.Config{
		Model:             cfg.Embedding.Model,
		BatchSize:         cfg.Embedding.BatchSize,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		MaxRetries:        cfg.Embedding.MaxRetries,
		RetryBackoff:      time.Duration(cfg.Embedding.RetryBackoffMs) * time.Millisecond,
	}, provider, cache, logger)

	// Token budget — optional
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget := embeddinguc.NewBudgetTracker(
			budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		embedClient = embedClient.WithBudget(budget)
		logger.Info("Token budget enabled",
			zap.Int64("daily_limit", budgetCfg.DailyTokenLimit),
			zap.Int64("monthly_limit", budgetCfg.MonthlyTokenLimit),
			zap.String("action", string(action)),
		)
	}

	// Search service
	searchSvc := searchuc.New(store, embedClient, logger,
		searchuc.WithMetrics(searchuc.Metrics{
			SearchesTotal:  metrics.SearchesTotal,
			SearchDuration: metrics.SearchDuration,
		}),
	)
	searchSvc.InitDefaultCollections(ctx)

	// HTTP server
	server := chiTransport.NewServer(searchSvc, embedClient, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
