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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/findex-kr/findex/internal/config"
	dbRedis "github.com/findex-kr/findex/internal/db/redis"
	"github.com/findex-kr/findex/internal/domain"
	logpkg "github.com/findex-kr/findex/internal/logger"
	"github.com/findex-kr/findex/internal/metrics"
	dictrepo "github.com/findex-kr/findex/internal/repository/dictionary"
	"github.com/findex-kr/findex/internal/repository/embcache"
	lexicalrepo "github.com/findex-kr/findex/internal/repository/lexical"
	vectorrepo "github.com/findex-kr/findex/internal/repository/vector"
	chiTransport "github.com/findex-kr/findex/internal/transport/chi"
	openaiTransport "github.com/findex-kr/findex/internal/transport/openai"
	classifyuc "github.com/findex-kr/findex/internal/usecase/classify"
	findingsuc "github.com/findex-kr/findex/internal/usecase/findings"
	packuc "github.com/findex-kr/findex/internal/usecase/pack"
	pipelineuc "github.com/findex-kr/findex/internal/usecase/pipeline"
	promoteuc "github.com/findex-kr/findex/internal/usecase/promote"
	resolveuc "github.com/findex-kr/findex/internal/usecase/resolve"
	retrieveuc "github.com/findex-kr/findex/internal/usecase/retrieve"
	"github.com/findex-kr/findex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting findex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
		zap.String("qdrant_host", cfg.Qdrant.Host),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Redis.Addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create redis store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}
	logger.Info("Connected to redis")

	qdrantClient, err := vectorrepo.NewClient(vectorrepo.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		logger.Fatal("Failed to create qdrant client", zap.Error(err))
	}
	defer func() { _ = qdrantClient.Close() }()

	dict, err := dictrepo.Load(cfg.Dictionary.Path)
	if err != nil {
		logger.Fatal("Failed to load keyword dictionary",
			zap.String("path", cfg.Dictionary.Path), zap.Error(err))
	}
	logger.Info("Keyword dictionary loaded", zap.Int("entries", dict.Size()))

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Embedder chain: OpenAI -> LRU cache
	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Timeout:    time.Duration(cfg.Timeouts.EmbeddingSec) * time.Second,
	})
	embedder = embcache.New(embedder, cfg.Embedding.CacheSize, metrics.EmbeddingCacheTotal)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	var secondary classifyuc.Classifier
	if cfg.Classifier.APIKey != "" {
		secondary = openaiTransport.NewClassifier(&openaiTransport.Config{
			APIKey:  cfg.Classifier.APIKey,
			BaseURL: cfg.Classifier.BaseURL,
			Model:   cfg.Classifier.Model,
		})
		logger.Info("Secondary classifier enabled", zap.String("model", cfg.Classifier.Model))
	}

	// Repositories
	lexRepo := lexicalrepo.New(store).WithTimeout(time.Duration(cfg.Timeouts.LexicalSec) * time.Second)
	vecRepo := vectorrepo.New(qdrantClient).WithTimeout(time.Duration(cfg.Timeouts.VectorSec) * time.Second)

	// Use case services
	classifySvc := classifyuc.New(dict, secondary)
	resolveSvc := resolveuc.New(lexRepo)
	findingsSvc := findingsuc.New(lexRepo, vecRepo, embedder)
	retrieveSvc := retrieveuc.New(lexRepo, vecRepo, embedder)

	promoteOpts := promoteuc.DefaultOptions()
	promoteOpts.MaxBlocksPerDoc = cfg.Retrieval.MaxBlocksPerDoc
	promoteOpts.FinalTopN = cfg.Retrieval.FinalBlocks
	promoteSvc := promoteuc.New(promoteOpts)

	packOpts := packuc.DefaultOptions()
	packOpts.TokenBudget = cfg.Retrieval.TokenBudget
	packOpts.ChunksPerBlock = cfg.Retrieval.ChunksPerBlock
	packSvc := packuc.New(packOpts)

	pipelineSvc := pipelineuc.New(classifySvc, resolveSvc, findingsSvc, retrieveSvc, promoteSvc, packSvc).
		WithSections(cfg.Retrieval.Sections)

	// HTTP server
	server := chiTransport.NewServer(pipelineSvc, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

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
