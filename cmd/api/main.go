// Package main implements the document assistant API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docent-ai/docent/engine/challenge"
	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/index"
	"github.com/docent-ai/docent/engine/rag"
	"github.com/docent-ai/docent/engine/semantic"
	"github.com/docent-ai/docent/engine/summary"
	"github.com/docent-ai/docent/pkg/metrics"
	"github.com/docent-ai/docent/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	QdrantURL  string
	Collection string
	CORSOrigin string
	MaxBodyMB  int64

	Provider    string // "gemini" or "ollama"
	GoogleKey   string
	EmbedModel  string
	GenModel    string
	OllamaURL   string
	EmbedRPS    float64
	Temperature float64

	Engine domain.Config
}

func loadConfig() Config {
	engine := domain.DefaultConfig()
	engine.Namespace = envOr("NAMESPACE", engine.Namespace)
	engine.ChunkSize = envInt("CHUNK_SIZE", engine.ChunkSize)
	engine.ChunkOverlap = envInt("CHUNK_OVERLAP", engine.ChunkOverlap)
	engine.TopK = envInt("TOP_K", engine.TopK)
	engine.Threshold = float32(envFloat("SCORE_THRESHOLD", float64(engine.Threshold)))

	return Config{
		Port:       envOr("PORT", "8080"),
		QdrantURL:  envOr("QDRANT_URL", "localhost:6334"),
		Collection: envOr("QDRANT_COLLECTION", "docent"),
		CORSOrigin: envOr("CORS_ORIGIN", "*"),
		MaxBodyMB:  int64(envInt("MAX_BODY_MB", 32)),

		Provider:    envOr("MODEL_PROVIDER", "gemini"),
		GoogleKey:   os.Getenv("GOOGLE_API_KEY"),
		EmbedModel:  envOr("EMBED_MODEL", "embedding-001"),
		GenModel:    envOr("GEN_MODEL", "gemini-1.5-flash"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedRPS:    envFloat("EMBED_RPS", 5),
		Temperature: envFloat("TEMPERATURE", 0.3),

		Engine: engine,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if err := cfg.Engine.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Qdrant ---
	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = store.EnsureCollection(ensureCtx, cfg.Engine.Dimension)
	cancel()
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	// --- Model providers ---
	embedder, generator, closeProviders, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProviders()

	// --- Engine services ---
	registry := metrics.New()

	indexSvc, err := index.New(index.Deps{
		Embedder: embedder,
		Index:    store,
		Config:   cfg.Engine,
		Logger:   logger,
		Metrics:  registry,
	})
	if err != nil {
		return err
	}

	retriever := rag.NewRetriever(embedder, store, cfg.Engine, logger)
	answerer := rag.NewAnswerer(retriever, generator, logger)
	challenger := challenge.New(retriever, store, generator, cfg.Engine, logger)
	summarizer := summary.New(store, generator, cfg.Engine, logger)

	srv := &server{
		index:      indexSvc,
		answerer:   answerer,
		challenger: challenger,
		summarizer: summarizer,
		store:      store,
		namespace:  cfg.Engine.Namespace,
		metrics:    registry,
		log:        logger,
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("POST /api/index", srv.handleIndex)
	mux.HandleFunc("POST /api/ask", srv.handleAsk)
	mux.HandleFunc("POST /api/challenge", srv.handleChallenge)
	mux.HandleFunc("POST /api/evaluate", srv.handleEvaluate)
	mux.HandleFunc("GET /api/summary", srv.handleSummary)
	mux.HandleFunc("DELETE /api/index", srv.handleReset)
	mux.HandleFunc("DELETE /api/index/{id}", srv.handleDeleteDocument)
	mux.HandleFunc("GET /api/stats", srv.handleStats)
	mux.Handle("GET /metrics", registry.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.Metrics(registry),
		mid.CORS(cfg.CORSOrigin),
		mid.MaxBytes(cfg.MaxBodyMB<<20),
		mid.OTel("docent-api"),
	)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "namespace", cfg.Engine.Namespace)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}
