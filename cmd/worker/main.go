// Command worker consumes documents from the NATS index queue and writes
// their vectors into Qdrant. Run alongside cmd/index for asynchronous
// ingestion, or index synchronously through the API instead.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/index"
	"github.com/docent-ai/docent/engine/semantic"
	"github.com/docent-ai/docent/pkg/genai"
	"github.com/docent-ai/docent/pkg/metrics"
	"github.com/docent-ai/docent/pkg/ollama"
)

type config struct {
	NATSURL     string
	QdrantURL   string
	Collection  string
	Provider    string
	GoogleKey   string
	EmbedModel  string
	OllamaURL   string
	EmbedRPS    float64
	MetricsPort int
	Engine      domain.Config
}

func loadConfig() config {
	engine := domain.DefaultConfig()
	engine.Namespace = envOr("NAMESPACE", engine.Namespace)
	engine.ChunkSize = envInt("CHUNK_SIZE", engine.ChunkSize)
	engine.ChunkOverlap = envInt("CHUNK_OVERLAP", engine.ChunkOverlap)

	return config{
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "docent"),
		Provider:    envOr("MODEL_PROVIDER", "gemini"),
		GoogleKey:   os.Getenv("GOOGLE_API_KEY"),
		EmbedModel:  envOr("EMBED_MODEL", "embedding-001"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedRPS:    envFloat("EMBED_RPS", 5),
		MetricsPort: envInt("METRICS_PORT", 9092),
		Engine:      engine,
	}
}

func main() {
	godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := loadConfig()
	if err := cfg.Engine.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.ServeAsync(cfg.MetricsPort)

	store, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureCollection(ensureCtx, cfg.Engine.Dimension); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	log.Info("connected to Qdrant", "collection", cfg.Collection)

	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	svc, err := index.New(index.Deps{
		Embedder: embedder,
		Index:    store,
		Config:   cfg.Engine,
		Logger:   log,
		Metrics:  met,
	})
	if err != nil {
		return err
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	sub, err := index.StartConsumer(nc, svc, log)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Info("consuming", "subject", index.Subject, "namespace", cfg.Engine.Namespace)

	<-ctx.Done()
	log.Info("shutting down")
	sub.Drain()
	return nil
}

func buildEmbedder(ctx context.Context, cfg config) (index.Embedder, func(), error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.New(cfg.OllamaURL, cfg.EmbedModel, ""), func() {}, nil
	case "gemini":
		if cfg.GoogleKey == "" {
			return nil, nil, fmt.Errorf("GOOGLE_API_KEY is required for the gemini provider")
		}
		embedder, err := genai.NewEmbedder(ctx, genai.EmbedOpts{
			APIKey: cfg.GoogleKey,
			Model:  cfg.EmbedModel,
			RPS:    cfg.EmbedRPS,
		})
		if err != nil {
			return nil, nil, err
		}
		return embedder, func() { embedder.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown MODEL_PROVIDER %q", cfg.Provider)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
