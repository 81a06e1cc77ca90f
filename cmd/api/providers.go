package main

import (
	"context"
	"fmt"

	"github.com/docent-ai/docent/pkg/genai"
	"github.com/docent-ai/docent/pkg/ollama"
	"github.com/docent-ai/docent/pkg/resilience"
)

// embedClient is what the engine needs from an embedding provider.
type embedClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// genClient is what the engine needs from a generation provider.
type genClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// buildProviders constructs the configured embedding and generation
// clients, both wrapped in a rate limiter and circuit breaker.
func buildProviders(ctx context.Context, cfg Config) (embedClient, genClient, func(), error) {
	guard := resilience.NewGuard(
		resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.EmbedRPS, Burst: 2}),
		resilience.NewBreaker(resilience.DefaultBreakerOpts),
	)

	switch cfg.Provider {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.EmbedModel, cfg.GenModel)
		return &guardedEmbedder{client, guard}, &guardedGenerator{client, guard}, func() {}, nil

	case "gemini":
		if cfg.GoogleKey == "" {
			return nil, nil, nil, fmt.Errorf("GOOGLE_API_KEY is required for the gemini provider")
		}
		embedder, err := genai.NewEmbedder(ctx, genai.EmbedOpts{
			APIKey: cfg.GoogleKey,
			Model:  cfg.EmbedModel,
			RPS:    cfg.EmbedRPS,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		generator, err := genai.NewGenerator(ctx, genai.GenerateOpts{
			APIKey:      cfg.GoogleKey,
			Model:       cfg.GenModel,
			Temperature: float32(cfg.Temperature),
		})
		if err != nil {
			embedder.Close()
			return nil, nil, nil, err
		}
		closer := func() {
			embedder.Close()
			generator.Close()
		}
		return &guardedEmbedder{embedder, guard}, &guardedGenerator{generator, guard}, closer, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown MODEL_PROVIDER %q", cfg.Provider)
	}
}

// guardedEmbedder runs embedding calls through the shared guard.
type guardedEmbedder struct {
	inner embedClient
	guard *resilience.Guard
}

func (g *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (g *guardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

// guardedGenerator runs generation calls through the shared guard.
type guardedGenerator struct {
	inner genClient
	guard *resilience.Guard
}

func (g *guardedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Generate(ctx, prompt)
		return err
	})
	return out, err
}
