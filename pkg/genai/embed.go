// Package genai wraps the Google Generative AI SDK behind the engine's
// embedding and text-generation capabilities.
package genai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// DefaultEmbedTimeout bounds one embedding API call.
const DefaultEmbedTimeout = 30 * time.Second

// Embedder produces vectors with a Gemini embedding model. Calls are
// rate limited client-side to stay under the API's request quota and
// carry a per-call deadline.
type Embedder struct {
	client  *genai.Client
	model   *genai.EmbeddingModel
	limiter *rate.Limiter
	timeout time.Duration
}

// EmbedOpts configures an Embedder.
type EmbedOpts struct {
	APIKey  string
	Model   string        // e.g. "embedding-001"
	RPS     float64       // client-side requests per second, 0 means no limit
	Timeout time.Duration // per-call deadline, 0 means DefaultEmbedTimeout
}

// NewEmbedder creates an Embedder for the given model.
func NewEmbedder(ctx context.Context, opts EmbedOpts) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("genai: new client: %w", err)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultEmbedTimeout
	}
	return &Embedder{
		client:  client,
		model:   client.EmbeddingModel(opts.Model),
		limiter: limiter,
		timeout: opts.Timeout,
	}, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	return e.client.Close()
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classify("embedder", "embed", err)
	}
	if res.Embedding == nil {
		return nil, fmt.Errorf("genai: embed returned no embedding")
	}
	return res.Embedding.Values, nil
}

// EmbedBatch returns one embedding per text, in input order, using a
// single batched API call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	batch := e.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify("embedder", "embed_batch", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("genai: embed batch returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	out := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
