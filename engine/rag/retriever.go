// Package rag answers questions from indexed documents only. A question is
// embedded, matched against the vector index, and answered by the generator
// strictly from the retrieved evidence, with numbered citation markers
// verified after generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docent-ai/docent/engine/domain"
)

// Embedder embeds a single query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts vector search within a namespace.
type Searcher interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int, threshold float32) ([]domain.Scored, error)
}

// Retriever turns a query into scored evidence chunks.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	cfg      domain.Config
	log      *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, searcher Searcher, cfg domain.Config, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{embedder: embedder, searcher: searcher, cfg: cfg, log: log}
}

// Retrieve returns the top-K chunks above the similarity threshold.
func (r *Retriever) Retrieve(ctx context.Context, query string) (domain.RetrievalResult, error) {
	return r.RetrieveK(ctx, query, r.cfg.TopK)
}

// RetrieveK retrieves with an explicit width. Hits come back in a stable
// order: score descending, then document ID, then chunk sequence, so
// equal-score results never reshuffle between runs.
func (r *Retriever) RetrieveK(ctx context.Context, query string, topK int) (domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalResult{}, domain.ErrEmptyInput
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("rag: embed query: %w", err)
	}

	hits, err := r.searcher.Query(ctx, r.cfg.Namespace, vector, topK, r.cfg.Threshold)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("rag: search: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.DocID != hits[j].Chunk.DocID {
			return hits[i].Chunk.DocID < hits[j].Chunk.DocID
		}
		return hits[i].Chunk.Sequence < hits[j].Chunk.Sequence
	})

	r.log.Debug("rag: retrieved", "query_len", len(query), "hits", len(hits))
	return domain.RetrievalResult{Query: query, Hits: hits}, nil
}
