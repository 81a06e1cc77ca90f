// Package summary produces a concise summary of everything indexed in a
// namespace, built from a cross-section of stored chunks rather than just
// the head of a document.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/rag"
	"github.com/docent-ai/docent/engine/semantic"
)

// sampleWidth is how many chunks the summary draws on.
const sampleWidth = 16

const summaryPrompt = `Summarize the following document in no more than %d words. Only use the provided content. Do not add any information or make up facts.

Document:
%s

Summary (at most %d words):`

// Sampler provides a cross-section of stored chunks without a query.
type Sampler interface {
	Sample(ctx context.Context, namespace string, limit int) ([]domain.Chunk, error)
}

// Summarizer generates bounded summaries of indexed content.
type Summarizer struct {
	sampler Sampler
	gen     rag.Generator
	cfg     domain.Config
	log     *slog.Logger
}

// New creates a Summarizer.
func New(sampler Sampler, gen rag.Generator, cfg domain.Config, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{sampler: sampler, gen: gen, cfg: cfg, log: log}
}

// Summarize summarizes the namespace in at most cfg.SummaryMaxWords words.
// Generators overshoot word limits often enough that the bound is enforced
// by truncation afterwards.
func (s *Summarizer) Summarize(ctx context.Context) (string, error) {
	chunks, err := s.sampler.Sample(ctx, s.cfg.Namespace, sampleWidth*4)
	if err != nil {
		return "", fmt.Errorf("summary: sample: %w", err)
	}
	if len(chunks) == 0 {
		return "", domain.ErrEmptyInput
	}

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocID != chunks[j].DocID {
			return chunks[i].DocID < chunks[j].DocID
		}
		return chunks[i].Sequence < chunks[j].Sequence
	})
	sample := semantic.Stratify(chunks, sampleWidth)

	parts := make([]string, len(sample))
	for i, c := range sample {
		parts[i] = c.Text
	}

	maxWords := s.cfg.SummaryMaxWords
	prompt := fmt.Sprintf(summaryPrompt, maxWords, strings.Join(parts, "\n\n"), maxWords)

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summary: generate: %w", err)
	}

	summary := TruncateWords(strings.TrimSpace(text), maxWords)
	s.log.Info("summary: generated", "chunks", len(sample), "words", len(strings.Fields(summary)))
	return summary, nil
}

// TruncateWords cuts text to at most n whitespace-separated words.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ")
}
