package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/pkg/fn"
)

// NotFoundAnswer is returned verbatim when the evidence cannot support an
// answer.
const NotFoundAnswer = "I'm sorry, I don't have enough information in the provided document to answer that."

const answerPrompt = `You are a helpful, honest, and reliable assistant that reads documents and answers questions accurately.

Rules:
- Use the provided context ONLY. Do not use external knowledge.
- Never guess. Answer only if the answer is clearly supported by the context.
- If the answer is not in the context, respond with exactly:
%s
- Be concise and factual.
- After each claim, cite the supporting context block with its bracketed number, like [1] or [2].

Context:
%s

Question:
%s

Answer (with [n] citations):`

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answerer is the grounded question-answering service.
type Answerer struct {
	retriever *Retriever
	gen       Generator
	log       *slog.Logger
}

// NewAnswerer creates an Answerer.
func NewAnswerer(retriever *Retriever, gen Generator, log *slog.Logger) *Answerer {
	if log == nil {
		log = slog.Default()
	}
	return &Answerer{retriever: retriever, gen: gen, log: log}
}

// Ask answers a question from indexed evidence. With no evidence above the
// threshold the refusal answer is returned without calling the generator.
func (a *Answerer) Ask(ctx context.Context, question string) (domain.Answer, error) {
	result, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return domain.Answer{}, err
	}
	if result.Empty() {
		a.log.Info("rag: no evidence above threshold", "question_len", len(question))
		return domain.Answer{Text: NotFoundAnswer, Found: false}, nil
	}

	prompt := fmt.Sprintf(answerPrompt, NotFoundAnswer, FormatContext(result.Hits), question)
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("rag: generate answer: %w", err)
	}
	text = strings.TrimSpace(text)

	if isRefusal(text) {
		return domain.Answer{Text: NotFoundAnswer, Found: false}, nil
	}

	citations := VerifyCitations(text, result.Hits)
	if len(citations) == 0 {
		// An answer given from evidence always cites at least one block;
		// when the generator omits its markers, pin the strongest hit.
		citations = []domain.Citation{citationFor(result.Hits[0].Chunk)}
	}
	sources := fn.Unique(fn.Map(result.Hits, func(h domain.Scored) string { return h.Chunk.Source }))

	a.log.Info("rag: answered",
		"question_len", len(question),
		"evidence", len(result.Hits),
		"citations", len(citations),
	)
	return domain.Answer{
		Text:      text,
		Found:     true,
		Citations: citations,
		Sources:   sources,
	}, nil
}

// FormatContext renders evidence as numbered blocks the prompt's citation
// rule refers to. Numbering starts at 1.
func FormatContext(hits []domain.Scored) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[%d] (source: %s, %s, score: %.3f)\n%s",
			i+1, h.Chunk.Source, describeAnchor(h.Chunk.StartAnchor), h.Score, h.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

func describeAnchor(a domain.Anchor) string {
	if a.Page > 0 {
		return fmt.Sprintf("page %d", a.Page)
	}
	return fmt.Sprintf("paragraph %d", a.Paragraph+1)
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// VerifyCitations maps the [n] markers the generator emitted back onto the
// evidence that was actually in the prompt. Markers outside the evidence
// range are discarded; each block is cited at most once, in first-mention
// order.
func VerifyCitations(text string, hits []domain.Scored) []domain.Citation {
	var citations []domain.Citation
	seen := make(map[int]bool)

	for _, m := range citationMarker.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(hits) || seen[n] {
			continue
		}
		seen[n] = true
		citations = append(citations, citationFor(hits[n-1].Chunk))
	}
	return citations
}

func citationFor(c domain.Chunk) domain.Citation {
	return domain.Citation{
		DocID:    c.DocID,
		Source:   c.Source,
		Sequence: c.Sequence,
		Anchor:   c.StartAnchor,
		Snippet:  snippet(c.Text, 160),
	}
}

// isRefusal detects the not-found phrasing even when the generator pads it.
func isRefusal(text string) bool {
	return strings.Contains(text, "don't have enough information")
}

// snippet truncates to at most n runes on a rune boundary.
func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
