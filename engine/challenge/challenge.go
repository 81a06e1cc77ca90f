// Package challenge generates comprehension questions from indexed
// documents and grades free-text answers strictly against the document
// evidence.
package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/rag"
	"github.com/docent-ai/docent/engine/semantic"
)

// DefaultQuestionCount matches the three-question challenge round.
const DefaultQuestionCount = 3

const questionPrompt = `Based ONLY on the following document context, generate %d logic-based or comprehension-focused questions that test understanding of the material. Do not use external knowledge. Number each question, one per line.

Context:
%s

Questions:`

// Sampler provides a cross-section of stored chunks without a query.
type Sampler interface {
	Sample(ctx context.Context, namespace string, limit int) ([]domain.Chunk, error)
}

// Service generates and evaluates challenge questions.
type Service struct {
	retriever *rag.Retriever
	sampler   Sampler
	gen       rag.Generator
	cfg       domain.Config
	log       *slog.Logger
}

// New creates a challenge Service.
func New(retriever *rag.Retriever, sampler Sampler, gen rag.Generator, cfg domain.Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{retriever: retriever, sampler: sampler, gen: gen, cfg: cfg, log: log}
}

// GenerateQuestions produces n questions over a stratified sample of the
// namespace, so questions cover the whole document rather than whichever
// section happens to rank first. n <= 0 means DefaultQuestionCount.
func (s *Service) GenerateQuestions(ctx context.Context, n int) ([]domain.ChallengeQuestion, error) {
	if n <= 0 {
		n = DefaultQuestionCount
	}

	evidence, err := s.sampleEvidence(ctx)
	if err != nil {
		return nil, err
	}
	if len(evidence) == 0 {
		return nil, domain.ErrEmptyInput
	}

	prompt := fmt.Sprintf(questionPrompt, n, contextText(evidence))
	reply, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("challenge: generate questions: %w", err)
	}

	texts := ParseQuestions(reply, n)
	if len(texts) == 0 {
		return nil, fmt.Errorf("challenge: no questions in model reply")
	}

	questions := make([]domain.ChallengeQuestion, len(texts))
	for i, text := range texts {
		questions[i] = domain.ChallengeQuestion{
			ID:         questionID(s.cfg.Namespace, text),
			Text:       text,
			Difficulty: difficultyFor(i),
			Evidence:   evidence,
		}
	}

	s.log.Info("challenge: generated", "questions", len(questions), "evidence", len(evidence))
	return questions, nil
}

// sampleEvidence takes a wide scroll of the namespace and thins it to an
// evenly spaced cross-section of ChallengeTopK chunks in document order.
func (s *Service) sampleEvidence(ctx context.Context) ([]domain.Chunk, error) {
	chunks, err := s.sampler.Sample(ctx, s.cfg.Namespace, s.cfg.ChallengeTopK*4)
	if err != nil {
		return nil, fmt.Errorf("challenge: sample: %w", err)
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocID != chunks[j].DocID {
			return chunks[i].DocID < chunks[j].DocID
		}
		return chunks[i].Sequence < chunks[j].Sequence
	})
	return semantic.Stratify(chunks, s.cfg.ChallengeTopK), nil
}

// ParseQuestions extracts up to n questions from a model reply. Numbered
// and dashed list items are recognized; if neither appears, the first n
// non-empty lines are taken as-is.
func ParseQuestions(reply string, n int) []string {
	var questions []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line[0] >= '0' && line[0] <= '9' || strings.HasPrefix(line, "-") {
			q := strings.TrimLeft(line, "0123456789.-) ")
			if q != "" {
				questions = append(questions, q)
			}
		}
	}

	if len(questions) == 0 {
		for _, line := range strings.Split(reply, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				questions = append(questions, line)
			}
		}
	}

	if len(questions) > n {
		questions = questions[:n]
	}
	return questions
}

func contextText(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

func questionID(namespace, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(namespace+"/"+text)).String()
}

// difficultyFor cycles easy, medium, hard across the question list.
func difficultyFor(i int) domain.Difficulty {
	switch i % 3 {
	case 0:
		return domain.DifficultyEasy
	case 1:
		return domain.DifficultyMedium
	default:
		return domain.DifficultyHard
	}
}
