package challenge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/rag"
)

const evaluatePrompt = `You are a tutor. Given the document context, a question, and a user's answer, evaluate the answer for correctness using the context ONLY.

Respond in exactly this format, nothing else:
Verdict: correct, partial, or incorrect
Score: a number from 0 to 100
Feedback: short, simple feedback (2-3 sentences)
Justification: a brief justification referencing the context blocks by their bracketed numbers, like [1]

Context:
%s

Question:
%s

User's Answer:
%s
`

// Evaluate judges a user's answer against evidence re-retrieved with the
// question itself, so grading sees the same material an answer would.
func (s *Service) Evaluate(ctx context.Context, question, userAnswer string) (domain.Evaluation, error) {
	question = strings.TrimSpace(question)
	userAnswer = strings.TrimSpace(userAnswer)
	if question == "" || userAnswer == "" {
		return domain.Evaluation{}, domain.ErrEmptyInput
	}

	result, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return domain.Evaluation{}, err
	}
	if result.Empty() {
		return domain.Evaluation{
			Question:      question,
			UserAnswer:    userAnswer,
			Verdict:       domain.VerdictIncorrect,
			Score:         0,
			Feedback:      "The document does not contain evidence for this question, so the answer cannot be graded against it.",
			Justification: "No relevant content was found in the indexed documents.",
		}, nil
	}

	prompt := fmt.Sprintf(evaluatePrompt, rag.FormatContext(result.Hits), question, userAnswer)
	reply, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("challenge: evaluate: %w", err)
	}

	eval := parseEvaluation(reply)
	eval.Question = question
	eval.UserAnswer = userAnswer
	eval.Citations = rag.VerifyCitations(eval.Justification, result.Hits)

	s.log.Info("challenge: evaluated",
		"verdict", eval.Verdict,
		"score", eval.Score,
		"evidence", len(result.Hits),
	)
	return eval, nil
}

// parseEvaluation reads the line-oriented reply format. A missing verdict
// is derived from the score; a missing score from the verdict.
func parseEvaluation(reply string) domain.Evaluation {
	eval := domain.Evaluation{Score: -1}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case hasField(line, "Verdict"):
			eval.Verdict = parseVerdict(fieldValue(line))
		case hasField(line, "Score"):
			eval.Score = parseScore(fieldValue(line))
		case hasField(line, "Feedback"):
			eval.Feedback = fieldValue(line)
		case hasField(line, "Justification"):
			eval.Justification = fieldValue(line)
		default:
			// Continuation lines extend the field last seen.
			if line != "" && eval.Justification != "" {
				eval.Justification += " " + line
			} else if line != "" && eval.Feedback != "" {
				eval.Feedback += " " + line
			}
		}
	}

	if eval.Verdict == "" && eval.Score >= 0 {
		eval.Verdict = verdictForScore(eval.Score)
	}
	if eval.Score < 0 {
		eval.Score = scoreForVerdict(eval.Verdict)
	}
	if eval.Verdict == "" {
		eval.Verdict = domain.VerdictIncorrect
		eval.Score = 0
	}
	if eval.Feedback == "" {
		eval.Feedback = strings.TrimSpace(reply)
	}
	return eval
}

func hasField(line, name string) bool {
	return len(line) > len(name) && strings.EqualFold(line[:len(name)], name) &&
		strings.HasPrefix(strings.TrimSpace(line[len(name):]), ":")
}

func fieldValue(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

func parseVerdict(s string) domain.Verdict {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "correct"):
		return domain.VerdictCorrect
	case strings.HasPrefix(s, "partial"):
		return domain.VerdictPartial
	case strings.HasPrefix(s, "incorrect"), strings.HasPrefix(s, "wrong"):
		return domain.VerdictIncorrect
	}
	return ""
}

// parseScore pulls the first integer out of the value and clamps to 0-100.
func parseScore(s string) int {
	i := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if i == -1 {
		return -1
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	n, err := strconv.Atoi(s[i:j])
	if err != nil {
		return -1
	}
	if n > 100 {
		return 100
	}
	return n
}

func verdictForScore(score int) domain.Verdict {
	switch {
	case score >= 80:
		return domain.VerdictCorrect
	case score >= 40:
		return domain.VerdictPartial
	default:
		return domain.VerdictIncorrect
	}
}

func scoreForVerdict(v domain.Verdict) int {
	switch v {
	case domain.VerdictCorrect:
		return 100
	case domain.VerdictPartial:
		return 50
	default:
		return 0
	}
}
