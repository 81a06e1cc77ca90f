package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docent-ai/docent/engine/domain"
)

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) {
	return m.vector, m.err
}

type mockSearcher struct {
	hits      []domain.Scored
	err       error
	namespace string
	topK      int
	threshold float32
}

func (m *mockSearcher) Query(_ context.Context, namespace string, _ []float32, topK int, threshold float32) ([]domain.Scored, error) {
	m.namespace = namespace
	m.topK = topK
	m.threshold = threshold
	return m.hits, m.err
}

type mockGenerator struct {
	reply  string
	err    error
	prompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.reply, m.err
}

func hit(docID string, seq int, score float32, text string) domain.Scored {
	return domain.Scored{
		Chunk: domain.Chunk{
			DocID:    docID,
			Source:   docID + ".pdf",
			Sequence: seq,
			Text:     text,
		},
		Score: score,
	}
}

func testRetriever(embedder Embedder, searcher Searcher) *Retriever {
	return NewRetriever(embedder, searcher, domain.DefaultConfig(), nil)
}

func TestRetrieveOrdering(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.Scored{
		hit("b", 7, 0.8, "tie later doc"),
		hit("a", 9, 0.8, "tie earlier doc, later seq"),
		hit("a", 2, 0.8, "tie earlier doc, earlier seq"),
		hit("c", 0, 0.9, "best"),
	}}
	r := testRetriever(&mockEmbedder{vector: []float32{1}}, searcher)

	result, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	var got []string
	for _, h := range result.Hits {
		got = append(got, h.Chunk.DocID)
	}
	want := []string{"c", "a", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if result.Hits[1].Chunk.Sequence != 2 {
		t.Errorf("equal-score same-doc hits must sort by sequence, got %d first", result.Hits[1].Chunk.Sequence)
	}
}

func TestRetrievePassesConfig(t *testing.T) {
	searcher := &mockSearcher{}
	r := testRetriever(&mockEmbedder{vector: []float32{1}}, searcher)

	if _, err := r.Retrieve(context.Background(), "query"); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	cfg := domain.DefaultConfig()
	if searcher.namespace != cfg.Namespace || searcher.topK != cfg.TopK || searcher.threshold != cfg.Threshold {
		t.Errorf("searcher got (%s, %d, %g)", searcher.namespace, searcher.topK, searcher.threshold)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := testRetriever(&mockEmbedder{}, &mockSearcher{})
	if _, err := r.Retrieve(context.Background(), "   "); !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestRetrieveEmbedError(t *testing.T) {
	want := errors.New("quota")
	r := testRetriever(&mockEmbedder{err: want}, &mockSearcher{})
	if _, err := r.Retrieve(context.Background(), "query"); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestAskAnswersWithCitations(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.Scored{
		hit("a", 0, 0.9, "the sky is blue"),
		hit("a", 1, 0.7, "grass is green"),
	}}
	gen := &mockGenerator{reply: "The sky is blue [1] and grass is green [2]."}
	a := NewAnswerer(testRetriever(&mockEmbedder{vector: []float32{1}}, searcher), gen, nil)

	answer, err := a.Ask(context.Background(), "what color is the sky?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.Found {
		t.Fatal("expected found answer")
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("citations = %+v", answer.Citations)
	}
	if answer.Citations[0].Sequence != 0 || answer.Citations[1].Sequence != 1 {
		t.Errorf("citation order wrong: %+v", answer.Citations)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "a.pdf" {
		t.Errorf("sources = %v", answer.Sources)
	}
	// The evidence must actually be in the prompt the generator saw.
	if !strings.Contains(gen.prompt, "the sky is blue") || !strings.Contains(gen.prompt, "[1]") {
		t.Error("prompt missing numbered evidence")
	}
}

func TestAskDiscardsOutOfRangeCitations(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.Scored{hit("a", 0, 0.9, "fact")}}
	gen := &mockGenerator{reply: "A fact [1], an invented one [7], repeated [1]."}
	a := NewAnswerer(testRetriever(&mockEmbedder{vector: []float32{1}}, searcher), gen, nil)

	answer, err := a.Ask(context.Background(), "question")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("citations = %+v, want exactly one", answer.Citations)
	}
}

func TestAskBacksUnmarkedAnswerWithTopHit(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.Scored{
		hit("a", 3, 0.9, "the sky appears blue because of Rayleigh scattering"),
		hit("b", 1, 0.5, "weaker evidence"),
	}}
	gen := &mockGenerator{reply: "The sky is blue."}
	a := NewAnswerer(testRetriever(&mockEmbedder{vector: []float32{1}}, searcher), gen, nil)

	answer, err := a.Ask(context.Background(), "why is the sky blue?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !answer.Found {
		t.Fatal("answer with evidence should be Found")
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("citations = %+v, want the top hit pinned", answer.Citations)
	}
	if c := answer.Citations[0]; c.DocID != "a" || c.Sequence != 3 {
		t.Errorf("citation = %+v, want the strongest hit", c)
	}
}

func TestAskRefusesWithoutEvidence(t *testing.T) {
	gen := &mockGenerator{reply: "should never be called"}
	a := NewAnswerer(testRetriever(&mockEmbedder{vector: []float32{1}}, &mockSearcher{}), gen, nil)

	answer, err := a.Ask(context.Background(), "unanswerable")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Found || answer.Text != NotFoundAnswer {
		t.Errorf("answer = %+v", answer)
	}
	if gen.prompt != "" {
		t.Error("generator must not run with no evidence")
	}
}

func TestAskDetectsGeneratorRefusal(t *testing.T) {
	searcher := &mockSearcher{hits: []domain.Scored{hit("a", 0, 0.4, "unrelated")}}
	gen := &mockGenerator{reply: "I'm sorry, I don't have enough information in the provided document to answer that."}
	a := NewAnswerer(testRetriever(&mockEmbedder{vector: []float32{1}}, searcher), gen, nil)

	answer, err := a.Ask(context.Background(), "question")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Found || len(answer.Citations) != 0 {
		t.Errorf("refusal should carry no citations: %+v", answer)
	}
}

func TestSnippetRuneSafe(t *testing.T) {
	s := strings.Repeat("ü", 200)
	got := snippet(s, 160)
	if !strings.HasSuffix(got, "...") {
		t.Error("long snippet should be truncated")
	}
	if strings.ContainsRune(got, '�') {
		t.Error("snippet split a rune")
	}
}
