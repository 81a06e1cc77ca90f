package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docent-ai/docent/engine/challenge"
	"github.com/docent-ai/docent/engine/domain"
	"github.com/docent-ai/docent/engine/index"
	"github.com/docent-ai/docent/engine/rag"
	"github.com/docent-ai/docent/engine/semantic"
	"github.com/docent-ai/docent/engine/summary"
	"github.com/docent-ai/docent/pkg/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// fakeStore is an in-memory stand-in for the vector index.
type fakeStore struct {
	entries map[string][]semantic.Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string][]semantic.Entry)}
}

func (f *fakeStore) Upsert(_ context.Context, ns string, entries []semantic.Entry) error {
	f.entries[ns] = append(f.entries[ns], entries...)
	return nil
}

func (f *fakeStore) DeleteFrom(_ context.Context, ns, docID string, fromSequence int) error {
	var kept []semantic.Entry
	for _, e := range f.entries[ns] {
		if e.Chunk.DocID != docID || e.Chunk.Sequence < fromSequence {
			kept = append(kept, e)
		}
	}
	f.entries[ns] = kept
	return nil
}

func (f *fakeStore) Query(_ context.Context, ns string, _ []float32, topK int, _ float32) ([]domain.Scored, error) {
	var hits []domain.Scored
	for _, e := range f.entries[ns] {
		hits = append(hits, domain.Scored{Chunk: e.Chunk, Score: 0.9})
		if len(hits) == topK {
			break
		}
	}
	return hits, nil
}

func (f *fakeStore) Sample(_ context.Context, ns string, limit int) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, e := range f.entries[ns] {
		chunks = append(chunks, e.Chunk)
		if len(chunks) == limit {
			break
		}
	}
	return chunks, nil
}

type fakeGenerator struct{ reply string }

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	return f.reply, nil
}

func testServer(t *testing.T, store *fakeStore, gen *fakeGenerator) *server {
	t.Helper()
	cfg := domain.DefaultConfig()

	indexSvc, err := index.New(index.Deps{
		Embedder: fakeEmbedder{},
		Index:    store,
		Config:   cfg,
		Metrics:  metrics.New(),
	})
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}

	retriever := rag.NewRetriever(fakeEmbedder{}, store, cfg, nil)
	return &server{
		index:      indexSvc,
		answerer:   rag.NewAnswerer(retriever, gen, nil),
		challenger: challenge.New(retriever, store, gen, cfg, nil),
		summarizer: summary.New(store, gen, cfg, nil),
		namespace:  cfg.Namespace,
		metrics:    metrics.New(),
		log:        testLogger(),
	}
}

func TestHandleIndexAndAsk(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{reply: "The topic is widgets [1]."}
	srv := testServer(t, store, gen)

	// Index a text document.
	body, _ := json.Marshal(indexRequest{Documents: []index.Request{
		{Name: "notes.txt", Data: []byte("widgets are small useful parts used everywhere")},
	}})
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest("POST", "/api/index", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d: %s", rec.Code, rec.Body.String())
	}
	var report indexResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.DocumentsProcessed != 1 || report.VectorsStored == 0 {
		t.Fatalf("report = %+v", report.Report)
	}

	// Ask against what was indexed.
	ask, _ := json.Marshal(askRequest{Question: "what is the topic?"})
	rec = httptest.NewRecorder()
	srv.handleAsk(rec, httptest.NewRequest("POST", "/api/ask", bytes.NewReader(ask)))

	if rec.Code != http.StatusOK {
		t.Fatalf("ask status = %d", rec.Code)
	}
	var answer domain.Answer
	json.Unmarshal(rec.Body.Bytes(), &answer)
	if !answer.Found || len(answer.Citations) != 1 {
		t.Errorf("answer = %+v", answer)
	}
}

func TestHandleIndexRejectsUnknownFormat(t *testing.T) {
	srv := testServer(t, newFakeStore(), &fakeGenerator{})

	body, _ := json.Marshal(indexRequest{Documents: []index.Request{
		{Name: "binary.exe", Data: []byte{0x4d, 0x5a}},
	}})
	rec := httptest.NewRecorder()
	srv.handleIndex(rec, httptest.NewRequest("POST", "/api/index", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report indexResponse
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.DocumentsProcessed != 0 || len(report.Failures) != 1 {
		t.Errorf("report = %+v", report.Report)
	}
}

func TestHandleAskRequiresQuestion(t *testing.T) {
	srv := testServer(t, newFakeStore(), &fakeGenerator{})

	rec := httptest.NewRecorder()
	srv.handleAsk(rec, httptest.NewRequest("POST", "/api/ask", bytes.NewReader([]byte(`{"question":""}`))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleChallengeWithNothingIndexed(t *testing.T) {
	srv := testServer(t, newFakeStore(), &fakeGenerator{reply: "1. Q?"})

	rec := httptest.NewRecorder()
	srv.handleChallenge(rec, httptest.NewRequest("POST", "/api/challenge", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 with empty namespace", rec.Code)
	}
}

func TestHandleEvaluate(t *testing.T) {
	store := newFakeStore()
	store.Upsert(context.Background(), "default", []semantic.Entry{
		{Chunk: domain.Chunk{DocID: "d1", Source: "d1.txt", Text: "the answer is 42"}},
	})
	gen := &fakeGenerator{reply: "Verdict: correct\nScore: 95\nFeedback: Right.\nJustification: [1]"}
	srv := testServer(t, store, gen)

	body, _ := json.Marshal(evaluateRequest{Question: "what is the answer?", Answer: "42"})
	rec := httptest.NewRecorder()
	srv.handleEvaluate(rec, httptest.NewRequest("POST", "/api/evaluate", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var eval domain.Evaluation
	json.Unmarshal(rec.Body.Bytes(), &eval)
	if eval.Verdict != domain.VerdictCorrect || eval.Score != 95 {
		t.Errorf("eval = %+v", eval)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" || cfg.Provider != "gemini" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Engine.ChunkSize != 500 || cfg.Engine.TopK != 5 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOP_K", "9")
	t.Setenv("SCORE_THRESHOLD", "0.5")
	cfg := loadConfig()
	if cfg.Engine.TopK != 9 || cfg.Engine.Threshold != 0.5 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
}
