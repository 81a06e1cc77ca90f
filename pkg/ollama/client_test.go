package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docent-ai/docent/engine/domain"
)

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %s", req.Model)
		}
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(srv.URL, "nomic-embed-text", "llama3")
	vals, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vals) != 3 || vals[0] != 0.1 {
		t.Errorf("vals = %v", vals)
	}
}

func TestNewBoundsRequests(t *testing.T) {
	c := New("http://localhost:11434", "m", "g")
	if c.client.Timeout == 0 {
		t.Fatal("HTTP client has no timeout")
	}
}

func TestEmbedFailsOnStalledServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(srv.URL, "m", "g")
	c.client.Timeout = 50 * time.Millisecond

	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected timeout error from stalled server")
	}
}

func TestEmbedBatchOrder(t *testing.T) {
	var n float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		json.NewEncoder(w).Encode(embedResp{Embedding: []float64{n}})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", "g")
	out, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 3 || out[0][0] != 1 || out[2][0] != 3 {
		t.Errorf("out = %v", out)
	}
}

func TestEmbedQuotaStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "m", "g")
	_, err := c.Embed(context.Background(), "hello")

	var capErr *domain.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapabilityError, got %v", err)
	}
	if capErr.Cause != domain.CauseQuota {
		t.Errorf("cause = %s, want quota", capErr.Cause)
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		json.NewEncoder(w).Encode(generateResp{Response: "an answer"})
	}))
	defer srv.Close()

	c := New(srv.URL, "m", "llama3")
	got, err := c.Generate(context.Background(), "question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "an answer" {
		t.Errorf("got %q", got)
	}
}
