// Package ollama provides a local Ollama-backed embedder and generator,
// selectable when no hosted API key is configured.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docent-ai/docent/engine/domain"
)

// Client talks to an Ollama server over its HTTP API.
type Client struct {
	baseURL    string
	embedModel string
	genModel   string
	client     *http.Client
}

// requestTimeout caps any single Ollama call. Local generation is slow
// but never legitimately takes minutes.
const requestTimeout = 2 * time.Minute

// New creates an Ollama client.
func New(baseURL, embedModel, genModel string) *Client {
	return &Client{
		baseURL:    baseURL,
		embedModel: embedModel,
		genModel:   genModel,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, _ := json.Marshal(embedReq{Model: c.embedModel, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewCapabilityError("embedder", "embed", domain.CauseUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, domain.NewCapabilityError("embedder", "embed", causeForStatus(resp.StatusCode),
			fmt.Errorf("ollama embed: status %d", resp.StatusCode))
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch embeds texts one at a time. Ollama has no batch endpoint.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vals, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vals
	}
	return out, nil
}

type generateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResp struct {
	Response string `json:"response"`
}

// Generate sends a prompt and returns the completion text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(generateReq{Model: c.genModel, Prompt: prompt})
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.NewCapabilityError("generator", "generate", domain.CauseUnknown, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return "", domain.NewCapabilityError("generator", "generate", causeForStatus(resp.StatusCode),
			fmt.Errorf("ollama generate: status %d", resp.StatusCode))
	}

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	return result.Response, nil
}

func causeForStatus(code int) domain.CapabilityCause {
	switch code {
	case http.StatusTooManyRequests:
		return domain.CauseQuota
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return domain.CauseMalformed
	default:
		return domain.CauseUnknown
	}
}
