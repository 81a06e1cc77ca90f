package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGenerateTimeout bounds one generation API call.
const DefaultGenerateTimeout = 60 * time.Second

// Generator produces text completions with a Gemini generative model.
type Generator struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// GenerateOpts configures a Generator.
type GenerateOpts struct {
	APIKey      string
	Model       string // e.g. "gemini-1.5-flash"
	Temperature float32
	Timeout     time.Duration // per-call deadline, 0 means DefaultGenerateTimeout
}

// NewGenerator creates a Generator for the given model.
func NewGenerator(ctx context.Context, opts GenerateOpts) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("genai: new client: %w", err)
	}
	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(opts.Temperature)
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultGenerateTimeout
	}
	return &Generator{client: client, model: model, timeout: opts.Timeout}, nil
}

// Close releases the underlying client.
func (g *Generator) Close() error {
	return g.client.Close()
}

// Generate sends a prompt and returns the concatenated text of the first
// candidate.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classify("generator", "generate", err)
	}
	text := flatten(resp)
	if text == "" {
		return "", fmt.Errorf("genai: generate returned no text")
	}
	return text, nil
}

func flatten(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
