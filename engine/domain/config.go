package domain

import "fmt"

// Config carries the tunables every engine component consumes. It is passed
// explicitly into constructors; components never read ambient state.
type Config struct {
	// ChunkSize is the target chunk length in bytes of normalized text.
	ChunkSize int
	// ChunkOverlap is how many bytes consecutive chunks share.
	ChunkOverlap int
	// Dimension is the embedding vector length. Fixed per namespace.
	Dimension int
	// Threshold is the minimum similarity score retrieval results must clear.
	Threshold float32
	// TopK is the retrieval width for answering and evaluation.
	TopK int
	// ChallengeTopK is the wider retrieval used to gather question context.
	ChallengeTopK int
	// Namespace isolates one document collection inside the vector index.
	Namespace string
	// SummaryMaxWords bounds the summarizer output.
	SummaryMaxWords int
	// EmbedWorkers bounds concurrent embedding calls during indexing.
	EmbedWorkers int
}

// DefaultConfig returns the engine defaults. Chunk geometry and dimension
// follow the embedding model in use (768-dim, 500/100 character windows).
func DefaultConfig() Config {
	return Config{
		ChunkSize:       500,
		ChunkOverlap:    100,
		Dimension:       768,
		Threshold:       0.30,
		TopK:            5,
		ChallengeTopK:   8,
		Namespace:       "default",
		SummaryMaxWords: 150,
		EmbedWorkers:    4,
	}
}

// Validate checks the configuration, failing fast with a ConfigError so a
// bad deployment never reaches the pipeline.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return NewConfigError("chunk_size", fmt.Sprint(c.ChunkSize), "must be positive")
	}
	if c.ChunkOverlap < 0 {
		return NewConfigError("chunk_overlap", fmt.Sprint(c.ChunkOverlap), "must not be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return NewConfigError("chunk_overlap", fmt.Sprint(c.ChunkOverlap), "must be smaller than chunk_size")
	}
	if c.Dimension <= 0 {
		return NewConfigError("dimension", fmt.Sprint(c.Dimension), "must be positive")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return NewConfigError("threshold", fmt.Sprint(c.Threshold), "must be within [0, 1]")
	}
	if c.TopK <= 0 {
		return NewConfigError("top_k", fmt.Sprint(c.TopK), "must be positive")
	}
	if c.ChallengeTopK <= 0 {
		return NewConfigError("challenge_top_k", fmt.Sprint(c.ChallengeTopK), "must be positive")
	}
	if c.Namespace == "" {
		return NewConfigError("namespace", "", "must not be empty")
	}
	if c.SummaryMaxWords <= 0 {
		return NewConfigError("summary_max_words", fmt.Sprint(c.SummaryMaxWords), "must be positive")
	}
	if c.EmbedWorkers <= 0 {
		return NewConfigError("embed_workers", fmt.Sprint(c.EmbedWorkers), "must be positive")
	}
	return nil
}
