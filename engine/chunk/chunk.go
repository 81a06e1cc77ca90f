// Package chunk splits normalized document text into overlapping fixed-size
// windows, the unit of embedding and retrieval. Chunks from one document form
// a contiguous cover of its text: each chunk repeats the tail of its
// predecessor so no boundary sentence is lost to retrieval.
package chunk

import (
	"fmt"
	"strings"

	"github.com/docent-ai/docent/engine/domain"
)

// Chunker produces overlap-consistent chunks from normalized text.
// Size and overlap are measured in runes of the normalized text, matching
// the offsets carried by domain.TextAnchor.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker, validating the geometry up front. Overlap must be
// strictly smaller than size or the window would never advance.
func New(cfg domain.Config) (*Chunker, error) {
	if cfg.ChunkSize <= 0 {
		return nil, domain.NewConfigError("chunk_size", fmt.Sprint(cfg.ChunkSize), "must be positive")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, domain.NewConfigError("chunk_overlap", fmt.Sprint(cfg.ChunkOverlap), "must be within [0, chunk_size)")
	}
	return &Chunker{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}, nil
}

// Split cuts the normalized text into chunks. Text shorter than the chunk
// size yields exactly one chunk; a trailing remainder is kept as a final,
// shorter chunk. Returns domain.ErrEmptyInput (wrapped in an InputError) if
// the text is empty after trimming whitespace.
func (c *Chunker) Split(n domain.NormalizedText) ([]domain.Chunk, error) {
	if strings.TrimSpace(n.Text) == "" {
		return nil, domain.NewInputError(n.DocID, n.Source, domain.ErrEmptyInput)
	}

	runes := []rune(n.Text)
	step := c.size - c.overlap

	var chunks []domain.Chunk
	for start, seq := 0, 0; start < len(runes); start, seq = start+step, seq+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			DocID:       n.DocID,
			Source:      n.Source,
			Sequence:    seq,
			Start:       start,
			End:         end,
			Text:        string(runes[start:end]),
			StartAnchor: n.AnchorAt(start),
			EndAnchor:   n.AnchorAt(end - 1),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
