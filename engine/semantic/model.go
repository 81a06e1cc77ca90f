package semantic

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/engine/domain"
)

// Entry is one (vector, chunk) pair to persist under a namespace.
type Entry struct {
	Chunk     domain.Chunk
	Embedding []float32
}

// Stratify thins chunks to at most k evenly spaced elements, always keeping
// the first and last so both ends of the material stay represented. Callers
// sort into document order first.
func Stratify(chunks []domain.Chunk, k int) []domain.Chunk {
	if k <= 0 || len(chunks) <= k {
		return chunks
	}
	out := make([]domain.Chunk, k)
	step := float64(len(chunks)-1) / float64(k-1)
	for i := range out {
		out[i] = chunks[int(float64(i)*step+0.5)]
	}
	return out
}

// PointID derives the deterministic Qdrant point UUID for a chunk identity.
// Re-indexing the same document into the same namespace therefore replaces
// points instead of duplicating them.
func PointID(namespace, docID string, sequence int) string {
	name := fmt.Sprintf("%s/%s/%d", namespace, docID, sequence)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
