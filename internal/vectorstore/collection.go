package vectorstore

import (
	"sort"

	"github.com/samukawa/yomitori/internal/models"
	"github.com/samukawa/yomitori/pkg/utils"
)

// Collection is an in-memory view of one document's chunks and embeddings.
// It is immutable after Open/Create and safe for concurrent searches.
type Collection struct {
	name       string
	documentID string
	dimensions int
	ids        []string
	vectors    [][]float32
	chunks     map[string]models.Chunk
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk models.Chunk
	Score float64
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Size returns the number of indexed vectors.
func (c *Collection) Size() int { return len(c.ids) }

// Chunks returns every chunk in ascending chunk index order.
func (c *Collection) Chunks() []models.Chunk {
	out := make([]models.Chunk, 0, len(c.chunks))
	for _, ch := range c.chunks {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

// Search scans every vector and returns the k most similar chunks by inner
// product, highest score first. Embeddings are L2-normalized at creation so
// inner product equals cosine similarity.
func (c *Collection) Search(queryVector []float32, k int) []ScoredChunk {
	if k <= 0 || len(c.ids) == 0 {
		return nil
	}

	scored := make([]ScoredChunk, 0, len(c.ids))
	for i, id := range c.ids {
		ch, ok := c.chunks[id]
		if !ok {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: ch, Score: utils.Dot(queryVector, c.vectors[i])})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
