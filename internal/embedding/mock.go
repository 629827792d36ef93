package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/samukawa/yomitori/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// gets the same unit-length embedding, derived from the text hash.
type MockEmbedder struct {
	dimensions int
	// FailAfter, when > 0, makes the FailAfter-th embedding call return an
	// error. Used to exercise fatal indexing paths.
	FailAfter int
	calls     int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.FailAfter > 0 && e.calls >= e.FailAfter {
		return nil, errMockEmbed
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := int(h.Sum32())
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(seed*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

type mockEmbedError struct{}

func (mockEmbedError) Error() string { return "mock embedding failure" }

var errMockEmbed = mockEmbedError{}
