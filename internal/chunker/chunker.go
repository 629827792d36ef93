// Package chunker splits extracted page texts into overlapping chunks with
// stable provenance metadata.
package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samukawa/yomitori/internal/models"
)

// SourcePDF tags chunks that originate from PDF page extraction.
const SourcePDF = "pdf"

// Chunker splits page texts into overlapping character-based chunks.
// Chunks never cross page boundaries; provenance is inherited per chunk
// from its source page.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits pages into chunks tagged with documentID and the 1-based page
// number. Whitespace-only pages contribute no chunks. Output order is page
// order, then within-page offset order; ChunkIndex is the global running index.
func (c *Chunker) Chunk(pages []string, documentID string) []models.Chunk {
	var chunks []models.Chunk
	chunkIndex := 0
	for pageNum, pageText := range pages {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		for _, text := range c.split(pageText) {
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s_%s", documentID, uuid.New().String()[:8]),
				DocumentID: documentID,
				Text:       text,
				PageNumber: pageNum + 1,
				ChunkIndex: chunkIndex,
				Source:     SourcePDF,
			})
			chunkIndex++
		}
	}
	return chunks
}

// split cuts text into windows of at most chunkSize runes with chunkOverlap
// runes shared between adjacent windows. The final window may be shorter.
func (c *Chunker) split(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.chunkSize {
		return []string{text}
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
		if end >= len(runes) {
			break
		}
	}
	return out
}
