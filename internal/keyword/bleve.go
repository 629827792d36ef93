// Package keyword provides a Bleve full-text index over document chunks,
// complementing vector search for exact-term lookups.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/samukawa/yomitori/internal/models"
)

// Result is a keyword search hit.
type Result struct {
	ChunkID    string
	DocumentID string
	Score      float64
}

// chunkDoc is the shape Bleve indexes for each chunk.
type chunkDoc struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	PageNumber int    `json:"page_number"`
}

// Index is a Bleve-backed chunk index.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// opened and reused; remove the directory to force a rebuild after a mapping
// change.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open keyword index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	contentMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so query terms
	// match exact words.
	contentMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", contentMapping)

	docIDMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("document_id", docIDMapping)

	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexChunks adds chunks to the index in one batch, keyed by chunk ID.
func (idx *Index) IndexChunks(ctx context.Context, chunks []models.Chunk) error {
	batch := idx.index.NewBatch()
	for _, ch := range chunks {
		doc := chunkDoc{
			DocumentID: ch.DocumentID,
			Content:    ch.Text,
			PageNumber: ch.PageNumber,
		}
		if err := batch.Index(ch.ID, doc); err != nil {
			return fmt.Errorf("batch chunk %s: %w", ch.ID, err)
		}
	}
	return idx.index.Batch(batch)
}

// Search runs a match query over chunk content and returns up to limit hits
// ordered by relevance.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"document_id"}

	res, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := Result{ChunkID: hit.ID, Score: hit.Score}
		if docID, ok := hit.Fields["document_id"].(string); ok {
			r.DocumentID = docID
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteDocument removes every chunk indexed for the given document ID.
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) error {
	q := bleve.NewTermQuery(documentID)
	q.SetField("document_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000

	res, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("find document chunks: %w", err)
	}

	batch := idx.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	return idx.index.Batch(batch)
}

// Close releases the underlying index.
func (idx *Index) Close() error {
	return idx.index.Close()
}
