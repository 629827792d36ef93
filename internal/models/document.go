// Package models defines core data structures for documents, chunks, and processing status.
package models

import "time"

// Document statuses as persisted in metadata.
const (
	StatusUploaded  = "uploaded"
	StatusProcessed = "processed"
	StatusError     = "error"
)

// Document is the metadata record for one uploaded PDF, keyed by a
// caller-supplied document ID.
type Document struct {
	ID        string    `json:"document_id"`
	FilePath  string    `json:"file_path"`
	NumPages  int       `json:"num_pages"`
	FileSize  int64     `json:"file_size"`
	FileHash  string    `json:"file_hash"`
	Status    string    `json:"status"`
	Processed bool      `json:"processed"`
	NumChunks int       `json:"num_chunks,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is a bounded-length slice of one page's text with inherited
// provenance metadata. Chunks are immutable once created.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	PageNumber int       `json:"page_number"` // 1-based source page
	ChunkIndex int       `json:"chunk_index"` // global order within the document
	Source     string    `json:"source"`
	Embedding  []float32 `json:"-"`
}

// ValidationResult is the outcome of PDF validation. When Valid is false,
// Error carries the reason and the remaining fields are zero.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	NumPages int    `json:"num_pages,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	FileHash string `json:"file_hash,omitempty"`
	Error    string `json:"error,omitempty"`
}
