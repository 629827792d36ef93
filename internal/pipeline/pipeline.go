// Package pipeline orchestrates document ingestion: validation, upload,
// extraction, chunking, embedding and indexing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samukawa/yomitori/internal/chunker"
	"github.com/samukawa/yomitori/internal/embedding"
	"github.com/samukawa/yomitori/internal/keyword"
	"github.com/samukawa/yomitori/internal/metastore"
	"github.com/samukawa/yomitori/internal/models"
	"github.com/samukawa/yomitori/internal/pdf"
	"github.com/samukawa/yomitori/internal/vectorstore"
)

// Pipeline wires the ingestion stages together. All methods are safe for
// concurrent use across distinct document IDs; callers must not run two
// Process calls for the same ID at once.
type Pipeline struct {
	uploadDir string
	validator *pdf.Validator
	extractor *pdf.Extractor
	chunker   *chunker.Chunker
	meta      *metastore.Store
	vectors   *vectorstore.Store
	keywords  *keyword.Index
	embedder  embedding.Embedder
	logger    *zap.Logger
}

// Options configures a Pipeline.
type Options struct {
	UploadDir string
	Validator *pdf.Validator
	Extractor *pdf.Extractor
	Chunker   *chunker.Chunker
	Meta      *metastore.Store
	Vectors   *vectorstore.Store
	Keywords  *keyword.Index // optional
	Embedder  embedding.Embedder
	Logger    *zap.Logger
}

// New builds a Pipeline from its components.
func New(opts Options) (*Pipeline, error) {
	if opts.Meta == nil || opts.Vectors == nil || opts.Embedder == nil {
		return nil, errors.New("pipeline requires metadata store, vector store and embedder")
	}
	if err := os.MkdirAll(opts.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		uploadDir: opts.UploadDir,
		validator: opts.Validator,
		extractor: opts.Extractor,
		chunker:   opts.Chunker,
		meta:      opts.Meta,
		vectors:   opts.Vectors,
		keywords:  opts.Keywords,
		embedder:  opts.Embedder,
		logger:    logger,
	}, nil
}

// Validate checks the PDF at path without storing anything.
func (p *Pipeline) Validate(path string) *models.ValidationResult {
	return p.validator.Validate(path)
}

// Upload validates the PDF at path, copies it into the upload directory and
// registers its metadata. documentID is caller-chosen; uploading an existing
// ID overwrites the document. An empty documentID gets a generated UUID. The
// document is left in the uploaded state; call Process to ingest it.
func (p *Pipeline) Upload(ctx context.Context, path, documentID string) *models.Result {
	v := p.validator.Validate(path)
	if !v.Valid {
		return models.Failure(v.Error)
	}

	if documentID == "" {
		documentID = uuid.New().String()
	}
	dest := filepath.Join(p.uploadDir, documentID+".pdf")
	if !samePath(path, dest) {
		if err := copyFile(path, dest); err != nil {
			return models.Failure(fmt.Sprintf("Failed to store file: %v", err))
		}
	}

	info, err := os.Stat(dest)
	if err != nil {
		return models.Failure(fmt.Sprintf("Failed to store file: %v", err))
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:        documentID,
		FilePath:  dest,
		NumPages:  v.NumPages,
		FileSize:  info.Size(),
		FileHash:  v.FileHash,
		Status:    models.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.meta.Put(doc); err != nil {
		return models.Failure(fmt.Sprintf("Failed to save metadata: %v", err))
	}

	p.logger.Info("document uploaded",
		zap.String("document_id", documentID),
		zap.Int("num_pages", v.NumPages),
		zap.Int64("file_size", info.Size()))

	return &models.Result{
		Success:    true,
		DocumentID: documentID,
		NumPages:   v.NumPages,
		Message:    "File uploaded successfully",
	}
}

// Process runs the full ingestion for an uploaded document: extract pages,
// chunk, embed and index. Stage progress is published to the status table for
// the duration of the run and cleared on every exit path. A failed run leaves
// the document in the error state with the failure recorded in metadata.
func (p *Pipeline) Process(ctx context.Context, documentID string) *models.Result {
	doc, err := p.meta.Get(documentID)
	if err != nil {
		// No status entry is ever created for an unknown ID.
		return models.Failure("Document not found")
	}

	p.meta.SetStatus(documentID, models.StageStarting, 0, 0)
	defer p.meta.ClearStatus(documentID)

	pages, err := p.extractor.Extract(ctx, doc.FilePath, documentID)
	if err != nil {
		return p.fail(documentID, fmt.Sprintf("Extraction failed: %v", err))
	}

	p.meta.SetStatus(documentID, models.StageChunking, 0, 0)
	chunks := p.chunker.Chunk(pages, documentID)
	if len(chunks) == 0 {
		return p.fail(documentID, "No text could be extracted from the PDF")
	}

	p.meta.SetStatus(documentID, models.StageVectorizing, 0, len(chunks))
	if _, err := p.vectors.Create(ctx, documentID, chunks, p.embedder); err != nil {
		return p.fail(documentID, fmt.Sprintf("Vectorization failed: %v", err))
	}

	if p.keywords != nil {
		if err := p.keywords.DeleteDocument(ctx, documentID); err != nil {
			p.logger.Warn("keyword cleanup failed", zap.String("document_id", documentID), zap.Error(err))
		}
		if err := p.keywords.IndexChunks(ctx, chunks); err != nil {
			// Keyword indexing is best effort; vector search stays usable.
			p.logger.Warn("keyword indexing failed", zap.String("document_id", documentID), zap.Error(err))
		}
	}

	numChunks := len(chunks)
	updateErr := p.meta.Update(documentID, func(d *models.Document) {
		d.Status = models.StatusProcessed
		d.Processed = true
		d.NumChunks = numChunks
		d.Error = ""
		d.UpdatedAt = time.Now().UTC()
	})
	if updateErr != nil {
		return p.fail(documentID, fmt.Sprintf("Failed to save metadata: %v", updateErr))
	}

	p.logger.Info("document processed",
		zap.String("document_id", documentID),
		zap.Int("num_chunks", numChunks))

	return &models.Result{
		Success:    true,
		DocumentID: documentID,
		NumPages:   doc.NumPages,
		NumChunks:  numChunks,
		Message:    "Document processed successfully",
	}
}

// fail records the error on the document and returns a failure result.
func (p *Pipeline) fail(documentID, msg string) *models.Result {
	if err := p.meta.Update(documentID, func(d *models.Document) {
		d.Status = models.StatusError
		d.Processed = false
		d.Error = msg
		d.UpdatedAt = time.Now().UTC()
	}); err != nil {
		p.logger.Warn("failed to record error state", zap.String("document_id", documentID), zap.Error(err))
	}
	p.logger.Warn("processing failed", zap.String("document_id", documentID), zap.String("reason", msg))
	return models.Failure(msg)
}

// List returns metadata for every known document.
func (p *Pipeline) List() []*models.Document {
	return p.meta.List()
}

// Get returns metadata for one document.
func (p *Pipeline) Get(documentID string) (*models.Document, error) {
	return p.meta.Get(documentID)
}

// Status reports in-flight processing progress. ok is false when no run is
// active for the ID, whether because it finished, failed or never started.
func (p *Pipeline) Status(documentID string) (models.ProcessingStatus, bool) {
	return p.meta.GetStatus(documentID)
}

// Delete removes a document entirely: metadata, stored file, vector
// collection and keyword entries. Deleting an unknown ID returns a failure.
func (p *Pipeline) Delete(ctx context.Context, documentID string) *models.Result {
	doc, err := p.meta.Get(documentID)
	if err != nil {
		return models.Failure("Document not found")
	}

	if err := p.vectors.Drop(ctx, documentID); err != nil {
		return models.Failure(fmt.Sprintf("Failed to remove vectors: %v", err))
	}
	if p.keywords != nil {
		if err := p.keywords.DeleteDocument(ctx, documentID); err != nil {
			p.logger.Warn("keyword cleanup failed", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to remove stored file", zap.String("path", doc.FilePath), zap.Error(err))
	}
	if err := p.meta.Delete(documentID); err != nil {
		return models.Failure(fmt.Sprintf("Failed to remove metadata: %v", err))
	}

	p.logger.Info("document deleted", zap.String("document_id", documentID))
	return &models.Result{
		Success:    true,
		DocumentID: documentID,
		Message:    "Document deleted",
	}
}

// samePath reports whether a and b resolve to the same file path. Copying a
// file onto itself would truncate it before the copy reads it.
func samePath(a, b string) bool {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return absA == absB
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
