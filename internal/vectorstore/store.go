// Package vectorstore provides persistent per-document vector collections.
//
// A collection is a deterministic name ("pdf_" + document ID) pairing chunk
// payloads in a SQLite database with embeddings in a binary vector file under
// the store root. Creating a collection overwrites any existing one of the
// same name.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/samukawa/yomitori/internal/embedding"
	"github.com/samukawa/yomitori/internal/models"
)

// Store owns the collection database and vector files under one root directory.
type Store struct {
	root string
	db   *sql.DB
}

// CollectionName returns the deterministic collection name for a document ID.
func CollectionName(documentID string) string {
	return "pdf_" + documentID
}

// NewStore opens or creates the collection store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, "collections.db"))
	if err != nil {
		return nil, fmt.Errorf("open collection db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{root: dir, db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		source TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// vecPath returns the vector file path for a collection name.
func (s *Store) vecPath(name string) string {
	return filepath.Join(s.root, name+".vec")
}

// Create builds the collection for documentID from chunks, embedding every
// chunk text via embedder, and persists both payloads and vectors. Any
// existing collection of the same name is dropped first. On any embedding or
// I/O error the collection must be treated as unusable; nothing is partially
// committed to the chunk table.
func (s *Store) Create(ctx context.Context, documentID string, chunks []models.Chunk, embedder embedding.Embedder) (*Collection, error) {
	name := CollectionName(documentID)
	if err := s.Drop(ctx, documentID); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	for _, ch := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, collection, document_id, content, page_number, chunk_index, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ch.ID, name, ch.DocumentID, ch.Text, ch.PageNumber, ch.ChunkIndex, ch.Source,
		); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("store chunk %s: %w", ch.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chunks: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	dims := embedder.Dimensions()
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	if err := saveVectors(s.vecPath(name), dims, ids, vectors); err != nil {
		return nil, fmt.Errorf("persist vectors: %w", err)
	}

	return s.open(ctx, documentID)
}

// Open reopens the collection for documentID. A never-indexed document ID
// yields an empty-but-present collection; callers distinguish "processed"
// via document metadata, not by probing the collection.
func (s *Store) Open(ctx context.Context, documentID string) (*Collection, error) {
	return s.open(ctx, documentID)
}

func (s *Store) open(ctx context.Context, documentID string) (*Collection, error) {
	name := CollectionName(documentID)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, page_number, chunk_index, source
		 FROM chunks WHERE collection = ? ORDER BY chunk_index`, name)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Chunk)
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Text, &ch.PageNumber, &ch.ChunkIndex, &ch.Source); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		byID[ch.ID] = ch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	dims, ids, vectors, err := loadVectors(s.vecPath(name))
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	return &Collection{
		name:       name,
		documentID: documentID,
		dimensions: dims,
		ids:        ids,
		vectors:    vectors,
		chunks:     byID,
	}, nil
}

// Drop removes the collection for documentID: chunk rows and the vector file.
// Dropping a collection that does not exist is a no-op.
func (s *Store) Drop(ctx context.Context, documentID string) error {
	name := CollectionName(documentID)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("drop chunks: %w", err)
	}
	if err := os.Remove(s.vecPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove vector file: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
