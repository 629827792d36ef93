// Package metastore owns document metadata and the live processing-status table.
//
// Metadata is persisted as a single JSON object mapping document ID to record,
// loaded once at construction and rewritten in full on every mutation. The
// status table is in-memory only; entries exist exactly while a pipeline run
// is in flight.
package metastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samukawa/yomitori/internal/models"
)

// ErrNotFound is returned when a document ID has no metadata record.
var ErrNotFound = errors.New("document not found")

// Store holds document metadata and the processing-status table.
type Store struct {
	path string

	metaMu sync.Mutex
	meta   map[string]*models.Document

	statusMu sync.Mutex
	status   map[string]*models.ProcessingStatus
}

// New loads the metadata file at path, creating an empty store if the file
// does not exist. Parent directories are created on the first save.
func New(path string) (*Store, error) {
	s := &Store{
		path:   path,
		meta:   make(map[string]*models.Document),
		status: make(map[string]*models.ProcessingStatus),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &s.meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	for id, doc := range s.meta {
		doc.ID = id
	}
	return s, nil
}

// save rewrites the whole metadata file. Caller must hold metaMu.
func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metadata dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Put inserts or overwrites the metadata record for doc.ID and persists.
func (s *Store) Put(doc *models.Document) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	now := time.Now()
	if existing, ok := s.meta[doc.ID]; ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	cp := *doc
	s.meta[doc.ID] = &cp
	return s.save()
}

// Get returns a copy of the metadata record for id, or ErrNotFound.
func (s *Store) Get(id string) (*models.Document, error) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	doc, ok := s.meta[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// Update applies mutate to the record for id and persists. Returns
// ErrNotFound if the id is unknown.
func (s *Store) Update(id string, mutate func(*models.Document)) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	doc, ok := s.meta[id]
	if !ok {
		return ErrNotFound
	}
	mutate(doc)
	doc.UpdatedAt = time.Now()
	return s.save()
}

// List returns copies of all metadata records in stable ID order.
func (s *Store) List() []*models.Document {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	ids := make([]string, 0, len(s.meta))
	for id := range s.meta {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		cp := *s.meta[id]
		out = append(out, &cp)
	}
	return out
}

// Delete removes the record for id and persists. Removing an unknown id is a no-op.
func (s *Store) Delete(id string) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if _, ok := s.meta[id]; !ok {
		return nil
	}
	delete(s.meta, id)
	return s.save()
}

// SetStatus writes the status entry for id, replacing any previous entry.
func (s *Store) SetStatus(id, stage string, progress, total int) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status[id] = &models.ProcessingStatus{Stage: stage, Progress: progress, Total: total}
}

// Progress increments the progress counter for id. Missing entries are ignored
// so a cleared run cannot be resurrected by a late worker callback.
func (s *Store) Progress(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if st, ok := s.status[id]; ok {
		st.Progress++
	}
}

// ClearStatus removes the status entry for id. Idempotent.
func (s *Store) ClearStatus(id string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	delete(s.status, id)
}

// GetStatus returns a snapshot of the status entry for id. The second return
// is false when no run is in flight.
func (s *Store) GetStatus(id string) (models.ProcessingStatus, bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	st, ok := s.status[id]
	if !ok {
		return models.ProcessingStatus{}, false
	}
	return *st, true
}
