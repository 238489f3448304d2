package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure the stores implement the interfaces.
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.IndexStore    = (*IndexStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// DeleteDocument removes a document.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}

// ListDocuments returns all documents, oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		result = append(result, doc)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// IndexStore is an in-memory implementation of driven.IndexStore.
// Records are deep-copied on the way in and out.
type IndexStore struct {
	mu      sync.RWMutex
	records map[string]*domain.IndexRecord
	corrupt map[string]bool
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		records: make(map[string]*domain.IndexRecord),
		corrupt: make(map[string]bool),
	}
}

// SaveIndex replaces the stored record.
func (s *IndexStore) SaveIndex(_ context.Context, rec *domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.DocumentID] = cloneRecord(rec)
	delete(s.corrupt, rec.DocumentID)
	return nil
}

// LoadIndex returns a copy of the stored record.
func (s *IndexStore) LoadIndex(_ context.Context, documentID string) (*domain.IndexRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.corrupt[documentID] {
		return nil, domain.ErrIndexCorrupt
	}
	rec, ok := s.records[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// DeleteIndex removes a record.
func (s *IndexStore) DeleteIndex(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	delete(s.corrupt, documentID)
	return nil
}

// MarkCorrupt makes subsequent loads of documentID fail with
// domain.ErrIndexCorrupt until the record is saved again.
func (s *IndexStore) MarkCorrupt(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[documentID] = true
}

func cloneRecord(rec *domain.IndexRecord) *domain.IndexRecord {
	c := *rec
	c.Chunks = make([]domain.Chunk, len(rec.Chunks))
	for i, chunk := range rec.Chunks {
		chunk.Embedding = slices.Clone(chunk.Embedding)
		c.Chunks[i] = chunk
	}
	return &c
}
