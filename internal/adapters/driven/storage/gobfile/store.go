// Package gobfile stores documents and index records as one gob file each.
//
// Files live under <dir>/documents and <dir>/indexes, named by ID. Writes go
// to a temporary file that is renamed into place, so a crash never leaves a
// half-written record behind.
package gobfile

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

const fileExt = ".gob"

// Store is a directory of gob-encoded records.
type Store struct {
	dir string
}

// NewStore creates the store directories under dir.
func NewStore(dir string) (*Store, error) {
	for _, sub := range []string{"documents", "indexes"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0700); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", sub, err)
		}
	}
	return &Store{dir: dir}, nil
}

// DocumentStore returns the document half of the store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{dir: filepath.Join(s.dir, "documents")}
}

// IndexStore returns the index half of the store.
func (s *Store) IndexStore() driven.IndexStore {
	return &indexStore{dir: filepath.Join(s.dir, "indexes")}
}

// ==================== Document Store ====================

type documentStore struct {
	dir string
}

var _ driven.DocumentStore = (*documentStore)(nil)

func (s *documentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	path, err := recordPath(s.dir, doc.ID)
	if err != nil {
		return err
	}
	return writeGob(path, doc)
}

func (s *documentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	path, err := recordPath(s.dir, id)
	if err != nil {
		return nil, err
	}
	var doc domain.Document
	if err := readGob(path, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *documentStore) DeleteDocument(_ context.Context, id string) error {
	path, err := recordPath(s.dir, id)
	if err != nil {
		return err
	}
	return removeFile(path)
}

func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	ids, err := listIDs(s.dir)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDocument(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue // removed concurrently
		}
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", id, err)
		}
		docs = append(docs, *doc)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// ==================== Index Store ====================

type indexStore struct {
	dir string
}

var _ driven.IndexStore = (*indexStore)(nil)

func (s *indexStore) SaveIndex(_ context.Context, rec *domain.IndexRecord) error {
	path, err := recordPath(s.dir, rec.DocumentID)
	if err != nil {
		return err
	}
	return writeGob(path, rec)
}

// LoadIndex decodes a record. Undecodable files and records whose vectors
// disagree with their header are reported as domain.ErrIndexCorrupt.
func (s *indexStore) LoadIndex(_ context.Context, documentID string) (*domain.IndexRecord, error) {
	path, err := recordPath(s.dir, documentID)
	if err != nil {
		return nil, err
	}

	var rec domain.IndexRecord
	if err := readGob(path, &rec); err != nil {
		return nil, err
	}
	if !rec.EmbeddingType.IsValid() {
		return nil, fmt.Errorf("%w: unknown embedding type %q", domain.ErrIndexCorrupt, rec.EmbeddingType)
	}
	for i, chunk := range rec.Chunks {
		if chunk.Index != i {
			return nil, fmt.Errorf("%w: chunk %d out of sequence", domain.ErrIndexCorrupt, chunk.Index)
		}
		if rec.Dimensions > 0 && len(chunk.Embedding) != rec.Dimensions {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
				domain.ErrIndexCorrupt, i, len(chunk.Embedding), rec.Dimensions)
		}
	}
	return &rec, nil
}

func (s *indexStore) DeleteIndex(_ context.Context, documentID string) error {
	path, err := recordPath(s.dir, documentID)
	if err != nil {
		return err
	}
	return removeFile(path)
}

// ==================== Helper Functions ====================

// recordPath rejects IDs that would escape the store directory.
func recordPath(dir, id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: invalid record id %q", domain.ErrInvalidInput, id)
	}
	return filepath.Join(dir, id+fileExt), nil
}

func writeGob(path string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readGob(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", domain.ErrIndexCorrupt, filepath.Base(path), err)
	}
	return nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func listIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}
