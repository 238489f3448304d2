package memory

import (
	"context"
	"io"
	"path"
	"sort"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure ModelStore implements the interface.
var _ driven.ModelStore = (*ModelStore)(nil)

// ModelStore keeps model files in memory under a virtual directory.
type ModelStore struct {
	mu    sync.RWMutex
	dir   string
	files map[string][]byte
	puts  int
}

// NewModelStore creates a model store rooted at the virtual directory dir.
func NewModelStore(dir string) *ModelStore {
	return &ModelStore{
		dir:   dir,
		files: make(map[string][]byte),
	}
}

// Put stores a model and returns its virtual path.
func (s *ModelStore) Put(_ context.Context, filename string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	p := path.Join(s.dir, path.Base(filename))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p] = b
	s.puts++
	return p, nil
}

// List returns the stored paths, sorted.
func (s *ModelStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// Dir returns the virtual directory.
func (s *ModelStore) Dir() string {
	return s.dir
}

// Puts returns how many writes were made.
func (s *ModelStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
