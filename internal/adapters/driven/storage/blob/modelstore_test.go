package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestModelStore_PutAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store, err := NewModelStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := store.Put(ctx, "/home/user/Downloads/tiny.gguf", strings.NewReader("GGUF"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tiny.gguf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "GGUF", string(data))

	_, err = store.Put(ctx, "b.llamafile", strings.NewReader("x"))
	require.NoError(t, err)

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.llamafile"), filepath.Join(dir, "tiny.gguf")}, paths)
	assert.Equal(t, dir, store.Dir())
}

func TestModelStore_PutReplaces(t *testing.T) {
	store, err := NewModelStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "m.gguf", strings.NewReader("old"))
	require.NoError(t, err)
	path, err := store.Put(ctx, "m.gguf", strings.NewReader("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestModelStore_PutCancelledLeavesNothing(t *testing.T) {
	store, err := NewModelStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, "m.gguf", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	paths, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestModelStore_RejectsHiddenName(t *testing.T) {
	store, err := NewModelStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Put(context.Background(), ".secret.gguf", strings.NewReader("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
