package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelStore_PutAndList(t *testing.T) {
	store := NewModelStore("/models")
	ctx := context.Background()

	path, err := store.Put(ctx, "../escape/tiny.gguf", strings.NewReader("GGUF"))
	require.NoError(t, err)
	assert.Equal(t, "/models/tiny.gguf", path)

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/models/tiny.gguf"}, paths)
	assert.Equal(t, 1, store.Puts())
	assert.Equal(t, "/models", store.Dir())
}
