package file

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(20 * time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})
	return w
}

func TestWatcher_WatchFile_ReloadsConfigStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("embedding_type", "hosted"))

	w := startWatcher(t)
	var reloads atomic.Int32
	require.NoError(t, w.WatchFile(store.Path(), func() {
		if store.Load() == nil {
			reloads.Add(1)
		}
	}))

	require.NoError(t, os.WriteFile(store.Path(), []byte("embedding_type = \"local\"\n"), 0600))

	require.Eventually(t, func() bool {
		return store.GetString("embedding_type") == "local"
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))
}

func TestWatcher_WatchFile_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t)
	var calls atomic.Int32
	require.NoError(t, w.WatchFile(filepath.Join(dir, ConfigFileName), func() { calls.Add(1) }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	time.Sleep(150 * time.Millisecond)

	assert.Zero(t, calls.Load())
}

func TestWatcher_WatchDir_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t)
	var calls atomic.Int32
	require.NoError(t, w.WatchDir(dir, func() { calls.Add(1) }))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_prompt.txt"), []byte{byte('a' + i)}, 0600))
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := NewWatcher(0)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WatchDir(filepath.Join(t.TempDir(), "missing"), func() {}))
}
