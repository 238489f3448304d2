package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docchat/internal/logger"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls handlers when watched files change on disk.
// Directories are watched rather than files so that editors which save
// by renaming a temporary file are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []*watchHandler
}

type watchHandler struct {
	dir   string
	name  string // empty matches any file in dir
	fn    func()
	timer *time.Timer
}

// NewWatcher creates a watcher. A zero debounce uses DefaultDebounce.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{fs: fs, debounce: debounce}, nil
}

// WatchFile calls fn after path is written, created, renamed or removed.
func (w *Watcher) WatchFile(path string, fn func()) error {
	return w.add(filepath.Dir(path), filepath.Base(path), fn)
}

// WatchDir calls fn after any file in dir changes.
func (w *Watcher) WatchDir(dir string, fn func()) error {
	return w.add(dir, "", fn)
}

func (w *Watcher) add(dir, name string, fn func()) error {
	dir = filepath.Clean(dir)
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.mu.Lock()
	w.handlers = append(w.handlers, &watchHandler{dir: dir, name: name, fn: fn})
	w.mu.Unlock()
	return nil
}

// Run dispatches events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("config watcher: %v", err)
				continue
			}
			logger.Error("config watcher: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	dir, name := filepath.Dir(event.Name), filepath.Base(event.Name)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.handlers {
		if h.dir != dir || (h.name != "" && h.name != name) {
			continue
		}
		logger.Debug("config watcher: %s %s", event.Op, event.Name)
		if h.timer != nil {
			h.timer.Stop()
		}
		h.timer = time.AfterFunc(w.debounce, h.fn)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.handlers {
		if h.timer != nil {
			h.timer.Stop()
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.fs.Close()
}
