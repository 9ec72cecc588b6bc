// Package watcher watches the catalog cache file with fsnotify and reports
// debounced changes.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/animerec/pkg/utils"
)

const defaultDebounce = 400 * time.Millisecond

// FileWatcher calls onChange after the watched file is created, written,
// renamed over or removed. Bursts of events within the debounce window produce
// one call.
//
// The parent directory is watched rather than the file itself, so atomic
// replacement by rename keeps being observed.
type FileWatcher struct {
	path     string
	dir      string
	name     string
	onChange func(op fsnotify.Op)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	pending  fsnotify.Op
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// WatcherOption configures a FileWatcher.
type WatcherOption func(*FileWatcher)

// WithLogger sets a logger for debug output. A nil logger discards output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *FileWatcher) { w.logger = utils.OrNop(l) }
}

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewFileWatcher creates a watcher for path. onChange receives the union of the
// operations seen during the debounce window.
func NewFileWatcher(path string, onChange func(op fsnotify.Op), opts ...WatcherOption) *FileWatcher {
	clean := filepath.Clean(path)
	w := &FileWatcher{
		path:     clean,
		dir:      filepath.Dir(clean),
		name:     filepath.Base(clean),
		onChange: onChange,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The parent directory is created if missing. It runs
// until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting", zap.String("path", w.path))
	go w.run(ctx, watcher)
	return nil
}

func (w *FileWatcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *FileWatcher) handleEvent(ev fsnotify.Event) {
	if filepath.Base(ev.Name) != w.name || filepath.Dir(filepath.Clean(ev.Name)) != w.dir {
		return
	}
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending |= ev.Op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *FileWatcher) fire() {
	w.mu.Lock()
	op := w.pending
	w.pending = 0
	w.timer = nil
	w.mu.Unlock()
	select {
	case <-w.done:
		return
	default:
	}
	if op != 0 && w.onChange != nil {
		w.onChange(op)
	}
}

// Path returns the watched file.
func (w *FileWatcher) Path() string {
	return w.path
}

// Stop stops the watcher and releases resources. Pending changes are dropped.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		watcher := w.watcher
		w.watcher = nil
		w.mu.Unlock()
		if watcher != nil {
			_ = watcher.Close()
		}
	})
}
