package confloader

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to configuration files. Events are coalesced:
// callbacks run once per burst, after the files have been quiet for the
// settle period, on the watcher goroutine.
type Watcher struct {
	fw     *fsnotify.Watcher
	logger *slog.Logger
	settle time.Duration

	mu        sync.Mutex
	files     map[string]struct{}
	dirs      map[string]struct{}
	callbacks []func(string)

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithSettle sets the quiet period before callbacks run. Zero reports
// every event immediately.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.settle = d
	}
}

// NewWatcher creates a watcher with no files.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("confloader: create watcher: %w", err)
	}
	w := &Watcher{
		fw:     fw,
		logger: slog.Default(),
		settle: 250 * time.Millisecond,
		files:  make(map[string]struct{}),
		dirs:   make(map[string]struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch adds path. Its directory is watched so rename-on-save editors and
// ConfigMap symlink swaps are seen.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; !ok {
		if err := w.fw.Add(dir); err != nil {
			return fmt.Errorf("confloader: watch %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}
	w.files[path] = struct{}{}
	w.logger.Debug("watching config file", "file", path)
	return nil
}

// OnChange registers a callback receiving the path of a changed file.
// It may be called while the watcher runs.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Start runs the event loop until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("configuration watcher started")

	pending := make(map[string]struct{})
	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			changed := w.match(ev)
			if len(changed) == 0 {
				continue
			}
			for _, f := range changed {
				pending[f] = struct{}{}
			}
			if w.settle <= 0 {
				w.flush(pending)
				continue
			}
			settle.Reset(w.settle)
		case <-settle.C:
			w.flush(pending)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends the event loop and releases the OS watch. It is idempotent.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.logger.Info("configuration watcher stopped")
	})
	return err
}

// match returns the watched files an event affects. A "..data" swap
// replaces every file in its directory at once.
func (w *Watcher) match(ev fsnotify.Event) []string {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return nil
	}
	name := filepath.Clean(ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[name]; ok {
		return []string{name}
	}
	if filepath.Base(name) != "..data" {
		return nil
	}
	var out []string
	dir := filepath.Dir(name)
	for f := range w.files {
		if filepath.Dir(f) == dir {
			out = append(out, f)
		}
	}
	return out
}

func (w *Watcher) flush(pending map[string]struct{}) {
	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
		delete(pending, f)
	}
	sort.Strings(files)

	w.mu.Lock()
	callbacks := append([]func(string){}, w.callbacks...)
	w.mu.Unlock()

	for _, f := range files {
		w.logger.Debug("configuration file changed", "file", f)
		for _, cb := range callbacks {
			w.call(cb, f)
		}
	}
}

func (w *Watcher) call(cb func(string), path string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("configuration callback panicked", "file", path, "panic", r)
		}
	}()
	cb(path)
}
