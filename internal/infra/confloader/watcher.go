package confloader

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last event on
// the config file before firing. Editors commonly emit a truncate, a
// write and a chmod for one save.
const DefaultDebounce = 100 * time.Millisecond

// Watcher fires its callbacks once per settled change of a single
// configuration file. The parent directory is watched so that
// rename-over-original saves are seen as a Create of the same name.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	fs *fsnotify.Watcher

	mu        sync.Mutex
	callbacks []func()
	timer     *time.Timer
	started   bool
	stopped   bool

	done     chan struct{}
	finished chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce. Zero fires on every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// NewWatcher watches path. The file itself need not exist yet, but its
// directory must.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("confloader: watch path is empty")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		fs:       fs,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	dir := filepath.Dir(w.path)
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}
	w.logger.Debug("watching config file", "path", w.path)
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// OnChange registers fn. Callbacks registered while the watcher runs
// apply from the next change on.
func (w *Watcher) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start runs the event loop in a goroutine. Calls after the first, or
// after Stop, do nothing.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.loop()
}

func (w *Watcher) loop() {
	defer close(w.finished)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "path", w.path, "error", err)
		case <-w.done:
			return
		}
	}
}

// schedule restarts the debounce window.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.debounce == 0 {
		go w.fire()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	callbacks := append([]func(){}, w.callbacks...)
	w.mu.Unlock()

	w.logger.Debug("config file changed", "path", w.path)
	for _, fn := range callbacks {
		fn()
	}
}

// Stop ends the event loop and cancels a pending debounced fire. It is
// safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fs.Close()
	if started {
		<-w.finished
	}
	return err
}
