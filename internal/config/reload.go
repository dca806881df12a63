package config

import (
	"sync"

	"github.com/bobbyquantum/inkweld-sub009/internal/infra/confloader"
)

// Reloader reloads a config file each time it settles after a change and
// hands every verified result to the registered appliers. A file that
// fails to load or verify goes to the error handlers instead, and the
// previous settings stay in force.
type Reloader struct {
	path      string
	overrides map[string]any
	watcher   *confloader.Watcher

	mu      sync.Mutex
	current *Config
	apply   []func(*Config)
	failed  []func(error)
}

// NewReloader watches path. initial is the configuration already in
// effect; Current returns it until the first successful reload.
func NewReloader(path string, overrides map[string]any, initial *Config, opts ...confloader.WatcherOption) (*Reloader, error) {
	w, err := confloader.NewWatcher(path, opts...)
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		path:      path,
		overrides: overrides,
		watcher:   w,
		current:   initial,
	}
	w.OnChange(r.reload)
	return r, nil
}

// OnReload registers fn for each verified reload.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply = append(r.apply, fn)
}

// OnError registers fn for reloads that were rejected.
func (r *Reloader) OnError(fn func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, fn)
}

// Current returns the last configuration that loaded cleanly.
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Start begins watching.
func (r *Reloader) Start() { r.watcher.Start() }

// Stop ends watching.
func (r *Reloader) Stop() error { return r.watcher.Stop() }

func (r *Reloader) reload() {
	next, err := Load(r.path, r.overrides)

	r.mu.Lock()
	if err == nil {
		r.current = next
	}
	apply := append([]func(*Config){}, r.apply...)
	failed := append([]func(error){}, r.failed...)
	r.mu.Unlock()

	if err != nil {
		for _, fn := range failed {
			fn(err)
		}
		return
	}
	for _, fn := range apply {
		fn(next)
	}
}
