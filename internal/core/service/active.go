package service

import (
	"sync"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

// ActiveProject holds the project the user is working in.
type ActiveProject struct {
	mu        sync.RWMutex
	key       domain.ProjectKey
	set       bool
	listeners []func(domain.ProjectKey)
}

// NewActiveProject creates an empty holder.
func NewActiveProject() *ActiveProject {
	return &ActiveProject{}
}

// Get returns the active project, if any.
func (a *ActiveProject) Get() (domain.ProjectKey, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.key, a.set
}

// Require returns the active project or ErrNoActiveProject.
func (a *ActiveProject) Require() (domain.ProjectKey, error) {
	key, ok := a.Get()
	if !ok {
		return domain.ProjectKey{}, domain.ErrNoActiveProject
	}
	return key, nil
}

// Set makes key active. Listeners run when the project changes.
func (a *ActiveProject) Set(key domain.ProjectKey) {
	a.update(key, !key.IsZero())
}

// Clear leaves the project context.
func (a *ActiveProject) Clear() {
	a.update(domain.ProjectKey{}, false)
}

// OnChange registers fn to run after every project switch.
func (a *ActiveProject) OnChange(fn func(domain.ProjectKey)) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

func (a *ActiveProject) update(key domain.ProjectKey, set bool) {
	a.mu.Lock()
	changed := a.key != key || a.set != set
	a.key, a.set = key, set
	listeners := append([]func(domain.ProjectKey){}, a.listeners...)
	a.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(key)
	}
}
