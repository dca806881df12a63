package service

import (
	"errors"
	"testing"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

func TestActiveProject(t *testing.T) {
	a := NewActiveProject()
	if _, err := a.Require(); !errors.Is(err, domain.ErrNoActiveProject) {
		t.Fatalf("Require() = %v, want ErrNoActiveProject", err)
	}

	var seen []domain.ProjectKey
	a.OnChange(func(k domain.ProjectKey) { seen = append(seen, k) })

	novel := domain.ProjectKey{Username: "alice", Slug: "novel"}
	a.Set(novel)
	a.Set(novel)
	if got, ok := a.Get(); !ok || got != novel {
		t.Errorf("Get() = %v, %v", got, ok)
	}

	a.Clear()
	if _, ok := a.Get(); ok {
		t.Error("Get() after Clear reports a project")
	}

	if len(seen) != 2 || seen[0] != novel || !seen[1].IsZero() {
		t.Errorf("listener calls = %v, want switch to %v then clear", seen, novel)
	}
}

func TestActiveProject_ListenerMayRegister(t *testing.T) {
	a := NewActiveProject()
	calls := 0
	a.OnChange(func(domain.ProjectKey) {
		calls++
		a.OnChange(func(domain.ProjectKey) { calls++ })
	})

	a.Set(domain.ProjectKey{Username: "alice", Slug: "one"})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	a.Set(domain.ProjectKey{Username: "alice", Slug: "two"})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
