package confloader

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// newTestWatcher watches inkweld.yaml in a fresh directory.
func newTestWatcher(t *testing.T, opts ...WatcherOption) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inkweld.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path, opts...)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Stop() })
	return w, path
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewWatcher(t *testing.T) {
	if _, err := NewWatcher(""); err == nil {
		t.Error("empty path should be rejected")
	}
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "inkweld.yaml")); err == nil {
		t.Error("missing directory should be rejected")
	}

	// The file may be created later.
	path := filepath.Join(t.TempDir(), "inkweld.yaml")
	w, err := NewWatcher(path+"/../inkweld.yaml", WithDebounce(time.Second))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()
	if w.Path() != path {
		t.Errorf("Path() = %q, want %q", w.Path(), path)
	}
	if w.debounce != time.Second {
		t.Errorf("debounce = %v", w.debounce)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	w, path := newTestWatcher(t, WithDebounce(150*time.Millisecond))
	var fired atomic.Int32
	w.OnChange(func() { fired.Add(1) })
	w.Start()

	// One editor save is several writes in quick succession.
	for _, level := range []string{"warn", "error", "debug"} {
		if err := os.WriteFile(path, []byte("log:\n  level: "+level+"\n"), 0600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	eventually(t, func() bool { return fired.Load() > 0 })
	time.Sleep(300 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1 for a burst", got)
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	w, path := newTestWatcher(t, WithDebounce(0))
	var fired atomic.Int32
	w.OnChange(func() { fired.Add(1) })
	w.Start()

	sibling := filepath.Join(filepath.Dir(path), "inkweld.yaml.bak")
	if err := os.WriteFile(sibling, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("a sibling file should not fire")
	}

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return fired.Load() > 0 })
}

func TestWatcher_RenameOver(t *testing.T) {
	w, path := newTestWatcher(t, WithDebounce(20*time.Millisecond))
	var fired atomic.Int32
	w.OnChange(func() { fired.Add(1) })
	w.Start()

	tmp := path + ".swp"
	if err := os.WriteFile(tmp, []byte("snapshot:\n  auto_enabled: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return fired.Load() > 0 })
}

func TestWatcher_LateCallback(t *testing.T) {
	w, path := newTestWatcher(t, WithDebounce(0))
	w.Start()

	var fired atomic.Bool
	w.OnChange(func() { fired.Store(true) })
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}
	eventually(t, fired.Load)
}

func TestWatcher_Stop(t *testing.T) {
	w, path := newTestWatcher(t, WithDebounce(200*time.Millisecond))
	var fired atomic.Int32
	w.OnChange(func() { fired.Add(1) })
	w.Start()

	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop = %v", err)
	}
	w.Start()

	time.Sleep(400 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("a pending change should not fire after Stop")
	}
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, _ := newTestWatcher(t)
	done := make(chan error, 1)
	go func() { done <- w.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a watcher that never started")
	}
}
