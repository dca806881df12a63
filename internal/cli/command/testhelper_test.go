package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/config"
	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
)

var (
	alice  = domain.ProjectKey{Username: "alice", Slug: "novel"}
	baseAt = time.Date(2026, 3, 4, 15, 4, 0, 0, time.UTC)
)

// mockRemote is an in-memory inkweld remote served over httptest.
type mockRemote struct {
	*httptest.Server

	mu         sync.Mutex
	snapshots  map[string][]map[string]any // "user/slug" -> snapshots
	projects   map[string]map[string]any
	tombstones []domain.Tombstone
	requests   []string
	seq        int
	healthy    bool
}

func newMockRemote(t *testing.T) *mockRemote {
	m := &mockRemote{
		snapshots: make(map[string][]map[string]any),
		projects:  make(map[string]map[string]any),
		healthy:   true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		ok := m.healthy
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/v1/snapshots/{user}/{slug}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.snapshots[r.PathValue("user")+"/"+r.PathValue("slug")]
		if list == nil {
			list = []map[string]any{}
		}
		jsonResponse(w, http.StatusOK, list)
	})
	mux.HandleFunc("POST /api/v1/snapshots/{user}/{slug}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			errorResponse(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.seq++
		body["id"] = fmt.Sprintf("remote-%d", m.seq)
		body["createdAt"] = baseAt.Add(time.Duration(m.seq) * time.Minute)
		key := r.PathValue("user") + "/" + r.PathValue("slug")
		m.snapshots[key] = append(m.snapshots[key], body)
		jsonResponse(w, http.StatusCreated, body)
	})
	mux.HandleFunc("GET /api/v1/snapshots/{user}/{slug}/{id}/preview", func(w http.ResponseWriter, r *http.Request) {
		if s := m.snapshot(r); s != nil {
			jsonResponse(w, http.StatusOK, s)
			return
		}
		errorResponse(w, http.StatusNotFound, "NOT_FOUND", "snapshot not found")
	})
	mux.HandleFunc("DELETE /api/v1/snapshots/{user}/{slug}/{id}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		key := r.PathValue("user") + "/" + r.PathValue("slug")
		list := m.snapshots[key]
		for i, s := range list {
			if s["id"] == r.PathValue("id") {
				m.snapshots[key] = append(list[:i], list[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		errorResponse(w, http.StatusNotFound, "NOT_FOUND", "snapshot not found")
	})
	mux.HandleFunc("POST /api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		body["username"] = "alice"
		m.mu.Lock()
		m.projects[fmt.Sprintf("alice/%v", body["slug"])] = body
		m.mu.Unlock()
		jsonResponse(w, http.StatusCreated, body)
	})
	mux.HandleFunc("GET /api/v1/projects/{user}/{slug}", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		p, ok := m.projects[r.PathValue("user")+"/"+r.PathValue("slug")]
		m.mu.Unlock()
		if !ok {
			errorResponse(w, http.StatusNotFound, "NOT_FOUND", "project not found")
			return
		}
		jsonResponse(w, http.StatusOK, p)
	})
	mux.HandleFunc("PUT /api/v1/projects/{user}/{slug}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		body["username"] = r.PathValue("user")
		m.mu.Lock()
		m.projects[fmt.Sprintf("%s/%v", r.PathValue("user"), body["slug"])] = body
		m.mu.Unlock()
		jsonResponse(w, http.StatusOK, body)
	})
	mux.HandleFunc("POST /api/v1/projects/tombstones/check", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		jsonResponse(w, http.StatusOK, map[string]any{"tombstones": m.tombstones})
	})

	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.Path)
		m.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockRemote) snapshot(r *http.Request) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots[r.PathValue("user")+"/"+r.PathValue("slug")] {
		if s["id"] == r.PathValue("id") {
			return s
		}
	}
	return nil
}

func (m *mockRemote) addSnapshot(project domain.ProjectKey, s map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[project.String()] = append(m.snapshots[project.String()], s)
}

func (m *mockRemote) snapshotCount(project domain.ProjectKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots[project.String()])
}

func (m *mockRemote) requested(req string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r == req {
			return true
		}
	}
	return false
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes an error response.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// testEnv is a config file and data directory for running the app.
type testEnv struct {
	t      *testing.T
	dir    string
	config string
}

// newTestEnv writes a configuration pointing at remoteURL ("" for
// offline). snapshotOpts are extra indented lines of the snapshot section.
func newTestEnv(t *testing.T, remoteURL string, snapshotOpts string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`storage:
  data_dir: %s
  sync_writes: false
remote:
  base_url: %q
  rate_limit: 0
snapshot:
  export_dir: %s
  export_keep: 2
%ssync:
  probe_path: /api/v1/health
log:
  level: error
`, filepath.Join(dir, "data"), remoteURL, filepath.Join(dir, "exports"), snapshotOpts)

	path := filepath.Join(dir, "inkweld.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return &testEnv{t: t, dir: dir, config: path}
}

// run runs the app with args and returns stdout.
func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) (string, error) {
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	full := append([]string{"inkweld-sync", "--config", e.config}, args...)
	err := app.RunContext(ctx, full)
	return out.String(), err
}

// seed opens the store directly, runs fn and closes it again.
func (e *testEnv) seed(fn func(ctx context.Context, rt *Runtime)) {
	e.t.Helper()
	cfg, err := config.Load(e.config, nil)
	if err != nil {
		e.t.Fatalf("load config: %v", err)
	}
	rt, err := NewRuntime(cfg, logger.Nop())
	if err != nil {
		e.t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	fn(context.Background(), rt)
}

// putSnapshot stores a local prose snapshot of alice/novel.
func putSnapshot(t *testing.T, ctx context.Context, rt *Runtime, docID, name string, at time.Time, state domain.SyncState) *domain.SnapshotRecord {
	t.Helper()
	id, err := domain.NewSnapshotID(alice, docID, at)
	if err != nil {
		t.Fatal(err)
	}
	rec := &domain.SnapshotRecord{
		ID:         id,
		Project:    alice,
		DocumentID: docID,
		Name:       name,
		Content:    "<paragraph>Hello world</paragraph>",
		WordCount:  2,
		CreatedAt:  at,
		SyncState:  state,
	}
	if err := rt.Store.PutSnapshot(ctx, rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
}
