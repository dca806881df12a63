package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
)

func TestProjectClient_Create(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/projects" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body projectBody
		decodeBody(t, r, &body)
		if body.Slug != "novel" || body.Title != "Novel" {
			t.Errorf("body = %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"username":"alice","slug":"novel","title":"Novel"}`))
	}))
	defer server.Close()

	pc := NewProjectClient(NewClient(Config{BaseURL: server.URL}))
	p, err := pc.Create(context.Background(), domain.ProjectPayload{Username: "alice", Slug: "novel", Title: "Novel"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Key() != alice || p.Title != "Novel" {
		t.Errorf("project = %+v", p)
	}
}

func TestProjectClient_GetUpdate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projects/alice/novel", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"username":"alice","slug":"novel","title":"Old","description":"d"}`))
	})
	mux.HandleFunc("PUT /api/v1/projects/alice/novel", func(w http.ResponseWriter, r *http.Request) {
		var body projectBody
		decodeBody(t, r, &body)
		if body.Slug != "renamed" || body.Title != "New" {
			t.Errorf("body = %+v", body)
		}
		json.NewEncoder(w).Encode(projectDTO{Username: "alice", Slug: body.Slug, Title: body.Title})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	pc := NewProjectClient(NewClient(Config{BaseURL: server.URL}))
	ctx := context.Background()

	p, err := pc.Get(ctx, alice)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Title != "Old" || p.Description != "d" {
		t.Errorf("Get = %+v", p)
	}

	p.Title = "New"
	p.Slug = "renamed"
	updated, err := pc.Update(ctx, alice, p)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != "renamed" || updated.Title != "New" {
		t.Errorf("Update = %+v", updated)
	}

	if _, err := pc.Get(ctx, domain.ProjectKey{Username: "alice", Slug: "gone"}); !errors.Is(err, domain.ErrRemoteNotFound) {
		t.Errorf("Get(gone) = %v, want ErrRemoteNotFound", err)
	}
}

func TestProjectClient_CheckTombstones(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/v1/projects/tombstones/check" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req tombstoneCheckRequest
		decodeBody(t, r, &req)
		if len(req.ProjectKeys) != 2 || req.ProjectKeys[0] != "alice/deleted-project" {
			t.Errorf("keys = %v", req.ProjectKeys)
		}
		w.Write([]byte(`{"tombstones":[{"username":"alice","slug":"deleted-project","deletedAt":"2026-03-01T00:00:00Z"}]}`))
	}))
	defer server.Close()

	pc := NewProjectClient(NewClient(Config{BaseURL: server.URL}))
	ts, err := pc.CheckTombstones(context.Background(), []domain.ProjectKey{
		{Username: "alice", Slug: "deleted-project"},
		{Username: "alice", Slug: "novel"},
	})
	if err != nil {
		t.Fatalf("CheckTombstones: %v", err)
	}
	if len(ts) != 1 || ts[0].Key() != (domain.ProjectKey{Username: "alice", Slug: "deleted-project"}) {
		t.Errorf("tombstones = %+v", ts)
	}
	if ts[0].DeletedAt.IsZero() {
		t.Error("DeletedAt not decoded")
	}

	if ts, err := pc.CheckTombstones(context.Background(), nil); err != nil || ts != nil {
		t.Errorf("empty check = %v, %v", ts, err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
