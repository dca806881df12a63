package metric

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.SnapshotsCreated == nil || r.RemoteFailures == nil || r.SyncPasses == nil {
		t.Error("vector metrics not initialized")
	}
	if r.AutoSnapshotsSkipped == nil || r.SnapshotsPruned == nil || r.PendingItems == nil {
		t.Error("scalar metrics not initialized")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
	if Or(nil) != Global() {
		t.Error("Or(nil) should return the global registry")
	}
	r := NewRegistry()
	if Or(r) != r {
		t.Error("Or(r) should return r")
	}
}

func TestHandler_RuntimeMetrics(t *testing.T) {
	body := scrape(t, NewRegistry())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
}

func TestSnapshotMetrics(t *testing.T) {
	r := NewRegistry()

	r.SnapshotsCreated.WithLabelValues(KindManual).Inc()
	r.SnapshotsCreated.WithLabelValues(KindAuto).Add(2)
	r.RemoteFailures.WithLabelValues("create").Inc()
	r.AutoSnapshotsSkipped.Inc()
	r.SnapshotsPruned.Add(3)

	body := scrape(t, r)

	for _, want := range []string{
		`inkweld_snapshots_created_total{kind="manual"} 1`,
		`inkweld_snapshots_created_total{kind="auto"} 2`,
		`inkweld_snapshot_remote_failures_total{op="create"} 1`,
		`inkweld_auto_snapshots_skipped_total 1`,
		`inkweld_snapshots_pruned_total 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestSyncMetrics(t *testing.T) {
	r := NewRegistry()

	r.SyncPasses.WithLabelValues(ResultOK).Inc()
	r.SyncPasses.WithLabelValues(ResultSkipped).Inc()
	r.PendingItems.Set(4)

	body := scrape(t, r)

	if !strings.Contains(body, `inkweld_sync_passes_total{result="ok"} 1`) {
		t.Error(`expected inkweld_sync_passes_total{result="ok"} 1`)
	}
	if !strings.Contains(body, "inkweld_sync_pending_items 4") {
		t.Error("expected inkweld_sync_pending_items 4")
	}
}

type fakeCounts struct {
	counts StoreCounts
	err    error
}

func (f fakeCounts) Counts(context.Context) (StoreCounts, error) {
	return f.counts, f.err
}

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.Registerer().MustRegister(NewCollector(fakeCounts{counts: StoreCounts{Snapshots: 7, Unsynced: 2, Pending: 1}}))

	body := scrape(t, r)

	for _, want := range []string{
		"inkweld_store_snapshots 7",
		"inkweld_store_unsynced_snapshots 2",
		"inkweld_store_pending_operations 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestCollector_SourceError(t *testing.T) {
	r := NewRegistry()
	r.Registerer().MustRegister(NewCollector(fakeCounts{err: errors.New("closed")}))

	body := scrape(t, r)
	if strings.Contains(body, "inkweld_store_snapshots ") {
		t.Error("failing source should report nothing")
	}
}
