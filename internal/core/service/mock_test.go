package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobbyquantum/inkweld-sub009/internal/core/domain"
	"github.com/bobbyquantum/inkweld-sub009/internal/serializer"
	"github.com/bobbyquantum/inkweld-sub009/internal/storage"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/logger"
	"github.com/bobbyquantum/inkweld-sub009/internal/telemetry/metric"
	"github.com/bobbyquantum/inkweld-sub009/pkg/ydoc"
)

var (
	alice  = domain.ProjectKey{Username: "alice", Slug: "novel"}
	baseAt = time.Date(2026, 3, 4, 15, 4, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	kv, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), nil)
	if err != nil {
		t.Fatalf("NewBadgerEngine: %v", err)
	}
	s := storage.NewLocalStore(kv)
	t.Cleanup(func() { s.Close() })
	return s
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mockNetwork is a switchable Connectivity.
type mockNetwork struct {
	online atomic.Bool
}

func (n *mockNetwork) Online() bool { return n.online.Load() }

// mockDocuments is a DocumentProvider over a fixed set of documents.
type mockDocuments struct {
	mu    sync.Mutex
	docs  map[string]ydoc.Doc
	onGet func(compositeID string)
}

func newMockDocuments() *mockDocuments {
	return &mockDocuments{docs: make(map[string]ydoc.Doc)}
}

func (m *mockDocuments) Add(project domain.ProjectKey, elementID string, doc ydoc.Doc) {
	m.mu.Lock()
	m.docs[domain.DocumentKey(project, elementID)] = doc
	m.mu.Unlock()
}

func (m *mockDocuments) GetDocument(compositeID string) (ydoc.Doc, bool) {
	m.mu.Lock()
	d, ok := m.docs[compositeID]
	hook := m.onGet
	m.mu.Unlock()
	if hook != nil {
		hook(compositeID)
	}
	return d, ok
}

// mockSnapshotGateway is an in-memory remote snapshot mirror.
type mockSnapshotGateway struct {
	mu        sync.Mutex
	records   []*domain.SnapshotRecord
	deleted   []string
	creates   int
	seq       int
	createErr error
	listErr   error
	deleteErr error
}

func (m *mockSnapshotGateway) Create(ctx context.Context, project domain.ProjectKey, rec *domain.SnapshotRecord) (*domain.SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	out := *rec
	out.ID = fmt.Sprintf("remote-%d", m.seq)
	out.RemoteID = out.ID
	out.Project = project
	out.SyncState = domain.SyncStateSynced
	m.records = append(m.records, &out)
	copy := out
	return &copy, nil
}

func (m *mockSnapshotGateway) List(ctx context.Context, project domain.ProjectKey) ([]*domain.SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.SnapshotRecord
	for _, r := range m.records {
		if r.Project == project {
			copy := *r
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *mockSnapshotGateway) Preview(ctx context.Context, project domain.ProjectKey, id string) (*domain.SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id && r.Project == project {
			copy := *r
			return &copy, nil
		}
	}
	return nil, domain.ErrRemoteNotFound.WithDetails(id)
}

func (m *mockSnapshotGateway) Delete(ctx context.Context, project domain.ProjectKey, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return domain.ErrRemoteNotFound.WithDetails(id)
}

// addRemote seeds a remote-only record.
func (m *mockSnapshotGateway) addRemote(rec *domain.SnapshotRecord) {
	m.mu.Lock()
	rec.RemoteID = rec.ID
	rec.SyncState = domain.SyncStateSynced
	m.records = append(m.records, rec)
	m.mu.Unlock()
}

// snapshotHarness wires a SnapshotService over an in-memory store.
type snapshotHarness struct {
	store   *storage.LocalStore
	remote  *mockSnapshotGateway
	docs    *mockDocuments
	network *mockNetwork
	active  *ActiveProject
	clock   *testClock
	metrics *metric.Registry
	svc     *SnapshotService
}

func newSnapshotHarness(t *testing.T) *snapshotHarness {
	t.Helper()
	h := &snapshotHarness{
		store:   newTestStore(t),
		remote:  &mockSnapshotGateway{},
		docs:    newMockDocuments(),
		network: &mockNetwork{},
		active:  NewActiveProject(),
		clock:   newTestClock(baseAt),
		metrics: metric.NewRegistry(),
	}
	h.active.Set(alice)
	h.svc = NewSnapshotService(SnapshotServiceConfig{
		Store:     h.store,
		Remote:    h.remote,
		Documents: h.docs,
		Elements:  h.store,
		Network:   h.network,
		Active:    h.active,
		Metrics:   h.metrics,
		Logger:    logger.Nop(),
		Now:       h.clock.Now,
	})
	return h
}

// cacheProject stores project metadata with the given elements.
func (h *snapshotHarness) cacheProject(t *testing.T, elements ...domain.Element) {
	t.Helper()
	err := h.store.PutProject(context.Background(), &domain.Project{
		Username: alice.Username,
		Slug:     alice.Slug,
		Title:    "Novel",
		Elements: elements,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func paragraph(d ydoc.Doc, text string) ydoc.XMLElement {
	p := d.NewElement("paragraph")
	if text != "" {
		p.Insert(0, d.NewText(text))
	}
	return p
}

// proseDoc returns a document holding one paragraph per text.
func proseDoc(texts ...string) *ydoc.MemDoc {
	d := ydoc.NewMemDoc()
	frag := d.XMLFragment(ydoc.FragmentProseMirror)
	for i, text := range texts {
		frag.Insert(i, paragraph(d, text))
	}
	return d
}

func encodeDoc(d ydoc.Doc) string {
	return serializer.New().EncodeTree(d.XMLFragment(ydoc.FragmentProseMirror))
}
