package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("pkt.systems/pslog.(*timeCache).refresh"),
	)
}

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.DebugLevel,
	})
}

type fakeView struct {
	id     schema.ViewID
	events chan schema.ViewEvent

	mu        sync.Mutex
	url       string
	title     string
	titleErr  error
	loadErr   error
	loads     []string
	zooms     []float64
	scripts   []string
	finds     []string
	findOpts  []FindOptions
	clears    int
	reloads   int
	backs     int
	forwards  int
	closed    bool
	closeOnce sync.Once
}

func newFakeView(id schema.ViewID) *fakeView {
	return &fakeView{id: id, events: make(chan schema.ViewEvent, 64)}
}

func (v *fakeView) ID() schema.ViewID               { return v.id }
func (v *fakeView) Events() <-chan schema.ViewEvent { return v.events }
func (v *fakeView) send(ev schema.ViewEvent)        { ev.ViewID = v.id; v.events <- ev }
func (v *fakeView) setPage(url, title string) {
	v.mu.Lock()
	v.url, v.title = url, title
	v.mu.Unlock()
}
func (v *fakeView) Back(context.Context) error { v.mu.Lock(); v.backs++; v.mu.Unlock(); return nil }
func (v *fakeView) Forward(context.Context) error {
	v.mu.Lock()
	v.forwards++
	v.mu.Unlock()
	return nil
}
func (v *fakeView) Reload(context.Context) error { v.mu.Lock(); v.reloads++; v.mu.Unlock(); return nil }
func (v *fakeView) ClearFind(context.Context) error {
	v.mu.Lock()
	v.clears++
	v.mu.Unlock()
	return nil
}
func (v *fakeView) CurrentURL(context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.url, nil
}

func (v *fakeView) Load(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loads = append(v.loads, url)
	return v.loadErr
}

func (v *fakeView) SetZoom(_ context.Context, factor float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.zooms = append(v.zooms, factor)
	return nil
}

func (v *fakeView) Find(_ context.Context, text string, opts FindOptions) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finds = append(v.finds, text)
	v.findOpts = append(v.findOpts, opts)
	return nil
}

func (v *fakeView) InjectScript(_ context.Context, source string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scripts = append(v.scripts, source)
	return nil
}

func (v *fakeView) Title(context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.title, v.titleErr
}

func (v *fakeView) Close() error {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		close(v.events)
	})
	return nil
}

func (v *fakeView) snapshotLoads() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.loads...)
}

func (v *fakeView) zoomCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.zooms)
}

type fakeFactory struct {
	mu    sync.Mutex
	views []*fakeView
	err   error
}

func (f *fakeFactory) NewView(context.Context) (ContentView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v := newFakeView(schema.ViewID(fmt.Sprintf("v%d", len(f.views)+1)))
	f.views = append(f.views, v)
	return v, nil
}

func (f *fakeFactory) last() *fakeView {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.views) == 0 {
		return nil
	}
	return f.views[len(f.views)-1]
}

type fakeHost struct {
	mu       sync.Mutex
	patches  []schema.HostConfigPatch
	folder   string
	cacheErr error
	cleared  []string
	opened   []string
	revealed []string
	info     schema.AppInfo
	infoErr  error
}

func (h *fakeHost) UpdateConfig(_ context.Context, patch schema.HostConfigPatch) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patches = append(h.patches, patch)
	return nil
}

func (h *fakeHost) SelectDownloadFolder(context.Context) (string, error) {
	return h.folder, nil
}

func (h *fakeHost) ClearCache(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cacheErr != nil {
		return h.cacheErr
	}
	h.cleared = append(h.cleared, "cache")
	return nil
}

func (h *fakeHost) ClearCookies(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = append(h.cleared, "cookies")
	return nil
}

func (h *fakeHost) AppInfo(context.Context) (schema.AppInfo, error) {
	return h.info, h.infoErr
}

func (h *fakeHost) OpenPath(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, path)
	return nil
}

func (h *fakeHost) ShowInFolder(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revealed = append(h.revealed, path)
	return nil
}

type memStore struct {
	mu    sync.Mutex
	data  map[schema.Collection][]byte
	saves map[schema.Collection]int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[schema.Collection][]byte), saves: make(map[schema.Collection]int)}
}

func (s *memStore) Load(collection schema.Collection, out any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[collection]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (s *memStore) Save(collection schema.Collection, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[collection] = raw
	s.saves[collection]++
	return nil
}

func (s *memStore) Clear(collection schema.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, collection)
	return nil
}

func (s *memStore) saveCount(collection schema.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[collection]
}

// gatedStore holds the first Save until release is closed.
type gatedStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{memStore: newMemStore(), entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *gatedStore) Save(collection schema.Collection, value any) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.memStore.Save(collection, value)
}

type recordingSink struct {
	mu        sync.Mutex
	sessions  []schema.SessionEvent
	pages     []schema.PageStateEvent
	downloads []schema.DownloadsEvent
}

func (s *recordingSink) OnSessionEvent(ev schema.SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, ev)
}

func (s *recordingSink) OnPageState(ev schema.PageStateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, ev)
}

func (s *recordingSink) OnDownloads(ev schema.DownloadsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = append(s.downloads, ev)
}

func (s *recordingSink) sessionEvents() []schema.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.SessionEvent(nil), s.sessions...)
}

func (s *recordingSink) lastPage() (schema.PageState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) == 0 {
		return schema.PageState{}, false
	}
	return s.pages[len(s.pages)-1].State, true
}

func (s *recordingSink) downloadEvents() []schema.DownloadsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.DownloadsEvent(nil), s.downloads...)
}

var errBoom = errors.New("boom")

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}
