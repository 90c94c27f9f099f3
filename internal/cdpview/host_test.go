package cdpview

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/browser"

	"pkt.systems/netbrowser/schema"
)

type recordedDownloads struct {
	mu      sync.Mutex
	started []schema.DownloadStarted
	updates []schema.DownloadUpdate
	done    []schema.DownloadDone
}

func (r *recordedDownloads) Start(event schema.DownloadStarted) schema.DownloadID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, event)
	return schema.DownloadID("d" + string(rune('0'+len(r.started))))
}

func (r *recordedDownloads) Update(_ schema.DownloadID, event schema.DownloadUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, event)
	return nil
}

func (r *recordedDownloads) Done(_ schema.DownloadID, event schema.DownloadDone) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, event)
	return nil
}

func TestDownloadBridgeLifecycle(t *testing.T) {
	rec := &recordedDownloads{}
	bridge := newDownloadBridge("/tmp/dl", testLogger())
	bridge.setListener(rec)

	bridge.handle(&browser.EventDownloadWillBegin{GUID: "g1", URL: "https://example.com/a.zip", SuggestedFilename: "a.zip"})
	bridge.handle(&browser.EventDownloadProgress{GUID: "g1", TotalBytes: 10, ReceivedBytes: 4, State: browser.DownloadProgressStateInProgress})
	bridge.handle(&browser.EventDownloadProgress{GUID: "g1", TotalBytes: 10, ReceivedBytes: 10, State: browser.DownloadProgressStateCompleted})
	bridge.handle(&browser.EventDownloadProgress{GUID: "g1", TotalBytes: 10, ReceivedBytes: 10, State: browser.DownloadProgressStateCompleted})
	bridge.handle(&browser.EventDownloadProgress{GUID: "unknown", State: browser.DownloadProgressStateInProgress})

	wantStart := []schema.DownloadStarted{{Filename: "a.zip", Path: filepath.Join("/tmp/dl", "a.zip"), URL: "https://example.com/a.zip"}}
	if !reflect.DeepEqual(rec.started, wantStart) {
		t.Fatalf("unexpected start: %+v", rec.started)
	}
	if len(rec.updates) != 1 || rec.updates[0].ReceivedBytes != 4 || rec.updates[0].State != schema.DownloadProgressing {
		t.Fatalf("unexpected updates: %+v", rec.updates)
	}
	if len(rec.done) != 1 {
		t.Fatalf("expected exactly one done, got %+v", rec.done)
	}
	if rec.done[0].State != schema.DownloadCompleted || rec.done[0].Path != filepath.Join("/tmp/dl", "a.zip") {
		t.Fatalf("unexpected done: %+v", rec.done[0])
	}
}

func TestDownloadBridgeCancelAndInterrupt(t *testing.T) {
	rec := &recordedDownloads{}
	bridge := newDownloadBridge("/tmp/dl", testLogger())
	bridge.setListener(rec)

	bridge.handle(&browser.EventDownloadWillBegin{GUID: "g1", SuggestedFilename: "a"})
	bridge.handle(&browser.EventDownloadWillBegin{GUID: "g2", SuggestedFilename: "b"})
	bridge.handle(&browser.EventDownloadProgress{GUID: "g1", State: browser.DownloadProgressStateCanceled})
	bridge.interruptAll()

	if len(rec.done) != 1 || rec.done[0].State != schema.DownloadCancelled || rec.done[0].Path != "" {
		t.Fatalf("unexpected done: %+v", rec.done)
	}
	if len(rec.updates) != 1 || rec.updates[0].State != schema.DownloadInterrupted {
		t.Fatalf("expected one interrupt, got %+v", rec.updates)
	}
	if len(bridge.pending) != 0 {
		t.Fatalf("expected no pending downloads")
	}
}

func TestDownloadBridgeWithoutListener(t *testing.T) {
	bridge := newDownloadBridge("/tmp/dl", testLogger())
	bridge.handle(&browser.EventDownloadWillBegin{GUID: "g1", SuggestedFilename: "a"})
	if len(bridge.pending) != 0 {
		t.Fatalf("expected download to be ignored")
	}
}

func TestHostRequiresStart(t *testing.T) {
	host := New(Options{Logger: testLogger()})
	if _, err := host.NewView(context.Background()); !errors.Is(err, schema.ErrHostUnavailable) {
		t.Fatalf("expected ErrHostUnavailable, got %v", err)
	}
	if err := host.ClearCache(context.Background()); !errors.Is(err, schema.ErrHostUnavailable) {
		t.Fatalf("expected ErrHostUnavailable, got %v", err)
	}
	if err := host.Close(); err != nil {
		t.Fatalf("close unstarted host: %v", err)
	}
}

func TestHostUpdateConfigMergesPatch(t *testing.T) {
	host := New(Options{Logger: testLogger(), Config: schema.HostConfig{DownloadPath: "/srv/dl"}})
	if err := host.UpdateConfig(context.Background(), schema.HostConfigPatch{DoNotTrack: schema.Bool(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := host.UpdateConfig(context.Background(), schema.HostConfigPatch{ContentBlocking: schema.Bool(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := schema.HostConfig{ContentBlocking: true, DoNotTrack: true, DownloadPath: "/srv/dl"}
	if got := host.Config(); got != want {
		t.Fatalf("unexpected config: %+v", got)
	}
	if err := host.UpdateConfig(context.Background(), schema.HostConfigPatch{DownloadPath: schema.String(" ")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := host.Config().DownloadPath; got != DefaultDownloadDir() {
		t.Fatalf("expected blank path to reset to default, got %q", got)
	}
}

func TestHostOpenPathUsesDefaultHandler(t *testing.T) {
	var opened []string
	host := New(Options{
		Logger: testLogger(),
		Open: func(path string) error {
			opened = append(opened, path)
			return nil
		},
		Exec: func(context.Context, string, ...string) error {
			t.Fatalf("open path must not exec")
			return nil
		},
	})
	if err := host.OpenPath(context.Background(), "/home/u/Downloads/a.zip"); err != nil {
		t.Fatalf("open path: %v", err)
	}
	if !reflect.DeepEqual(opened, []string{"/home/u/Downloads/a.zip"}) {
		t.Fatalf("opened %v", opened)
	}
}

func TestHostOpenPathWrapsError(t *testing.T) {
	boom := errors.New("no handler")
	host := New(Options{
		Logger: testLogger(),
		Open:   func(string) error { return boom },
	})
	if err := host.OpenPath(context.Background(), "/d/a.zip"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestHostShowInFolder(t *testing.T) {
	var opened []string
	var gotName string
	var gotArgs []string
	host := New(Options{
		Logger: testLogger(),
		Open: func(path string) error {
			opened = append(opened, path)
			return nil
		},
		Exec: func(_ context.Context, name string, args ...string) error {
			gotName, gotArgs = name, args
			return nil
		},
	})
	if err := host.ShowInFolder(context.Background(), "/home/u/Downloads/a.zip"); err != nil {
		t.Fatalf("show in folder: %v", err)
	}
	wantName, wantArgs, ok := revealCommand(runtimeGOOS(), "/home/u/Downloads/a.zip")
	if !ok {
		if gotName != "" || !reflect.DeepEqual(opened, []string{"/home/u/Downloads"}) {
			t.Fatalf("expected containing folder opened, got exec %q open %v", gotName, opened)
		}
		return
	}
	if gotName != wantName || !reflect.DeepEqual(gotArgs, wantArgs) || len(opened) != 0 {
		t.Fatalf("got %s %v (open %v), want %s %v", gotName, gotArgs, opened, wantName, wantArgs)
	}
}

func TestRevealCommand(t *testing.T) {
	cases := []struct {
		goos string
		name string
		args []string
		ok   bool
	}{
		{"linux", "", nil, false},
		{"freebsd", "", nil, false},
		{"darwin", "open", []string{"-R", "/d/a.zip"}, true},
		{"windows", "explorer", []string{"/select,/d/a.zip"}, true},
	}
	for _, tc := range cases {
		name, args, ok := revealCommand(tc.goos, "/d/a.zip")
		if name != tc.name || !reflect.DeepEqual(args, tc.args) || ok != tc.ok {
			t.Fatalf("%s: got %s %v %v", tc.goos, name, args, ok)
		}
	}
}

func TestFlagValue(t *testing.T) {
	if got := flagValue(""); got != true {
		t.Fatalf("empty flag: got %v", got)
	}
	if got := flagValue("false"); got != false {
		t.Fatalf("false flag: got %v", got)
	}
	if got := flagValue("en-US"); got != "en-US" {
		t.Fatalf("string flag: got %v", got)
	}
}

// TestHostLive drives a real browser. It needs Chrome and NETBROWSER_LONG=1.
func TestHostLive(t *testing.T) {
	if os.Getenv("NETBROWSER_LONG") != "1" {
		t.Skip("set NETBROWSER_LONG=1 to run against a real browser")
	}
	host := New(Options{
		Headless: true,
		Flags:    map[string]string{"no-sandbox": "true", "disable-gpu": "true"},
		Logger:   testLogger(),
		Config:   schema.HostConfig{DownloadPath: t.TempDir()},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer host.Close()

	view, err := host.NewView(ctx)
	if err != nil {
		t.Fatalf("new view: %v", err)
	}
	doc := "data:text/html,<title>Live</title><p>go go go</p>"
	if err := view.Load(ctx, doc); err != nil {
		t.Fatalf("load: %v", err)
	}
	waitFor(t, view.Events(), schema.ViewLoadStop)

	title, err := view.Title(ctx)
	if err != nil || title != "Live" {
		t.Fatalf("title: %q %v", title, err)
	}
	info, err := host.AppInfo(ctx)
	if err != nil || info.EngineVersion == "" {
		t.Fatalf("app info: %+v %v", info, err)
	}
	if err := view.Close(); err != nil {
		t.Fatalf("close view: %v", err)
	}
	for range view.Events() {
	}
}

func waitFor(t *testing.T, events <-chan schema.ViewEvent, typ schema.ViewEventType) {
	t.Helper()
	timeout := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("events closed before %s", typ)
			}
			if ev.Type == typ {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}
