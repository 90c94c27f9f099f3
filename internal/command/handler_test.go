package command

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

func TestHandlePlainInputNavigatesBlankSession(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.run(t, "example.com")
	if got := f.views.last().loads; !reflect.DeepEqual(got, []string{"https://example.com"}) {
		t.Fatalf("unexpected loads: %v", got)
	}
	if len(f.shell.Sessions()) != 1 {
		t.Fatalf("expected the blank session to be reused")
	}
	f.run(t, "/open how to bake bread")
	if got := f.views.last().loads; !reflect.DeepEqual(got, []string{"https://search.example/?q=how%20to%20bake%20bread"}) {
		t.Fatalf("unexpected search load: %v", got)
	}
	if len(f.shell.Sessions()) != 2 {
		t.Fatalf("expected a second session")
	}
}

func TestHandleSessionCommands(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.run(t, "example.com", "/new", "/tab 1", "/pin 2")
	sessions := f.shell.Sessions()
	if len(sessions) != 2 || !sessions[0].IsPinned || sessions[0].URL != schema.NewTabURL {
		t.Fatalf("expected pinned new tab first, got %+v", sessions)
	}
	if !sessions[1].Active || sessions[1].URL != "https://example.com" {
		t.Fatalf("expected example.com active after pin reorder, got %+v", sessions)
	}
	f.run(t, "/tabs")
	if !strings.Contains(f.output(), "1. New Tab") || !strings.Contains(f.output(), "2. https://example.com") {
		t.Fatalf("unexpected tabs output:\n%s", f.output())
	}
	f.run(t, "/close 1")
	if len(f.shell.Sessions()) != 1 {
		t.Fatalf("expected one session after close")
	}
	if err := f.handler.Handle(context.Background(), "/tab 9"); !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := f.handler.Handle(context.Background(), "/tab x"); err == nil || !strings.Contains(err.Error(), "usage: /tab") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestHandleViewCommands(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.run(t, "/back")
	if f.views.last().backs != 0 {
		t.Fatalf("expected back on the new-tab page to be skipped")
	}
	f.run(t, "example.com", "/back", "/find hello world", "/next", "/endfind")
	view := f.views.last()
	if view.backs != 1 {
		t.Fatalf("expected one back, got %d", view.backs)
	}
	if len(view.finds) == 0 || view.finds[0] != "hello world" {
		t.Fatalf("expected find to reach the view, got %v", view.finds)
	}
}

func TestHandleZoomAndSettings(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.run(t, "/zoom 1.5", "/set homepage https://home.example/", "/set dnt on", "/theme", "/theme light")
	prefs := f.shell.Settings().Preferences()
	if prefs.Zoom != 1.5 || prefs.Homepage != "https://home.example/" || !prefs.DoNotTrack || prefs.Theme != schema.ThemeLight {
		t.Fatalf("unexpected preferences: %+v", prefs)
	}
	if !strings.Contains(f.output(), "theme dark") {
		t.Fatalf("expected theme toggle output, got:\n%s", f.output())
	}
	if err := f.handler.Handle(context.Background(), "/zoom huge"); err == nil || !strings.Contains(err.Error(), "usage: /zoom") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := f.handler.Handle(context.Background(), "/zoom 12"); !errors.Is(err, schema.ErrInvalidConfig) {
		t.Fatalf("expected invalid zoom, got %v", err)
	}
	if err := f.handler.Handle(context.Background(), "/set colour red"); !errors.Is(err, schema.ErrInvalidPreference) {
		t.Fatalf("expected invalid preference, got %v", err)
	}
}

func TestHandleCollections(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.run(t, "example.com", "/bookmark", "/bookmarks")
	if !strings.Contains(f.output(), "bookmarked") || !strings.Contains(f.output(), "<https://example.com>") {
		t.Fatalf("unexpected bookmark output:\n%s", f.output())
	}

	f.shell.History().Add("Example Domain", "https://example.com/", "")
	f.run(t, "/history example")
	if !strings.Contains(f.output(), "Today:") || !strings.Contains(f.output(), "Example Domain") {
		t.Fatalf("unexpected history output:\n%s", f.output())
	}
	id := f.shell.History().Entries()[0].ID
	f.run(t, "/rmhistory "+string(id))
	if f.shell.History().Len() != 0 {
		t.Fatalf("expected history entry removed")
	}

	f.run(t, "/clear bookmarks")
	if len(f.shell.Bookmarks().List()) != 0 || !strings.Contains(f.output(), "bookmarks cleared") {
		t.Fatalf("expected bookmarks cleared")
	}
	if err := f.handler.Handle(context.Background(), "/clear everything"); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestHandleDownloads(t *testing.T) {
	f := newHandlerFixture(t, nil)
	tracker := f.shell.Downloads()
	id := tracker.Start(schema.DownloadStarted{Filename: "a.zip", Path: "/dl/a.zip", TotalBytes: 1536})
	if err := f.handler.Handle(context.Background(), "/opendownload 1"); err == nil {
		t.Fatalf("expected in-flight download to be refused")
	}
	tracker.Done(id, schema.DownloadDone{State: schema.DownloadCompleted, TotalBytes: 1536, ReceivedBytes: 1536})
	f.run(t, "/downloads", "/opendownload 1")
	if !strings.Contains(f.output(), "a.zip [completed] 1.5 KB") {
		t.Fatalf("unexpected downloads output:\n%s", f.output())
	}
	if !reflect.DeepEqual(f.host.opened, []string{"/dl/a.zip"}) {
		t.Fatalf("unexpected opened paths: %v", f.host.opened)
	}
	f.run(t, "/cleardownloads")
	if len(tracker.Records()) != 0 {
		t.Fatalf("expected downloads cleared")
	}
	if err := f.handler.Handle(context.Background(), "/showdownload 3"); !errors.Is(err, schema.ErrDownloadNotFound) {
		t.Fatalf("expected ErrDownloadNotFound, got %v", err)
	}
}

func TestHandlePagesAboutAndQuit(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.run(t, "/page settings", "/about", "/help")
	active, _ := f.shell.ActiveSession()
	if active.URL != schema.SettingsURL || active.Title != "Settings" {
		t.Fatalf("expected settings page, got %+v", active)
	}
	out := f.output()
	if !strings.Contains(out, "NetBrowser ") || !strings.Contains(out, "engine HeadlessChrome/140") || !strings.Contains(out, "/quit") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if err := f.handler.Handle(context.Background(), "/quit"); !errors.Is(err, ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
	if err := f.handler.Handle(context.Background(), "/bogus"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
	if err := f.handler.Handle(context.Background(), "   "); err != nil {
		t.Fatalf("expected blank input to be ignored, got %v", err)
	}
}

func TestHandleLogsCommands(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
	f := newHandlerFixture(t, logger)
	f.run(t, "/tabs")
	for _, entry := range capture.Entries() {
		if entry.Message == "command slash request" && entry.Fields["command"] == "tabs" {
			return
		}
	}
	t.Fatalf("expected command log entry, got %d entries", len(capture.Entries()))
}
