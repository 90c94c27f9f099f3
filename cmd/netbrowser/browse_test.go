package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/internal/command"
	"pkt.systems/netbrowser/internal/eventbus"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.DebugLevel,
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T) *core.Shell {
	t.Helper()
	shell, err := core.NewShell(schema.ServiceConfig{StateDir: t.TempDir()}, core.ShellDeps{Logger: testLogger()})
	if err != nil {
		t.Fatalf("new shell: %v", err)
	}
	return shell
}

func TestReplQuit(t *testing.T) {
	shell := newTestShell(t)
	out := &syncBuffer{}
	handler := command.NewHandler(shell, out, testLogger())

	err := repl(context.Background(), handler, strings.NewReader("/bogus\n/quit\n/tabs\n"))
	if !errors.Is(err, command.ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
	got := out.String()
	if !strings.HasPrefix(got, prompt) || !strings.Contains(got, "error: ") {
		t.Fatalf("expected prompt and error line, got %q", got)
	}
}

func TestReplEOFQuits(t *testing.T) {
	handler := command.NewHandler(newTestShell(t), io.Discard, testLogger())
	if err := repl(context.Background(), handler, strings.NewReader("")); !errors.Is(err, command.ErrQuit) {
		t.Fatalf("expected ErrQuit on EOF, got %v", err)
	}
}

func TestReplStopsOnCancel(t *testing.T) {
	handler := command.NewHandler(newTestShell(t), io.Discard, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocked, w := io.Pipe()
	defer func() { _ = w.Close() }()
	if err := repl(ctx, handler, blocked); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestApplyHostPatch(t *testing.T) {
	shell := newTestShell(t)
	settings := shell.Settings()
	applyHostPatch(context.Background(), settings, schema.HostConfigPatch{
		ContentBlocking: schema.Bool(true),
		DownloadPath:    schema.String("/srv/downloads"),
	})
	prefs := settings.Preferences()
	if !prefs.ContentBlocking || prefs.DownloadPath != "/srv/downloads" || prefs.DoNotTrack {
		t.Fatalf("unexpected preferences after patch: %+v", prefs)
	}
	applyHostPatch(context.Background(), settings, schema.HostConfigPatch{DoNotTrack: schema.Bool(true)})
	if prefs := settings.Preferences(); !prefs.DoNotTrack || !prefs.ContentBlocking {
		t.Fatalf("expected do-not-track on and blocking kept, got %+v", prefs)
	}
}

func TestEventPrinterDownloadChanges(t *testing.T) {
	printer := newEventPrinter(command.NewHandler(newTestShell(t), io.Discard, testLogger()))
	rec := schema.DownloadRecord{ID: "d1", Filename: "a.zip", State: schema.DownloadProgressing, TotalBytes: 10}

	got := printer.downloadChanges([]schema.DownloadRecord{rec})
	if diff := cmp.Diff([]string{"download progressing: a.zip"}, got); diff != "" {
		t.Fatalf("start mismatch (-want +got):\n%s", diff)
	}
	rec.ReceivedBytes = 5
	if got := printer.downloadChanges([]schema.DownloadRecord{rec}); len(got) != 0 {
		t.Fatalf("expected progress to stay quiet, got %v", got)
	}
	rec.State = schema.DownloadCompleted
	got = printer.downloadChanges([]schema.DownloadRecord{rec})
	if diff := cmp.Diff([]string{"download completed: a.zip"}, got); diff != "" {
		t.Fatalf("completion mismatch (-want +got):\n%s", diff)
	}
	if got := printer.downloadChanges(nil); len(got) != 0 || len(printer.states) != 0 {
		t.Fatalf("expected cleared records to be forgotten, got %v / %v", got, printer.states)
	}
}

func TestEventPrinterRender(t *testing.T) {
	printer := newEventPrinter(command.NewHandler(newTestShell(t), io.Discard, testLogger()))
	pageErr := schema.NewPageError(-105, "ERR_NAME_NOT_RESOLVED", "https://nowhere.example")
	lines := printer.render(eventbus.Event{
		Type: eventbus.EventPage,
		Page: schema.PageStateEvent{State: schema.PageState{SessionID: "s1", Error: &pageErr}},
	})
	if len(lines) == 0 || lines[0] != "error: "+pageErr.Title() {
		t.Fatalf("unexpected page render: %v", lines)
	}
	if lines := printer.render(eventbus.Event{Type: "unknown"}); lines != nil {
		t.Fatalf("expected unknown events to render nothing, got %v", lines)
	}
}

func TestEventPrinterRunStopsOnClose(t *testing.T) {
	out := &syncBuffer{}
	printer := newEventPrinter(command.NewHandler(newTestShell(t), out, testLogger()))
	events := make(chan eventbus.Event, 1)
	events <- eventbus.Event{Type: eventbus.EventDownloads, Downloads: schema.DownloadsEvent{Records: []schema.DownloadRecord{
		{ID: "d1", Filename: "b.bin", State: schema.DownloadCancelled},
	}}}
	close(events)
	printer.run(context.Background(), events)
	if got := out.String(); got != "download cancelled: b.bin\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
