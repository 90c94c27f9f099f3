package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

type stubView struct {
	id     schema.ViewID
	events chan schema.ViewEvent
	once   sync.Once

	mu    sync.Mutex
	loads []string
	finds []string
	backs int
}

func (v *stubView) ID() schema.ViewID               { return v.id }
func (v *stubView) Events() <-chan schema.ViewEvent { return v.events }
func (v *stubView) Forward(context.Context) error   { return nil }
func (v *stubView) Reload(context.Context) error    { return nil }
func (v *stubView) SetZoom(context.Context, float64) error {
	return nil
}
func (v *stubView) ClearFind(context.Context) error            { return nil }
func (v *stubView) InjectScript(context.Context, string) error { return nil }
func (v *stubView) CurrentURL(context.Context) (string, error) { return "", nil }
func (v *stubView) Title(context.Context) (string, error)      { return "", nil }
func (v *stubView) Close() error                               { v.once.Do(func() { close(v.events) }); return nil }

func (v *stubView) Load(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loads = append(v.loads, url)
	return nil
}

func (v *stubView) Back(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.backs++
	return nil
}

func (v *stubView) Find(_ context.Context, text string, _ core.FindOptions) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finds = append(v.finds, text)
	return nil
}

type stubViews struct {
	mu    sync.Mutex
	views []*stubView
}

func (f *stubViews) NewView(context.Context) (core.ContentView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := &stubView{id: schema.ViewID(fmt.Sprintf("v%d", len(f.views)+1)), events: make(chan schema.ViewEvent, 8)}
	f.views = append(f.views, v)
	return v, nil
}

func (f *stubViews) last() *stubView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[len(f.views)-1]
}

type stubHost struct {
	mu     sync.Mutex
	opened []string
}

func (h *stubHost) UpdateConfig(context.Context, schema.HostConfigPatch) error { return nil }
func (h *stubHost) SelectDownloadFolder(context.Context) (string, error)       { return "", nil }
func (h *stubHost) ClearCache(context.Context) error                           { return nil }
func (h *stubHost) ClearCookies(context.Context) error                         { return nil }
func (h *stubHost) ShowInFolder(context.Context, string) error                 { return nil }
func (h *stubHost) AppInfo(context.Context) (schema.AppInfo, error) {
	return schema.AppInfo{Author: "pkt.systems", EngineVersion: "HeadlessChrome/140"}, nil
}

func (h *stubHost) OpenPath(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, path)
	return nil
}

type handlerFixture struct {
	handler *Handler
	shell   *core.Shell
	views   *stubViews
	host    *stubHost
	out     *bytes.Buffer
}

func newHandlerFixture(t *testing.T, logger pslog.Logger) *handlerFixture {
	t.Helper()
	if logger == nil {
		logger = pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	}
	f := &handlerFixture{views: &stubViews{}, host: &stubHost{}, out: &bytes.Buffer{}}
	shell, err := core.NewShell(schema.ServiceConfig{
		StateDir:     t.TempDir(),
		SearchEngine: "https://search.example/?q=",
	}, core.ShellDeps{Views: f.views, Host: f.host, Logger: logger})
	if err != nil {
		t.Fatalf("new shell: %v", err)
	}
	shell.Start(context.Background())
	t.Cleanup(shell.Shutdown)
	f.shell = shell
	f.handler = NewHandler(shell, f.out, logger)
	return f
}

func (f *handlerFixture) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := f.handler.Handle(context.Background(), line); err != nil {
			t.Fatalf("Handle(%q): %v", line, err)
		}
	}
}

func (f *handlerFixture) output() string {
	return f.out.String()
}

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
	Raw     string
}

type logCapture struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	lines []string
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.buf.Write(p)
	for {
		data := c.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		c.lines = append(c.lines, string(data[:idx]))
		c.buf.Next(idx + 1)
	}
	return len(p), nil
}

func (c *logCapture) Entries() []logEntry {
	c.mu.Lock()
	lines := append([]string(nil), c.lines...)
	c.mu.Unlock()
	entries := make([]logEntry, 0, len(lines))
	for _, line := range lines {
		payload := map[string]any{}
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			entries = append(entries, logEntry{Raw: line})
			continue
		}
		level, _ := payload["level"].(string)
		if level == "" {
			level, _ = payload["lvl"].(string)
		}
		message, _ := payload["message"].(string)
		if message == "" {
			message, _ = payload["msg"].(string)
		}
		entries = append(entries, logEntry{Level: strings.ToLower(level), Message: message, Fields: payload, Raw: line})
	}
	return entries
}
