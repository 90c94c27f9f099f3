package cdpview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/skratchdot/open-golang/open"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/internal/version"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

const closeTimeout = 5 * time.Second

// Options configures the browser process behind a Host.
type Options struct {
	// ExecPath overrides the Chrome binary; empty searches the usual names.
	ExecPath string
	// RemoteURL attaches to a running browser's DevTools endpoint instead
	// of launching one.
	RemoteURL    string
	Headless     bool
	UserDataDir  string
	WindowWidth  int
	WindowHeight int
	// Flags are extra command line switches; "true"/"false" values become
	// boolean switches.
	Flags  map[string]string
	Author string
	// Config is the initial host configuration.
	Config schema.HostConfig
	Logger pslog.Logger
	// Open hands a path to the desktop's default handler; nil uses
	// open.Start.
	Open func(path string) error
	// Exec starts an external program for reveal-in-folder on platforms
	// whose file manager can select a file; nil uses os/exec.
	Exec func(ctx context.Context, name string, args ...string) error
}

// Host owns the browser process. It creates page targets for sessions and
// carries the privileged operations: downloads, cache and cookie removal,
// and request blocking.
type Host struct {
	opts      Options
	log       pslog.Logger
	downloads *downloadBridge

	mu            sync.Mutex
	cfg           schema.HostConfig
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	views         map[schema.ViewID]*View
}

var (
	_ core.ViewFactory = (*Host)(nil)
	_ core.Host        = (*Host)(nil)
)

// New constructs a Host. The browser starts on Start.
func New(opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("component", "host")
	if opts.Open == nil {
		opts.Open = open.Start
	}
	if opts.Exec == nil {
		opts.Exec = startProcess
	}
	cfg := opts.Config
	if strings.TrimSpace(cfg.DownloadPath) == "" {
		cfg.DownloadPath = DefaultDownloadDir()
	}
	return &Host{
		opts:      opts,
		log:       logger,
		cfg:       cfg,
		downloads: newDownloadBridge(cfg.DownloadPath, logger),
		views:     make(map[schema.ViewID]*View),
	}
}

// DefaultDownloadDir returns ~/Downloads, or the working directory when no
// home is known.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// SetDownloadListener routes download events to listener.
func (h *Host) SetDownloadListener(listener core.DownloadListener) {
	h.downloads.setListener(listener)
}

// Start launches or attaches to the browser.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.browserCtx != nil {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	parent := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if h.opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(parent, h.opts.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(parent, allocatorOptions(h.opts)...)
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(h.logf),
		chromedp.WithErrorf(h.errorf),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("start browser: %w", err)
	}
	chromedp.ListenBrowser(browserCtx, h.downloads.handle)

	h.mu.Lock()
	h.browserCtx = browserCtx
	h.cancelBrowser = cancelBrowser
	h.cancelAlloc = cancelAlloc
	dir := h.cfg.DownloadPath
	h.mu.Unlock()

	if err := h.setDownloadDir(ctx, dir); err != nil {
		h.log.Warn("host download behavior failed", "dir", dir, "err", err)
	}
	info, err := h.AppInfo(ctx)
	if err != nil {
		h.log.Warn("host version unavailable", "err", err)
	}
	h.log.Info("host started", "engine", info.EngineVersion, "remote", h.opts.RemoteURL != "", "headless", h.opts.Headless)
	return nil
}

// Wait blocks until ctx ends or the browser goes away.
func (h *Host) Wait(ctx context.Context) error {
	browserCtx := h.context()
	if browserCtx == nil {
		return schema.ErrHostUnavailable
	}
	select {
	case <-ctx.Done():
		return nil
	case <-browserCtx.Done():
		h.downloads.interruptAll()
		return fmt.Errorf("browser exited: %w", schema.ErrHostUnavailable)
	}
}

// Close closes every view and stops the browser.
func (h *Host) Close() error {
	h.mu.Lock()
	browserCtx, cancelBrowser, cancelAlloc := h.browserCtx, h.cancelBrowser, h.cancelAlloc
	views := make([]*View, 0, len(h.views))
	for _, v := range h.views {
		views = append(views, v)
	}
	h.browserCtx, h.cancelBrowser, h.cancelAlloc = nil, nil, nil
	h.mu.Unlock()

	var errs []error
	for _, v := range views {
		if err := v.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.downloads.interruptAll()
	if browserCtx == nil {
		return errors.Join(errs...)
	}
	closeCtx, cancel := context.WithTimeout(browserCtx, closeTimeout)
	if err := chromedp.Cancel(closeCtx); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	cancel()
	cancelBrowser()
	cancelAlloc()
	h.log.Info("host stopped")
	return errors.Join(errs...)
}

// NewView opens a page target.
func (h *Host) NewView(ctx context.Context) (core.ContentView, error) {
	browserCtx := h.context()
	if browserCtx == nil {
		return nil, schema.ErrHostUnavailable
	}
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	v, err := newView(tabCtx, cancel, h.log, h.forget)
	if err != nil {
		cancel()
		return nil, err
	}
	h.mu.Lock()
	h.views[v.ID()] = v
	cfg := h.cfg
	h.mu.Unlock()
	if err := v.applyConfig(ctx, cfg); err != nil {
		v.log.Warn("view config failed", "err", err)
	}
	v.log.Debug("view opened")
	return v, nil
}

func (h *Host) forget(v *View) {
	h.mu.Lock()
	delete(h.views, v.ID())
	h.mu.Unlock()
}

// Config returns the current host configuration.
func (h *Host) Config() schema.HostConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// UpdateConfig merges patch and applies it to every open view; later
// views pick it up on creation.
func (h *Host) UpdateConfig(ctx context.Context, patch schema.HostConfigPatch) error {
	if patch.Empty() {
		return nil
	}
	h.mu.Lock()
	if patch.DownloadPath != nil && strings.TrimSpace(*patch.DownloadPath) == "" {
		patch.DownloadPath = schema.String(DefaultDownloadDir())
	}
	h.cfg = patch.Apply(h.cfg)
	cfg := h.cfg
	views := make([]*View, 0, len(h.views))
	for _, v := range h.views {
		views = append(views, v)
	}
	started := h.browserCtx != nil
	h.mu.Unlock()

	h.log.Debug("host config updated",
		"content_blocking", cfg.ContentBlocking,
		"do_not_track", cfg.DoNotTrack,
		"download_path", cfg.DownloadPath,
	)
	var errs []error
	if patch.ContentBlocking != nil || patch.DoNotTrack != nil {
		for _, v := range views {
			if err := v.applyConfig(ctx, cfg); err != nil {
				errs = append(errs, fmt.Errorf("view %s: %w", v.ID(), err))
			}
		}
	}
	if patch.DownloadPath != nil && started {
		if err := h.setDownloadDir(ctx, cfg.DownloadPath); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SelectDownloadFolder has no picker on a terminal and always reports a
// cancelled choice.
func (h *Host) SelectDownloadFolder(context.Context) (string, error) {
	h.log.Debug("host folder picker unavailable")
	return "", nil
}

// ClearCache drops the browser's HTTP cache.
func (h *Host) ClearCache(ctx context.Context) error {
	return h.runBrowser(ctx, network.ClearBrowserCache())
}

// ClearCookies drops every cookie.
func (h *Host) ClearCookies(ctx context.Context) error {
	return h.runBrowser(ctx, network.ClearBrowserCookies())
}

// AppInfo reports the application and engine versions.
func (h *Host) AppInfo(ctx context.Context) (schema.AppInfo, error) {
	info := schema.AppInfo{
		Name:    core.AppName,
		Version: version.Current(),
		Author:  h.opts.Author,
	}
	err := h.runBrowser(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		_, product, _, _, _, err := browser.GetVersion().Do(cdp.WithExecutor(ctx, c.Browser))
		if err != nil {
			return err
		}
		info.EngineVersion = product
		return nil
	}))
	return info, err
}

// OpenPath opens path with the desktop's default handler.
func (h *Host) OpenPath(_ context.Context, path string) error {
	if err := h.opts.Open(path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	h.log.Debug("host opened", "path", path)
	return nil
}

// ShowInFolder reveals path in the desktop file manager. Where the file
// manager cannot select a file the containing folder is opened instead.
func (h *Host) ShowInFolder(ctx context.Context, path string) error {
	name, args, ok := revealCommand(runtime.GOOS, path)
	if !ok {
		return h.OpenPath(ctx, filepath.Dir(path))
	}
	if err := h.opts.Exec(ctx, name, args...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	h.log.Debug("host revealed", "command", name, "args", args)
	return nil
}

func (h *Host) setDownloadDir(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	h.downloads.setDir(abs)
	return h.runBrowser(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		return browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(abs).
			WithEventsEnabled(true).
			Do(cdp.WithExecutor(ctx, c.Browser))
	}))
}

// runBrowser runs actions on the first page target, which lives as long as
// the browser does.
func (h *Host) runBrowser(ctx context.Context, actions ...chromedp.Action) error {
	browserCtx := h.context()
	if browserCtx == nil {
		return schema.ErrHostUnavailable
	}
	runCtx, cancel := context.WithCancel(browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (h *Host) context() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.browserCtx
}

func (h *Host) logf(format string, args ...any) {
	h.log.Trace("chromedp", "msg", fmt.Sprintf(format, args...))
}

func (h *Host) errorf(format string, args ...any) {
	h.log.Debug("chromedp error", "msg", fmt.Sprintf(format, args...))
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("password-store", "basic"),
	}
	if opts.Headless {
		out = append(out, chromedp.Headless)
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		out = append(out, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		out = append(out, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	names := make([]string, 0, len(opts.Flags))
	for name := range opts.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, chromedp.Flag(strings.TrimPrefix(name, "--"), flagValue(opts.Flags[name])))
	}
	return out
}

func flagValue(raw string) any {
	value := strings.TrimSpace(raw)
	if value == "" {
		return true
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

func revealCommand(goos, path string) (string, []string, bool) {
	switch goos {
	case "darwin":
		return "open", []string{"-R", path}, true
	case "windows":
		return "explorer", []string{"/select," + path}, true
	default:
		return "", nil, false
	}
}

func startProcess(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(context.WithoutCancel(ctx), name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
