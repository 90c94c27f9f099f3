package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// Settings owns the persisted preferences. Host-owned values are pushed to
// the host as partial patches whenever they change.
type Settings struct {
	mu     sync.Mutex
	prefs  schema.Preferences
	store  Store
	host   Host
	log    pslog.Logger
	onZoom func(context.Context, float64)
}

func newSettings(defaults schema.Preferences, store Store, host Host, logger pslog.Logger) *Settings {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Settings{prefs: defaults, store: store, host: host, log: logger}
	if store != nil {
		loaded := defaults
		ok, err := store.Load(schema.CollectionPreferences, &loaded)
		switch {
		case err != nil:
			logger.Warn("settings load failed", "err", err)
		case ok:
			s.prefs = sanitizePreferences(loaded, defaults)
		}
	}
	return s
}

func sanitizePreferences(prefs, defaults schema.Preferences) schema.Preferences {
	if _, ok := schema.NormalizeThemeName(string(prefs.Theme)); !ok {
		prefs.Theme = defaults.Theme
	}
	if schema.ValidateZoom(prefs.Zoom) != nil {
		prefs.Zoom = defaults.Zoom
	}
	if prefs.Homepage == "" {
		prefs.Homepage = defaults.Homepage
	}
	if schema.ValidateSearchEngine(prefs.SearchEngine) != nil {
		prefs.SearchEngine = defaults.SearchEngine
	}
	if _, ok := schema.NormalizeLayoutMode(string(prefs.Layout)); !ok {
		prefs.Layout = defaults.Layout
	}
	return prefs
}

// Preferences returns the current preferences.
func (s *Settings) Preferences() schema.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Sync pushes every host-owned value to the host once.
func (s *Settings) Sync(ctx context.Context) {
	s.pushHost(ctx, schema.HostConfigFromPreferences(s.Preferences()))
}

// ToggleTheme flips light and dark and returns the new theme.
func (s *Settings) ToggleTheme() schema.ThemeName {
	var theme schema.ThemeName
	s.update(func(p *schema.Preferences) {
		p.Theme = p.Theme.Toggle()
		theme = p.Theme
	})
	return theme
}

// SetTheme selects a theme by name.
func (s *Settings) SetTheme(name string) error {
	theme, ok := schema.NormalizeThemeName(name)
	if !ok {
		return fmt.Errorf("%w: theme %q", schema.ErrInvalidPreference, name)
	}
	s.update(func(p *schema.Preferences) { p.Theme = theme })
	return nil
}

// SetZoom validates, persists and applies the zoom factor to every view.
func (s *Settings) SetZoom(ctx context.Context, zoom float64) error {
	if err := schema.ValidateZoom(zoom); err != nil {
		return err
	}
	s.update(func(p *schema.Preferences) { p.Zoom = zoom })
	if s.onZoom != nil {
		s.onZoom(ctx, zoom)
	}
	return nil
}

// SetHomepage sets the page opened by new sessions.
func (s *Settings) SetHomepage(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("%w: empty homepage", schema.ErrInvalidPreference)
	}
	s.update(func(p *schema.Preferences) { p.Homepage = url })
	return nil
}

// SetSearchEngine sets the search URL prefix.
func (s *Settings) SetSearchEngine(prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if err := schema.ValidateSearchEngine(prefix); err != nil {
		return err
	}
	s.update(func(p *schema.Preferences) { p.SearchEngine = prefix })
	return nil
}

// SetLayout selects the session strip layout.
func (s *Settings) SetLayout(mode string) error {
	layout, ok := schema.NormalizeLayoutMode(mode)
	if !ok {
		return fmt.Errorf("%w: layout %q", schema.ErrInvalidPreference, mode)
	}
	s.update(func(p *schema.Preferences) { p.Layout = layout })
	return nil
}

// SetSidebarOpen records whether the sidebar is expanded.
func (s *Settings) SetSidebarOpen(open bool) {
	s.update(func(p *schema.Preferences) { p.SidebarOpen = open })
}

// SetShowBookmarksBar records bookmarks bar visibility.
func (s *Settings) SetShowBookmarksBar(show bool) {
	s.update(func(p *schema.Preferences) { p.ShowBookmarksBar = show })
}

// SetContentBlocking toggles content blocking here and on the host.
func (s *Settings) SetContentBlocking(ctx context.Context, enabled bool) {
	s.update(func(p *schema.Preferences) { p.ContentBlocking = enabled })
	s.pushHost(ctx, schema.HostConfigPatch{ContentBlocking: schema.Bool(enabled)})
}

// SetDoNotTrack toggles do-not-track here and on the host.
func (s *Settings) SetDoNotTrack(ctx context.Context, enabled bool) {
	s.update(func(p *schema.Preferences) { p.DoNotTrack = enabled })
	s.pushHost(ctx, schema.HostConfigPatch{DoNotTrack: schema.Bool(enabled)})
}

// SetDownloadPath sets the download folder here and on the host.
func (s *Settings) SetDownloadPath(ctx context.Context, path string) {
	s.update(func(p *schema.Preferences) { p.DownloadPath = path })
	s.pushHost(ctx, schema.HostConfigPatch{DownloadPath: schema.String(path)})
}

// SelectDownloadFolder asks the host for a folder. A cancelled or failed
// dialog returns "" and changes nothing.
func (s *Settings) SelectDownloadFolder(ctx context.Context) string {
	if s.host == nil {
		return ""
	}
	path, err := s.host.SelectDownloadFolder(ctx)
	if err != nil {
		s.log.Warn("settings select download folder failed", "err", err)
		return ""
	}
	if path == "" {
		return ""
	}
	s.SetDownloadPath(ctx, path)
	return path
}

// Set applies a preference by key, for the command line.
func (s *Settings) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "theme":
		return s.SetTheme(value)
	case "zoom":
		zoom, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: zoom %q", schema.ErrInvalidPreference, value)
		}
		return s.SetZoom(ctx, zoom)
	case "homepage":
		return s.SetHomepage(value)
	case "search_engine", "search-engine", "search":
		return s.SetSearchEngine(value)
	case "layout":
		return s.SetLayout(value)
	case "sidebar":
		enabled, err := parseBool(value)
		if err != nil {
			return err
		}
		s.SetSidebarOpen(enabled)
	case "bookmarks_bar", "bookmarks-bar":
		enabled, err := parseBool(value)
		if err != nil {
			return err
		}
		s.SetShowBookmarksBar(enabled)
	case "content_blocking", "content-blocking", "adblock":
		enabled, err := parseBool(value)
		if err != nil {
			return err
		}
		s.SetContentBlocking(ctx, enabled)
	case "do_not_track", "do-not-track", "dnt":
		enabled, err := parseBool(value)
		if err != nil {
			return err
		}
		s.SetDoNotTrack(ctx, enabled)
	case "download_path", "download-path", "downloads":
		s.SetDownloadPath(ctx, value)
	default:
		return fmt.Errorf("%w: unknown key %q", schema.ErrInvalidPreference, key)
	}
	return nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "yes", "enable", "enabled":
		return true, nil
	case "off", "no", "disable", "disabled":
		return false, nil
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: expected on/off, got %q", schema.ErrInvalidPreference, value)
	}
	return enabled, nil
}

func (s *Settings) update(mutate func(*schema.Preferences)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.prefs)
	if s.store == nil {
		return
	}
	if err := s.store.Save(schema.CollectionPreferences, s.prefs); err != nil {
		s.log.Warn("settings persist failed", "err", err)
	}
}

func (s *Settings) pushHost(ctx context.Context, patch schema.HostConfigPatch) {
	if s.host == nil || patch.Empty() {
		return
	}
	if err := s.host.UpdateConfig(ctx, patch); err != nil {
		s.log.Warn("settings host update failed", "err", err)
	}
}
