package schema

// Preferences are the persisted user settings.
type Preferences struct {
	Theme            ThemeName  `json:"theme"`
	Zoom             float64    `json:"zoom"`
	Homepage         string     `json:"homepage"`
	SearchEngine     string     `json:"search_engine"`
	Layout           LayoutMode `json:"layout"`
	SidebarOpen      bool       `json:"sidebar_open"`
	ContentBlocking  bool       `json:"content_blocking"`
	DoNotTrack       bool       `json:"do_not_track"`
	DownloadPath     string     `json:"download_path,omitempty"`
	ShowBookmarksBar bool       `json:"show_bookmarks_bar"`
}

// DefaultPreferences derives the initial preferences from cfg.
func DefaultPreferences(cfg ServiceConfig) Preferences {
	return Preferences{
		Theme:            DefaultTheme,
		Zoom:             cfg.Zoom,
		Homepage:         cfg.Homepage,
		SearchEngine:     cfg.SearchEngine,
		Layout:           LayoutSidebar,
		SidebarOpen:      true,
		ContentBlocking:  cfg.ContentBlocking,
		DoNotTrack:       cfg.DoNotTrack,
		DownloadPath:     cfg.DownloadPath,
		ShowBookmarksBar: true,
	}
}

// HostConfig is the configuration owned by the privileged host.
type HostConfig struct {
	ContentBlocking bool   `json:"content_blocking"`
	DoNotTrack      bool   `json:"do_not_track"`
	DownloadPath    string `json:"download_path,omitempty"`
}

// HostConfigPatch is a partial HostConfig update; nil fields are left alone.
type HostConfigPatch struct {
	ContentBlocking *bool
	DoNotTrack      *bool
	DownloadPath    *string
}

// Empty reports whether the patch changes nothing.
func (p HostConfigPatch) Empty() bool {
	return p.ContentBlocking == nil && p.DoNotTrack == nil && p.DownloadPath == nil
}

// Apply returns cfg with the patch merged in.
func (p HostConfigPatch) Apply(cfg HostConfig) HostConfig {
	if p.ContentBlocking != nil {
		cfg.ContentBlocking = *p.ContentBlocking
	}
	if p.DoNotTrack != nil {
		cfg.DoNotTrack = *p.DoNotTrack
	}
	if p.DownloadPath != nil {
		cfg.DownloadPath = *p.DownloadPath
	}
	return cfg
}

// HostConfigFromPreferences extracts the host-owned subset of prefs as a
// full patch, used for the initial sync.
func HostConfigFromPreferences(prefs Preferences) HostConfigPatch {
	return HostConfigPatch{
		ContentBlocking: Bool(prefs.ContentBlocking),
		DoNotTrack:      Bool(prefs.DoNotTrack),
		DownloadPath:    String(prefs.DownloadPath),
	}
}

// AppInfo describes the running application.
type AppInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Author        string `json:"author"`
	EngineVersion string `json:"engine_version"`
}

// BrowsingDataKind selects what ClearBrowsingData removes.
type BrowsingDataKind string

const (
	// BrowsingDataHistory clears history entries.
	BrowsingDataHistory BrowsingDataKind = "history"
	// BrowsingDataBookmarks clears bookmarks.
	BrowsingDataBookmarks BrowsingDataKind = "bookmarks"
	// BrowsingDataCache clears the engine cache.
	BrowsingDataCache BrowsingDataKind = "cache"
	// BrowsingDataCookies clears engine cookies.
	BrowsingDataCookies BrowsingDataKind = "cookies"
)
