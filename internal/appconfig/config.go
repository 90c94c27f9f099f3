package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/netbrowser/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int              `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string           `mapstructure:"state_dir" yaml:"state_dir"`
	Author        string           `mapstructure:"author" yaml:"author"`
	Browser       BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Navigation    NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	View          ViewConfig       `mapstructure:"view" yaml:"view"`
	Privacy       PrivacyConfig    `mapstructure:"privacy" yaml:"privacy"`
	Downloads     DownloadsConfig  `mapstructure:"downloads" yaml:"downloads"`
	History       HistoryConfig    `mapstructure:"history" yaml:"history"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// BrowserConfig controls how the rendering engine is started or reached.
type BrowserConfig struct {
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
	// RemoteURL attaches to a running browser instead of launching one.
	RemoteURL    string            `mapstructure:"remote_url" yaml:"remote_url"`
	Headless     bool              `mapstructure:"headless" yaml:"headless"`
	UserDataDir  string            `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowWidth  int               `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int               `mapstructure:"window_height" yaml:"window_height"`
	Flags        map[string]string `mapstructure:"flags" yaml:"flags"`
}

// NavigationConfig controls address-bar resolution and new sessions.
type NavigationConfig struct {
	SearchEngine string `mapstructure:"search_engine" yaml:"search_engine"`
	Homepage     string `mapstructure:"homepage" yaml:"homepage"`
}

// ViewConfig controls per-view behavior.
type ViewConfig struct {
	Zoom                 float64 `mapstructure:"zoom" yaml:"zoom"`
	TitlePollIntervalMS  int     `mapstructure:"title_poll_interval_ms" yaml:"title_poll_interval_ms"`
	TitlePollMaxAttempts int     `mapstructure:"title_poll_max_attempts" yaml:"title_poll_max_attempts"`
}

// PrivacyConfig holds the host-owned privacy switches.
type PrivacyConfig struct {
	ContentBlocking bool `mapstructure:"content_blocking" yaml:"content_blocking"`
	DoNotTrack      bool `mapstructure:"do_not_track" yaml:"do_not_track"`
}

// DownloadsConfig controls where downloads land and how many are kept.
type DownloadsConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxRecords int    `mapstructure:"max_records" yaml:"max_records"`
}

// HistoryConfig caps the history log.
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".netbrowser", "state"),
		Author:        "pkt.systems",
		Browser: BrowserConfig{
			ExecPath:     "",
			RemoteURL:    "",
			Headless:     false,
			UserDataDir:  filepath.Join(home, ".netbrowser", "profile"),
			WindowWidth:  1280,
			WindowHeight: 800,
			Flags:        map[string]string{},
		},
		Navigation: NavigationConfig{
			SearchEngine: schema.DefaultSearchEngine,
			Homepage:     schema.NewTabURL,
		},
		View: ViewConfig{
			Zoom:                 schema.DefaultZoom,
			TitlePollIntervalMS:  int(schema.DefaultTitlePollInterval / time.Millisecond),
			TitlePollMaxAttempts: schema.DefaultTitlePollMaxAttempts,
		},
		Privacy: PrivacyConfig{
			ContentBlocking: false,
			DoNotTrack:      false,
		},
		Downloads: DownloadsConfig{
			Path:       filepath.Join(home, "Downloads"),
			MaxRecords: schema.DefaultDownloadsMaxRecords,
		},
		History: HistoryConfig{
			MaxEntries: schema.DefaultHistoryMaxEntries,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".netbrowser", "config.yaml"), nil
}

// ServiceConfig converts the file config into the core shell config.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:             c.StateDir,
		SearchEngine:         c.Navigation.SearchEngine,
		Homepage:             c.Navigation.Homepage,
		Zoom:                 c.View.Zoom,
		TitlePollInterval:    time.Duration(c.View.TitlePollIntervalMS) * time.Millisecond,
		TitlePollMaxAttempts: c.View.TitlePollMaxAttempts,
		HistoryMaxEntries:    c.History.MaxEntries,
		DownloadsMaxRecords:  c.Downloads.MaxRecords,
		ContentBlocking:      c.Privacy.ContentBlocking,
		DoNotTrack:           c.Privacy.DoNotTrack,
		DownloadPath:         c.Downloads.Path,
	}
}

// HostConfig returns the host-owned subset.
func (c Config) HostConfig() schema.HostConfig {
	return schema.HostConfig{
		ContentBlocking: c.Privacy.ContentBlocking,
		DoNotTrack:      c.Privacy.DoNotTrack,
		DownloadPath:    c.Downloads.Path,
	}
}

// HostPatch returns the host-owned values that differ between prev and next.
func HostPatch(prev, next Config) schema.HostConfigPatch {
	var patch schema.HostConfigPatch
	if prev.Privacy.ContentBlocking != next.Privacy.ContentBlocking {
		patch.ContentBlocking = schema.Bool(next.Privacy.ContentBlocking)
	}
	if prev.Privacy.DoNotTrack != next.Privacy.DoNotTrack {
		patch.DoNotTrack = schema.Bool(next.Privacy.DoNotTrack)
	}
	if prev.Downloads.Path != next.Downloads.Path {
		patch.DownloadPath = schema.String(next.Downloads.Path)
	}
	return patch
}
