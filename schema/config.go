package schema

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ServiceConfig defines defaults and limits for the core shell.
type ServiceConfig struct {
	StateDir string
	// SearchEngine is a URL prefix the encoded query is appended to.
	SearchEngine string
	Homepage     string
	Zoom         float64
	// TitlePollInterval and TitlePollMaxAttempts bound the title fallback poll.
	TitlePollInterval    time.Duration
	TitlePollMaxAttempts int
	HistoryMaxEntries    int
	DownloadsMaxRecords  int
	ContentBlocking      bool
	DoNotTrack           bool
	DownloadPath         string
}

const (
	// DefaultSearchEngine is used when no search engine is configured.
	DefaultSearchEngine = "https://www.google.com/search?q="
	// DefaultZoom is the initial zoom factor.
	DefaultZoom = 1.0
	// MinZoom is the smallest accepted zoom factor.
	MinZoom = 0.25
	// MaxZoom is the largest accepted zoom factor.
	MaxZoom = 5.0
	// DefaultTitlePollInterval is the title fallback poll period.
	DefaultTitlePollInterval = 100 * time.Millisecond
	// DefaultTitlePollMaxAttempts caps the fallback poll.
	DefaultTitlePollMaxAttempts = 50
	// DefaultHistoryMaxEntries caps the history log.
	DefaultHistoryMaxEntries = 1000
	// DefaultDownloadsMaxRecords caps the download collection.
	DefaultDownloadsMaxRecords = 100
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".netbrowser", "state")
	}
	if strings.TrimSpace(cfg.SearchEngine) == "" {
		cfg.SearchEngine = DefaultSearchEngine
	}
	if err := ValidateSearchEngine(cfg.SearchEngine); err != nil {
		return ServiceConfig{}, err
	}
	if strings.TrimSpace(cfg.Homepage) == "" {
		cfg.Homepage = NewTabURL
	}
	if cfg.Zoom == 0 {
		cfg.Zoom = DefaultZoom
	}
	if err := ValidateZoom(cfg.Zoom); err != nil {
		return ServiceConfig{}, err
	}
	if cfg.TitlePollInterval <= 0 {
		cfg.TitlePollInterval = DefaultTitlePollInterval
	}
	if cfg.TitlePollMaxAttempts <= 0 {
		cfg.TitlePollMaxAttempts = DefaultTitlePollMaxAttempts
	}
	if cfg.HistoryMaxEntries <= 0 {
		cfg.HistoryMaxEntries = DefaultHistoryMaxEntries
	}
	if cfg.DownloadsMaxRecords <= 0 {
		cfg.DownloadsMaxRecords = DefaultDownloadsMaxRecords
	}
	return cfg, nil
}

// ValidateSearchEngine requires an absolute http(s) URL prefix.
func ValidateSearchEngine(prefix string) error {
	parsed, err := url.Parse(strings.TrimSpace(prefix))
	if err != nil {
		return fmt.Errorf("%w: search engine: %v", ErrInvalidConfig, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: search engine must be an http(s) url", ErrInvalidConfig)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: search engine host is required", ErrInvalidConfig)
	}
	return nil
}

// ValidateZoom requires MinZoom <= zoom <= MaxZoom.
func ValidateZoom(zoom float64) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return fmt.Errorf("%w: zoom %.2f outside [%.2f, %.2f]", ErrInvalidConfig, zoom, MinZoom, MaxZoom)
	}
	return nil
}
