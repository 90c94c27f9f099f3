package appconfig

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	v, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}
	return decode(v, configLoaded)
}

func newViper(path string) (*viper.Viper, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("author", cfg.Author)
	v.SetDefault("browser.exec_path", cfg.Browser.ExecPath)
	v.SetDefault("browser.remote_url", cfg.Browser.RemoteURL)
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.window_width", cfg.Browser.WindowWidth)
	v.SetDefault("browser.window_height", cfg.Browser.WindowHeight)
	v.SetDefault("browser.flags", cfg.Browser.Flags)
	v.SetDefault("navigation.search_engine", cfg.Navigation.SearchEngine)
	v.SetDefault("navigation.homepage", cfg.Navigation.Homepage)
	v.SetDefault("view.zoom", cfg.View.Zoom)
	v.SetDefault("view.title_poll_interval_ms", cfg.View.TitlePollIntervalMS)
	v.SetDefault("view.title_poll_max_attempts", cfg.View.TitlePollMaxAttempts)
	v.SetDefault("privacy.content_blocking", cfg.Privacy.ContentBlocking)
	v.SetDefault("privacy.do_not_track", cfg.Privacy.DoNotTrack)
	v.SetDefault("downloads.path", cfg.Downloads.Path)
	v.SetDefault("downloads.max_records", cfg.Downloads.MaxRecords)
	v.SetDefault("history.max_entries", cfg.History.MaxEntries)
	return v, nil
}

func decode(v *viper.Viper, configLoaded bool) (Config, error) {
	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := schema.ValidateSearchEngine(cfg.Navigation.SearchEngine); err != nil {
		return fmt.Errorf("navigation.search_engine: %w", err)
	}
	if err := schema.ValidateZoom(cfg.View.Zoom); err != nil {
		return fmt.Errorf("view.zoom: %w", err)
	}
	if cfg.View.TitlePollIntervalMS < 0 || cfg.View.TitlePollMaxAttempts < 0 {
		return fmt.Errorf("view.title_poll_* must not be negative: %w", schema.ErrInvalidConfig)
	}
	if cfg.Browser.WindowWidth < 0 || cfg.Browser.WindowHeight < 0 {
		return fmt.Errorf("browser.window_* must not be negative: %w", schema.ErrInvalidConfig)
	}
	remote := strings.TrimSpace(cfg.Browser.RemoteURL)
	if remote != "" {
		parsed, err := url.Parse(remote)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("browser.remote_url must include scheme and host (e.g. ws://127.0.0.1:9222): %w", schema.ErrInvalidConfig)
		}
		switch parsed.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return fmt.Errorf("browser.remote_url scheme %q is not supported: %w", parsed.Scheme, schema.ErrInvalidConfig)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Browser.ExecPath = expandEnv(cfg.Browser.ExecPath)
	cfg.Browser.UserDataDir = expandEnv(cfg.Browser.UserDataDir)
	cfg.Downloads.Path = expandEnv(cfg.Downloads.Path)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// Watch re-reads the config file whenever it changes and passes the changed
// host-owned values to apply. Invalid edits are logged and skipped. The
// file must exist.
func Watch(path string, logger pslog.Logger, apply func(schema.HostConfigPatch)) error {
	v, err := newViper(path)
	if err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	current, err := decode(v, true)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	log := logger.With("config", v.ConfigFileUsed())
	v.OnConfigChange(func(ev fsnotify.Event) {
		next, err := decode(v, true)
		if err != nil {
			log.Warn("config reload rejected", "op", ev.Op.String(), "err", err)
			return
		}
		patch := HostPatch(current, next)
		current = next
		if patch.Empty() {
			log.Debug("config reloaded", "op", ev.Op.String())
			return
		}
		log.Info("config reloaded", "op", ev.Op.String(), "host_patch", true)
		apply(patch)
	})
	v.WatchConfig()
	return nil
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
