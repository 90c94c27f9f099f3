// Package userhome prepares the on-disk browser profile.
package userhome

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// ProfileData supplies values for rendering the seeded preferences.
type ProfileData struct {
	DownloadDir string
	DoNotTrack  bool
}

const defaultPreferencesTemplate = `{
  "browser": {
    "check_default_browser": false
  },
  "download": {
    "default_directory": {{ json .DownloadDir }},
    "directory_upgrade": true,
    "prompt_for_download": false
  },
  "enable_do_not_track": {{ .DoNotTrack }}
}
`

// PreferencesPath returns the engine preferences file inside a profile.
func PreferencesPath(profileDir string) string {
	return filepath.Join(profileDir, "Default", "Preferences")
}

// EnsureProfile creates the profile directory and seeds default engine
// preferences on first use. Existing preferences are left untouched.
func EnsureProfile(profileDir string, data ProfileData) (string, error) {
	if strings.TrimSpace(profileDir) == "" {
		return "", errors.New("profile directory is required")
	}
	if err := ensureDir(profileDir, 0o700); err != nil {
		return "", fmt.Errorf("profile %q: %w", profileDir, err)
	}
	target := PreferencesPath(profileDir)
	if _, err := os.Stat(target); err == nil {
		return profileDir, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	rendered, err := renderTemplate("Preferences", []byte(defaultPreferencesTemplate), data)
	if err != nil {
		return "", err
	}
	if err := ensureDir(filepath.Dir(target), 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, rendered, 0o600); err != nil {
		return "", err
	}
	return profileDir, nil
}

func renderTemplate(name string, raw []byte, data ProfileData) ([]byte, error) {
	funcs := template.FuncMap{
		"json": func(v any) (string, error) {
			out, err := json.Marshal(v)
			return string(out), err
		},
	}
	tpl, err := template.New(filepath.Base(name)).Funcs(funcs).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return []byte(buf.String()), nil
}

func ensureDir(path string, mode fs.FileMode) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	if err := os.MkdirAll(path, mode); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
