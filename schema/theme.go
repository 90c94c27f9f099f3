package schema

import "strings"

// ThemeName identifies the UI theme.
type ThemeName string

const (
	// ThemeLight is the default theme.
	ThemeLight ThemeName = "light"
	// ThemeDark is the dark theme.
	ThemeDark ThemeName = "dark"
)

// DefaultTheme is the default UI theme name.
const DefaultTheme = ThemeLight

// LayoutMode selects where the session strip is drawn.
type LayoutMode string

const (
	// LayoutSidebar draws sessions in a vertical sidebar.
	LayoutSidebar LayoutMode = "sidebar"
	// LayoutTop draws sessions in a horizontal strip.
	LayoutTop LayoutMode = "top"
)

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	return []ThemeName{ThemeLight, ThemeDark}
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light", "day":
		return ThemeLight, true
	case "dark", "night":
		return ThemeDark, true
	default:
		return "", false
	}
}

// Toggle flips between light and dark.
func (t ThemeName) Toggle() ThemeName {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// NormalizeLayoutMode returns a canonical layout mode if supported.
func NormalizeLayoutMode(mode string) (LayoutMode, bool) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "sidebar", "side":
		return LayoutSidebar, true
	case "top", "tabs":
		return LayoutTop, true
	default:
		return "", false
	}
}
