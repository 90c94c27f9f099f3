package schema

import "strings"

// InternalScheme is the reserved scheme for built-in pages.
const InternalScheme = "browser"

const (
	// NewTabURL is the blank-session sentinel.
	NewTabURL = "browser://newtab"
	// SettingsURL selects the settings page.
	SettingsURL = "browser://settings"
	// HistoryURL selects the history page.
	HistoryURL = "browser://history"
	// DownloadsURL selects the downloads page.
	DownloadsURL = "browser://downloads"
)

// DefaultSessionTitle is the title of a fresh session.
const DefaultSessionTitle = "New Tab"

// DestinationKind tags what a session URL renders.
type DestinationKind string

const (
	// DestinationNewTab renders the new-tab page.
	DestinationNewTab DestinationKind = "newtab"
	// DestinationSettings renders settings.
	DestinationSettings DestinationKind = "settings"
	// DestinationHistory renders history.
	DestinationHistory DestinationKind = "history"
	// DestinationDownloads renders downloads.
	DestinationDownloads DestinationKind = "downloads"
	// DestinationNotFound renders the unknown internal page notice.
	DestinationNotFound DestinationKind = "notfound"
	// DestinationExternal renders engine content.
	DestinationExternal DestinationKind = "external"
)

// Destination is a URL resolved once into what it displays.
type Destination struct {
	Kind DestinationKind `json:"kind"`
	URL  string          `json:"url"`
}

// ParseDestination classifies a session URL. An empty URL is treated as
// the new-tab page.
func ParseDestination(rawURL string) Destination {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Destination{Kind: DestinationNewTab, URL: NewTabURL}
	}
	if !IsInternalURL(trimmed) {
		return Destination{Kind: DestinationExternal, URL: trimmed}
	}
	rest := trimmed[len(InternalScheme)+1:]
	rest = strings.TrimPrefix(rest, "//")
	rest = strings.TrimSuffix(strings.ToLower(rest), "/")
	switch rest {
	case "newtab":
		return Destination{Kind: DestinationNewTab, URL: trimmed}
	case "settings":
		return Destination{Kind: DestinationSettings, URL: trimmed}
	case "history":
		return Destination{Kind: DestinationHistory, URL: trimmed}
	case "downloads":
		return Destination{Kind: DestinationDownloads, URL: trimmed}
	default:
		return Destination{Kind: DestinationNotFound, URL: trimmed}
	}
}

// Internal reports whether the destination is a built-in page.
func (d Destination) Internal() bool {
	return d.Kind != DestinationExternal
}

// Title returns the fixed title of a built-in page, or "" for external
// content.
func (d Destination) Title() string {
	switch d.Kind {
	case DestinationNewTab:
		return DefaultSessionTitle
	case DestinationSettings:
		return "Settings"
	case DestinationHistory:
		return "History"
	case DestinationDownloads:
		return "Downloads"
	case DestinationNotFound:
		return "Page Not Found"
	default:
		return ""
	}
}

// IsInternalURL reports whether u uses the reserved scheme.
func IsInternalURL(u string) bool {
	trimmed := strings.TrimSpace(u)
	if len(trimmed) <= len(InternalScheme) {
		return false
	}
	return strings.EqualFold(trimmed[:len(InternalScheme)+1], InternalScheme+":")
}

// IsBlankURL reports whether u is the new-tab sentinel or empty.
func IsBlankURL(u string) bool {
	return u == "" || u == NewTabURL
}
