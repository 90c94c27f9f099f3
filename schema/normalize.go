package schema

import (
	"net/url"
	"strings"
)

// NormalizeSessionURL reduces a URL for singleton matching to its host
// without a leading "www." plus its path without a trailing slash. Scheme,
// port, query and fragment do not take part. Input without a host keeps
// the plain string form with only scheme, "www." and trailing slash
// removed. The result is idempotent.
func NormalizeSessionURL(raw string) string {
	u := strings.TrimSpace(raw)
	if parsed, err := url.Parse(u); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		u = strings.ToLower(parsed.Hostname()) + parsed.EscapedPath()
	}
	return stripSessionURLs(u)
}

func stripSessionURLs(u string) string {
	for {
		next := stripSessionURL(u)
		if next == u {
			return u
		}
		u = next
	}
}

func stripSessionURL(u string) string {
	if idx := strings.Index(u, "://"); idx > 0 && isScheme(u[:idx]) {
		u = u[idx+3:]
	}
	if len(u) >= 4 && strings.EqualFold(u[:4], "www.") {
		u = u[4:]
	}
	return strings.TrimSuffix(u, "/")
}

// IsScheme reports whether s is a syntactically valid URL scheme.
func IsScheme(s string) bool {
	return isScheme(s)
}

func isScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
