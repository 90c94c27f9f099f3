package core

import "pkt.systems/netbrowser/schema"

// session tracks the state of a single browsing tab.
type session struct {
	ID      schema.SessionID
	Title   string
	URL     string
	Pinned  bool
	Loading bool
	Favicon string
}

// Snapshot returns a renderer-friendly view of the session.
func (s *session) Snapshot(active bool) schema.Session {
	return schema.Session{
		ID:        s.ID,
		Title:     s.Title,
		URL:       s.URL,
		IsPinned:  s.Pinned,
		IsLoading: s.Loading,
		Favicon:   s.Favicon,
		Active:    active,
	}
}

// apply merges a patch and reports whether anything changed.
func (s *session) apply(patch schema.SessionPatch) bool {
	changed := false
	if patch.Title != "" && patch.Title != s.Title {
		s.Title = patch.Title
		changed = true
	}
	if patch.URL != "" && patch.URL != s.URL {
		s.URL = patch.URL
		changed = true
	}
	if patch.Loading != nil && *patch.Loading != s.Loading {
		s.Loading = *patch.Loading
		changed = true
	}
	if patch.Favicon != nil && *patch.Favicon != s.Favicon {
		s.Favicon = *patch.Favicon
		changed = true
	}
	return changed
}
