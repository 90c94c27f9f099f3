package schema

// Session is a read-only view of session state for renderers.
type Session struct {
	ID        SessionID `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	IsPinned  bool      `json:"is_pinned"`
	IsLoading bool      `json:"is_loading"`
	Favicon   string    `json:"favicon,omitempty"`
	Active    bool      `json:"active"`
}

// SessionPatch carries a partial session update. Empty Title and URL keep
// the previous value; Loading and Favicon are applied verbatim when set.
type SessionPatch struct {
	Title   string
	URL     string
	Loading *bool
	Favicon *string
}

// FindState reports find-in-page progress for a session.
type FindState struct {
	Open               bool   `json:"open"`
	Query              string `json:"query,omitempty"`
	ActiveMatchOrdinal int    `json:"active_match_ordinal"`
	TotalMatches       int    `json:"total_matches"`
}

// PageState is the per-session display state that is not part of the
// session record itself.
type PageState struct {
	SessionID   SessionID   `json:"session_id"`
	Destination Destination `json:"destination"`
	Error       *PageError  `json:"error,omitempty"`
	Find        FindState   `json:"find"`
}

// Bool returns a pointer to v, for SessionPatch fields.
func Bool(v bool) *bool {
	return &v
}

// String returns a pointer to v, for SessionPatch fields.
func String(v string) *string {
	return &v
}
