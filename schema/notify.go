package schema

// SessionEventType describes session lifecycle or state changes.
type SessionEventType string

const (
	// SessionEventCreated indicates a session was created.
	SessionEventCreated SessionEventType = "created"
	// SessionEventClosed indicates a session was closed.
	SessionEventClosed SessionEventType = "closed"
	// SessionEventActivated indicates a session became active.
	SessionEventActivated SessionEventType = "activated"
	// SessionEventUpdated indicates session fields changed.
	SessionEventUpdated SessionEventType = "updated"
	// SessionEventReordered indicates the pinned partition changed order.
	SessionEventReordered SessionEventType = "reordered"
)

// SessionEvent notifies renderers about session changes. Sessions holds the
// full ordered list after the change.
type SessionEvent struct {
	Type          SessionEventType
	Session       Session
	ActiveSession SessionID
	Sessions      []Session
}

// PageStateEvent notifies renderers about error or find overlay changes.
type PageStateEvent struct {
	State PageState
}

// DownloadsEvent carries the entire current download collection.
type DownloadsEvent struct {
	Records []DownloadRecord
}
