package schema

// ViewEventType identifies an event emitted by a content view.
type ViewEventType string

const (
	// ViewLoadStart fires when the view starts loading.
	ViewLoadStart ViewEventType = "load-start"
	// ViewLoadStop fires when the view stops loading (top-level or in-page).
	ViewLoadStop ViewEventType = "load-stop"
	// ViewNavigate fires on a top-level navigation commit.
	ViewNavigate ViewEventType = "navigate"
	// ViewNavigateInPage fires on same-document navigation.
	ViewNavigateInPage ViewEventType = "navigate-in-page"
	// ViewTitleUpdated fires when the engine reports a title change.
	ViewTitleUpdated ViewEventType = "title-updated"
	// ViewFaviconUpdated fires when the page favicon list changes.
	ViewFaviconUpdated ViewEventType = "favicon-updated"
	// ViewLoadFailure fires when a load fails inside the engine.
	ViewLoadFailure ViewEventType = "load-failure"
	// ViewHTTPResponse fires with response details for any resource.
	ViewHTTPResponse ViewEventType = "http-response"
	// ViewDOMReady fires when the document is parsed.
	ViewDOMReady ViewEventType = "dom-ready"
	// ViewFindResult fires with find-in-page match counts.
	ViewFindResult ViewEventType = "find-result"
)

// ViewEvent is a single event from a content view. Only the fields that
// belong to Type are populated.
type ViewEvent struct {
	Type   ViewEventType
	ViewID ViewID

	// navigate, navigate-in-page, load-failure, http-response
	URL string
	// http-response: the URL before redirects
	OriginalURL string
	// title-updated
	Title string
	// favicon-updated
	Favicons []string

	// load-failure
	ErrorCode        int
	ErrorDescription string

	// http-response
	StatusCode   int
	StatusText   string
	ResourceType string
	MainFrame    bool

	// find-result
	ActiveMatchOrdinal int
	TotalMatches       int
	FinalUpdate        bool
}

// DownloadStarted is reported by the host when a download begins.
type DownloadStarted struct {
	Filename      string
	Path          string
	URL           string
	TotalBytes    int64
	ReceivedBytes int64
}

// DownloadUpdate is reported by the host while a download is in flight.
type DownloadUpdate struct {
	State         DownloadState
	TotalBytes    int64
	ReceivedBytes int64
	Paused        bool
}

// DownloadDone is reported by the host once, when a download finishes.
type DownloadDone struct {
	State         DownloadState
	Path          string
	TotalBytes    int64
	ReceivedBytes int64
}
