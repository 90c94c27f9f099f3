package schema

// SessionID identifies a browsing session (tab).
type SessionID string

// ViewID identifies the content view bound to a session. For the Chrome
// backed host it is the CDP target id.
type ViewID string

// DownloadID identifies a download record.
type DownloadID string

// HistoryID identifies a history entry.
type HistoryID string

// BookmarkID identifies a bookmark.
type BookmarkID string

// Collection names a persisted collection.
type Collection string

const (
	// CollectionHistory stores history entries.
	CollectionHistory Collection = "history"
	// CollectionBookmarks stores bookmarks.
	CollectionBookmarks Collection = "bookmarks"
	// CollectionDownloads stores download records.
	CollectionDownloads Collection = "downloads"
	// CollectionPreferences stores scalar preferences.
	CollectionPreferences Collection = "preferences"
)

// Collections returns every persisted collection name.
func Collections() []Collection {
	return []Collection{CollectionHistory, CollectionBookmarks, CollectionDownloads, CollectionPreferences}
}
