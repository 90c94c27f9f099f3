package schema

import "time"

// HistoryEntry is a visited page.
type HistoryEntry struct {
	ID        HistoryID `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Favicon   string    `json:"favicon,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bookmark is a saved page, unique by URL.
type Bookmark struct {
	ID      BookmarkID `json:"id"`
	Title   string     `json:"title"`
	URL     string     `json:"url"`
	Favicon string     `json:"favicon,omitempty"`
}

// DownloadState is the lifecycle state of a download.
type DownloadState string

const (
	// DownloadProgressing indicates bytes are still arriving.
	DownloadProgressing DownloadState = "progressing"
	// DownloadCompleted indicates the file was saved.
	DownloadCompleted DownloadState = "completed"
	// DownloadCancelled indicates the transfer was cancelled.
	DownloadCancelled DownloadState = "cancelled"
	// DownloadInterrupted indicates the transfer failed.
	DownloadInterrupted DownloadState = "interrupted"
)

// Terminal reports whether no further transitions are accepted.
func (s DownloadState) Terminal() bool {
	switch s {
	case DownloadCompleted, DownloadCancelled, DownloadInterrupted:
		return true
	default:
		return false
	}
}

// DownloadRecord tracks one download.
type DownloadRecord struct {
	ID            DownloadID    `json:"id"`
	Filename      string        `json:"filename"`
	Path          string        `json:"path,omitempty"`
	URL           string        `json:"url,omitempty"`
	TotalBytes    int64         `json:"total_bytes"`
	ReceivedBytes int64         `json:"received_bytes"`
	State         DownloadState `json:"state"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
}
