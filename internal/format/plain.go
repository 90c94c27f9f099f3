package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/schema"
)

const (
	activeMarker = "*"
	pinMarker    = "^"
	loadMarker   = "~"
)

// PlainRenderer formats shell state as plain text lines.
type PlainRenderer struct {
	// Now is used to label history groups.
	Now func() time.Time
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{Now: time.Now}
}

// FormatSessionEvent renders the session strip after a change. Pure
// field updates of inactive sessions are dropped to keep output quiet.
func (p *PlainRenderer) FormatSessionEvent(event schema.SessionEvent) []string {
	if event.Type == schema.SessionEventUpdated && !event.Session.Active {
		return nil
	}
	if event.Type == schema.SessionEventUpdated {
		return []string{p.FormatSession(indexOf(event.Sessions, event.Session.ID), event.Session)}
	}
	return p.FormatSessions(event.Sessions)
}

// FormatSessions renders one line per session in display order.
func (p *PlainRenderer) FormatSessions(sessions []schema.Session) []string {
	lines := make([]string, 0, len(sessions))
	for i, sess := range sessions {
		lines = append(lines, p.FormatSession(i, sess))
	}
	return lines
}

// FormatSession renders a single session line with its 1-based position.
func (p *PlainRenderer) FormatSession(index int, sess schema.Session) string {
	marks := [3]string{" ", " ", " "}
	if sess.Active {
		marks[0] = activeMarker
	}
	if sess.IsPinned {
		marks[1] = pinMarker
	}
	if sess.IsLoading {
		marks[2] = loadMarker
	}
	title := strings.TrimSpace(sess.Title)
	if title == "" {
		title = sess.URL
	}
	line := fmt.Sprintf("%s%s%s %d. %s", marks[0], marks[1], marks[2], index+1, title)
	if title != sess.URL {
		line += " <" + sess.URL + ">"
	}
	return line
}

// FormatPageState renders the error view or find overlay of a session.
func (p *PlainRenderer) FormatPageState(state schema.PageState) []string {
	var lines []string
	if state.Error != nil {
		lines = append(lines, FormatPageError(*state.Error)...)
	}
	if state.Find.Open {
		lines = append(lines, FormatFind(state.Find))
	}
	return lines
}

// FormatPageError renders a page error as a heading, message and code.
func FormatPageError(err schema.PageError) []string {
	lines := []string{"error: " + err.Title(), "  " + err.Message()}
	if err.URL != "" {
		lines = append(lines, fmt.Sprintf("  %s (code %d)", err.URL, err.Code))
	} else {
		lines = append(lines, fmt.Sprintf("  code %d", err.Code))
	}
	return lines
}

// FormatFind renders find-in-page progress.
func FormatFind(find schema.FindState) string {
	if find.Query == "" {
		return "find: (empty)"
	}
	if find.TotalMatches == 0 {
		return fmt.Sprintf("find %q: no matches", find.Query)
	}
	return fmt.Sprintf("find %q: %d/%d", find.Query, find.ActiveMatchOrdinal, find.TotalMatches)
}

// FormatDownloads renders the download collection, newest first.
func (p *PlainRenderer) FormatDownloads(records []schema.DownloadRecord) []string {
	if len(records) == 0 {
		return []string{"no downloads"}
	}
	lines := make([]string, 0, len(records))
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("%d. %s [%s] %s  (%s)", i+1, record.Filename, record.State, downloadProgress(record), record.ID))
	}
	return lines
}

func downloadProgress(record schema.DownloadRecord) string {
	received := FormatBytes(record.ReceivedBytes)
	if record.TotalBytes <= 0 {
		return received
	}
	total := FormatBytes(record.TotalBytes)
	if record.State == schema.DownloadCompleted {
		return total
	}
	percent := record.ReceivedBytes * 100 / record.TotalBytes
	return fmt.Sprintf("%s / %s %d%%", received, total, percent)
}

// FormatHistory renders history grouped by day.
func (p *PlainRenderer) FormatHistory(entries []schema.HistoryEntry) []string {
	if len(entries) == 0 {
		return []string{"no history"}
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	var lines []string
	for _, group := range core.GroupHistory(entries, now()) {
		lines = append(lines, group.Label+":")
		for _, entry := range group.Entries {
			lines = append(lines, fmt.Sprintf("  %s %s <%s> (%s)", entry.Timestamp.Format("15:04"), entry.Title, entry.URL, entry.ID))
		}
	}
	return lines
}

// FormatBookmarks renders bookmarks in insertion order.
func (p *PlainRenderer) FormatBookmarks(items []schema.Bookmark) []string {
	if len(items) == 0 {
		return []string{"no bookmarks"}
	}
	lines := make([]string, 0, len(items))
	for i, item := range items {
		lines = append(lines, fmt.Sprintf("%d. %s <%s>", i+1, item.Title, item.URL))
	}
	return lines
}

// FormatAppInfo renders the about line.
func (p *PlainRenderer) FormatAppInfo(info schema.AppInfo) []string {
	lines := []string{fmt.Sprintf("%s %s", info.Name, info.Version)}
	if info.Author != "" {
		lines = append(lines, "by "+info.Author)
	}
	if info.EngineVersion != "" {
		lines = append(lines, "engine "+info.EngineVersion)
	}
	return lines
}

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with 1024-based units, e.g. "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	value := float64(n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return strconv.FormatInt(n, 10) + " Bytes"
	}
	text := strconv.FormatFloat(value, 'f', 2, 64)
	text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	return text + " " + byteUnits[unit]
}

func indexOf(sessions []schema.Session, id schema.SessionID) int {
	for i, sess := range sessions {
		if sess.ID == id {
			return i
		}
	}
	return 0
}
