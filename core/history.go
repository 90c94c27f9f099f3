package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

const defaultHistoryMax = schema.DefaultHistoryMaxEntries

// History is the visited-page log, newest first, capped at max entries.
type History struct {
	mu      sync.Mutex
	entries []schema.HistoryEntry
	max     int
	store   Store
	log     pslog.Logger
	now     func() time.Time
}

// HistoryGroup is a run of entries sharing a day label.
type HistoryGroup struct {
	Label   string
	Entries []schema.HistoryEntry
}

func newHistory(max int, store Store, logger pslog.Logger, now func() time.Time) *History {
	if max <= 0 {
		max = defaultHistoryMax
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if now == nil {
		now = time.Now
	}
	h := &History{max: max, store: store, log: logger, now: now}
	h.load()
	return h
}

func (h *History) load() {
	if h.store == nil {
		return
	}
	var entries []schema.HistoryEntry
	ok, err := h.store.Load(schema.CollectionHistory, &entries)
	if err != nil {
		h.log.Warn("history load failed", "err", err)
		return
	}
	if !ok {
		return
	}
	if len(entries) > h.max {
		entries = entries[:h.max]
	}
	h.entries = entries
	h.log.Debug("history loaded", "entries", len(entries))
}

// Add records a visit. Internal pages and a repeat of the most recent URL
// are ignored. The title defaults to the URL.
func (h *History) Add(title, url, favicon string) bool {
	if strings.TrimSpace(url) == "" || schema.IsInternalURL(url) {
		return false
	}
	if title == "" {
		title = url
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) > 0 && h.entries[0].URL == url {
		return false
	}
	now := h.now()
	entry := schema.HistoryEntry{
		ID:        schema.HistoryID(newTimedID(now)),
		Title:     title,
		URL:       url,
		Favicon:   favicon,
		Timestamp: now,
	}
	h.entries = append([]schema.HistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.max {
		h.entries = h.entries[:h.max]
	}
	h.persistLocked()
	return true
}

// Entries returns the log, newest first.
func (h *History) Entries() []schema.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Delete removes one entry. Unknown ids are a no-op.
func (h *History) Delete(id schema.HistoryID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := -1
	for i, entry := range h.entries {
		if entry.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	h.entries = append(h.entries[:idx], h.entries[idx+1:]...)
	h.persistLocked()
	return true
}

// Clear drops every entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	if h.store == nil {
		return
	}
	if err := h.store.Clear(schema.CollectionHistory); err != nil {
		h.log.Warn("history clear failed", "err", err)
	}
}

// Search returns entries whose title or URL contains term, ignoring case.
func (h *History) Search(term string) []schema.HistoryEntry {
	needle := strings.ToLower(strings.TrimSpace(term))
	entries := h.Entries()
	if needle == "" {
		return entries
	}
	out := entries[:0]
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Title), needle) || strings.Contains(strings.ToLower(entry.URL), needle) {
			out = append(out, entry)
		}
	}
	return out
}

// Group buckets the current log relative to now.
func (h *History) Group(now time.Time) []HistoryGroup {
	return GroupHistory(h.Entries(), now)
}

// GroupHistory buckets newest-first entries under "Today", "Yesterday" or
// their date, relative to now.
func GroupHistory(entries []schema.HistoryEntry, now time.Time) []HistoryGroup {
	var groups []HistoryGroup
	today := truncateDay(now)
	yesterday := today.AddDate(0, 0, -1)
	for _, entry := range entries {
		day := truncateDay(entry.Timestamp.In(now.Location()))
		label := day.Format("Monday, January 2, 2006")
		switch {
		case day.Equal(today):
			label = "Today"
		case day.Equal(yesterday):
			label = "Yesterday"
		}
		if len(groups) == 0 || groups[len(groups)-1].Label != label {
			groups = append(groups, HistoryGroup{Label: label})
		}
		last := &groups[len(groups)-1]
		last.Entries = append(last.Entries, entry)
	}
	return groups
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (h *History) snapshotLocked() []schema.HistoryEntry {
	return append([]schema.HistoryEntry(nil), h.entries...)
}

// persistLocked saves while h.mu is held so concurrent visits reach the
// store in the order they were applied.
func (h *History) persistLocked() {
	if h.store == nil {
		return
	}
	if err := h.store.Save(schema.CollectionHistory, h.entries); err != nil {
		h.log.Warn("history persist failed", "err", err)
		return
	}
	h.log.Trace("history persisted", "entries", len(h.entries))
}
