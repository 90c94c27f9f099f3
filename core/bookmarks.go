package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// Bookmarks is the saved-page set, unique by URL, in insertion order.
type Bookmarks struct {
	mu    sync.Mutex
	items []schema.Bookmark
	store Store
	log   pslog.Logger
	now   func() time.Time
}

func newBookmarks(store Store, logger pslog.Logger, now func() time.Time) *Bookmarks {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if now == nil {
		now = time.Now
	}
	b := &Bookmarks{store: store, log: logger, now: now}
	if store != nil {
		var items []schema.Bookmark
		if _, err := store.Load(schema.CollectionBookmarks, &items); err != nil {
			logger.Warn("bookmarks load failed", "err", err)
		} else {
			b.items = items
		}
	}
	return b
}

// Add saves a bookmark. A URL that is already bookmarked is a no-op.
func (b *Bookmarks) Add(title, url, favicon string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(title, url, favicon)
}

// Remove deletes the bookmark for url. Unknown URLs are a no-op.
func (b *Bookmarks) Remove(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(url)
}

func (b *Bookmarks) addLocked(title, url, favicon string) bool {
	if url == "" || b.indexLocked(url) >= 0 {
		return false
	}
	if title == "" {
		title = url
	}
	b.items = append(b.items, schema.Bookmark{
		ID:      schema.BookmarkID(newTimedID(b.now())),
		Title:   title,
		URL:     url,
		Favicon: favicon,
	})
	b.persistLocked()
	return true
}

func (b *Bookmarks) removeLocked(url string) bool {
	idx := b.indexLocked(url)
	if idx < 0 {
		return false
	}
	b.items = append(b.items[:idx], b.items[idx+1:]...)
	b.persistLocked()
	return true
}

// IsBookmarked reports whether url is saved.
func (b *Bookmarks) IsBookmarked(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexLocked(url) >= 0
}

// Toggle bookmarks the session's page or removes an existing bookmark, and
// reports whether the page is bookmarked afterwards.
func (b *Bookmarks) Toggle(sess schema.Session) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.removeLocked(sess.URL) {
		return false
	}
	return b.addLocked(sess.Title, sess.URL, sess.Favicon)
}

// List returns bookmarks in insertion order.
func (b *Bookmarks) List() []schema.Bookmark {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]schema.Bookmark(nil), b.items...)
}

// Clear removes every bookmark.
func (b *Bookmarks) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	if b.store == nil {
		return
	}
	if err := b.store.Clear(schema.CollectionBookmarks); err != nil {
		b.log.Warn("bookmarks clear failed", "err", err)
	}
}

func (b *Bookmarks) indexLocked(url string) int {
	for i, item := range b.items {
		if item.URL == url {
			return i
		}
	}
	return -1
}

func (b *Bookmarks) persistLocked() {
	if b.store == nil {
		return
	}
	if err := b.store.Save(schema.CollectionBookmarks, b.items); err != nil {
		b.log.Warn("bookmarks persist failed", "err", err)
	}
}
