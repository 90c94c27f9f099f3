package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pkt.systems/netbrowser/schema"
)

func historyURLs(entries []schema.HistoryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.URL)
	}
	return out
}

func TestHistoryAddNewestFirstAndDedupsRepeat(t *testing.T) {
	h := newHistory(0, nil, testLogger(), fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	if !h.Add("A", "https://a.example/", "") {
		t.Fatalf("expected first add")
	}
	if h.Add("A again", "https://a.example/", "") {
		t.Fatalf("expected repeat of newest url to be ignored")
	}
	h.Add("", "https://b.example/", "")
	h.Add("A", "https://a.example/", "")
	want := []string{"https://a.example/", "https://b.example/", "https://a.example/"}
	if diff := cmp.Diff(want, historyURLs(h.Entries())); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if got := h.Entries()[1].Title; got != "https://b.example/" {
		t.Fatalf("expected title to default to url, got %q", got)
	}
}

func TestHistoryIgnoresInternalAndEmpty(t *testing.T) {
	h := newHistory(0, nil, testLogger(), nil)
	for _, url := range []string{"", "  ", schema.NewTabURL, "BROWSER://settings"} {
		if h.Add("x", url, "") {
			t.Fatalf("expected %q to be ignored", url)
		}
	}
	if h.Len() != 0 {
		t.Fatalf("expected empty history")
	}
}

func TestHistoryCapsEntries(t *testing.T) {
	store := newMemStore()
	h := newHistory(schema.DefaultHistoryMaxEntries, store, testLogger(), fixedClock(time.Unix(0, 0)))
	for i := 0; i <= schema.DefaultHistoryMaxEntries; i++ {
		h.Add("", fmt.Sprintf("https://example.com/%d", i), "")
	}
	entries := h.Entries()
	if len(entries) != schema.DefaultHistoryMaxEntries {
		t.Fatalf("expected %d entries, got %d", schema.DefaultHistoryMaxEntries, len(entries))
	}
	if entries[0].URL != "https://example.com/1000" || entries[len(entries)-1].URL != "https://example.com/1" {
		t.Fatalf("expected oldest entry evicted, got first=%s last=%s", entries[0].URL, entries[len(entries)-1].URL)
	}
}

func TestHistoryPersistsAndRestores(t *testing.T) {
	store := newMemStore()
	h := newHistory(0, store, testLogger(), fixedClock(time.Unix(1700000000, 0)))
	h.Add("A", "https://a.example/", "https://a.example/favicon.ico")
	h.Add("B", "https://b.example/", "")

	restored := newHistory(0, store, testLogger(), nil)
	if diff := cmp.Diff(h.Entries(), restored.Entries()); diff != "" {
		t.Fatalf("restored mismatch (-want +got):\n%s", diff)
	}

	small := newHistory(1, store, testLogger(), nil)
	if small.Len() != 1 || small.Entries()[0].URL != "https://b.example/" {
		t.Fatalf("expected restore to honor the cap, got %+v", small.Entries())
	}
}

func TestHistoryDeleteAndClear(t *testing.T) {
	store := newMemStore()
	h := newHistory(0, store, testLogger(), fixedClock(time.Unix(0, 0)))
	h.Add("A", "https://a.example/", "")
	h.Add("B", "https://b.example/", "")
	target := h.Entries()[1].ID
	if !h.Delete(target) {
		t.Fatalf("expected delete to succeed")
	}
	if h.Delete(target) {
		t.Fatalf("expected second delete to be a no-op")
	}
	if diff := cmp.Diff([]string{"https://b.example/"}, historyURLs(h.Entries())); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("expected cleared history")
	}
	if ok, _ := store.Load(schema.CollectionHistory, &[]schema.HistoryEntry{}); ok {
		t.Fatalf("expected stored history to be removed")
	}
}

func TestHistoryConcurrentAddsPersistLatest(t *testing.T) {
	store := newGatedStore()
	h := newHistory(1000, store, testLogger(), fixedClock(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)))

	doneA := make(chan struct{})
	go func() {
		h.Add("A", "https://a.example", "")
		close(doneA)
	}()
	<-store.entered
	doneB := make(chan struct{})
	go func() {
		h.Add("B", "https://b.example", "")
		close(doneB)
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	<-doneA
	<-doneB

	var persisted []schema.HistoryEntry
	if ok, err := store.Load(schema.CollectionHistory, &persisted); !ok || err != nil {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(historyURLs(h.Entries()), historyURLs(persisted)); diff != "" {
		t.Fatalf("persisted history diverged from memory (-memory +persisted):\n%s", diff)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected both visits persisted, got %d", len(persisted))
	}
}

func TestHistorySearch(t *testing.T) {
	h := newHistory(0, nil, testLogger(), nil)
	h.Add("Go Packages", "https://pkg.go.dev/", "")
	h.Add("Example", "https://example.com/golang", "")
	h.Add("Other", "https://other.example/", "")

	got := historyURLs(h.Search("  GO "))
	want := []string{"https://example.com/golang", "https://pkg.go.dev/"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("search mismatch (-want +got):\n%s", diff)
	}
	if len(h.Search("")) != 3 {
		t.Fatalf("expected empty term to return everything")
	}
	if h.Len() != 3 {
		t.Fatalf("search must not modify the log")
	}
}

func TestGroupHistory(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	entry := func(url string, ts time.Time) schema.HistoryEntry {
		return schema.HistoryEntry{URL: url, Timestamp: ts}
	}
	entries := []schema.HistoryEntry{
		entry("a", now.Add(-time.Hour)),
		entry("b", time.Date(2026, 3, 4, 0, 5, 0, 0, time.UTC)),
		entry("c", time.Date(2026, 3, 3, 23, 59, 0, 0, time.UTC)),
		entry("d", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	groups := GroupHistory(entries, now)
	var labels []string
	var sizes []int
	for _, g := range groups {
		labels = append(labels, g.Label)
		sizes = append(sizes, len(g.Entries))
	}
	if diff := cmp.Diff([]string{"Today", "Yesterday", "Sunday, March 1, 2026"}, labels); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 1, 1}, sizes); diff != "" {
		t.Fatalf("sizes mismatch (-want +got):\n%s", diff)
	}
	if GroupHistory(nil, now) != nil {
		t.Fatalf("expected no groups for no entries")
	}
}
