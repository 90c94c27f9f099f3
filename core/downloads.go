package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pkt.systems/netbrowser/internal/logx"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// Tracker correlates host download events into a bounded, persisted
// collection, newest first. Every commit publishes the whole collection.
type Tracker struct {
	mu      sync.Mutex
	records []schema.DownloadRecord
	max     int
	store   Store
	sink    EventSink
	log     pslog.Logger
	now     func() time.Time
	newID   func() schema.DownloadID
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	MaxRecords int
	Store      Store
	Sink       EventSink
	Logger     pslog.Logger
	Now        func() time.Time
	NewID      func() schema.DownloadID
}

// NewTracker constructs a Tracker and restores persisted records.
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = schema.DefaultDownloadsMaxRecords
	}
	if opts.Logger == nil {
		opts.Logger = pslog.Ctx(context.Background())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newDownloadID
	}
	t := &Tracker{
		max:   opts.MaxRecords,
		store: opts.Store,
		sink:  opts.Sink,
		log:   opts.Logger,
		now:   opts.Now,
		newID: opts.NewID,
	}
	if t.store != nil {
		var records []schema.DownloadRecord
		if _, err := t.store.Load(schema.CollectionDownloads, &records); err != nil {
			t.log.Warn("downloads load failed", "err", err)
		} else {
			if len(records) > t.max {
				records = records[:t.max]
			}
			t.records = records
		}
	}
	return t
}

// Start records a new progressing download and returns its id.
func (t *Tracker) Start(event schema.DownloadStarted) schema.DownloadID {
	id := t.newID()
	record := schema.DownloadRecord{
		ID:            id,
		Filename:      event.Filename,
		Path:          event.Path,
		URL:           event.URL,
		TotalBytes:    event.TotalBytes,
		ReceivedBytes: event.ReceivedBytes,
		State:         schema.DownloadProgressing,
		StartTime:     t.now(),
	}
	t.mu.Lock()
	t.records = append([]schema.DownloadRecord{record}, t.records...)
	if len(t.records) > t.max {
		t.records = t.records[:t.max]
	}
	t.commitLocked()
	t.mu.Unlock()

	logx.WithDownload(t.log, id).Info("download started", "filename", event.Filename, "total_bytes", event.TotalBytes)
	return id
}

// Update applies an in-flight update. An interrupted state is terminal and
// commits immediately; progress on a paused transfer is ignored.
func (t *Tracker) Update(id schema.DownloadID, event schema.DownloadUpdate) error {
	log := logx.WithDownload(t.log, id)
	switch event.State {
	case schema.DownloadInterrupted:
	case schema.DownloadProgressing:
		if event.Paused {
			log.Trace("download paused")
			return nil
		}
	default:
		return fmt.Errorf("download update state %q: %w", event.State, schema.ErrInvalidDownloadState)
	}
	t.mu.Lock()
	record, err := t.recordLocked(id)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if record.State.Terminal() {
		t.mu.Unlock()
		return schema.ErrTerminalDownload
	}
	record.State = event.State
	record.TotalBytes = event.TotalBytes
	record.ReceivedBytes = event.ReceivedBytes
	if event.State.Terminal() {
		end := t.now()
		record.EndTime = &end
	}
	t.commitLocked()
	t.mu.Unlock()

	if event.State == schema.DownloadInterrupted {
		log.Warn("download interrupted", "received_bytes", event.ReceivedBytes)
	} else {
		log.Trace("download progress", "received_bytes", event.ReceivedBytes, "total_bytes", event.TotalBytes)
	}
	return nil
}

// Done applies the final state. Repeating it on a finished download
// leaves the record unchanged.
func (t *Tracker) Done(id schema.DownloadID, event schema.DownloadDone) error {
	log := logx.WithDownload(t.log, id)
	state := event.State
	if !state.Terminal() {
		log.Debug("download done with non-terminal state", "state", state)
		state = schema.DownloadInterrupted
	}
	t.mu.Lock()
	record, err := t.recordLocked(id)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if record.State.Terminal() {
		t.mu.Unlock()
		log.Debug("download already finished", "state", record.State)
		return nil
	}
	record.State = state
	record.TotalBytes = event.TotalBytes
	record.ReceivedBytes = event.ReceivedBytes
	if state == schema.DownloadCompleted && event.Path != "" {
		record.Path = event.Path
	}
	end := t.now()
	record.EndTime = &end
	path := record.Path
	t.commitLocked()
	t.mu.Unlock()

	log.Info("download finished", "state", state, "path", path)
	return nil
}

// Records returns the collection, newest first.
func (t *Tracker) Records() []schema.DownloadRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Get returns one record.
func (t *Tracker) Get(id schema.DownloadID) (schema.DownloadRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	record, err := t.recordLocked(id)
	if err != nil {
		return schema.DownloadRecord{}, false
	}
	return copyRecord(*record), true
}

// Clear drops every record; files on disk are untouched.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
	if t.store != nil {
		if err := t.store.Clear(schema.CollectionDownloads); err != nil {
			t.log.Warn("downloads clear failed", "err", err)
		}
	}
	t.publish(nil)
}

func (t *Tracker) recordLocked(id schema.DownloadID) (*schema.DownloadRecord, error) {
	for i := range t.records {
		if t.records[i].ID == id {
			return &t.records[i], nil
		}
	}
	return nil, schema.ErrDownloadNotFound
}

func (t *Tracker) snapshotLocked() []schema.DownloadRecord {
	out := make([]schema.DownloadRecord, len(t.records))
	for i, record := range t.records {
		out[i] = copyRecord(record)
	}
	return out
}

// commitLocked persists and publishes under the lock so subscribers see
// snapshots in commit order.
func (t *Tracker) commitLocked() {
	snapshot := t.snapshotLocked()
	if t.store != nil {
		if err := t.store.Save(schema.CollectionDownloads, snapshot); err != nil {
			t.log.Warn("downloads persist failed", "err", err)
		}
	}
	t.publish(snapshot)
}

func (t *Tracker) publish(snapshot []schema.DownloadRecord) {
	if t.sink == nil {
		return
	}
	t.sink.OnDownloads(schema.DownloadsEvent{Records: snapshot})
}

func copyRecord(record schema.DownloadRecord) schema.DownloadRecord {
	if record.EndTime != nil {
		end := *record.EndTime
		record.EndTime = &end
	}
	return record
}
