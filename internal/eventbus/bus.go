package eventbus

import (
	"context"
	"sync"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventSession carries session lifecycle and state updates.
	EventSession EventType = "session"
	// EventPage carries error and find overlay state for one session.
	EventPage EventType = "page"
	// EventDownloads carries the full download collection.
	EventDownloads EventType = "downloads"
)

// Event represents a UI-facing event emitted by the core shell.
type Event struct {
	Type      EventType
	Session   schema.SessionEvent
	Page      schema.PageStateEvent
	Downloads schema.DownloadsEvent
}

// Bus fans events out to subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			if b.log != nil {
				b.log.Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnSessionEvent publishes a session event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(Event{Type: EventSession, Session: event})
}

// OnPageState publishes a page state event.
func (b *Bus) OnPageState(event schema.PageStateEvent) {
	b.publish(Event{Type: EventPage, Page: event})
}

// OnDownloads publishes a downloads snapshot.
func (b *Bus) OnDownloads(event schema.DownloadsEvent) {
	b.publish(Event{Type: EventDownloads, Downloads: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return
	}
	dropped := 0
	coalesced := 0
	for sub := range b.subs {
		select {
		case sub <- event:
			continue
		default:
		}
		if event.Type == EventDownloads && replacePending(sub, event) {
			coalesced++
			continue
		}
		dropped++
	}
	if coalesced > 0 && b.log != nil {
		b.log.Trace("eventbus coalesced", "type", event.Type, "count", coalesced)
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}

// replacePending makes room in a full subscriber buffer for a downloads
// snapshot. Queued snapshots are superseded by it and removed; when none
// are queued the oldest event gives way. Callers hold b.mu, so the buffer
// only shrinks while it is rebuilt.
func replacePending(sub chan Event, event Event) bool {
	pending := make([]Event, 0, len(sub))
	for drained := false; !drained; {
		select {
		case ev := <-sub:
			pending = append(pending, ev)
		default:
			drained = true
		}
	}
	kept := pending[:0]
	for _, ev := range pending {
		if ev.Type != EventDownloads {
			kept = append(kept, ev)
		}
	}
	if len(kept) > 0 && len(kept) >= cap(sub) {
		kept = kept[1:]
	}
	kept = append(kept, event)
	for _, ev := range kept {
		select {
		case sub <- ev:
		default:
			return false
		}
	}
	return true
}
