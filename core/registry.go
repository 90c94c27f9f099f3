package core

import (
	"context"
	"slices"
	"sync"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// Registry owns the ordered session list and the active pointer. Pinned
// sessions always precede unpinned ones. Every mutation is applied under
// one lock and announced after it is released.
type Registry struct {
	mu       sync.Mutex
	sessions []*session
	active   schema.SessionID
	sink     EventSink
	log      pslog.Logger
}

// CloseResult reports the outcome of Close.
type CloseResult struct {
	Closed bool
	// Replacement is set when closing the last session synthesized a
	// default session.
	Replacement schema.SessionID
	Active      schema.SessionID
}

// NewRegistry constructs an empty registry.
func NewRegistry(sink EventSink, logger pslog.Logger) *Registry {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Registry{sink: sink, log: logger}
}

// Create appends a session, activates it and returns its id.
func (r *Registry) Create(url, title string, pinned bool) schema.SessionID {
	s := newDefaultSession()
	if url != "" {
		s.URL = url
	}
	if title != "" {
		s.Title = title
	}
	s.Pinned = pinned

	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	if pinned {
		r.partitionLocked()
	}
	r.active = s.ID
	event := r.eventLocked(schema.SessionEventCreated, s)
	r.mu.Unlock()

	r.emit(event)
	r.log.Debug("registry session created", "session", s.ID, "pinned", pinned)
	return s.ID
}

// Close removes a session. Unknown ids are a no-op. Closing the last
// session leaves exactly one fresh default session behind.
func (r *Registry) Close(id schema.SessionID) CloseResult {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return CloseResult{}
	}
	removed := r.sessions[idx]
	var replacement *session
	if len(r.sessions) == 1 {
		replacement = newDefaultSession()
		r.sessions = append(r.sessions, replacement)
	}
	r.sessions = slices.Delete(r.sessions, idx, idx+1)
	switch {
	case replacement != nil:
		r.active = replacement.ID
	case r.active == id:
		next := max(0, idx-1)
		if next >= len(r.sessions) {
			next = 0
		}
		r.active = r.sessions[next].ID
	}
	events := []schema.SessionEvent{r.eventLocked(schema.SessionEventClosed, removed)}
	result := CloseResult{Closed: true, Active: r.active}
	if replacement != nil {
		result.Replacement = replacement.ID
		events = append(events, r.eventLocked(schema.SessionEventCreated, replacement))
	}
	r.mu.Unlock()

	for _, event := range events {
		r.emit(event)
	}
	r.log.Debug("registry session closed", "session", id, "active", result.Active)
	return result
}

// TogglePin flips the pin flag and re-partitions the list.
func (r *Registry) TogglePin(id schema.SessionID) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	s := r.sessions[idx]
	s.Pinned = !s.Pinned
	r.partitionLocked()
	event := r.eventLocked(schema.SessionEventReordered, s)
	r.mu.Unlock()

	r.emit(event)
	r.log.Debug("registry session pin toggled", "session", id, "pinned", event.Session.IsPinned)
	return true
}

// SetActive activates a session. Unknown ids are a no-op.
func (r *Registry) SetActive(id schema.SessionID) bool {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	if r.active == id {
		r.mu.Unlock()
		return true
	}
	r.active = id
	event := r.eventLocked(schema.SessionEventActivated, r.sessions[idx])
	r.mu.Unlock()

	r.emit(event)
	return true
}

// Update merges patch into the session. Empty Title and URL keep their
// previous value. An update that changes nothing emits nothing.
func (r *Registry) Update(id schema.SessionID, patch schema.SessionPatch) (schema.Session, bool) {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return schema.Session{}, false
	}
	s := r.sessions[idx]
	if !s.apply(patch) {
		snap := s.Snapshot(r.active == id)
		r.mu.Unlock()
		return snap, true
	}
	event := r.eventLocked(schema.SessionEventUpdated, s)
	r.mu.Unlock()

	r.emit(event)
	return event.Session, true
}

// Get returns a session snapshot.
func (r *Registry) Get(id schema.SessionID) (schema.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(id)
	if idx < 0 {
		return schema.Session{}, false
	}
	return r.sessions[idx].Snapshot(r.active == id), true
}

// Active returns the active session.
func (r *Registry) Active() (schema.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexLocked(r.active)
	if idx < 0 {
		return schema.Session{}, false
	}
	return r.sessions[idx].Snapshot(true), true
}

// At returns the session at a zero-based position in iteration order.
func (r *Registry) At(index int) (schema.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.sessions) {
		return schema.Session{}, false
	}
	s := r.sessions[index]
	return s.Snapshot(r.active == s.ID), true
}

// List returns every session in iteration order.
func (r *Registry) List() []schema.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) listLocked() []schema.Session {
	out := make([]schema.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot(r.active == s.ID))
	}
	return out
}

func (r *Registry) indexLocked(id schema.SessionID) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(r.sessions, func(s *session) bool { return s.ID == id })
}

// partitionLocked moves pinned sessions first, keeping relative order
// inside each partition.
func (r *Registry) partitionLocked() {
	slices.SortStableFunc(r.sessions, func(a, b *session) int {
		switch {
		case a.Pinned == b.Pinned:
			return 0
		case a.Pinned:
			return -1
		default:
			return 1
		}
	})
}

func (r *Registry) eventLocked(kind schema.SessionEventType, s *session) schema.SessionEvent {
	return schema.SessionEvent{
		Type:          kind,
		Session:       s.Snapshot(r.active == s.ID),
		ActiveSession: r.active,
		Sessions:      r.listLocked(),
	}
}

func (r *Registry) emit(event schema.SessionEvent) {
	if r.sink == nil {
		return
	}
	r.sink.OnSessionEvent(event)
}

func newDefaultSession() *session {
	return &session{
		ID:    schema.SessionID(newID()),
		Title: schema.DefaultSessionTitle,
		URL:   schema.NewTabURL,
	}
}
