package core

import "pkt.systems/netbrowser/schema"

// EventSink receives session, page and download events from the core shell.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
	OnPageState(event schema.PageStateEvent)
	OnDownloads(event schema.DownloadsEvent)
}
