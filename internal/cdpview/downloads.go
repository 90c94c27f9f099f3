package cdpview

import (
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/browser"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/internal/logx"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

type pendingDownload struct {
	id   schema.DownloadID
	path string
}

// downloadBridge maps browser download GUIDs onto tracker ids and forwards
// progress. Events for a GUID it never saw begin are ignored.
type downloadBridge struct {
	log pslog.Logger

	mu       sync.Mutex
	listener core.DownloadListener
	dir      string
	pending  map[string]pendingDownload
}

func newDownloadBridge(dir string, logger pslog.Logger) *downloadBridge {
	return &downloadBridge{
		log:     logger,
		dir:     dir,
		pending: make(map[string]pendingDownload),
	}
}

func (b *downloadBridge) setListener(listener core.DownloadListener) {
	b.mu.Lock()
	b.listener = listener
	b.mu.Unlock()
}

func (b *downloadBridge) setDir(dir string) {
	b.mu.Lock()
	b.dir = dir
	b.mu.Unlock()
}

func (b *downloadBridge) handle(raw any) {
	switch ev := raw.(type) {
	case *browser.EventDownloadWillBegin:
		b.begin(ev)
	case *browser.EventDownloadProgress:
		b.progress(ev)
	}
}

func (b *downloadBridge) begin(ev *browser.EventDownloadWillBegin) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		b.log.Debug("download ignored without listener", "url", ev.URL)
		return
	}
	path := ""
	if b.dir != "" && ev.SuggestedFilename != "" {
		path = filepath.Join(b.dir, ev.SuggestedFilename)
	}
	id := b.listener.Start(schema.DownloadStarted{
		Filename: ev.SuggestedFilename,
		Path:     path,
		URL:      ev.URL,
	})
	b.pending[ev.GUID] = pendingDownload{id: id, path: path}
}

func (b *downloadBridge) progress(ev *browser.EventDownloadProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dl, ok := b.pending[ev.GUID]
	if !ok || b.listener == nil {
		return
	}
	log := logx.WithDownload(b.log, dl.id)
	total, received := int64(ev.TotalBytes), int64(ev.ReceivedBytes)
	var err error
	switch ev.State {
	case browser.DownloadProgressStateInProgress:
		err = b.listener.Update(dl.id, schema.DownloadUpdate{
			State:         schema.DownloadProgressing,
			TotalBytes:    total,
			ReceivedBytes: received,
		})
	case browser.DownloadProgressStateCompleted:
		delete(b.pending, ev.GUID)
		path := ev.FilePath
		if path == "" {
			path = dl.path
		}
		err = b.listener.Done(dl.id, schema.DownloadDone{
			State:         schema.DownloadCompleted,
			Path:          path,
			TotalBytes:    total,
			ReceivedBytes: received,
		})
	case browser.DownloadProgressStateCanceled:
		delete(b.pending, ev.GUID)
		err = b.listener.Done(dl.id, schema.DownloadDone{
			State:         schema.DownloadCancelled,
			TotalBytes:    total,
			ReceivedBytes: received,
		})
	default:
		log.Debug("download state unknown", "state", ev.State)
		return
	}
	if err != nil {
		log.Warn("download event rejected", "state", ev.State, "err", err)
	}
}

// interruptAll fails every download still in flight, used when the browser
// goes away underneath them.
func (b *downloadBridge) interruptAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for guid, dl := range b.pending {
		delete(b.pending, guid)
		if b.listener == nil {
			continue
		}
		if err := b.listener.Update(dl.id, schema.DownloadUpdate{State: schema.DownloadInterrupted}); err != nil {
			logx.WithDownload(b.log, dl.id).Debug("download interrupt rejected", "err", err)
		}
	}
}
