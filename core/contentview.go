package core

import (
	"context"

	"pkt.systems/netbrowser/schema"
)

// FindOptions controls a find-in-page request.
type FindOptions struct {
	// FindNext continues the current search instead of starting a new one.
	FindNext bool
	Forward  bool
}

// ContentView is the rendering surface bound to one session. Events are
// delivered in order for this view; the channel closes when the view does.
type ContentView interface {
	ID() schema.ViewID
	Events() <-chan schema.ViewEvent
	Load(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error
	SetZoom(ctx context.Context, factor float64) error
	Find(ctx context.Context, text string, opts FindOptions) error
	ClearFind(ctx context.Context) error
	InjectScript(ctx context.Context, source string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Close() error
}

// ViewFactory creates content views.
type ViewFactory interface {
	NewView(ctx context.Context) (ContentView, error)
}

// Host is the privileged side that owns downloads, storage partitions and
// request-level privacy settings.
type Host interface {
	UpdateConfig(ctx context.Context, patch schema.HostConfigPatch) error
	SelectDownloadFolder(ctx context.Context) (string, error)
	ClearCache(ctx context.Context) error
	ClearCookies(ctx context.Context) error
	AppInfo(ctx context.Context) (schema.AppInfo, error)
	OpenPath(ctx context.Context, path string) error
	ShowInFolder(ctx context.Context, path string) error
}

// DownloadListener receives download lifecycle events from the host.
type DownloadListener interface {
	Start(event schema.DownloadStarted) schema.DownloadID
	Update(id schema.DownloadID, event schema.DownloadUpdate) error
	Done(id schema.DownloadID, event schema.DownloadDone) error
}

// Store persists collections. Load reports false for a collection that was
// never saved.
type Store interface {
	Load(collection schema.Collection, out any) (bool, error)
	Save(collection schema.Collection, value any) error
	Clear(collection schema.Collection) error
}
