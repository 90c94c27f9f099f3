package core

import (
	"time"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// ShellDeps captures optional dependencies for the core shell.
type ShellDeps struct {
	Views     ViewFactory
	Host      Host
	Store     Store
	EventSink EventSink
	Logger    pslog.Logger
	// BlockingScript is injected on DOM ready when content blocking is on.
	BlockingScript string
	Now            func() time.Time
	NewDownloadID  func() schema.DownloadID
}
