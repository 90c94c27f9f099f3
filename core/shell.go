package core

import (
	"context"
	"sync"

	"pkt.systems/netbrowser/internal/logx"
	"pkt.systems/netbrowser/internal/version"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// AppName is reported when the host cannot supply app info.
const AppName = "NetBrowser"

// Shell is the browsing engine: the session registry, one coordinator per
// content view, navigation policy, history, bookmarks, downloads and
// settings.
type Shell struct {
	cfg       schema.ServiceConfig
	registry  *Registry
	views     ViewFactory
	host      Host
	sink      EventSink
	log       pslog.Logger
	script    string
	history   *History
	bookmarks *Bookmarks
	downloads *Tracker
	settings  *Settings

	mu           sync.Mutex
	coordinators map[schema.SessionID]*Coordinator
}

// NewShell constructs the shell and restores persisted collections.
func NewShell(cfg schema.ServiceConfig, deps ShellDeps) (*Shell, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Shell{
		cfg:          cfg,
		registry:     NewRegistry(deps.EventSink, logger),
		views:        deps.Views,
		host:         deps.Host,
		sink:         deps.EventSink,
		log:          logger,
		script:       deps.BlockingScript,
		history:      newHistory(cfg.HistoryMaxEntries, deps.Store, logger, deps.Now),
		bookmarks:    newBookmarks(deps.Store, logger, deps.Now),
		coordinators: make(map[schema.SessionID]*Coordinator),
	}
	s.downloads = NewTracker(TrackerOptions{
		MaxRecords: cfg.DownloadsMaxRecords,
		Store:      deps.Store,
		Sink:       deps.EventSink,
		Logger:     logger,
		Now:        deps.Now,
		NewID:      deps.NewDownloadID,
	})
	s.settings = newSettings(schema.DefaultPreferences(cfg), deps.Store, deps.Host, logger)
	s.settings.onZoom = s.applyZoomAll
	return s, nil
}

// Start pushes the host-owned settings once and opens the first session.
func (s *Shell) Start(ctx context.Context) schema.SessionID {
	s.settings.Sync(ctx)
	id := s.openSession(ctx, schema.NewTabURL, "", false)
	s.log.Info("shell started", "session", id, "history", s.history.Len(), "downloads", len(s.downloads.Records()))
	return id
}

// Shutdown unbinds every coordinator and closes every view.
func (s *Shell) Shutdown() {
	s.mu.Lock()
	coords := make([]*Coordinator, 0, len(s.coordinators))
	for id, coord := range s.coordinators {
		coords = append(coords, coord)
		delete(s.coordinators, id)
	}
	s.mu.Unlock()
	for _, coord := range coords {
		s.teardown(coord)
	}
	s.log.Info("shell stopped", "views", len(coords))
}

// Registry returns the session registry.
func (s *Shell) Registry() *Registry { return s.registry }

// History returns the history log.
func (s *Shell) History() *History { return s.history }

// Bookmarks returns the bookmark set.
func (s *Shell) Bookmarks() *Bookmarks { return s.bookmarks }

// Downloads returns the download tracker; it is also the host's
// DownloadListener.
func (s *Shell) Downloads() *Tracker { return s.downloads }

// Settings returns the preference owner.
func (s *Shell) Settings() *Settings { return s.settings }

// Sessions returns every session in display order.
func (s *Shell) Sessions() []schema.Session {
	return s.registry.List()
}

// ActiveSession returns the active session.
func (s *Shell) ActiveSession() (schema.Session, bool) {
	return s.registry.Active()
}

// ActivateSession focuses a session. Unknown ids are a no-op.
func (s *Shell) ActivateSession(id schema.SessionID) bool {
	return s.registry.SetActive(id)
}

// TogglePin pins or unpins a session.
func (s *Shell) TogglePin(id schema.SessionID) bool {
	return s.registry.TogglePin(id)
}

// CloseSession closes a session and its view. Unknown ids are a no-op.
func (s *Shell) CloseSession(ctx context.Context, id schema.SessionID) {
	result := s.registry.Close(id)
	if !result.Closed {
		return
	}
	s.mu.Lock()
	coord := s.coordinators[id]
	delete(s.coordinators, id)
	s.mu.Unlock()
	s.teardown(coord)
	if result.Replacement != "" {
		s.attachView(ctx, result.Replacement)
	}
	logx.WithSession(ctx, id).Info("shell session closed", "active", result.Active)
}

// PageState returns the error and find overlay state of a session.
func (s *Shell) PageState(id schema.SessionID) (schema.PageState, bool) {
	if coord := s.coordinator(id); coord != nil {
		return coord.PageState(), true
	}
	sess, ok := s.registry.Get(id)
	if !ok {
		return schema.PageState{}, false
	}
	return schema.PageState{SessionID: id, Destination: schema.ParseDestination(sess.URL)}, true
}

// SetZoom persists the zoom factor and applies it to every view.
func (s *Shell) SetZoom(ctx context.Context, zoom float64) error {
	return s.settings.SetZoom(ctx, zoom)
}

// ToggleBookmark bookmarks the active page, or removes its bookmark.
func (s *Shell) ToggleBookmark() (bool, error) {
	sess, ok := s.registry.Active()
	if !ok {
		return false, schema.ErrSessionNotFound
	}
	if schema.IsBlankURL(sess.URL) {
		return false, nil
	}
	return s.bookmarks.Toggle(sess), nil
}

// ClearBrowsingData clears one kind of data. Host failures are logged and
// reported as false.
func (s *Shell) ClearBrowsingData(ctx context.Context, kind schema.BrowsingDataKind) bool {
	log := s.log.With("kind", kind)
	switch kind {
	case schema.BrowsingDataHistory:
		s.history.Clear()
	case schema.BrowsingDataBookmarks:
		s.bookmarks.Clear()
	case schema.BrowsingDataCache:
		if s.host == nil {
			log.Warn("shell clear failed", "err", schema.ErrHostUnavailable)
			return false
		}
		if err := s.host.ClearCache(ctx); err != nil {
			log.Warn("shell clear failed", "err", err)
			return false
		}
	case schema.BrowsingDataCookies:
		if s.host == nil {
			log.Warn("shell clear failed", "err", schema.ErrHostUnavailable)
			return false
		}
		if err := s.host.ClearCookies(ctx); err != nil {
			log.Warn("shell clear failed", "err", err)
			return false
		}
	default:
		log.Warn("shell clear unknown kind")
		return false
	}
	log.Info("shell browsing data cleared")
	return true
}

// AppInfo describes the application, falling back to local build info
// when the host cannot answer.
func (s *Shell) AppInfo(ctx context.Context) schema.AppInfo {
	fallback := schema.AppInfo{Name: AppName, Version: version.Current()}
	if s.host == nil {
		return fallback
	}
	info, err := s.host.AppInfo(ctx)
	if err != nil {
		s.log.Warn("shell app info failed", "err", err)
		return fallback
	}
	if info.Name == "" {
		info.Name = fallback.Name
	}
	if info.Version == "" {
		info.Version = fallback.Version
	}
	return info
}

// OpenDownload opens a completed download with the system handler.
func (s *Shell) OpenDownload(ctx context.Context, id schema.DownloadID) bool {
	return s.withCompletedDownload(ctx, id, "open", func(path string) error {
		return s.host.OpenPath(ctx, path)
	})
}

// ShowDownloadInFolder reveals a completed download in the file manager.
func (s *Shell) ShowDownloadInFolder(ctx context.Context, id schema.DownloadID) bool {
	return s.withCompletedDownload(ctx, id, "show", func(path string) error {
		return s.host.ShowInFolder(ctx, path)
	})
}

func (s *Shell) withCompletedDownload(ctx context.Context, id schema.DownloadID, action string, fn func(string) error) bool {
	log := logx.WithDownload(pslog.Ctx(ctx), id).With("action", action)
	record, ok := s.downloads.Get(id)
	if !ok || record.State != schema.DownloadCompleted || record.Path == "" {
		log.Debug("shell download not openable")
		return false
	}
	if s.host == nil {
		log.Warn("shell download action failed", "err", schema.ErrHostUnavailable)
		return false
	}
	if err := fn(record.Path); err != nil {
		log.Warn("shell download action failed", "err", err)
		return false
	}
	return true
}

func (s *Shell) openSession(ctx context.Context, url, title string, pinned bool) schema.SessionID {
	dest := schema.ParseDestination(url)
	if dest.Internal() {
		title = dest.Title()
	} else if title == "" {
		title = url
	}
	id := s.registry.Create(dest.URL, title, pinned)
	s.attachView(ctx, id)
	if !dest.Internal() {
		_ = s.load(ctx, id, url)
	}
	return id
}

func (s *Shell) attachView(ctx context.Context, id schema.SessionID) {
	log := logx.WithSession(ctx, id)
	if s.views == nil {
		log.Debug("shell view skipped", "reason", "no view factory")
		return
	}
	view, err := s.views.NewView(ctx)
	if err != nil {
		log.Warn("shell view create failed", "err", err)
		return
	}
	coord := NewCoordinator(id, view, s.registry, s.sink, s.log, CoordinatorOptions{
		Zoom:                 func() float64 { return s.settings.Preferences().Zoom },
		ContentBlocking:      func() bool { return s.settings.Preferences().ContentBlocking },
		BlockingScript:       s.script,
		TitlePollInterval:    s.cfg.TitlePollInterval,
		TitlePollMaxAttempts: s.cfg.TitlePollMaxAttempts,
		OnVisit:              s.recordVisit,
	})
	s.mu.Lock()
	s.coordinators[id] = coord
	s.mu.Unlock()
	coord.Bind(context.WithoutCancel(ctx))
	log.Debug("shell view attached", "view", view.ID())
}

func (s *Shell) teardown(coord *Coordinator) {
	if coord == nil {
		return
	}
	coord.Unbind()
	if err := coord.View().Close(); err != nil {
		s.log.Debug("shell view close failed", "session", coord.SessionID(), "err", err)
	}
}

func (s *Shell) coordinator(id schema.SessionID) *Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinators[id]
}

func (s *Shell) recordVisit(sess schema.Session) {
	if s.history.Add(sess.Title, sess.URL, sess.Favicon) {
		s.log.Trace("shell history recorded", "session", sess.ID, "url", sess.URL)
	}
}

func (s *Shell) applyZoomAll(ctx context.Context, zoom float64) {
	s.mu.Lock()
	coords := make([]*Coordinator, 0, len(s.coordinators))
	for _, coord := range s.coordinators {
		coords = append(coords, coord)
	}
	s.mu.Unlock()
	for _, coord := range coords {
		if err := coord.View().SetZoom(ctx, zoom); err != nil {
			s.log.Debug("shell zoom failed", "session", coord.SessionID(), "err", err)
		}
	}
}
