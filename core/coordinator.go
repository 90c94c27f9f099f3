package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Zoom                 func() float64
	ContentBlocking      func() bool
	BlockingScript       string
	TitlePollInterval    time.Duration
	TitlePollMaxAttempts int
	// OnVisit receives the session after a completed, error-free load
	// commit on an external URL.
	OnVisit func(schema.Session)
}

type bindState int

const (
	bindIdle bindState = iota
	bindBound
	bindClosed
)

// Coordinator folds one content view's event stream into session state.
// It holds the session id rather than the session, and re-checks it on
// every event so deliveries after close or replacement are dropped.
type Coordinator struct {
	sessionID schema.SessionID
	view      ContentView
	registry  *Registry
	sink      EventSink
	log       pslog.Logger
	opts      CoordinatorOptions

	mu     sync.Mutex
	state  bindState
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	page   schema.PageState
	poller *titlePoller
}

// NewCoordinator constructs an unbound coordinator for a session's view.
func NewCoordinator(sessionID schema.SessionID, view ContentView, registry *Registry, sink EventSink, logger pslog.Logger, opts CoordinatorOptions) *Coordinator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Coordinator{
		sessionID: sessionID,
		view:      view,
		registry:  registry,
		sink:      sink,
		log:       logger.With("session", sessionID, "view", view.ID()),
		opts:      opts,
		page:      schema.PageState{SessionID: sessionID},
	}
}

// SessionID returns the bound session id.
func (c *Coordinator) SessionID() schema.SessionID {
	return c.sessionID
}

// View returns the content view.
func (c *Coordinator) View() ContentView {
	return c.view
}

// Bind starts consuming the view's events. A coordinator binds at most
// once; later calls return false.
func (c *Coordinator) Bind(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != bindIdle {
		c.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.state = bindBound
	c.ctx = ctx
	c.cancel = cancel
	c.done = make(chan struct{})
	events := c.view.Events()
	done := c.done
	c.mu.Unlock()

	go c.run(ctx, events, done)
	c.log.Debug("coordinator bound")
	return true
}

func (c *Coordinator) run(ctx context.Context, events <-chan schema.ViewEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.log.Debug("coordinator view events closed")
				return
			}
			c.Handle(ctx, ev)
		}
	}
}

// Unbind stops event processing and the title poll. It is idempotent and
// waits for the consumer goroutine to exit.
func (c *Coordinator) Unbind() {
	c.mu.Lock()
	if c.state != bindBound {
		c.state = bindClosed
		c.mu.Unlock()
		return
	}
	c.state = bindClosed
	cancel, done, poller := c.cancel, c.done, c.poller
	c.poller = nil
	c.mu.Unlock()

	cancel()
	poller.Stop()
	<-done
	c.log.Debug("coordinator unbound")
}

// Handle applies one view event. Failures, including panics, are logged
// and never escape.
func (c *Coordinator) Handle(ctx context.Context, ev schema.ViewEvent) {
	log := c.log.With("event", ev.Type)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("coordinator handler panic", "panic", rec)
		}
	}()
	if !c.accepts(ev) {
		log.Trace("coordinator event dropped")
		return
	}
	log.Trace("coordinator event")
	switch ev.Type {
	case schema.ViewLoadStart:
		c.onLoadStart()
	case schema.ViewLoadStop:
		c.onLoadStop(ctx, log)
	case schema.ViewNavigate:
		c.onNavigate(ctx, ev, false)
	case schema.ViewNavigateInPage:
		c.onNavigate(ctx, ev, true)
	case schema.ViewTitleUpdated:
		c.onTitleUpdated(ctx, ev)
	case schema.ViewFaviconUpdated:
		c.onFaviconUpdated(ev)
	case schema.ViewLoadFailure:
		c.onLoadFailure(ev, log)
	case schema.ViewHTTPResponse:
		c.onHTTPResponse(ev, log)
	case schema.ViewDOMReady:
		c.onDOMReady(ctx, log)
	case schema.ViewFindResult:
		c.onFindResult(ev)
	default:
		log.Debug("coordinator event unknown")
	}
}

func (c *Coordinator) accepts(ev schema.ViewEvent) bool {
	c.mu.Lock()
	bound := c.state == bindBound
	c.mu.Unlock()
	if !bound {
		return false
	}
	if ev.ViewID != "" && ev.ViewID != c.view.ID() {
		return false
	}
	sess, ok := c.registry.Get(c.sessionID)
	if !ok {
		return false
	}
	// Built-in pages do not render in the view; whatever it still emits
	// belongs to an earlier page.
	return !schema.ParseDestination(sess.URL).Internal()
}

func (c *Coordinator) onLoadStart() {
	if c.clearError() {
		c.emitPage()
	}
	c.registry.Update(c.sessionID, schema.SessionPatch{Loading: schema.Bool(true)})
}

func (c *Coordinator) onLoadStop(ctx context.Context, log pslog.Logger) {
	if pageErr := c.currentError(); pageErr != nil {
		c.registry.Update(c.sessionID, schema.SessionPatch{
			URL:     pageErr.URL,
			Title:   schema.ErrorPageTitle,
			Loading: schema.Bool(false),
		})
		return
	}
	url, err := c.view.CurrentURL(ctx)
	if err != nil {
		log.Warn("coordinator read url failed", "err", err)
		return
	}
	if url == "" {
		return
	}
	title, err := c.view.Title(ctx)
	if err != nil {
		log.Debug("coordinator read title failed", "err", err)
		title = ""
	}
	sess, ok := c.registry.Update(c.sessionID, schema.SessionPatch{
		URL:     url,
		Title:   title,
		Loading: schema.Bool(false),
	})
	if !ok {
		return
	}
	c.applyZoom(ctx, log)
	c.visit(sess)
	c.restartTitlePoll(sess.Title)
}

func (c *Coordinator) onNavigate(ctx context.Context, ev schema.ViewEvent, inPage bool) {
	if ev.URL == "" {
		return
	}
	if pageErr := c.currentError(); pageErr != nil {
		c.registry.Update(c.sessionID, schema.SessionPatch{URL: pageErr.URL, Title: schema.ErrorPageTitle})
		return
	}
	title, _ := c.view.Title(ctx)
	sess, ok := c.registry.Update(c.sessionID, schema.SessionPatch{
		URL:     ev.URL,
		Title:   title,
		Loading: schema.Bool(!inPage),
	})
	if !ok || !inPage {
		return
	}
	c.visit(sess)
	c.restartTitlePoll(sess.Title)
}

func (c *Coordinator) onTitleUpdated(ctx context.Context, ev schema.ViewEvent) {
	if c.currentError() != nil {
		return
	}
	title := ev.Title
	if title == "" {
		title, _ = c.view.Title(ctx)
	}
	if title == "" {
		return
	}
	sess, ok := c.registry.Update(c.sessionID, schema.SessionPatch{Title: title})
	if ok && !sess.IsLoading {
		c.visit(sess)
	}
}

func (c *Coordinator) onFaviconUpdated(ev schema.ViewEvent) {
	if len(ev.Favicons) == 0 || ev.Favicons[0] == "" {
		return
	}
	c.registry.Update(c.sessionID, schema.SessionPatch{Favicon: schema.String(ev.Favicons[0])})
}

func (c *Coordinator) onLoadFailure(ev schema.ViewEvent, log pslog.Logger) {
	if ev.ErrorCode == schema.NetErrorAborted {
		log.Debug("coordinator load aborted", "url", ev.URL)
		return
	}
	url := ev.URL
	if url == "" {
		if sess, ok := c.registry.Get(c.sessionID); ok {
			url = sess.URL
		}
	}
	c.fail(schema.NewPageError(ev.ErrorCode, ev.ErrorDescription, url))
	log.Info("coordinator load failed", "code", ev.ErrorCode, "description", ev.ErrorDescription, "url", url)
}

func (c *Coordinator) onHTTPResponse(ev schema.ViewEvent, log pslog.Logger) {
	if ev.StatusCode < 400 {
		return
	}
	sess, ok := c.registry.Get(c.sessionID)
	if !ok {
		return
	}
	sessionURL := (ev.URL != "" && ev.URL == sess.URL) || (ev.OriginalURL != "" && ev.OriginalURL == sess.URL)
	if !ev.MainFrame && !sessionURL {
		log.Trace("coordinator subresource error ignored", "status", ev.StatusCode, "url", ev.URL)
		return
	}
	description := ev.StatusText
	if description == "" {
		description = "HTTP Error"
	}
	url := ev.URL
	if url == "" {
		url = sess.URL
	}
	c.fail(schema.NewPageError(ev.StatusCode, description, url))
	log.Info("coordinator http error", "status", ev.StatusCode, "url", url)
}

func (c *Coordinator) onDOMReady(ctx context.Context, log pslog.Logger) {
	c.applyZoom(ctx, log)
	if c.opts.ContentBlocking == nil || !c.opts.ContentBlocking() || c.opts.BlockingScript == "" {
		return
	}
	if err := c.view.InjectScript(ctx, c.opts.BlockingScript); err != nil {
		log.Warn("coordinator content blocking injection failed", "err", err)
	}
}

// Retry clears the error view and reloads.
func (c *Coordinator) Retry(ctx context.Context) error {
	if c.clearError() {
		c.emitPage()
	}
	return c.view.Reload(ctx)
}

// ResetPage drops error and find state ahead of an explicit navigation.
func (c *Coordinator) ResetPage() {
	c.mu.Lock()
	changed := c.page.Error != nil || c.page.Find != (schema.FindState{})
	c.page.Error = nil
	c.page.Find = schema.FindState{}
	c.mu.Unlock()
	c.stopTitlePoll()
	if changed {
		c.emitPage()
	}
}

// PageState returns the current display state.
func (c *Coordinator) PageState() schema.PageState {
	c.mu.Lock()
	state := c.page
	if state.Error != nil {
		pageErr := *state.Error
		state.Error = &pageErr
	}
	c.mu.Unlock()
	if sess, ok := c.registry.Get(c.sessionID); ok {
		state.Destination = schema.ParseDestination(sess.URL)
	}
	return state
}

func (c *Coordinator) fail(pageErr schema.PageError) {
	c.mu.Lock()
	c.page.Error = &pageErr
	c.mu.Unlock()
	c.stopTitlePoll()
	c.registry.Update(c.sessionID, schema.SessionPatch{
		URL:     pageErr.URL,
		Title:   schema.ErrorPageTitle,
		Loading: schema.Bool(false),
	})
	c.emitPage()
}

func (c *Coordinator) currentError() *schema.PageError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page.Error
}

func (c *Coordinator) clearError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page.Error == nil {
		return false
	}
	c.page.Error = nil
	return true
}

func (c *Coordinator) applyZoom(ctx context.Context, log pslog.Logger) {
	if c.opts.Zoom == nil {
		return
	}
	if err := c.view.SetZoom(ctx, c.opts.Zoom()); err != nil {
		log.Debug("coordinator zoom failed", "err", err)
	}
}

func (c *Coordinator) visit(sess schema.Session) {
	if c.opts.OnVisit == nil || sess.IsLoading || sess.Title == "" {
		return
	}
	if schema.IsInternalURL(sess.URL) || c.currentError() != nil {
		return
	}
	c.opts.OnVisit(sess)
}

func (c *Coordinator) restartTitlePoll(last string) {
	interval, attempts := c.opts.TitlePollInterval, c.opts.TitlePollMaxAttempts
	if interval <= 0 || attempts <= 0 {
		return
	}
	c.mu.Lock()
	if c.state != bindBound {
		c.mu.Unlock()
		return
	}
	old := c.poller
	c.poller = nil
	ctx := c.ctx
	c.mu.Unlock()
	old.Stop()

	p := startTitlePoll(ctx, interval, attempts, last, c.view.Title, c.commitPolledTitle)
	c.mu.Lock()
	if c.state != bindBound {
		c.mu.Unlock()
		p.Stop()
		return
	}
	c.poller = p
	c.mu.Unlock()
}

func (c *Coordinator) stopTitlePoll() {
	c.mu.Lock()
	p := c.poller
	c.poller = nil
	c.mu.Unlock()
	p.Stop()
}

func (c *Coordinator) commitPolledTitle(title string) {
	if c.currentError() != nil {
		return
	}
	sess, ok := c.registry.Update(c.sessionID, schema.SessionPatch{Title: title})
	if !ok {
		return
	}
	c.log.Trace("coordinator title polled", "title", title)
	if !sess.IsLoading {
		c.visit(sess)
	}
}

func (c *Coordinator) emitPage() {
	if c.sink == nil {
		return
	}
	c.sink.OnPageState(schema.PageStateEvent{State: c.PageState()})
}
