package cdpview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/internal/adblock"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

const eventBuffer = 256

const faviconScript = `(function () {
  var out = [];
  document.querySelectorAll('link[rel~="icon"], link[rel="shortcut icon"]').forEach(function (l) {
    if (l.href) { out.push(l.href); }
  });
  if (location.protocol === "http:" || location.protocol === "https:") {
    out.push(location.origin + "/favicon.ico");
  }
  return out;
})()`

const findScript = `(function (query, backwards, fresh) {
  var text = ((document.body && document.body.innerText) || "").toLowerCase();
  var needle = query.toLowerCase();
  var total = 0;
  if (needle) {
    for (var i = text.indexOf(needle); i !== -1; i = text.indexOf(needle, i + needle.length)) { total++; }
  }
  var sel = window.getSelection();
  if (fresh && sel) { sel.removeAllRanges(); }
  var found = total > 0 && window.find(query, false, backwards, true, false, false, false);
  return {total: total, found: !!found};
})(%s, %t, %t)`

const clearFindScript = `(function () { var s = window.getSelection(); if (s) { s.removeAllRanges(); } })()`

type findResult struct {
	Total int  `json:"total"`
	Found bool `json:"found"`
}

// View is a content view backed by one Chrome page target.
type View struct {
	id       schema.ViewID
	targetID target.ID
	ctx      context.Context
	cancel   context.CancelFunc
	log      pslog.Logger
	events   chan schema.ViewEvent
	onClose  func(*View)
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
	trans  *translator
	title  string
	find   findCursor
}

var _ core.ContentView = (*View)(nil)

func newView(tabCtx context.Context, cancel context.CancelFunc, logger pslog.Logger, onClose func(*View)) (*View, error) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return nil, chromedp.ErrInvalidContext
	}
	id := schema.ViewID(c.Target.TargetID)
	v := &View{
		id:       id,
		targetID: c.Target.TargetID,
		ctx:      tabCtx,
		cancel:   cancel,
		log:      logger.With("view", id),
		events:   make(chan schema.ViewEvent, eventBuffer),
		onClose:  onClose,
		trans:    newTranslator(id, cdp.FrameID(c.Target.TargetID)),
	}
	chromedp.ListenTarget(tabCtx, v.onTargetEvent)
	chromedp.ListenBrowser(tabCtx, v.onBrowserEvent)
	return v, nil
}

// ID returns the page target id.
func (v *View) ID() schema.ViewID { return v.id }

// Events returns the ordered event stream; it closes with the view.
func (v *View) Events() <-chan schema.ViewEvent { return v.events }

func (v *View) onTargetEvent(raw any) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	out := v.trans.translate(raw)
	for _, ev := range out {
		v.sendLocked(ev)
	}
	v.mu.Unlock()
	for _, ev := range out {
		if ev.Type == schema.ViewLoadStop {
			v.spawn(v.readFavicons)
		}
	}
}

func (v *View) onBrowserEvent(raw any) {
	ev, ok := raw.(*target.EventTargetInfoChanged)
	if !ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	title, changed := titleChange(ev.TargetInfo, v.targetID, v.title)
	if !changed {
		return
	}
	v.title = title
	v.sendLocked(schema.ViewEvent{Type: schema.ViewTitleUpdated, ViewID: v.id, Title: title})
}

func (v *View) emit(ev schema.ViewEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.sendLocked(ev)
}

func (v *View) sendLocked(ev schema.ViewEvent) {
	select {
	case v.events <- ev:
	default:
		v.log.Warn("view event dropped", "event", ev.Type)
	}
}

// spawn runs fn on its own goroutine; CDP listeners must not issue
// commands inline.
func (v *View) spawn(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		fn()
	}()
}

func (v *View) readFavicons() {
	var icons []string
	if err := v.run(v.ctx, chromedp.Evaluate(faviconScript, &icons)); err != nil {
		v.log.Trace("view favicon read failed", "err", err)
		return
	}
	if len(icons) == 0 {
		return
	}
	v.emit(schema.ViewEvent{Type: schema.ViewFaviconUpdated, ViewID: v.id, Favicons: icons})
}

func (v *View) run(ctx context.Context, actions ...chromedp.Action) error {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return schema.ErrNoContentView
	}
	runCtx, cancel := context.WithCancel(v.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Load navigates the page. A navigation the browser refuses outright is
// reported as a load failure unless the network layer already did so.
func (v *View) Load(ctx context.Context, url string) error {
	return v.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if errorText == "" {
			return nil
		}
		v.log.Debug("view navigate error", "url", url, "error", errorText)
		v.mu.Lock()
		if !v.closed && !v.trans.failed {
			v.trans.failed = true
			v.sendLocked(v.trans.failure(url, errorText, false))
		}
		v.mu.Unlock()
		return nil
	}))
}

// Back moves one entry back in the page history; at the start it does
// nothing.
func (v *View) Back(ctx context.Context) error {
	return v.run(ctx, historyStep(-1))
}

// Forward moves one entry forward in the page history.
func (v *View) Forward(ctx context.Context) error {
	return v.run(ctx, historyStep(1))
}

func historyStep(delta int64) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		current, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		next := current + delta
		if next < 0 || next >= int64(len(entries)) {
			return nil
		}
		return page.NavigateToHistoryEntry(entries[next].ID).Do(ctx)
	})
}

// Reload reloads the page.
func (v *View) Reload(ctx context.Context) error {
	return v.run(ctx, page.Reload())
}

// SetZoom sets the page scale factor.
func (v *View) SetZoom(ctx context.Context, factor float64) error {
	return v.run(ctx, emulation.SetPageScaleFactor(factor))
}

// Find searches the page text and reports counts as a find-result event.
func (v *View) Find(ctx context.Context, text string, opts core.FindOptions) error {
	query, err := json.Marshal(text)
	if err != nil {
		return err
	}
	backwards := opts.FindNext && !opts.Forward
	script := fmt.Sprintf(findScript, query, backwards, !opts.FindNext)
	var res findResult
	if err := v.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return err
	}
	v.mu.Lock()
	ordinal := v.find.advance(text, res.Total, opts.FindNext, opts.Forward)
	v.mu.Unlock()
	v.emit(schema.ViewEvent{
		Type:               schema.ViewFindResult,
		ViewID:             v.id,
		ActiveMatchOrdinal: ordinal,
		TotalMatches:       res.Total,
		FinalUpdate:        true,
	})
	return nil
}

// ClearFind drops the page selection.
func (v *View) ClearFind(ctx context.Context) error {
	v.mu.Lock()
	v.find = findCursor{}
	v.mu.Unlock()
	return v.run(ctx, chromedp.Evaluate(clearFindScript, nil))
}

// InjectScript evaluates source in the page.
func (v *View) InjectScript(ctx context.Context, source string) error {
	return v.run(ctx, chromedp.Evaluate(source, nil))
}

// CurrentURL returns the document location.
func (v *View) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := v.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Title returns the document title.
func (v *View) Title(ctx context.Context) (string, error) {
	var title string
	if err := v.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// applyConfig sets request blocking and privacy headers on the page.
func (v *View) applyConfig(ctx context.Context, cfg schema.HostConfig) error {
	blocked := []string{}
	if cfg.ContentBlocking {
		blocked = adblock.Patterns()
	}
	headers := network.Headers{}
	if cfg.DoNotTrack {
		headers["DNT"] = "1"
		headers["Sec-GPC"] = "1"
	}
	return v.run(ctx,
		network.SetBlockedURLs(blocked),
		network.SetExtraHTTPHeaders(headers),
	)
}

// Close closes the page target. It is idempotent.
func (v *View) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	err := chromedp.Cancel(v.ctx)
	v.cancel()
	v.wg.Wait()
	close(v.events)
	if v.onClose != nil {
		v.onClose(v)
	}
	v.log.Debug("view closed")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// findCursor tracks the active match ordinal across find-next calls.
type findCursor struct {
	query   string
	ordinal int
}

func (c *findCursor) advance(query string, total int, next, forward bool) int {
	if total <= 0 {
		c.query, c.ordinal = query, 0
		return 0
	}
	switch {
	case !next || query != c.query || c.ordinal == 0:
		c.ordinal = 1
	case forward:
		c.ordinal = c.ordinal%total + 1
	default:
		c.ordinal--
		if c.ordinal < 1 {
			c.ordinal = total
		}
	}
	if c.ordinal > total {
		c.ordinal = 1
	}
	c.query = query
	return c.ordinal
}
