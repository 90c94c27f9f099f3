package cdpview

import (
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"

	"pkt.systems/netbrowser/schema"
)

type pendingRequest struct {
	url      string
	original string
	frame    cdp.FrameID
	kind     network.ResourceType
}

// translator folds raw CDP target events into view events. It is not safe
// for concurrent use; the view serializes calls.
type translator struct {
	viewID    schema.ViewID
	mainFrame cdp.FrameID
	requests  map[network.RequestID]pendingRequest
	// failed is set once the current navigation reported a failure.
	failed bool
}

func newTranslator(viewID schema.ViewID, mainFrame cdp.FrameID) *translator {
	return &translator{
		viewID:    viewID,
		mainFrame: mainFrame,
		requests:  make(map[network.RequestID]pendingRequest),
	}
}

func (t *translator) event(typ schema.ViewEventType) schema.ViewEvent {
	return schema.ViewEvent{Type: typ, ViewID: t.viewID}
}

func (t *translator) isMain(frame cdp.FrameID) bool {
	return t.mainFrame == "" || frame == t.mainFrame
}

func (t *translator) translate(raw any) []schema.ViewEvent {
	switch ev := raw.(type) {
	case *page.EventFrameStartedLoading:
		if t.isMain(ev.FrameID) {
			t.failed = false
			return []schema.ViewEvent{t.event(schema.ViewLoadStart)}
		}
	case *page.EventFrameStoppedLoading:
		if t.isMain(ev.FrameID) {
			return []schema.ViewEvent{t.event(schema.ViewLoadStop)}
		}
	case *page.EventFrameNavigated:
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return nil
		}
		t.mainFrame = ev.Frame.ID
		out := t.event(schema.ViewNavigate)
		out.URL = ev.Frame.URL + ev.Frame.URLFragment
		if ev.Frame.UnreachableURL != "" {
			out.URL = ev.Frame.UnreachableURL
		}
		return []schema.ViewEvent{out}
	case *page.EventNavigatedWithinDocument:
		if t.isMain(ev.FrameID) {
			out := t.event(schema.ViewNavigateInPage)
			out.URL = ev.URL
			return []schema.ViewEvent{out}
		}
	case *page.EventDomContentEventFired:
		return []schema.ViewEvent{t.event(schema.ViewDOMReady)}
	case *network.EventRequestWillBeSent:
		if ev.Request == nil {
			return nil
		}
		req := pendingRequest{url: ev.Request.URL, original: ev.Request.URL, frame: ev.FrameID, kind: ev.Type}
		if prev, ok := t.requests[ev.RequestID]; ok {
			req.original = prev.original
		}
		t.requests[ev.RequestID] = req
	case *network.EventResponseReceived:
		if ev.Response == nil {
			return nil
		}
		req := t.requests[ev.RequestID]
		out := t.event(schema.ViewHTTPResponse)
		out.URL = ev.Response.URL
		out.OriginalURL = req.original
		if out.OriginalURL == "" {
			out.OriginalURL = ev.Response.URL
		}
		out.StatusCode = int(ev.Response.Status)
		out.StatusText = ev.Response.StatusText
		out.MainFrame = ev.Type == network.ResourceTypeDocument && t.isMain(ev.FrameID)
		out.ResourceType = resourceType(ev.Type, out.MainFrame)
		return []schema.ViewEvent{out}
	case *network.EventLoadingFinished:
		delete(t.requests, ev.RequestID)
	case *network.EventLoadingFailed:
		req, ok := t.requests[ev.RequestID]
		delete(t.requests, ev.RequestID)
		if !ok || ev.Type != network.ResourceTypeDocument || !t.isMain(req.frame) {
			return nil
		}
		t.failed = true
		return []schema.ViewEvent{t.failure(req.url, ev.ErrorText, ev.BlockedReason != "")}
	}
	return nil
}

func (t *translator) failure(url, text string, blocked bool) schema.ViewEvent {
	out := t.event(schema.ViewLoadFailure)
	out.URL = url
	out.ErrorDescription = text
	code, ok := schema.NetErrorCode(text)
	switch {
	case ok:
		out.ErrorCode = code
	case blocked:
		out.ErrorCode = schema.NetErrorBlockedByClient
	default:
		out.ErrorCode = schema.NetErrorFailed
	}
	return out
}

// resourceType labels documents by frame so iframe loads never read as
// the page itself.
func resourceType(kind network.ResourceType, main bool) string {
	switch {
	case kind == network.ResourceTypeDocument && main:
		return "mainFrame"
	case kind == network.ResourceTypeDocument:
		return "subFrame"
	case kind == "":
		return "other"
	default:
		return string(kind)
	}
}

// titleChange reports the new title when info describes the view's own
// page target and the title moved away from last.
func titleChange(info *target.Info, id target.ID, last string) (string, bool) {
	if info == nil || info.TargetID != id || info.Type != "page" {
		return "", false
	}
	if info.Title == "" || info.Title == last || info.Title == info.URL {
		return "", false
	}
	return info.Title, true
}
