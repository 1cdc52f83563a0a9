package headless

import (
	"context"

	"go.uber.org/zap"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

type navKind int

const (
	navLoad navKind = iota
	navReload
	navHistory
)

// navRequest describes one navigation. content is set for documents
// supplied as a string; they are remembered so reload and history can
// restore them.
type navRequest struct {
	url     string
	kind    navKind
	delta   int
	content *string
}

// errorText is the description reported with a load error code.
func errorText(code core.ErrorCode) string {
	switch code {
	case core.ErrAborted:
		return "net::ERR_ABORTED"
	case core.ErrFileNotFound:
		return "net::ERR_FILE_NOT_FOUND"
	case core.ErrTimedOut:
		return "net::ERR_TIMED_OUT"
	case core.ErrFileTooBig:
		return "net::ERR_FILE_TOO_BIG"
	case core.ErrConnectionRefused:
		return "net::ERR_CONNECTION_REFUSED"
	case core.ErrNameNotResolved:
		return "net::ERR_NAME_NOT_RESOLVED"
	case core.ErrInvalidURL:
		return "net::ERR_INVALID_URL"
	case core.ErrUnknownURLScheme:
		return "net::ERR_UNKNOWN_URL_SCHEME"
	default:
		return "net::ERR_FAILED"
	}
}

func (b *Browser) stateChanged(isLoading bool) {
	b.loadHandler().OnLoadingStateChange(b, isLoading, b.hist.canGoBack(), b.hist.canGoForward())
}

// navigate starts req, aborting any load in flight. Message loop only.
func (b *Browser) navigate(req navRequest) {
	if b.closed.Load() {
		return
	}
	b.abort()
	b.navSeq++
	seq := b.navSeq
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.loading = true
	b.pending = req.url
	b.log.Debug("navigation started", zap.String("url", req.url), zap.Int("kind", int(req.kind)))
	b.stateChanged(true)

	var ch <-chan eventloop.LoadResult
	if req.content != nil {
		ready := make(chan eventloop.LoadResult, 1)
		ready <- eventloop.LoadResult{Status: 200, MimeType: "text/html", Body: []byte(*req.content), FinalURL: req.url}
		ch = ready
	} else {
		ch = b.engine.loader.start(ctx, req.url)
	}
	b.engine.ui.AddPendingLoad(&eventloop.PendingLoad{
		ResultCh: ch,
		Deliver:  func(res eventloop.LoadResult) { b.deliver(seq, req, res) },
	})
}

// abort cancels the load in flight and reports it as aborted.
func (b *Browser) abort() {
	if !b.loading {
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.loading = false
	b.navSeq++
	b.loadHandler().OnLoadError(b, b.frame, core.ErrAborted, errorText(core.ErrAborted), b.pending)
}

func (b *Browser) stopLoad() {
	if !b.loading || b.closed.Load() {
		return
	}
	b.abort()
	b.stateChanged(false)
}

func (b *Browser) reload() {
	current := b.hist.current()
	if current == "" || b.closed.Load() {
		return
	}
	req := navRequest{url: current, kind: navReload}
	if content, ok := b.inline[current]; ok {
		req.content = &content
	}
	b.navigate(req)
}

func (b *Browser) goHistory(delta int) {
	target, ok := b.hist.peek(delta)
	if !ok || b.closed.Load() {
		return
	}
	req := navRequest{url: target, kind: navHistory, delta: delta}
	if content, ok := b.inline[target]; ok {
		req.content = &content
	}
	b.navigate(req)
}

func (b *Browser) commitHistory(req navRequest, final string) {
	switch req.kind {
	case navLoad:
		// The blank document a browser starts on is replaced, not kept.
		if b.initialBlank && b.hist.current() == "about:blank" {
			b.hist.replace(final)
		} else {
			b.hist.push(final)
		}
		b.initialBlank = b.initialBlank && final == "about:blank"
	case navReload:
		b.hist.replace(final)
	case navHistory:
		b.hist.move(req.delta)
		b.hist.replace(final)
	}
}

// deliver commits a finished load. Results of superseded navigations are
// dropped.
func (b *Browser) deliver(seq uint64, req navRequest, res eventloop.LoadResult) {
	if seq != b.navSeq || b.closed.Load() {
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	final := res.FinalURL
	if final == "" {
		final = req.url
	}
	b.commitHistory(req, final)
	if req.content != nil {
		b.inline[final] = *req.content
	}
	b.setURL(final)
	b.engine.publish(b, "Page.frameNavigated", map[string]any{
		"frame": map[string]any{"id": b.targetID, "url": final},
	})

	r := b.renderer
	if res.Err != nil {
		b.loading = false
		code := res.Code
		if code == core.ErrNone {
			code = core.ErrFailed
		}
		b.log.Info("load failed", zap.String("url", req.url), zap.Int("code", int(code)), zap.Error(res.Err))
		b.loadHandler().OnLoadError(b, b.frame, code, errorText(code), req.url)
		reason := errorText(code)
		r.post(func() { r.commit(commitRequest{url: final, failed: true, reason: reason}) })
		b.stateChanged(false)
		return
	}

	b.loadHandler().OnLoadStart(b, b.frame)
	status := res.Status
	r.post(func() {
		r.commit(commitRequest{result: res, url: final})
		b.postUI(func() { b.finish(seq, status) })
	})
}

// finish reports a committed document as loaded.
func (b *Browser) finish(seq uint64, status int) {
	if seq != b.navSeq || b.closed.Load() {
		return
	}
	b.loading = false
	b.cancel = nil
	b.log.Debug("load finished", zap.String("url", b.currentURL()), zap.Int("status", status))
	b.loadHandler().OnLoadEnd(b, b.frame, status)
	b.engine.publish(b, "Page.loadEventFired", map[string]any{})
	b.stateChanged(false)
}
