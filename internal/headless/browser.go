package headless

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/devtools"
)

// Browser is one windowless browsing context. Host calls may come from any
// goroutine; they are turned into tasks for the message loop or the
// renderer.
type Browser struct {
	id       int
	targetID string
	engine   *Engine
	client   core.Client
	settings core.BrowserSettings
	log      *zap.Logger

	frame    *frame
	hist     *history
	renderer *renderer
	comp     *compositor

	mu    sync.Mutex
	url   string
	title string

	closed atomic.Bool

	// Message loop state.
	navSeq       uint64
	cancel       context.CancelFunc
	loading      bool
	pending      string
	initialBlank bool
	inline       map[string]string
}

var (
	_ core.Browser      = (*Browser)(nil)
	_ core.BrowserHost  = (*Browser)(nil)
	_ core.FrameCounter = (*Browser)(nil)
	_ devtools.Target   = (*Browser)(nil)
)

func newBrowser(e *Engine, id int, client core.Client, settings core.BrowserSettings) *Browser {
	b := &Browser{
		id:           id,
		targetID:     uuid.NewString(),
		engine:       e,
		client:       client,
		settings:     settings,
		log:          e.log.With(zap.Int("browser", id)),
		hist:         newHistory(),
		initialBlank: true,
		inline:       make(map[string]string),
	}
	b.frame = &frame{b: b}
	return b
}

func (b *Browser) renderHandler() core.RenderHandler {
	if b.client == nil {
		return nil
	}
	return b.client.RenderHandler()
}

func (b *Browser) loadHandler() core.LoadHandler {
	if b.client != nil {
		if h := b.client.LoadHandler(); h != nil {
			return h
		}
	}
	return nopHandler{}
}

func (b *Browser) lifeSpanHandler() core.LifeSpanHandler {
	if b.client != nil {
		if h := b.client.LifeSpanHandler(); h != nil {
			return h
		}
	}
	return nopHandler{}
}

// postUI queues fn on the engine's message loop.
func (b *Browser) postUI(fn func()) {
	b.engine.ui.Post(fn)
}

func (b *Browser) ID() int                 { return b.id }
func (b *Browser) Host() core.BrowserHost  { return b }
func (b *Browser) MainFrame() core.Frame   { return b.frame }
func (b *Browser) FrameCount() int         { return 1 }
func (b *Browser) CanGoBack() bool         { return b.hist.canGoBack() }
func (b *Browser) CanGoForward() bool      { return b.hist.canGoForward() }
func (b *Browser) StopLoad()               { b.postUI(b.stopLoad) }
func (b *Browser) Reload()                 { b.postUI(b.reload) }
func (b *Browser) GoBack()                 { b.postUI(func() { b.goHistory(-1) }) }
func (b *Browser) GoForward()              { b.postUI(func() { b.goHistory(1) }) }
func (b *Browser) FramesPainted() int      { return int(b.comp.frames.Load()) }
func (b *Browser) CloseBrowser(force bool) { b.postUI(func() { b.closeBrowser(force) }) }
func (b *Browser) SetFocus(focus bool)     { b.renderer.post(func() { b.renderer.viewFocus(focus) }) }
func (b *Browser) SendKeyEvent(ev core.KeyEvent) {
	b.renderer.post(func() { b.renderer.key(ev) })
}

// WasResized queries the view rect and lays the page out for it.
func (b *Browser) WasResized() {
	h := b.renderHandler()
	if h == nil {
		return
	}
	view := h.GetViewRect(b)
	b.renderer.post(func() { b.renderer.resize(view.Width, view.Height) })
	b.comp.dirty.Store(true)
}

func (b *Browser) SendMouseMoveEvent(ev core.MouseEvent, mouseLeave bool) {
	b.renderer.post(func() { b.renderer.mouseMove(ev, mouseLeave) })
}

func (b *Browser) SendMouseWheelEvent(ev core.MouseEvent, deltaX, deltaY int) {
	b.renderer.post(func() { b.renderer.mouseWheel(ev, deltaX, deltaY) })
}

func (b *Browser) SendMouseClickEvent(ev core.MouseEvent, button core.MouseButton, mouseUp bool, clickCount int) {
	b.renderer.post(func() { b.renderer.mouseClick(ev, button, mouseUp, clickCount) })
}

func (b *Browser) currentURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

func (b *Browser) setURL(u string) {
	b.mu.Lock()
	b.url = u
	b.mu.Unlock()
}

func (b *Browser) setTitle(t string) {
	b.mu.Lock()
	b.title = t
	b.mu.Unlock()
}

// TargetID identifies the browser to remote debugging clients.
func (b *Browser) TargetID() string { return b.targetID }

func (b *Browser) URL() string { return b.currentURL() }

func (b *Browser) Title() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.title == "" {
		return b.url
	}
	return b.title
}

// Evaluate runs expression in the current document and waits for its
// string result.
func (b *Browser) Evaluate(ctx context.Context, expression string) (string, error) {
	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	b.renderer.post(func() {
		v, err := b.renderer.evaluate(expression)
		done <- result{v, err}
	})
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Navigate starts a navigation from a debugging client.
func (b *Browser) Navigate(target string) { b.frame.LoadURL(target) }

// closeBrowser runs close negotiation on the message loop.
func (b *Browser) closeBrowser(force bool) {
	if b.closed.Load() {
		return
	}
	if !force && b.lifeSpanHandler().DoClose(b) {
		b.log.Debug("close cancelled by handler")
		return
	}
	b.destroy()
}

// destroy stops the browser's goroutines and reports OnBeforeClose.
func (b *Browser) destroy() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.navSeq++
	b.loading = false
	b.comp.shutdown()
	b.renderer.shutdown()
	b.lifeSpanHandler().OnBeforeClose(b)
	b.engine.remove(b)
	b.log.Debug("browser closed")
}

// frame is the browser's only frame.
type frame struct {
	b *Browser
}

var _ core.Frame = (*frame)(nil)

func (f *frame) LoadURL(target string) {
	b := f.b
	b.postUI(func() { b.navigate(navRequest{url: target, kind: navLoad}) })
}

func (f *frame) LoadString(content, target string) {
	if target == "" {
		target = "about:blank"
	}
	b := f.b
	b.postUI(func() { b.navigate(navRequest{url: target, kind: navLoad, content: &content}) })
}

func (f *frame) URL() string { return f.b.currentURL() }

func (f *frame) ExecuteJavaScript(code, scriptURL string, startLine int) {
	r := f.b.renderer
	r.post(func() { r.execute(code, scriptURL, startLine) })
}

func (f *frame) GetSource(visitor core.StringVisitor) {
	if visitor == nil {
		return
	}
	r := f.b.renderer
	r.post(func() { visitor.Visit(r.source()) })
}

// nopHandler stands in for handlers a client does not provide.
type nopHandler struct{}

func (nopHandler) OnLoadStart(core.Browser, core.Frame)                                 {}
func (nopHandler) OnLoadEnd(core.Browser, core.Frame, int)                              {}
func (nopHandler) OnLoadError(core.Browser, core.Frame, core.ErrorCode, string, string) {}
func (nopHandler) OnLoadingStateChange(core.Browser, bool, bool, bool)                  {}
func (nopHandler) OnAfterCreated(core.Browser)                                          {}
func (nopHandler) DoClose(core.Browser) bool                                            { return false }
func (nopHandler) OnBeforeClose(core.Browser)                                           {}
