package offscreen

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cryguy/offscreen/internal/core"
)

// fakeEngine is a scripted engine: host calls are recorded and close
// negotiation runs on the next DoMessageLoopWork.
type fakeEngine struct {
	mu          sync.Mutex
	initErr     error
	createErr   error
	settings    core.Settings
	app         core.App
	client      core.Client
	browser     *fakeBrowser
	tasks       []func()
	steps       int
	initialized bool
	shutdowns   int
}

func (e *fakeEngine) Initialize(settings core.Settings, app core.App) error {
	if e.initErr != nil {
		return e.initErr
	}
	e.settings, e.app, e.initialized = settings, app, true
	return nil
}

func (e *fakeEngine) DoMessageLoopWork() {
	e.mu.Lock()
	e.steps++
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func (e *fakeEngine) Shutdown() {
	e.mu.Lock()
	e.shutdowns++
	e.initialized = false
	e.mu.Unlock()
}

func (e *fakeEngine) CreateBrowser(client core.Client, url string, _ core.BrowserSettings) (core.Browser, error) {
	if e.createErr != nil {
		return nil, e.createErr
	}
	e.client = client
	e.browser = &fakeBrowser{engine: e, id: 1, url: url}
	client.LifeSpanHandler().OnAfterCreated(e.browser)
	return e.browser, nil
}

func (e *fakeEngine) post(fn func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, fn)
	e.mu.Unlock()
}

func (e *fakeEngine) stepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// paint delivers a uniform frame of value v.
func (e *fakeEngine) paint(w, h int, v byte) {
	buf := make([]byte, w*h*4)
	for i := range buf {
		buf[i] = v
	}
	e.client.RenderHandler().OnPaint(e.browser, core.PaintView, []core.Rect{{Width: w, Height: h}}, buf, w, h)
}

// fakeBrowser implements the browser, its host and its frame.
type fakeBrowser struct {
	engine *fakeEngine
	id     int

	mu      sync.Mutex
	url     string
	calls   []string
	keys    []core.KeyEvent
	source  string
	focused bool
}

func (b *fakeBrowser) record(format string, args ...any) {
	b.mu.Lock()
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
	b.mu.Unlock()
}

func (b *fakeBrowser) log() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBrowser) ID() int                { return b.id }
func (b *fakeBrowser) Host() core.BrowserHost { return b }
func (b *fakeBrowser) MainFrame() core.Frame  { return b }
func (b *fakeBrowser) StopLoad()              { b.record("stop") }
func (b *fakeBrowser) Reload()                { b.record("reload") }
func (b *fakeBrowser) GoBack()                { b.record("back") }
func (b *fakeBrowser) GoForward()             { b.record("forward") }
func (b *fakeBrowser) CanGoBack() bool        { return false }
func (b *fakeBrowser) CanGoForward() bool     { return false }
func (b *fakeBrowser) FrameCount() int        { return 1 }
func (b *fakeBrowser) WasResized()            { b.record("resized") }

func (b *fakeBrowser) SendKeyEvent(ev core.KeyEvent) {
	b.mu.Lock()
	b.keys = append(b.keys, ev)
	b.mu.Unlock()
}

func (b *fakeBrowser) SetFocus(focus bool) {
	b.mu.Lock()
	b.focused = focus
	b.mu.Unlock()
}

func (b *fakeBrowser) CloseBrowser(force bool) {
	b.record("close:%t", force)
	b.engine.post(func() {
		if !b.engine.client.LifeSpanHandler().DoClose(b) {
			b.engine.client.LifeSpanHandler().OnBeforeClose(b)
		}
	})
}

func (b *fakeBrowser) SendMouseMoveEvent(ev core.MouseEvent, leave bool) {
	b.record("move:%d,%d:%t", ev.X, ev.Y, leave)
}

func (b *fakeBrowser) SendMouseWheelEvent(ev core.MouseEvent, dx, dy int) {
	b.record("wheel:%d,%d:%d,%d", ev.X, ev.Y, dx, dy)
}

func (b *fakeBrowser) SendMouseClickEvent(ev core.MouseEvent, button core.MouseButton, up bool, clicks int) {
	b.record("click:%d,%d:%d:%t:%d", ev.X, ev.Y, int(button), up, clicks)
}

func (b *fakeBrowser) LoadURL(url string) {
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
	b.record("load:%s", url)
}

func (b *fakeBrowser) LoadString(content, url string) {
	b.mu.Lock()
	b.url = url
	b.source = content
	b.mu.Unlock()
	b.record("loadstring:%s", url)
}

func (b *fakeBrowser) URL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

func (b *fakeBrowser) ExecuteJavaScript(code, _ string, _ int) { b.record("exec:%s", code) }

func (b *fakeBrowser) GetSource(visitor core.StringVisitor) {
	b.mu.Lock()
	src := b.source
	b.mu.Unlock()
	b.engine.post(func() { visitor.Visit(src) })
}

var errBoom = errors.New("boom")
