package headless

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/offscreen/internal/core"
)

// recorder is a client that records every callback.
type recorder struct {
	mu        sync.Mutex
	view      core.Rect
	events    []string
	paints    int
	paintW    int
	paintH    int
	cursor    core.CursorType
	closeVeto bool
	closed    bool
}

func (r *recorder) RenderHandler() core.RenderHandler     { return r }
func (r *recorder) LoadHandler() core.LoadHandler         { return r }
func (r *recorder) LifeSpanHandler() core.LifeSpanHandler { return r }

func (r *recorder) record(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) GetViewRect(core.Browser) core.Rect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

func (r *recorder) OnPaint(_ core.Browser, kind core.PaintElementType, _ []core.Rect, buf []byte, w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == core.PaintView && len(buf) == w*h*4 {
		r.paints++
		r.paintW, r.paintH = w, h
	}
}

func (r *recorder) OnCursorChange(_ core.Browser, c core.CursorType) {
	r.mu.Lock()
	r.cursor = c
	r.mu.Unlock()
}

func (r *recorder) OnLoadStart(core.Browser, core.Frame) { r.record("start") }
func (r *recorder) OnLoadEnd(_ core.Browser, _ core.Frame, status int) {
	r.record("end:%d", status)
}
func (r *recorder) OnLoadError(_ core.Browser, _ core.Frame, code core.ErrorCode, _, _ string) {
	r.record("error:%d", int(code))
}
func (r *recorder) OnLoadingStateChange(_ core.Browser, loading, _, _ bool) {
	r.record("loading:%t", loading)
}
func (r *recorder) OnAfterCreated(core.Browser) { r.record("created") }
func (r *recorder) DoClose(core.Browser) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "doclose")
	return r.closeVeto
}
func (r *recorder) OnBeforeClose(core.Browser) {
	r.mu.Lock()
	r.closed = true
	r.events = append(r.events, "beforeclose")
	r.mu.Unlock()
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// bindingApp installs a transfer function into every document.
type bindingApp struct {
	mu     sync.Mutex
	values []string
}

func (a *bindingApp) OnContextCreated(_ core.Browser, _ core.Frame, rt core.JSRuntime) {
	_ = rt.RegisterFunc("transfer", func(v string) int {
		a.mu.Lock()
		a.values = append(a.values, v)
		a.mu.Unlock()
		return 1
	})
}

func (a *bindingApp) has(v string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Contains(a.values, v)
}

type harness struct {
	t       *testing.T
	engine  *Engine
	rec     *recorder
	app     *bindingApp
	browser core.Browser
}

func newHarness(t *testing.T, configure func(*core.Settings)) *harness {
	t.Helper()
	s := core.Settings{
		WindowlessRendering: true,
		NewRuntime:          testRuntime,
		ScriptTimeout:       2 * time.Second,
		CachePath:           t.TempDir(),
	}
	if configure != nil {
		configure(&s)
	}
	h := &harness{t: t, engine: New(), rec: &recorder{view: core.Rect{Width: 200, Height: 100}}, app: &bindingApp{}}
	require.NoError(t, h.engine.Initialize(s, h.app))
	t.Cleanup(h.engine.Shutdown)

	b, err := h.engine.CreateBrowser(h.rec, "", core.BrowserSettings{WindowlessFrameRate: 60, BackgroundColor: 0xffffffff})
	require.NoError(t, err)
	h.browser = b
	h.pump(func() bool { return h.rec.count("end:200") == 1 })
	h.rec.take()
	return h
}

// pump drives the message loop until cond holds.
func (h *harness) pump(cond func() bool) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		h.engine.DoMessageLoopWork()
		return cond()
	}, 5*time.Second, time.Millisecond)
}

func (h *harness) loadString(markup, url string) {
	h.t.Helper()
	before := h.rec.count("end:200")
	h.browser.MainFrame().LoadString(markup, url)
	h.pump(func() bool { return h.rec.count("end:200") > before })
}

func TestEngine_LoadStringLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, "about:blank", h.browser.MainFrame().URL())
	assert.Equal(t, 1, h.browser.FrameCount())

	h.loadString(`<html><head><title>T</title></head><body>hi<script>transfer(document.title)</script></body></html>`, "https://example.test/")
	assert.Equal(t, []string{"loading:true", "start", "end:200", "loading:false"}, h.rec.take())
	assert.True(t, h.app.has("T"))
	assert.Equal(t, "https://example.test/", h.browser.MainFrame().URL())
	assert.False(t, h.browser.CanGoBack(), "the initial blank entry is replaced")

	h.pump(func() bool {
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		return h.rec.paints > 0 && h.rec.paintW == 200 && h.rec.paintH == 100
	})
	assert.Positive(t, h.browser.(core.FrameCounter).FramesPainted())

	src := make(chan string, 1)
	h.browser.MainFrame().GetSource(visitorFunc(func(s string) { src <- s }))
	var got string
	h.pump(func() bool {
		select {
		case got = <-src:
			return true
		default:
			return false
		}
	})
	assert.Contains(t, got, "<title>T</title>")
}

type visitorFunc func(string)

func (f visitorFunc) Visit(s string) { f(s) }

func TestEngine_HistoryAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
		fmt.Fprintf(w, "<title>%s</title>", r.URL.Path)
	}))
	defer srv.Close()
	h := newHarness(t, nil)

	h.browser.MainFrame().LoadURL(srv.URL + "/one")
	h.pump(func() bool { return h.rec.count("end:200") == 1 })
	h.browser.MainFrame().LoadURL(srv.URL + "/two")
	h.pump(func() bool { return h.rec.count("end:200") == 2 })
	assert.True(t, h.browser.CanGoBack())
	assert.False(t, h.browser.CanGoForward())

	h.browser.GoBack()
	h.pump(func() bool { return h.rec.count("end:200") == 3 })
	assert.Equal(t, srv.URL+"/one", h.browser.MainFrame().URL())
	assert.True(t, h.browser.CanGoForward())
	h.rec.take()

	h.browser.MainFrame().LoadURL(srv.URL + "/missing")
	h.pump(func() bool { return h.rec.count("end:404") == 1 })

	h.browser.MainFrame().LoadURL("gopher://example.test/")
	h.pump(func() bool { return h.rec.count("error:-302") == 1 })
	h.pump(func() bool {
		events := h.rec.take()
		return len(events) > 0 && events[len(events)-1] == "loading:false"
	})
	assert.Equal(t, "gopher://example.test/", h.browser.MainFrame().URL())
}

func TestEngine_StopLoad(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	h := newHarness(t, nil)

	h.browser.MainFrame().LoadURL(srv.URL)
	h.pump(func() bool { return h.rec.count("loading:true") == 1 })
	h.browser.StopLoad()
	h.pump(func() bool { return h.rec.count("error:-3") == 1 && h.rec.count("loading:false") == 1 })
	assert.Zero(t, h.rec.count("start"))
}

func TestEngine_Input(t *testing.T) {
	h := newHarness(t, nil)
	h.loadString(`<body><p id="t" onclick="transfer('click:' + event.clientX)">CLICKME <a href="data:text/html,%3Ctitle%3Enext%3C%2Ftitle%3E">LINK</a></p>
		<script>
		document.addEventListener('keydown', function(e) { transfer('key:' + e.keyCode + ':' + e.shiftKey); });
		window.addEventListener('wheel', function(e) { transfer('wheel:' + e.deltaY); });
		</script></body>`, "https://example.test/")
	host := h.browser.Host()

	host.SendMouseMoveEvent(core.MouseEvent{X: 70, Y: 24}, false)
	h.pump(func() bool {
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		return h.rec.cursor == core.CursorHand
	})
	host.SendMouseMoveEvent(core.MouseEvent{X: 70, Y: 24}, true)
	h.pump(func() bool {
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		return h.rec.cursor == core.CursorPointer
	})

	host.SendMouseClickEvent(core.MouseEvent{X: 20, Y: 20}, core.MouseLeft, false, 1)
	host.SendMouseClickEvent(core.MouseEvent{X: 20, Y: 20}, core.MouseLeft, true, 1)
	h.pump(func() bool { return h.app.has("click:20") })

	host.SendKeyEvent(core.KeyEvent{Type: core.KeyRawDown, WindowsKeyCode: 65, Modifiers: core.FlagShift})
	h.pump(func() bool { return h.app.has("key:65:true") })

	host.SendMouseWheelEvent(core.MouseEvent{X: 20, Y: 20}, 0, -40)
	h.pump(func() bool { return h.app.has("wheel:40") })

	host.SendMouseClickEvent(core.MouseEvent{X: 70, Y: 24}, core.MouseLeft, false, 1)
	host.SendMouseClickEvent(core.MouseEvent{X: 70, Y: 24}, core.MouseLeft, true, 1)
	h.pump(func() bool { return strings.HasPrefix(h.browser.MainFrame().URL(), "data:") })
}

func TestEngine_ExecuteJavaScriptAndStorage(t *testing.T) {
	h := newHarness(t, nil)
	h.loadString(`<body></body>`, "https://example.test/a")
	h.browser.MainFrame().ExecuteJavaScript("localStorage.setItem('k', 'persisted'); transfer('set')", "", 1)
	h.pump(func() bool { return h.app.has("set") })

	h.loadString(`<body><script>transfer('got:' + localStorage.getItem('k'))</script></body>`, "https://example.test/b")
	assert.True(t, h.app.has("got:persisted"))

	h.loadString(`<body><script>transfer('other:' + localStorage.getItem('k'))</script></body>`, "https://other.test/")
	assert.True(t, h.app.has("other:null"))
}

func TestEngine_CloseNegotiation(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.mu.Lock()
	h.rec.closeVeto = true
	h.rec.mu.Unlock()

	h.browser.Host().CloseBrowser(false)
	h.pump(func() bool { return h.rec.count("doclose") == 1 })
	assert.Zero(t, h.rec.count("beforeclose"))

	h.rec.mu.Lock()
	h.rec.closeVeto = false
	h.rec.mu.Unlock()
	h.browser.Host().CloseBrowser(false)
	h.pump(func() bool { return h.rec.count("beforeclose") == 1 })
	assert.Empty(t, h.engine.Targets())
}

func TestEngine_SingleProcess(t *testing.T) {
	h := newHarness(t, func(s *core.Settings) { s.SingleProcess = true })
	h.loadString(`<body><script>setTimeout(function() { transfer('timer') }, 1)</script></body>`, "https://example.test/")
	h.pump(func() bool { return h.app.has("timer") })
}

func TestEngine_TimerAfterDocumentSwap(t *testing.T) {
	for _, single := range []bool{false, true} {
		t.Run(fmt.Sprintf("single=%t", single), func(t *testing.T) {
			h := newHarness(t, func(s *core.Settings) { s.SingleProcess = single })
			h.loadString(`<p>first</p>`, "https://one.test/")
			// The commit and the timer it schedules land in the same pump.
			h.browser.MainFrame().LoadString(`<script>setTimeout(function() { transfer('swapped') }, 0)</script>`, "https://two.test/")
			h.pump(func() bool { return h.app.has("swapped") })
			assert.Equal(t, "https://two.test/", h.browser.MainFrame().URL())
		})
	}
}

func TestRenderer_PumpSurvivesPanickingTask(t *testing.T) {
	h := newHarness(t, func(s *core.Settings) { s.SingleProcess = true })
	b := h.browser.(*Browser)
	b.renderer.post(func() { panic("task fault") })
	assert.NotPanics(t, func() { h.engine.DoMessageLoopWork() })

	h.browser.MainFrame().ExecuteJavaScript(`transfer('alive')`, "", 1)
	h.pump(func() bool { return h.app.has("alive") })
}

func TestEngine_InitializeValidation(t *testing.T) {
	e := New()
	err := e.Initialize(core.Settings{NewRuntime: testRuntime}, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	err = e.Initialize(core.Settings{WindowlessRendering: true}, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	err = e.Initialize(core.Settings{WindowlessRendering: true, MultiThreadedMessageLoop: true, NewRuntime: testRuntime}, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = e.CreateBrowser(&recorder{}, "", core.BrowserSettings{})
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, e.Initialize(core.Settings{WindowlessRendering: true, NewRuntime: testRuntime}, nil))
	assert.ErrorIs(t, e.Initialize(core.Settings{WindowlessRendering: true, NewRuntime: testRuntime}, nil), ErrAlreadyInitialized)
	e.Shutdown()
	e.Shutdown()
}
