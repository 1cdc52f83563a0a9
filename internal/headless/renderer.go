package headless

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
	"github.com/cryguy/offscreen/internal/webapi"
)

var errNoContext = errors.New("no script context")

// commitRequest replaces the renderer's document.
type commitRequest struct {
	result eventloop.LoadResult
	url    string
	// failed commits an error page with reason instead of result.
	failed bool
	reason string
}

// renderer owns one browser's document, script context and page event
// loop. Everything it touches runs on its goroutine, or on the message loop
// thread in single-process mode.
type renderer struct {
	browser *Browser
	engine  *Engine
	log     *zap.Logger
	loop    *eventloop.EventLoop
	comp    *compositor

	background color.RGBA
	timeout    time.Duration

	rtMu sync.Mutex
	rt   core.ScriptContext

	doc  *document
	page *page

	width, height int
	scrollY       int
	focus         *html.Node
	hover         *html.Node
	cursor        core.CursorType
	cursorSent    bool

	dl         *displayList
	laidOut    uint64
	laidWidth  int
	laidHeight int

	inline  bool
	ctx     context.Context
	cancel  context.CancelFunc
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool
}

func newRenderer(b *Browser, comp *compositor, width, height int) *renderer {
	ctx, cancel := context.WithCancel(context.Background())
	r := &renderer{
		browser:    b,
		engine:     b.engine,
		log:        b.log.Named("renderer"),
		loop:       eventloop.New(),
		comp:       comp,
		background: argbColor(b.settings.BackgroundColor),
		timeout:    b.engine.settings.ScriptTimeout,
		width:      width,
		height:     height,
		inline:     b.engine.settings.SingleProcess,
		ctx:        ctx,
		cancel:     cancel,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.page = &page{r: r}
	r.loop.OnPanic = func(p any) {
		r.log.Error("renderer task panicked", zap.Any("panic", p), zap.Stack("stack"))
	}
	return r
}

func (r *renderer) start() {
	if r.inline {
		return
	}
	r.started.Store(true)
	go r.run()
}

// post queues fn on the renderer.
func (r *renderer) post(fn func()) {
	r.loop.Post(eventloop.Task(fn))
}

func (r *renderer) run() {
	defer close(r.done)
	defer r.closeContext()
	for {
		r.pump()

		var wait <-chan time.Time
		var timer *time.Timer
		if next, ok := r.loop.NextTimer(); ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			wait = timer.C
		}
		select {
		case <-r.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-r.loop.Wake():
		case <-wait:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// pump runs whatever page work is ready without waiting. A panicking task
// is logged and dropped; the loop keeps running.
func (r *renderer) pump() {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("renderer task panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()
	r.loop.RunOnce(r.runtime, 0)
	r.relayout()
}

func (r *renderer) shutdown() {
	select {
	case <-r.stop:
		return
	default:
		close(r.stop)
	}
	r.cancel()
	r.interrupt()
	if !r.started.Load() {
		r.closeContext()
		return
	}
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		r.log.Warn("renderer did not stop in time")
	}
}

// runtime returns the current context as a JSRuntime, or a nil interface.
func (r *renderer) runtime() core.JSRuntime {
	r.rtMu.Lock()
	defer r.rtMu.Unlock()
	if r.rt == nil {
		return nil
	}
	return r.rt
}

func (r *renderer) interrupt() {
	r.rtMu.Lock()
	defer r.rtMu.Unlock()
	if r.rt != nil {
		r.rt.Interrupt()
	}
}

func (r *renderer) closeContext() {
	r.rtMu.Lock()
	rt := r.rt
	r.rt = nil
	r.rtMu.Unlock()
	if rt != nil {
		rt.Close()
	}
}

// openContext creates the document's script context and installs the page
// environment.
func (r *renderer) openContext() error {
	newRuntime := r.engine.settings.NewRuntime
	if newRuntime == nil {
		return errNoContext
	}
	rt, err := newRuntime(r.engine.settings.MemoryLimitMB)
	if err != nil {
		return fmt.Errorf("creating script context: %w", err)
	}
	r.rtMu.Lock()
	r.rt = rt
	r.rtMu.Unlock()

	if err := webapi.Install(rt, r.loop, r.page); err != nil {
		return fmt.Errorf("installing page environment: %w", err)
	}
	if app := r.engine.app; app != nil {
		app.OnContextCreated(r.browser, r.browser.frame, rt)
	}
	return nil
}

// guard runs fn with the script watchdog armed.
func (r *renderer) guard(fn func(rt core.ScriptContext) error) (err error) {
	r.rtMu.Lock()
	rt := r.rt
	r.rtMu.Unlock()
	if rt == nil {
		return errNoContext
	}
	if r.timeout > 0 {
		watchdog := time.AfterFunc(r.timeout, rt.Interrupt)
		defer watchdog.Stop()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script panic: %v", p)
		}
	}()
	return fn(rt)
}

// eval runs a classic script and pumps microtasks.
func (r *renderer) eval(code, name string) error {
	err := r.guard(func(rt core.ScriptContext) error {
		if err := rt.Eval(code); err != nil {
			return err
		}
		rt.RunMicrotasks()
		return nil
	})
	if err != nil && !errors.Is(err, errNoContext) {
		r.page.Console("error", fmt.Sprintf("Uncaught %v (%s)", err, name))
	}
	return err
}

// commit swaps in a new document, runs its scripts and fires its lifecycle
// events. It returns once the document is complete.
func (r *renderer) commit(c commitRequest) {
	r.closeContext()
	r.loop.Reset()

	var doc *document
	if c.failed {
		doc = errorDocument(c.url, c.reason)
	} else {
		parsed, err := parseDocument(c.result.Body, c.result.MimeType, c.result.Charset, c.url)
		if err != nil {
			r.log.Warn("document parse failed", zap.String("url", c.url), zap.Error(err))
			doc = errorDocument(c.url, err.Error())
		} else {
			doc = parsed
		}
	}
	r.doc = doc
	r.scrollY = 0
	r.focus, r.hover = nil, nil
	r.dl = nil

	if err := r.openContext(); err != nil {
		r.log.Error("script context unavailable", zap.String("url", c.url), zap.Error(err))
	} else if !c.failed {
		r.runScripts()
	}

	doc.readyState = "interactive"
	r.lifecycle("readystatechange")
	r.lifecycle("DOMContentLoaded")
	doc.readyState = "complete"
	r.lifecycle("readystatechange")
	r.lifecycle("load")
	r.relayout()
}

func (r *renderer) lifecycle(eventType string) {
	err := r.guard(func(rt core.ScriptContext) error {
		return webapi.DispatchLifecycle(rt, eventType)
	})
	if err != nil && !errors.Is(err, errNoContext) {
		r.page.Console("error", err.Error())
	}
}

// runScripts executes the document's scripts in order. Failures are
// reported to the console and never stop the load.
func (r *renderer) runScripts() {
	for _, s := range r.doc.scripts() {
		if s.kind == webapi.ScriptData {
			continue
		}
		code := s.code
		if s.src != "" {
			loaded, err := r.fetchScript(s.src)
			if err != nil {
				r.page.Console("error", fmt.Sprintf("Failed to load script %s: %v", s.src, err))
				continue
			}
			code = loaded
		}
		if strings.TrimSpace(code) == "" {
			continue
		}
		if s.kind != webapi.ScriptClassic {
			transformed, err := webapi.TransformScript(code, s.kind, s.name)
			if err != nil {
				r.page.Console("error", fmt.Sprintf("%s: %v", s.name, err))
				continue
			}
			code = transformed
		}
		_ = r.eval(code, s.name)
	}
}

func (r *renderer) fetchScript(src string) (string, error) {
	res := r.engine.loader.load(r.ctx, src)
	if res.Err != nil {
		return "", res.Err
	}
	if res.Status >= 400 {
		return "", fmt.Errorf("HTTP %d", res.Status)
	}
	return string(res.Body), nil
}

// relayout lays the document out again if it changed and hands the result
// to the compositor.
func (r *renderer) relayout() {
	if r.doc == nil || r.width <= 0 || r.height <= 0 {
		return
	}
	if r.dl != nil && r.laidOut == r.doc.version && r.laidWidth == r.width && r.laidHeight == r.height {
		return
	}
	dl := layoutDocument(r.doc, r.width, r.background)
	r.scrollY = clampInt(r.scrollY, 0, dl.maxScroll(r.height))
	dl.scrollY = r.scrollY
	r.dl = dl
	r.laidOut, r.laidWidth, r.laidHeight = r.doc.version, r.width, r.height
	r.browser.setTitle(r.doc.title())
	r.comp.update(dl)
}

// scrollTo moves the viewport and republishes without a new layout.
func (r *renderer) scrollTo(y int) bool {
	if r.dl == nil {
		return false
	}
	y = clampInt(y, 0, r.dl.maxScroll(r.height))
	if y == r.scrollY {
		return false
	}
	r.scrollY = y
	r.dl = r.dl.withScroll(y)
	r.comp.update(r.dl)
	return true
}

func (r *renderer) resize(width, height int) {
	r.width, r.height = width, height
	r.relayout()
}

// execute runs host-supplied script in the current document.
func (r *renderer) execute(code, scriptURL string, startLine int) {
	name := scriptURL
	if name == "" {
		name = "<host>"
	}
	if startLine > 1 {
		name = fmt.Sprintf("%s:%d", name, startLine)
	}
	if err := r.eval(code, name); errors.Is(err, errNoContext) {
		r.log.Debug("script dropped, no document context", zap.String("script", name))
	}
}

// evaluate returns the string form of expression.
func (r *renderer) evaluate(expression string) (string, error) {
	var out string
	err := r.guard(func(rt core.ScriptContext) error {
		v, err := rt.EvalString("String((0, eval)(" + core.JsEscape(expression) + "))")
		rt.RunMicrotasks()
		out = v
		return err
	})
	return out, err
}

// source serializes the current document. Before the first commit the
// browser shows the initial empty document.
func (r *renderer) source() string {
	if r.doc == nil {
		return blankDocument
	}
	return r.doc.serialize()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
