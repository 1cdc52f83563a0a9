// Package offscreen drives an embedded browser engine from a host that can
// only make synchronous calls and poll for results. A Session owns one
// windowless browser; the host advances it with Step and reads frames from
// a buffer it supplied.
package offscreen

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/headless"
)

// active guards the one engine a process may host.
var active atomic.Bool

// Options configure Init.
type Options struct {
	Width     int
	Height    int
	FrameRate int
	// Buffer receives presented frames as BGRA rows. It must hold at least
	// Width*Height*4 bytes and is never reallocated.
	Buffer []byte
	// SingleProcess runs page scripts on the host thread. Known to break
	// the transfer binding with some engines; passed through unchanged.
	SingleProcess bool
	// Config defaults to LoadConfigOrDefault.
	Config *Config
	// Engine defaults to the built-in headless engine.
	Engine core.Engine
	// Logger defaults to the package logger.
	Logger *zap.Logger
}

// Session is one initialized engine with one browser.
type Session struct {
	id      string
	cfg     *Config
	log     *zap.Logger
	metrics *metrics

	engine  core.Engine
	browser core.Browser

	surface *RenderSurface
	nav     *NavigationStateTracker
	input   *InputEventTranslator
	scripts *ScriptBridge
	source  *SourceFetchBridge

	mu       sync.Mutex
	released bool
}

// Init starts the engine and creates a browser at about:blank.
func Init(opts Options) (*Session, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, &InitError{Kind: AlreadyInitialized}
	}
	s, err := newSession(opts)
	if err != nil {
		active.Store(false)
		return nil, err
	}
	return s, nil
}

func newSession(opts Options) (*Session, error) {
	if !validViewport(opts.Width, opts.Height) {
		return nil, &InitError{Kind: InvalidArgument, Err: ErrInvalidViewport}
	}
	if len(opts.Buffer) < frameBytes(opts.Width, opts.Height) {
		return nil, &InitError{Kind: InvalidArgument, Err: ErrBufferTooSmall}
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = LoadConfigOrDefault()
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		cfg:     cfg,
		log:     log.With(zap.String("session", id)),
		metrics: newMetrics(id),
		engine:  opts.Engine,
		input:   newInputEventTranslator(),
		source:  newSourceFetchBridge(),
	}
	s.surface = newRenderSurface(opts.Width, opts.Height, opts.Buffer, s.metrics)
	s.nav = newNavigationStateTracker(s.observe)
	s.scripts = newScriptBridge(cfg.bindingName(), s.log, s.metrics)
	if s.engine == nil {
		s.engine = headless.New()
	}

	if opts.SingleProcess {
		s.log.Warn("single-process mode requested; the transfer binding may not work")
	}
	settings := core.Settings{
		WindowlessRendering: true,
		SingleProcess:       opts.SingleProcess,
		CachePath:           cfg.CachePath,
		UserAgent:           cfg.UserAgent,
		AcceptLanguage:      cfg.AcceptLanguage,
		RemoteDebuggingPort: cfg.RemoteDebuggingPort,
		MemoryLimitMB:       cfg.MemoryLimitMB,
		ScriptTimeout:       cfg.scriptTimeout(),
		NetworkTimeout:      cfg.networkTimeout(),
		MaxResponseBytes:    cfg.MaxResponseBytes,
		MaxTasksPerStep:     cfg.MaxTasksPerStep,
		NewRuntime:          defaultRuntime(),
		Logger:              s.log,
		Metrics:             s.metrics.registry,
	}
	if err := s.engine.Initialize(settings, s.scripts); err != nil {
		return nil, &InitError{Kind: EngineBootstrapFailed, Err: err}
	}

	c := &client{surface: s.surface, nav: s.nav}
	browser, err := s.engine.CreateBrowser(c, "about:blank", core.BrowserSettings{
		WindowlessFrameRate: opts.FrameRate,
		BackgroundColor:     cfg.BackgroundColor,
	})
	if err != nil {
		s.engine.Shutdown()
		return nil, &InitError{Kind: EngineBootstrapFailed, Err: err}
	}
	s.browser = browser
	s.input.attach(browser)
	browser.Host().SetFocus(true)

	s.log.Info("session started",
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.Int("frame_rate", opts.FrameRate),
		zap.Int("browser", browser.ID()))
	return s, nil
}

func (s *Session) observe(snap NavigationSnapshot) {
	s.metrics.lastHTTPStatus.Set(float64(snap.LastHTTPStatus))
	s.log.Debug("navigation state",
		zap.Stringer("state", snap.State),
		zap.Bool("loaded", snap.IsLoaded),
		zap.Int("status", snap.LastHTTPStatus))
}

// check returns a LifecycleError once the session is torn down.
func (s *Session) check(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return &LifecycleError{Op: op, Err: ErrNotInitialized}
	}
	return nil
}

func (s *Session) live() bool { return s.check("") == nil }

// Step runs one slice of engine work and presents the latest frame. It
// reports whether a new frame reached the host buffer. Once the browser
// has agreed to close, Step no longer touches the engine.
func (s *Session) Step() (bool, error) {
	if err := s.check("step"); err != nil {
		return false, err
	}
	if s.nav.CloseAllowed() {
		return false, nil
	}
	s.engine.DoMessageLoopWork()
	s.metrics.steps.Inc()
	return s.surface.present(), nil
}

// HasNewPaint consumes the new-frame flag set by Step.
func (s *Session) HasNewPaint() bool { return s.live() && s.surface.HasNewPaint() }

// Resize changes the viewport. A nil buf keeps the current buffer, which
// must then be large enough for the new size.
func (s *Session) Resize(width, height int, buf []byte) error {
	if err := s.check("resize"); err != nil {
		return err
	}
	if err := s.surface.Resize(width, height, buf); err != nil {
		return &LifecycleError{Op: "resize", Err: err}
	}
	host := s.browser.Host()
	host.WasResized()
	host.SetFocus(true)
	return nil
}

// RequestClose asks the browser to close. CloseAllowed turns true once the
// engine has run the close negotiation.
func (s *Session) RequestClose() error {
	if err := s.check("close"); err != nil {
		return err
	}
	s.browser.Host().CloseBrowser(false)
	return nil
}

// Teardown closes the browser, shuts the engine down and releases the
// process guard. Calling it twice returns ErrNotInitialized.
func (s *Session) Teardown() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return &LifecycleError{Op: "teardown", Err: ErrNotInitialized}
	}
	s.released = true
	s.mu.Unlock()

	if !s.nav.CloseAllowed() {
		s.browser.Host().CloseBrowser(false)
		s.engine.DoMessageLoopWork()
	}
	s.input.attach(nil)
	s.surface.release()
	s.engine.Shutdown()
	active.Store(false)
	s.log.Info("session stopped")
	return nil
}

func (s *Session) frame() core.Frame { return s.browser.MainFrame() }

// SetURL navigates the main frame.
func (s *Session) SetURL(url string) error {
	if err := s.check("set_url"); err != nil {
		return err
	}
	s.metrics.navigations.Inc()
	s.frame().LoadURL(url)
	return nil
}

// SetHTML loads content as a document whose URL is baseURL.
func (s *Session) SetHTML(content, baseURL string) error {
	if err := s.check("set_html"); err != nil {
		return err
	}
	s.metrics.navigations.Inc()
	s.frame().LoadString(content, baseURL)
	return nil
}

// URL returns the committed main-frame URL, or "" after teardown.
func (s *Session) URL() string {
	if !s.live() {
		return ""
	}
	return s.frame().URL()
}

// ExecuteScript runs js in the current document.
func (s *Session) ExecuteScript(js string) error {
	if err := s.check("execute_script"); err != nil {
		return err
	}
	s.frame().ExecuteJavaScript(js, s.frame().URL(), 1)
	return nil
}

func (s *Session) navOp(op string, fn func(core.Browser)) error {
	if err := s.check(op); err != nil {
		return err
	}
	fn(s.browser)
	return nil
}

// Stop cancels a load in progress.
func (s *Session) Stop() error { return s.navOp("stop", core.Browser.StopLoad) }

// Reload reloads the current document.
func (s *Session) Reload() error { return s.navOp("reload", core.Browser.Reload) }

// Back goes one entry back in history, if there is one.
func (s *Session) Back() error { return s.navOp("back", core.Browser.GoBack) }

// Forward goes one entry forward in history, if there is one.
func (s *Session) Forward() error { return s.navOp("forward", core.Browser.GoForward) }

// Cursor returns the cursor the page last asked for, or 0 after teardown.
func (s *Session) Cursor() core.CursorType {
	if !s.live() {
		return 0
	}
	return s.surface.Cursor()
}

// Navigation returns the current navigation state. After teardown it is
// the zero snapshot.
func (s *Session) Navigation() NavigationSnapshot {
	if !s.live() {
		return NavigationSnapshot{}
	}
	return s.nav.Snapshot()
}

// IsLoaded reports whether the last navigation finished loading.
func (s *Session) IsLoaded() bool { return s.Navigation().IsLoaded }

// CanGoBack reports whether Back has an entry to go to.
func (s *Session) CanGoBack() bool { return s.Navigation().CanGoBack }

// CanGoForward reports whether Forward has an entry to go to.
func (s *Session) CanGoForward() bool { return s.Navigation().CanGoForward }

// LastHTTPStatus is the status code of the last completed main-frame load.
func (s *Session) LastHTTPStatus() int { return s.Navigation().LastHTTPStatus }

// CloseAllowed reports whether the engine agreed to close the browser.
func (s *Session) CloseAllowed() bool { return s.live() && s.nav.CloseAllowed() }

// Viewport returns the current frame size, or 0, 0 after teardown.
func (s *Session) Viewport() (width, height int) {
	if !s.live() {
		return 0, 0
	}
	return s.surface.Viewport()
}

// ID identifies the session in logs and metric labels.
func (s *Session) ID() string { return s.id }

// Metrics returns the session's private metric registry.
func (s *Session) Metrics() *prometheus.Registry { return s.metrics.registry }

// Logger returns the session-scoped logger.
func (s *Session) Logger() *zap.Logger { return s.log }

// Debug metric ids.
const (
	DebugFrameCount    = 0 // frames in the browser
	DebugFramesPainted = 1 // frames composited by the engine
	DebugPaints        = 2 // paint callbacks seen by the surface
)

// Debug returns a diagnostic counter. Unknown ids report DebugPaints. All
// counters read 0 after teardown.
func (s *Session) Debug(metric int) int {
	if !s.live() {
		return 0
	}
	switch metric {
	case DebugFrameCount:
		return s.browser.FrameCount()
	case DebugFramesPainted:
		if fc, ok := s.browser.(core.FrameCounter); ok {
			return fc.FramesPainted()
		}
	}
	return s.surface.PaintCount()
}

func (s *Session) withInput(op string, fn func(*InputEventTranslator)) error {
	if err := s.check(op); err != nil {
		return err
	}
	fn(s.input)
	return nil
}

// MouseMove moves the pointer to x, y.
func (s *Session) MouseMove(x, y int) error {
	return s.withInput("mouse_move", func(t *InputEventTranslator) { t.MouseMove(x, y) })
}

// MouseWheel scrolls at the last pointer position.
func (s *Session) MouseWheel(dx, dy int) error {
	return s.withInput("mouse_wheel", func(t *InputEventTranslator) { t.MouseWheel(dx, dy) })
}

// MouseButton presses or releases button id at x, y.
func (s *Session) MouseButton(x, y, id int, down bool) error {
	return s.withInput("mouse_button", func(t *InputEventTranslator) { t.MouseButton(x, y, id, down) })
}

// Key sends a raw key press or release.
func (s *Session) Key(code, modifiers int, down bool) error {
	return s.withInput("key_event", func(t *InputEventTranslator) { t.Key(code, modifiers, down) })
}

// Char types the character code.
func (s *Session) Char(code int) error {
	return s.withInput("key_char", func(t *InputEventTranslator) { t.Char(code) })
}

// RequestSource asks for the current document's serialized markup.
func (s *Session) RequestSource() error {
	if err := s.check("request_source"); err != nil {
		return err
	}
	s.metrics.sourceRequests.Inc()
	s.source.RequestSource(s.frame())
	return nil
}

// SourceReady reports, once, that the requested source has arrived.
func (s *Session) SourceReady() bool { return s.live() && s.source.CheckReady() }

// Source returns the last fetched source, or "" after teardown.
func (s *Session) Source() string {
	if !s.live() {
		return ""
	}
	return s.source.GetValue()
}

// TransferReady reports whether the page has sent a value.
func (s *Session) TransferReady() bool { return s.live() && s.scripts.HasTransfer() }

// Transfer returns the last value the page sent, or "" after teardown.
func (s *Session) Transfer() string {
	if !s.live() {
		return ""
	}
	return s.scripts.GetTransfer()
}

// ResetTransfer clears the pending transfer flag.
func (s *Session) ResetTransfer() { s.scripts.ResetTransfer() }
