// Package headless is an in-process, windowless browser engine. Pages are
// loaded over the network, parsed, scripted and rasterized to BGRA frames
// without any window system.
//
// Threading follows a poll-driven model: close negotiation and load
// callbacks run on the caller's thread inside DoMessageLoopWork. Each
// browser has a renderer goroutine that owns its document and script
// context, and a compositor goroutine that delivers paints.
package headless

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/devtools"
	"github.com/cryguy/offscreen/internal/eventloop"
	"github.com/cryguy/offscreen/internal/storage"
)

// DefaultUserAgent is sent when Settings.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) offscreen/1.0 Safari/537.36"

// Settings defaults.
const (
	defaultAcceptLanguage  = "en-US,en;q=0.9"
	defaultMaxTasksPerStep = 64
	defaultScriptTimeout   = 5 * time.Second
	defaultMemoryLimitMB   = 128
)

var (
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotInitialized     = errors.New("engine not initialized")
	ErrInvalidSettings    = errors.New("invalid engine settings")
)

// Engine implements core.Engine.
type Engine struct {
	mu          sync.Mutex
	initialized bool
	browsers    map[int]*Browser
	nextID      int

	settings core.Settings
	app      core.App
	log      *zap.Logger
	ui       *eventloop.EventLoop
	store    *storage.Store
	loader   *loader
	devtools *devtools.Server
}

var (
	_ core.Engine       = (*Engine)(nil)
	_ devtools.Registry = (*Engine)(nil)
)

// New creates an uninitialized engine.
func New() *Engine {
	return &Engine{browsers: make(map[int]*Browser)}
}

func withDefaults(s core.Settings) core.Settings {
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.AcceptLanguage == "" {
		s.AcceptLanguage = defaultAcceptLanguage
	}
	if s.MaxTasksPerStep <= 0 {
		s.MaxTasksPerStep = defaultMaxTasksPerStep
	}
	if s.ScriptTimeout <= 0 {
		s.ScriptTimeout = defaultScriptTimeout
	}
	if s.MemoryLimitMB <= 0 {
		s.MemoryLimitMB = defaultMemoryLimitMB
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	return s
}

// Initialize prepares the engine for browsers. It fails if called twice
// without Shutdown.
func (e *Engine) Initialize(settings core.Settings, app core.App) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return ErrAlreadyInitialized
	}
	switch {
	case !settings.WindowlessRendering:
		return fmt.Errorf("%w: windowless rendering is required", ErrInvalidSettings)
	case settings.MultiThreadedMessageLoop:
		return fmt.Errorf("%w: the message loop must be driven by DoMessageLoopWork", ErrInvalidSettings)
	case settings.NewRuntime == nil:
		return fmt.Errorf("%w: no script runtime", ErrInvalidSettings)
	}
	s := withDefaults(settings)
	log := s.Logger.Named("engine")

	store, err := storage.Open(s.CachePath)
	if err != nil {
		return fmt.Errorf("opening local storage: %w", err)
	}

	e.settings = s
	e.app = app
	e.log = log
	e.ui = eventloop.New()
	e.ui.OnPanic = func(p any) {
		log.Error("ui task panicked", zap.Any("panic", p), zap.Stack("stack"))
	}
	e.store = store
	e.loader = newLoader(s)
	e.browsers = make(map[int]*Browser)

	if s.RemoteDebuggingPort > 0 {
		srv := devtools.New(e, s.Metrics, s.UserAgent, s.Logger)
		if err := srv.Start(s.RemoteDebuggingPort); err != nil {
			_ = store.Close()
			return fmt.Errorf("starting remote debugging: %w", err)
		}
		e.devtools = srv
	}
	if s.SingleProcess {
		log.Warn("single-process mode: page scripts run on the message loop thread")
	}
	e.initialized = true
	log.Debug("engine initialized", zap.String("cache", store.Path))
	return nil
}

// DoMessageLoopWork runs ready message loop tasks and returns. It never
// waits for work.
func (e *Engine) DoMessageLoopWork() {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return
	}
	ui, maxTasks, inline := e.ui, e.settings.MaxTasksPerStep, e.settings.SingleProcess
	e.mu.Unlock()

	ui.RunOnce(nil, maxTasks)
	if inline {
		for _, b := range e.snapshot() {
			b.renderer.pump()
		}
	}
}

// Shutdown closes every browser and releases engine resources.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return
	}
	e.initialized = false
	e.mu.Unlock()

	for _, b := range e.snapshot() {
		b.destroy()
	}
	e.ui.CancelPendingLoads()
	if e.devtools != nil {
		_ = e.devtools.Close()
		e.devtools = nil
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("closing local storage", zap.Error(err))
	}
	e.log.Debug("engine shut down")
}

// CreateBrowser creates a browser and starts loading url. OnAfterCreated
// has run by the time it returns.
func (e *Engine) CreateBrowser(client core.Client, url string, settings core.BrowserSettings) (core.Browser, error) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}
	e.nextID++
	id := e.nextID
	e.mu.Unlock()

	b := newBrowser(e, id, client, settings)
	width, height := 0, 0
	if h := b.renderHandler(); h != nil {
		view := h.GetViewRect(b)
		width, height = view.Width, view.Height
	}
	b.comp = newCompositor(b, b.renderHandler(), settings.WindowlessFrameRate)
	b.renderer = newRenderer(b, b.comp, width, height)

	e.mu.Lock()
	e.browsers[id] = b
	e.mu.Unlock()

	b.renderer.start()
	b.comp.start()
	b.lifeSpanHandler().OnAfterCreated(b)

	if url == "" {
		url = "about:blank"
	}
	b.frame.LoadURL(url)
	b.log.Debug("browser created", zap.String("url", url), zap.Int("width", width), zap.Int("height", height))
	return b, nil
}

func (e *Engine) remove(b *Browser) {
	e.mu.Lock()
	delete(e.browsers, b.id)
	e.mu.Unlock()
}

func (e *Engine) snapshot() []*Browser {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Browser, 0, len(e.browsers))
	for _, b := range e.browsers {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Targets lists open browsers for remote debugging.
func (e *Engine) Targets() []devtools.Target {
	browsers := e.snapshot()
	out := make([]devtools.Target, 0, len(browsers))
	for _, b := range browsers {
		out = append(out, b)
	}
	return out
}

func (e *Engine) publish(b *Browser, method string, params any) {
	if e.devtools != nil {
		e.devtools.Publish(b.targetID, method, params)
	}
}

// console routes a page console message to the log, the settings sink
// and remote debugging clients.
func (e *Engine) console(b *Browser, level, message string) {
	entry := core.LogEntry{Level: level, Message: message, Time: time.Now()}
	log := e.settings.Logger.Named("page").With(zap.Int("browser", b.id))
	switch level {
	case "error":
		log.Error(message)
	case "warn":
		log.Warn(message)
	case "info", "log":
		log.Info(message)
	default:
		log.Debug(message, zap.String("level", level))
	}
	if e.settings.Console != nil {
		e.settings.Console(b.id, entry)
	}
	e.publish(b, "Runtime.consoleAPICalled", map[string]any{
		"type":      level,
		"args":      []map[string]any{{"type": "string", "value": message}},
		"timestamp": float64(entry.Time.UnixNano()) / 1e6,
	})
}
