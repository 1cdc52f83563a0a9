package core

// Engine is the process-level entry point of an embedded browser engine.
// Initialize and Shutdown bracket every other call. DoMessageLoopWork must
// return promptly; it runs whatever engine work is ready and nothing more.
type Engine interface {
	Initialize(settings Settings, app App) error
	DoMessageLoopWork()
	Shutdown()
	// CreateBrowser returns once the browser exists and OnAfterCreated has run.
	CreateBrowser(client Client, url string, settings BrowserSettings) (Browser, error)
}

// Browser is one top-level browsing context.
type Browser interface {
	ID() int
	Host() BrowserHost
	MainFrame() Frame
	StopLoad()
	Reload()
	GoBack()
	GoForward()
	CanGoBack() bool
	CanGoForward() bool
	FrameCount() int
}

// BrowserHost is the windowless host side of a browser: focus, sizing,
// close requests and input injection.
type BrowserHost interface {
	SetFocus(focus bool)
	WasResized()
	CloseBrowser(force bool)
	SendMouseMoveEvent(ev MouseEvent, mouseLeave bool)
	SendMouseWheelEvent(ev MouseEvent, deltaX, deltaY int)
	SendMouseClickEvent(ev MouseEvent, button MouseButton, mouseUp bool, clickCount int)
	SendKeyEvent(ev KeyEvent)
}

// Frame is a document container.
type Frame interface {
	LoadURL(url string)
	LoadString(content, url string)
	URL() string
	ExecuteJavaScript(code, scriptURL string, startLine int)
	// GetSource serializes the current document and hands it to the visitor
	// asynchronously.
	GetSource(visitor StringVisitor)
}

// StringVisitor receives asynchronously produced strings.
type StringVisitor interface {
	Visit(value string)
}

// RenderHandler receives view geometry queries, paints and cursor changes.
// OnPaint may be called from an engine goroutine at any time.
type RenderHandler interface {
	GetViewRect(browser Browser) Rect
	OnPaint(browser Browser, kind PaintElementType, dirty []Rect, buffer []byte, width, height int)
	OnCursorChange(browser Browser, cursor CursorType)
}

// LoadHandler observes navigation progress of a browser.
type LoadHandler interface {
	OnLoadStart(browser Browser, frame Frame)
	OnLoadEnd(browser Browser, frame Frame, httpStatusCode int)
	OnLoadError(browser Browser, frame Frame, code ErrorCode, errorText, failedURL string)
	OnLoadingStateChange(browser Browser, isLoading, canGoBack, canGoForward bool)
}

// LifeSpanHandler observes creation and close negotiation.
type LifeSpanHandler interface {
	OnAfterCreated(browser Browser)
	// DoClose returns true to cancel the default close, false to allow it.
	DoClose(browser Browser) bool
	OnBeforeClose(browser Browser)
}

// Client hands the engine the handlers for one browser.
type Client interface {
	RenderHandler() RenderHandler
	LoadHandler() LoadHandler
	LifeSpanHandler() LifeSpanHandler
}

// App receives render-process callbacks.
type App interface {
	// OnContextCreated runs once per document script context, before any page
	// script executes, on the goroutine that owns the context.
	OnContextCreated(browser Browser, frame Frame, ctx JSRuntime)
}

// FrameCounter is implemented by browsers that count the frames they have
// composited.
type FrameCounter interface {
	FramesPainted() int
}
