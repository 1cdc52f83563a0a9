package offscreen

import "github.com/cryguy/offscreen/internal/core"

// Type aliases re-exporting internal/core types so hosts can supply their
// own engine or inspect callback values without importing the internal
// package directly.

type Engine = core.Engine
type Browser = core.Browser
type BrowserHost = core.BrowserHost
type Frame = core.Frame
type StringVisitor = core.StringVisitor
type RenderHandler = core.RenderHandler
type LoadHandler = core.LoadHandler
type LifeSpanHandler = core.LifeSpanHandler
type Client = core.Client
type App = core.App
type JSRuntime = core.JSRuntime
type CursorType = core.CursorType
type PaintElementType = core.PaintElementType
type MouseButton = core.MouseButton
type EventFlags = core.EventFlags
type ErrorCode = core.ErrorCode
type Rect = core.Rect
type LogEntry = core.LogEntry

const (
	CursorPointer = core.CursorPointer
	CursorHand    = core.CursorHand
	CursorIBeam   = core.CursorIBeam
)
