package core

// PaintElementType identifies which surface a paint belongs to.
type PaintElementType int

const (
	PaintView PaintElementType = iota
	PaintPopup
)

func (t PaintElementType) String() string {
	switch t {
	case PaintView:
		return "view"
	case PaintPopup:
		return "popup"
	default:
		return "unknown"
	}
}

// CursorType is the cursor the page asks for. The numeric value is the code
// reported across the host boundary, so the order is fixed.
type CursorType int

const (
	CursorPointer CursorType = iota
	CursorCross
	CursorHand
	CursorIBeam
	CursorWait
	CursorHelp
	CursorEastResize
	CursorNorthResize
	CursorNorthEastResize
	CursorNorthWestResize
	CursorSouthResize
	CursorSouthEastResize
	CursorSouthWestResize
	CursorWestResize
	CursorNorthSouthResize
	CursorEastWestResize
	CursorNorthEastSouthWestResize
	CursorNorthWestSouthEastResize
	CursorColumnResize
	CursorRowResize
	CursorMiddlePanning
	CursorEastPanning
	CursorNorthPanning
	CursorNorthEastPanning
	CursorNorthWestPanning
	CursorSouthPanning
	CursorSouthEastPanning
	CursorSouthWestPanning
	CursorWestPanning
	CursorMove
	CursorVerticalText
	CursorCell
	CursorContextMenu
	CursorAlias
	CursorProgress
	CursorNoDrop
	CursorCopy
	CursorNone
	CursorNotAllowed
	CursorZoomIn
	CursorZoomOut
	CursorGrab
	CursorGrabbing
)

// cssCursors maps CSS cursor keywords to cursor types.
var cssCursors = map[string]CursorType{
	"default":       CursorPointer,
	"auto":          CursorPointer,
	"crosshair":     CursorCross,
	"pointer":       CursorHand,
	"text":          CursorIBeam,
	"wait":          CursorWait,
	"help":          CursorHelp,
	"e-resize":      CursorEastResize,
	"n-resize":      CursorNorthResize,
	"ne-resize":     CursorNorthEastResize,
	"nw-resize":     CursorNorthWestResize,
	"s-resize":      CursorSouthResize,
	"se-resize":     CursorSouthEastResize,
	"sw-resize":     CursorSouthWestResize,
	"w-resize":      CursorWestResize,
	"ns-resize":     CursorNorthSouthResize,
	"ew-resize":     CursorEastWestResize,
	"nesw-resize":   CursorNorthEastSouthWestResize,
	"nwse-resize":   CursorNorthWestSouthEastResize,
	"col-resize":    CursorColumnResize,
	"row-resize":    CursorRowResize,
	"all-scroll":    CursorMiddlePanning,
	"move":          CursorMove,
	"vertical-text": CursorVerticalText,
	"cell":          CursorCell,
	"context-menu":  CursorContextMenu,
	"alias":         CursorAlias,
	"progress":      CursorProgress,
	"no-drop":       CursorNoDrop,
	"copy":          CursorCopy,
	"none":          CursorNone,
	"not-allowed":   CursorNotAllowed,
	"zoom-in":       CursorZoomIn,
	"zoom-out":      CursorZoomOut,
	"grab":          CursorGrab,
	"grabbing":      CursorGrabbing,
}

// CursorFromCSS resolves a CSS cursor keyword. ok is false for unknown keywords.
func CursorFromCSS(keyword string) (c CursorType, ok bool) {
	c, ok = cssCursors[keyword]
	return c, ok
}

// MouseButton identifies a mouse button.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
)

// KeyEventType distinguishes raw key transitions from produced characters.
type KeyEventType int

const (
	KeyRawDown KeyEventType = iota
	KeyDown
	KeyUp
	KeyChar
)

func (t KeyEventType) String() string {
	switch t {
	case KeyRawDown:
		return "rawkeydown"
	case KeyDown:
		return "keydown"
	case KeyUp:
		return "keyup"
	case KeyChar:
		return "char"
	default:
		return "unknown"
	}
}

// EventFlags is the modifier bit set carried by input events.
type EventFlags uint32

const (
	FlagCapsLock EventFlags = 1 << iota
	FlagShift
	FlagControl
	FlagAlt
	FlagLeftMouse
	FlagMiddleMouse
	FlagRightMouse
	FlagCommand
	FlagNumLock
	FlagIsKeyPad
	FlagIsLeft
	FlagIsRight
)

// KnownFlags covers every defined modifier bit.
const KnownFlags = FlagCapsLock | FlagShift | FlagControl | FlagAlt |
	FlagLeftMouse | FlagMiddleMouse | FlagRightMouse | FlagCommand |
	FlagNumLock | FlagIsKeyPad | FlagIsLeft | FlagIsRight

// MouseEvent is a pointer position in view coordinates.
type MouseEvent struct {
	X         int
	Y         int
	Modifiers EventFlags
}

// KeyEvent is a keyboard event as the engine consumes it.
type KeyEvent struct {
	Type           KeyEventType
	Modifiers      EventFlags
	WindowsKeyCode int
	Character      rune
}

// Rect is a rectangle in view coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Load error codes reported through LoadHandler.OnLoadError.
type ErrorCode int

const (
	ErrNone              ErrorCode = 0
	ErrFailed            ErrorCode = -2
	ErrAborted           ErrorCode = -3
	ErrFileNotFound      ErrorCode = -6
	ErrTimedOut          ErrorCode = -7
	ErrFileTooBig        ErrorCode = -8
	ErrConnectionRefused ErrorCode = -102
	ErrNameNotResolved   ErrorCode = -105
	ErrInvalidURL        ErrorCode = -300
	ErrUnknownURLScheme  ErrorCode = -302
)

// HTTPStatus folds a load error into a non-2xx status code the host can poll.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrNone:
		return 200
	case ErrAborted:
		return 0
	case ErrFileNotFound:
		return 404
	case ErrTimedOut:
		return 504
	case ErrFileTooBig:
		return 413
	case ErrInvalidURL, ErrUnknownURLScheme:
		return 400
	default:
		return 502
	}
}
