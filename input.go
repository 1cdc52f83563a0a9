package offscreen

import (
	"sync"
	"unicode/utf8"

	"github.com/cryguy/offscreen/internal/core"
)

// InputEventTranslator converts host input into engine input events. It
// never fails; values the engine cannot represent are clamped or replaced.
type InputEventTranslator struct {
	mu      sync.Mutex
	browser core.Browser
	x, y    int
}

func newInputEventTranslator() *InputEventTranslator {
	return &InputEventTranslator{}
}

func (t *InputEventTranslator) attach(b core.Browser) {
	t.mu.Lock()
	t.browser = b
	t.mu.Unlock()
}

// host returns the browser host and the last pointer position.
func (t *InputEventTranslator) host() (core.BrowserHost, core.MouseEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.browser == nil {
		return nil, core.MouseEvent{}
	}
	return t.browser.Host(), core.MouseEvent{X: t.x, Y: t.y}
}

func (t *InputEventTranslator) moveTo(x, y int) {
	t.mu.Lock()
	t.x, t.y = x, y
	t.mu.Unlock()
}

func (t *InputEventTranslator) MouseMove(x, y int) {
	t.moveTo(x, y)
	h, ev := t.host()
	if h == nil {
		return
	}
	h.SetFocus(true)
	h.SendMouseMoveEvent(ev, false)
}

// MouseWheel scrolls at the last pointer position.
func (t *InputEventTranslator) MouseWheel(dx, dy int) {
	h, ev := t.host()
	if h == nil {
		return
	}
	h.SendMouseWheelEvent(ev, dx, dy)
}

// MouseButton presses or releases button id at x, y. Unknown ids act as
// the left button.
func (t *InputEventTranslator) MouseButton(x, y, id int, down bool) {
	t.moveTo(x, y)
	h, ev := t.host()
	if h == nil {
		return
	}
	h.SetFocus(true)
	h.SendMouseClickEvent(ev, mouseButton(id), !down, 1)
}

func mouseButton(id int) core.MouseButton {
	switch id {
	case 1:
		return core.MouseMiddle
	case 2:
		return core.MouseRight
	default:
		return core.MouseLeft
	}
}

// Key sends a raw key transition. Unknown modifier bits are dropped.
func (t *InputEventTranslator) Key(code, modifiers int, down bool) {
	h, _ := t.host()
	if h == nil {
		return
	}
	typ := core.KeyUp
	if down {
		typ = core.KeyRawDown
	}
	h.SendKeyEvent(core.KeyEvent{
		Type:           typ,
		Modifiers:      core.EventFlags(uint32(modifiers)) & core.KnownFlags,
		WindowsKeyCode: min(max(code, 0), 0xFFFF),
	})
}

// Char sends a produced character. Invalid code points become U+FFFD.
func (t *InputEventTranslator) Char(code int) {
	h, _ := t.host()
	if h == nil {
		return
	}
	r := rune(code)
	if code < 0 || code > utf8.MaxRune || !utf8.ValidRune(r) {
		r = utf8.RuneError
	}
	h.SendKeyEvent(core.KeyEvent{
		Type:           core.KeyChar,
		WindowsKeyCode: int(r),
		Character:      r,
	})
}
