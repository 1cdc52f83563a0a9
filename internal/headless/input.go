package headless

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/webapi"
)

// Windows virtual key codes with default actions.
const (
	vkBack   = 0x08
	vkReturn = 0x0D
)

// hit lays out if needed and returns the node under (x, y).
func (r *renderer) hit(x, y int) *html.Node {
	r.relayout()
	if r.dl == nil {
		return nil
	}
	return r.dl.hitTest(x, y)
}

// cursorFor resolves the cursor shown over n: an inline cursor style on n
// or an ancestor wins, then links, then text fields.
func (r *renderer) cursorFor(n *html.Node) core.CursorType {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if v, ok := inlineStyle(p)["cursor"]; ok {
			if c, ok := core.CursorFromCSS(strings.ToLower(strings.Fields(v + " ")[0])); ok {
				return c
			}
		}
	}
	if _, ok := r.doc.link(n); ok {
		return core.CursorHand
	}
	if isTextField(n) {
		return core.CursorIBeam
	}
	return core.CursorPointer
}

func (r *renderer) setCursor(c core.CursorType) {
	if r.cursorSent && c == r.cursor {
		return
	}
	r.cursor, r.cursorSent = c, true
	if h := r.browser.renderHandler(); h != nil {
		h.OnCursorChange(r.browser, c)
	}
}

func isTextField(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Textarea:
		return true
	case atom.Input:
		typ, _ := getAttr(n, "type")
		switch strings.ToLower(typ) {
		case "", "text", "search", "email", "url", "tel", "password", "number":
			return true
		}
	}
	return false
}

func focusable(n *html.Node) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.DataAtom {
		case atom.Input, atom.Textarea, atom.Select, atom.Button:
			return p
		case atom.A:
			if _, ok := getAttr(p, "href"); ok {
				return p
			}
		}
		if _, ok := getAttr(p, "tabindex"); ok {
			return p
		}
	}
	return nil
}

func modifierInit(init map[string]any, mods core.EventFlags) map[string]any {
	init["shiftKey"] = mods&core.FlagShift != 0
	init["ctrlKey"] = mods&core.FlagControl != 0
	init["altKey"] = mods&core.FlagAlt != 0
	init["metaKey"] = mods&core.FlagCommand != 0
	return init
}

func (r *renderer) mouseInit(ev core.MouseEvent, button, detail int) map[string]any {
	buttons := 0
	if ev.Modifiers&core.FlagLeftMouse != 0 {
		buttons |= 1
	}
	if ev.Modifiers&core.FlagRightMouse != 0 {
		buttons |= 2
	}
	if ev.Modifiers&core.FlagMiddleMouse != 0 {
		buttons |= 4
	}
	return modifierInit(map[string]any{
		"clientX": ev.X,
		"clientY": ev.Y,
		"pageX":   ev.X,
		"pageY":   ev.Y + r.scrollY,
		"button":  button,
		"buttons": buttons,
		"detail":  detail,
	}, ev.Modifiers)
}

// dispatch fires an event at n. It reports false when the page prevented
// the default action.
func (r *renderer) dispatch(eventType string, n *html.Node, init map[string]any) bool {
	if r.doc == nil {
		return true
	}
	ok := true
	err := r.guard(func(rt core.ScriptContext) error {
		var err error
		ok, err = webapi.DispatchInput(rt, webapi.InputEvent{Type: eventType, Path: r.doc.path(n), Init: init})
		return err
	})
	if err != nil && !errors.Is(err, errNoContext) {
		r.page.Console("error", err.Error())
	}
	return ok
}

func (r *renderer) mouseMove(ev core.MouseEvent, leave bool) {
	if r.doc == nil {
		return
	}
	if leave {
		if r.hover != nil {
			r.dispatch("mouseleave", r.hover, r.mouseInit(ev, 0, 0))
		}
		r.hover = nil
		r.setCursor(core.CursorPointer)
		return
	}
	n := r.hit(ev.X, ev.Y)
	if n != r.hover {
		if r.hover != nil {
			r.dispatch("mouseout", r.hover, r.mouseInit(ev, 0, 0))
		}
		if n != nil {
			r.dispatch("mouseover", n, r.mouseInit(ev, 0, 0))
		}
		r.hover = n
	}
	r.setCursor(r.cursorFor(n))
	r.dispatch("mousemove", n, r.mouseInit(ev, 0, 0))
}

func domButton(b core.MouseButton) int {
	switch b {
	case core.MouseMiddle:
		return 1
	case core.MouseRight:
		return 2
	default:
		return 0
	}
}

func (r *renderer) mouseClick(ev core.MouseEvent, button core.MouseButton, up bool, clicks int) {
	if r.doc == nil {
		return
	}
	n := r.hit(ev.X, ev.Y)
	b := domButton(button)
	if !up {
		r.setFocus(focusable(n))
		r.dispatch("mousedown", n, r.mouseInit(ev, b, clicks))
		return
	}
	r.dispatch("mouseup", n, r.mouseInit(ev, b, clicks))
	switch button {
	case core.MouseLeft:
		if clicks < 1 {
			return
		}
		if !r.dispatch("click", n, r.mouseInit(ev, b, clicks)) {
			return
		}
		if clicks == 2 {
			r.dispatch("dblclick", n, r.mouseInit(ev, b, clicks))
		}
		r.activate(n)
	case core.MouseMiddle:
		r.dispatch("auxclick", n, r.mouseInit(ev, b, clicks))
	case core.MouseRight:
		r.dispatch("contextmenu", n, r.mouseInit(ev, b, clicks))
	}
}

// activate performs the default action of a click on n.
func (r *renderer) activate(n *html.Node) {
	if href, ok := r.doc.link(n); ok {
		r.page.Navigate(href)
		return
	}
	if n == nil || n.DataAtom != atom.Input {
		return
	}
	typ, _ := getAttr(n, "type")
	switch strings.ToLower(typ) {
	case "checkbox":
		h := r.doc.handle(n)
		if _, checked := getAttr(n, "checked"); checked {
			r.doc.removeAttr(h, "checked")
		} else {
			r.doc.setAttr(h, "checked", "")
		}
		r.dispatch("input", n, map[string]any{})
		r.dispatch("change", n, map[string]any{})
	}
}

func (r *renderer) setFocus(n *html.Node) {
	if n == r.focus {
		return
	}
	if r.focus != nil {
		r.dispatch("blur", r.focus, map[string]any{})
	}
	r.focus = n
	if n != nil {
		r.dispatch("focus", n, map[string]any{})
	}
}

// viewFocus delivers window focus changes from the host.
func (r *renderer) viewFocus(focused bool) {
	if r.doc == nil {
		return
	}
	if focused {
		r.dispatch("focus", nil, map[string]any{})
	} else {
		r.dispatch("blur", nil, map[string]any{})
	}
}

func (r *renderer) mouseWheel(ev core.MouseEvent, dx, dy int) {
	if r.doc == nil {
		return
	}
	n := r.hit(ev.X, ev.Y)
	init := r.mouseInit(ev, 0, 0)
	init["deltaX"] = -dx
	init["deltaY"] = -dy
	init["deltaMode"] = 0
	if !r.dispatch("wheel", n, init) {
		return
	}
	if r.scrollTo(r.scrollY - dy) {
		r.dispatch("scroll", nil, map[string]any{"scrollY": r.scrollY})
	}
}

func keyName(ev core.KeyEvent) string {
	if ev.Type == core.KeyChar && ev.Character != 0 {
		return string(ev.Character)
	}
	switch ev.WindowsKeyCode {
	case vkBack:
		return "Backspace"
	case 0x09:
		return "Tab"
	case vkReturn:
		return "Enter"
	case 0x10:
		return "Shift"
	case 0x11:
		return "Control"
	case 0x12:
		return "Alt"
	case 0x1B:
		return "Escape"
	case 0x20:
		return " "
	case 0x25:
		return "ArrowLeft"
	case 0x26:
		return "ArrowUp"
	case 0x27:
		return "ArrowRight"
	case 0x28:
		return "ArrowDown"
	case 0x2E:
		return "Delete"
	}
	c := ev.WindowsKeyCode
	if (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') {
		s := string(rune(c))
		if ev.Modifiers&core.FlagShift == 0 {
			s = strings.ToLower(s)
		}
		return s
	}
	return "Unidentified"
}

func (r *renderer) key(ev core.KeyEvent) {
	if r.doc == nil {
		return
	}
	var eventType string
	switch ev.Type {
	case core.KeyRawDown, core.KeyDown:
		eventType = "keydown"
	case core.KeyUp:
		eventType = "keyup"
	case core.KeyChar:
		eventType = "keypress"
	default:
		return
	}
	target := r.focus
	if target == nil {
		target = r.body()
	}
	init := modifierInit(map[string]any{
		"key":      keyName(ev),
		"keyCode":  ev.WindowsKeyCode,
		"which":    ev.WindowsKeyCode,
		"charCode": 0,
		"repeat":   false,
	}, ev.Modifiers)
	if ev.Type == core.KeyChar {
		init["charCode"] = int(ev.Character)
		init["keyCode"] = int(ev.Character)
	}
	if !r.dispatch(eventType, target, init) {
		return
	}
	r.editField(ev)
}

// editField applies typing to the focused text field.
func (r *renderer) editField(ev core.KeyEvent) {
	if !isTextField(r.focus) {
		return
	}
	h := r.doc.handle(r.focus)
	value, _ := getAttr(r.focus, "value")
	switch {
	case ev.Type == core.KeyChar && ev.Character >= 0x20 && ev.Character != 0x7f:
		value += string(ev.Character)
	case ev.Type != core.KeyChar && ev.Type != core.KeyUp && ev.WindowsKeyCode == vkBack:
		if value == "" {
			return
		}
		_, size := utf8.DecodeLastRuneInString(value)
		value = value[:len(value)-size]
	default:
		return
	}
	r.doc.setAttr(h, "value", value)
	r.dispatch("input", r.focus, map[string]any{"data": string(ev.Character)})
}

func (r *renderer) body() *html.Node {
	if r.doc == nil {
		return nil
	}
	sel := r.doc.selection(0).Find("body").First()
	if sel.Length() == 0 {
		return nil
	}
	return sel.Nodes[0]
}
