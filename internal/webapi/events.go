package webapi

import (
	"fmt"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

// eventsJS dispatches engine-generated input to the page. The event walks the
// target path (innermost first), running listeners, on<type> properties and
// inline on<type> attributes, then reaches document and window.
const eventsJS = `
(function() {
	function inline(target, ev) {
		var code = target.getAttribute && target.getAttribute('on' + ev.type);
		if (!code) return;
		try {
			if ((new Function('event', code)).call(target, ev) === false) ev.preventDefault();
		} catch (e) {
			console.error(String(e && e.stack || e));
		}
	}
	globalThis.__dispatchInput = function(type, init, path) {
		var ev = new Event(type, { bubbles: true, cancelable: true });
		for (var k in init) ev[k] = init[k];
		var targets = (path || []).map(__wrap).filter(Boolean);
		ev.target = targets.length ? targets[0] : document;
		for (var i = 0; i < targets.length && !ev._stop; i++) {
			__invokeListeners(targets[i], ev);
			if (!ev._stop) inline(targets[i], ev);
		}
		if (!ev._stop) __invokeListeners(document, ev);
		if (!ev._stop) __invokeListeners(globalThis, ev);
		return !ev.defaultPrevented;
	};
	globalThis.__dispatchLifecycle = function(type) {
		var ev = new Event(type);
		if (type === 'DOMContentLoaded' || type === 'readystatechange') {
			ev.target = document;
			__invokeListeners(document, ev);
		} else {
			ev.target = globalThis;
			__invokeListeners(globalThis, ev);
		}
	};
})();
`

// InputEvent is a DOM event synthesized from host input.
type InputEvent struct {
	Type string
	// Path lists element handles from the hit target outward.
	Path []int
	Init map[string]any
}

// SetupEvents installs the dispatch entry points used by DispatchInput.
func SetupEvents(rt core.JSRuntime, _ *eventloop.EventLoop, _ Page) error {
	return rt.Eval(eventsJS)
}

// DispatchInput delivers ev to the page. It reports false when a handler
// called preventDefault.
func DispatchInput(rt core.JSRuntime, ev InputEvent) (bool, error) {
	path := ev.Path
	if path == nil {
		path = []int{}
	}
	init := ev.Init
	if init == nil {
		init = map[string]any{}
	}
	js := fmt.Sprintf("__dispatchInput(%s, %s, %s)", core.JsEscape(ev.Type), jsonString(init), jsonString(path))
	ok, err := rt.EvalBool(js)
	if err != nil {
		return true, fmt.Errorf("dispatching %s: %w", ev.Type, err)
	}
	rt.RunMicrotasks()
	return ok, nil
}

// DispatchLifecycle fires DOMContentLoaded, readystatechange or load.
func DispatchLifecycle(rt core.JSRuntime, eventType string) error {
	if err := rt.Eval(fmt.Sprintf("__dispatchLifecycle(%s)", core.JsEscape(eventType))); err != nil {
		return fmt.Errorf("dispatching %s: %w", eventType, err)
	}
	rt.RunMicrotasks()
	return nil
}
