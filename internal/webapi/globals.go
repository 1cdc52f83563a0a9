package webapi

import (
	"fmt"
	"time"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

// globalsJS aliases the browser globals page scripts expect on the global
// object and installs the Event base class.
const globalsJS = `
globalThis.window = globalThis;
globalThis.self = globalThis;
globalThis.top = globalThis;
globalThis.parent = globalThis;

globalThis.queueMicrotask = function(fn) {
	Promise.resolve().then(fn);
};

globalThis.performance = {
	timeOrigin: __timeOrigin(),
	now: function() { return __performanceNow(); }
};

globalThis.Event = class Event {
	constructor(type, init) {
		init = init || {};
		this.type = String(type);
		this.bubbles = !!init.bubbles;
		this.cancelable = !!init.cancelable;
		this.defaultPrevented = false;
		this.timeStamp = performance.now();
		this.target = null;
		this.currentTarget = null;
		this._stop = false;
		this._stopNow = false;
	}
	preventDefault() { if (this.cancelable) this.defaultPrevented = true; }
	stopPropagation() { this._stop = true; }
	stopImmediatePropagation() { this._stop = true; this._stopNow = true; }
};

globalThis.EventTarget = class EventTarget {
	constructor() { this._listeners = {}; }
	addEventListener(type, fn, opts) {
		if (typeof fn !== 'function' && !(fn && typeof fn.handleEvent === 'function')) return;
		var list = this._listeners[type] || (this._listeners[type] = []);
		for (var i = 0; i < list.length; i++) if (list[i].fn === fn) return;
		list.push({ fn: fn, once: !!(opts && opts.once) });
	}
	removeEventListener(type, fn) {
		var list = this._listeners[type];
		if (!list) return;
		this._listeners[type] = list.filter(function(l) { return l.fn !== fn; });
	}
	dispatchEvent(ev) {
		if (!ev.target) ev.target = this;
		__invokeListeners(this, ev);
		return !ev.defaultPrevented;
	}
};

globalThis._listeners = {};
globalThis.addEventListener = EventTarget.prototype.addEventListener;
globalThis.removeEventListener = EventTarget.prototype.removeEventListener;
globalThis.dispatchEvent = EventTarget.prototype.dispatchEvent;

globalThis.__invokeListeners = function(target, ev) {
	ev.currentTarget = target;
	var list = (target._listeners && target._listeners[ev.type]) || [];
	list = list.slice();
	for (var i = 0; i < list.length && !ev._stopNow; i++) {
		var l = list[i];
		if (l.once) target.removeEventListener(ev.type, l.fn);
		try {
			if (typeof l.fn === 'function') l.fn.call(target, ev);
			else l.fn.handleEvent(ev);
		} catch (e) {
			console.error(String(e && e.stack || e));
		}
	}
	var prop = target['on' + ev.type];
	if (typeof prop === 'function' && !ev._stopNow) {
		try {
			if (prop.call(target, ev) === false) ev.preventDefault();
		} catch (e) {
			console.error(String(e && e.stack || e));
		}
	}
};
`

// SetupGlobals installs window aliases, performance, queueMicrotask and the
// Event and EventTarget classes.
func SetupGlobals(rt core.JSRuntime, _ *eventloop.EventLoop, _ Page) error {
	origin := time.Now()
	if err := rt.RegisterFunc("__performanceNow", func() float64 {
		return float64(time.Since(origin).Nanoseconds()) / 1e6
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__timeOrigin", func() float64 {
		return float64(origin.UnixNano()) / 1e6
	}); err != nil {
		return err
	}
	if err := rt.Eval(globalsJS); err != nil {
		return fmt.Errorf("evaluating globals.js: %w", err)
	}
	return nil
}

// ErrMissingArg returns a formatted error for functions called with too few arguments.
func ErrMissingArg(name string, required int) error {
	return fmt.Errorf("%s requires at least %d argument(s)", name, required)
}
