package webapi

import (
	"time"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

// timersJS installs setTimeout, setInterval, requestAnimationFrame and their
// clear functions. String handlers are compiled the way browsers do.
const timersJS = `
(function() {
	globalThis.__timerCallbacks = {};
	function handler(fn) {
		if (typeof fn === 'string') return new Function(fn);
		return typeof fn === 'function' ? fn : null;
	}
	function schedule(fn, delay, extra, interval) {
		var f = handler(fn);
		if (!f) return 0;
		var id = __timerRegister(Math.max(0, Number(delay) || 0) | 0, interval);
		globalThis.__timerCallbacks[id] = { fn: f, args: extra, interval: interval };
		return id;
	}
	globalThis.setTimeout = function(fn, delay) {
		return schedule(fn, delay, Array.prototype.slice.call(arguments, 2), false);
	};
	globalThis.setInterval = function(fn, interval) {
		return schedule(fn, interval, Array.prototype.slice.call(arguments, 2), true);
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (typeof id !== 'number') return;
		__timerClear(id);
		delete globalThis.__timerCallbacks[id];
	};
	globalThis.requestAnimationFrame = function(fn) {
		if (typeof fn !== 'function') return 0;
		return schedule(function() { fn(performance.now()); }, __frameInterval(), [], false);
	};
	globalThis.cancelAnimationFrame = globalThis.clearTimeout;
})();
`

// SetupTimers registers Go-backed timers on the document's event loop.
func SetupTimers(rt core.JSRuntime, el *eventloop.EventLoop, page Page) error {
	if err := rt.RegisterFunc("__timerRegister", func(delayMs int, isInterval bool) int {
		return el.RegisterTimer(time.Duration(delayMs)*time.Millisecond, isInterval)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__timerClear", func(id int) {
		el.ClearTimer(id)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__frameInterval", func() int {
		fps := page.FrameRate()
		if fps <= 0 {
			fps = 60
		}
		return 1000 / fps
	}); err != nil {
		return err
	}
	return rt.Eval(timersJS)
}
