package webapi

import (
	"unicode/utf8"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

const consoleJS = `
(function() {
	function format(v) {
		if (typeof v === 'string') return v;
		if (v instanceof Error) return String(v.stack || v);
		if (typeof v === 'object' && v !== null) {
			try { return JSON.stringify(v); } catch (e) { return '[object Object]'; }
		}
		return String(v);
	}
	function emitter(level) {
		return function() {
			var parts = [];
			for (var i = 0; i < arguments.length; i++) parts.push(format(arguments[i]));
			__console(level, parts.join(' '));
		};
	}
	var con = {};
	['log', 'info', 'warn', 'error', 'debug'].forEach(function(l) { con[l] = emitter(l); });
	con.trace = emitter('debug');
	con.dir = function(v) { con.log(v); };

	var timers = {}, counters = {};
	con.time = function(label) { timers[label || 'default'] = performance.now(); };
	con.timeEnd = function(label) {
		var l = label || 'default';
		if (timers[l] === undefined) { con.warn('Timer "' + l + '" does not exist'); return; }
		con.log(l + ': ' + (performance.now() - timers[l]).toFixed(3) + 'ms');
		delete timers[l];
	};
	con.count = function(label) {
		var l = label || 'default';
		counters[l] = (counters[l] || 0) + 1;
		con.log(l + ': ' + counters[l]);
	};
	con.assert = function(cond) {
		if (cond) return;
		var rest = Array.prototype.slice.call(arguments, 1);
		con.error.apply(null, ['Assertion failed'].concat(rest));
	};
	globalThis.console = con;
})();
`

// SetupConsole replaces globalThis.console with one that forwards every
// message to the page's console sink.
func SetupConsole(rt core.JSRuntime, _ *eventloop.EventLoop, page Page) error {
	if err := rt.RegisterFunc("__console", func(level, message string) {
		page.Console(level, truncateMessage(message))
	}); err != nil {
		return err
	}
	return rt.Eval(consoleJS)
}

func truncateMessage(s string) string {
	if len(s) <= core.MaxLogMessageSize {
		return s
	}
	cut := core.MaxLogMessageSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
