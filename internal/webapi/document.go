package webapi

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

const documentJS = `
(function() {
	var cache = {};
	function wrap(h) {
		if (!h) return null;
		return cache[h] || (cache[h] = new Element(h));
	}
	globalThis.__wrap = wrap;

	function parseStyle(s) {
		var out = {};
		(s || '').split(';').forEach(function(decl) {
			var i = decl.indexOf(':');
			if (i < 0) return;
			var k = decl.slice(0, i).trim(), v = decl.slice(i + 1).trim();
			if (k) out[k] = v;
		});
		return out;
	}
	function cssName(prop) {
		return prop.replace(/[A-Z]/g, function(c) { return '-' + c.toLowerCase(); });
	}
	function styleFor(el) {
		return new Proxy({}, {
			get: function(_, prop) {
				if (typeof prop !== 'string') return undefined;
				if (prop === 'cssText') return el.getAttribute('style') || '';
				return parseStyle(el.getAttribute('style'))[cssName(prop)] || '';
			},
			set: function(_, prop, value) {
				if (prop === 'cssText') { el.setAttribute('style', String(value)); return true; }
				var m = parseStyle(el.getAttribute('style'));
				var k = cssName(String(prop));
				if (value === '' || value === null) delete m[k]; else m[k] = String(value);
				el.setAttribute('style', Object.keys(m).map(function(k) { return k + ': ' + m[k]; }).join('; '));
				return true;
			}
		});
	}
	function query(sel, root, all) {
		return JSON.parse(__query(String(sel), root, all ? 1 : 0));
	}

	class Element extends EventTarget {
		constructor(h) { super(); this.__h = h; }
		get tagName() { return __elTag(this.__h).toUpperCase(); }
		get nodeName() { return this.tagName; }
		get id() { return this.getAttribute('id') || ''; }
		set id(v) { this.setAttribute('id', v); }
		get className() { return this.getAttribute('class') || ''; }
		set className(v) { this.setAttribute('class', v); }
		get textContent() { return __elText(this.__h); }
		set textContent(v) { __elSetText(this.__h, String(v)); }
		get innerText() { return this.textContent; }
		set innerText(v) { this.textContent = v; }
		get innerHTML() { return __elHTML(this.__h); }
		set innerHTML(v) { __elSetHTML(this.__h, String(v)); }
		get value() { return this.getAttribute('value') || ''; }
		set value(v) { this.setAttribute('value', v); }
		get parentElement() { return wrap(__elParent(this.__h)); }
		get parentNode() { return this.parentElement || document; }
		get style() { return styleFor(this); }
		getAttribute(n) { return JSON.parse(__elAttr(this.__h, String(n))); }
		setAttribute(n, v) { __elSetAttr(this.__h, String(n), String(v)); }
		removeAttribute(n) { __elRemoveAttr(this.__h, String(n)); }
		hasAttribute(n) { return this.getAttribute(n) !== null; }
		querySelector(sel) { var r = query(sel, this.__h, false); return r.length ? wrap(r[0]) : null; }
		querySelectorAll(sel) { return query(sel, this.__h, true).map(wrap); }
		getElementsByTagName(t) { return this.querySelectorAll(t); }
		closest(sel) {
			for (var el = this; el; el = el.parentElement) {
				var hits = query(sel, 0, true);
				if (hits.indexOf(el.__h) >= 0) return el;
			}
			return null;
		}
		click() { __dispatchInput('click', { button: 0, clientX: 0, clientY: 0 }, [this.__h]); }
		focus() {}
		blur() {}
	}
	globalThis.Element = Element;
	globalThis.HTMLElement = Element;

	var doc = new EventTarget();
	Object.defineProperties(doc, {
		title: { get: function() { return __docTitle(); }, set: function(v) { __docSetTitle(String(v)); } },
		readyState: { get: function() { return __readyState(); } },
		URL: { get: function() { return __pageURL(); } },
		documentElement: { get: function() { return doc.querySelector('html'); } },
		head: { get: function() { return doc.querySelector('head'); } },
		body: { get: function() { return doc.querySelector('body'); } },
		cookie: { get: function() { return ''; }, set: function() {} }
	});
	doc.querySelector = function(sel) { var r = query(sel, 0, false); return r.length ? wrap(r[0]) : null; };
	doc.querySelectorAll = function(sel) { return query(sel, 0, true).map(wrap); };
	doc.getElementById = function(id) {
		return doc.querySelector('[id="' + String(id).replace(/["\\]/g, '\\$&') + '"]');
	};
	doc.getElementsByTagName = function(t) { return doc.querySelectorAll(t); };
	doc.getElementsByClassName = function(c) {
		return doc.querySelectorAll(String(c).trim().split(/\s+/).map(function(x) { return '.' + x; }).join(''));
	};
	globalThis.document = doc;

	var loc = {};
	Object.defineProperty(loc, 'href', {
		get: function() { return __pageURL(); },
		set: function(v) { __navigate(String(v)); },
		enumerable: true
	});
	['protocol', 'host', 'hostname', 'port', 'pathname', 'search', 'hash', 'origin'].forEach(function(k) {
		Object.defineProperty(loc, k, { get: function() { return JSON.parse(__urlParts())[k]; }, enumerable: true });
	});
	loc.assign = loc.replace = function(u) { __navigate(String(u)); };
	loc.reload = function() { __reload(); };
	loc.toString = function() { return __pageURL(); };
	globalThis.location = loc;
	doc.location = loc;

	globalThis.history = {
		back: function() { __historyGo(-1); },
		forward: function() { __historyGo(1); },
		go: function(n) { __historyGo(Number(n) || 0); }
	};

	globalThis.navigator = {
		userAgent: __userAgent(),
		language: __language(),
		languages: [__language()],
		platform: 'offscreen',
		onLine: true,
		cookieEnabled: false
	};
})();
`

type urlParts struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
	Origin   string `json:"origin"`
}

func splitURL(raw string) urlParts {
	u, err := url.Parse(raw)
	if err != nil {
		return urlParts{}
	}
	p := urlParts{
		Protocol: u.Scheme + ":",
		Host:     u.Host,
		Hostname: u.Hostname(),
		Port:     u.Port(),
		Pathname: u.EscapedPath(),
		Origin:   "null",
	}
	if u.Opaque != "" {
		p.Pathname = u.Opaque
	}
	if u.RawQuery != "" {
		p.Search = "?" + u.RawQuery
	}
	if u.Fragment != "" {
		p.Hash = "#" + u.EscapedFragment()
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		p.Origin = u.Scheme + "://" + u.Host
	}
	return p
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// SetupDocument installs document, Element, location, history and navigator.
func SetupDocument(rt core.JSRuntime, _ *eventloop.EventLoop, page Page) error {
	funcs := []struct {
		name string
		fn   any
	}{
		{"__pageURL", func() string { return page.URL() }},
		{"__urlParts", func() string { return jsonString(splitURL(page.URL())) }},
		{"__userAgent", func() string { return page.UserAgent() }},
		{"__language", func() string { return page.Language() }},
		{"__readyState", func() string { return page.ReadyState() }},
		{"__docTitle", func() string { return page.Title() }},
		{"__docSetTitle", func(title string) { page.SetTitle(title) }},
		{"__query", func(sel string, root int, all int) string {
			hits := page.Query(strings.TrimSpace(sel), root, all != 0)
			if hits == nil {
				hits = []int{}
			}
			return jsonString(hits)
		}},
		{"__elTag", func(h int) string { return page.Tag(h) }},
		{"__elParent", func(h int) int { return page.Parent(h) }},
		{"__elText", func(h int) string { return page.Text(h) }},
		{"__elSetText", func(h int, text string) { page.SetText(h, text) }},
		{"__elHTML", func(h int) string { return page.InnerHTML(h) }},
		{"__elSetHTML", func(h int, markup string) (int, error) {
			return 0, page.SetInnerHTML(h, markup)
		}},
		{"__elAttr", func(h int, name string) string {
			v, ok := page.Attr(h, name)
			if !ok {
				return "null"
			}
			return jsonString(v)
		}},
		{"__elSetAttr", func(h int, name, value string) { page.SetAttr(h, name, value) }},
		{"__elRemoveAttr", func(h int, name string) { page.RemoveAttr(h, name) }},
		{"__navigate", func(target string) { page.Navigate(target) }},
		{"__historyGo", func(delta int) { page.HistoryGo(delta) }},
		{"__reload", func() { page.Reload() }},
	}
	for _, f := range funcs {
		if err := rt.RegisterFunc(f.name, f.fn); err != nil {
			return err
		}
	}
	return rt.Eval(documentJS)
}
