package headless

import (
	"net/url"
	"strings"

	"github.com/cryguy/offscreen/internal/webapi"
)

// page exposes the renderer's current document to page scripts.
type page struct {
	r *renderer
}

var _ webapi.Page = (*page)(nil)

func (p *page) doc() *document {
	if p.r.doc == nil {
		return errorDocument("about:blank", "")
	}
	return p.r.doc
}

func (p *page) URL() string        { return p.doc().url }
func (p *page) FrameRate() int     { return clampFrameRate(p.r.browser.settings.WindowlessFrameRate) }
func (p *page) UserAgent() string  { return p.r.engine.settings.UserAgent }
func (p *page) ReadyState() string { return p.doc().readyState }
func (p *page) Title() string      { return p.doc().title() }
func (p *page) SetTitle(t string)  { p.doc().setTitle(t) }
func (p *page) Serialize() string  { return p.doc().serialize() }

// Language is the first entry of the Accept-Language list.
func (p *page) Language() string {
	lang := p.r.engine.settings.AcceptLanguage
	if i := strings.IndexAny(lang, ",;"); i >= 0 {
		lang = lang[:i]
	}
	return strings.TrimSpace(lang)
}

func (p *page) Query(selector string, root int, all bool) []int {
	return p.doc().query(selector, root, all)
}

func (p *page) Tag(h int) string                   { return p.doc().tag(h) }
func (p *page) Parent(h int) int                   { return p.doc().parent(h) }
func (p *page) Text(h int) string                  { return p.doc().text(h) }
func (p *page) SetText(h int, text string)         { p.doc().setText(h, text) }
func (p *page) InnerHTML(h int) string             { return p.doc().innerHTML(h) }
func (p *page) SetInnerHTML(h int, m string) error { return p.doc().setInnerHTML(h, m) }
func (p *page) Attr(h int, name string) (string, bool) {
	return p.doc().attr(h, name)
}
func (p *page) SetAttr(h int, name, value string) { p.doc().setAttr(h, name, value) }
func (p *page) RemoveAttr(h int, name string)     { p.doc().removeAttr(h, name) }

// Navigate resolves target against the document and starts a navigation.
func (p *page) Navigate(target string) {
	resolved := p.doc().resolve(target)
	b := p.r.browser
	b.postUI(func() { b.navigate(navRequest{url: resolved, kind: navLoad}) })
}

func (p *page) HistoryGo(delta int) {
	b := p.r.browser
	if delta == 0 {
		b.postUI(b.reload)
		return
	}
	b.postUI(func() { b.goHistory(delta) })
}

func (p *page) Reload() {
	b := p.r.browser
	b.postUI(b.reload)
}

func (p *page) Console(level, message string) {
	p.r.engine.console(p.r.browser, level, message)
}

// Storage returns the origin's localStorage area. Only http(s) documents
// have an origin.
func (p *page) Storage() webapi.Storage {
	store := p.r.engine.store
	if store == nil {
		return nil
	}
	u, err := url.Parse(p.doc().url)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil
	}
	return store.Area(u.Scheme + "://" + strings.ToLower(u.Host))
}
