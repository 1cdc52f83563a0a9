package headless

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"

	"github.com/cryguy/offscreen/internal/webapi"
)

// document is a parsed page. It is owned by the renderer goroutine; nothing
// here is safe for concurrent use.
type document struct {
	root    *html.Node
	url     string
	base    *url.URL
	handles map[*html.Node]int
	nodes   map[int]*html.Node
	next    int
	// version increases on every mutation so the renderer knows when to
	// lay out again.
	version    uint64
	readyState string
}

// parseDocument builds a document from a loaded body. Non-HTML bodies are
// shown as preformatted text the way a browser shows a text/plain response.
func parseDocument(body []byte, mimeType, cs, pageURL string) (*document, error) {
	var markup []byte
	switch {
	case mimeType == "" || mimeType == "text/html" || mimeType == "application/xhtml+xml":
		markup = body
	case strings.HasPrefix(mimeType, "text/") || mimeType == "application/json" || mimeType == "application/javascript":
		markup = []byte("<html><head></head><body><pre>" + html.EscapeString(string(body)) + "</pre></body></html>")
	default:
		markup = []byte(fmt.Sprintf("<html><head></head><body><p>%s (%d bytes)</p></body></html>",
			html.EscapeString(mimeType), len(body)))
	}

	contentType := "text/html"
	if cs != "" {
		contentType += "; charset=" + cs
	}
	r, err := charset.NewReader(bytes.NewReader(markup), contentType)
	if err != nil {
		r = bytes.NewReader(markup)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return newDocument(root, pageURL), nil
}

func newDocument(root *html.Node, pageURL string) *document {
	d := &document{
		root:       root,
		url:        pageURL,
		handles:    make(map[*html.Node]int),
		nodes:      make(map[int]*html.Node),
		readyState: "loading",
	}
	d.base, _ = url.Parse(pageURL)
	if href, ok := goquery.NewDocumentFromNode(root).Find("base[href]").First().Attr("href"); ok && d.base != nil {
		if b, err := d.base.Parse(href); err == nil {
			d.base = b
		}
	}
	return d
}

// errorDocument renders a failed navigation.
func errorDocument(failedURL, reason string) *document {
	markup := "<html><head><title>" + html.EscapeString(failedURL) + "</title></head><body>" +
		"<h2>This page can't be reached</h2><p>" + html.EscapeString(failedURL) + "</p><p>" +
		html.EscapeString(reason) + "</p></body></html>"
	root, _ := html.Parse(strings.NewReader(markup))
	return newDocument(root, failedURL)
}

func (d *document) touch() { d.version++ }

// handle returns the stable handle for n, assigning one on first use.
func (d *document) handle(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	if h, ok := d.handles[n]; ok {
		return h
	}
	d.next++
	d.handles[n] = d.next
	d.nodes[d.next] = n
	return d.next
}

func (d *document) node(h int) *html.Node {
	if h == 0 {
		return d.root
	}
	return d.nodes[h]
}

func (d *document) selection(h int) *goquery.Selection {
	n := d.node(h)
	if n == nil {
		return &goquery.Selection{}
	}
	return goquery.NewDocumentFromNode(n).Selection
}

// resolve turns a possibly relative reference into an absolute URL.
func (d *document) resolve(ref string) string {
	if d.base == nil {
		return ref
	}
	u, err := d.base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return u.String()
}

func (d *document) title() string {
	return strings.Join(strings.Fields(d.selection(0).Find("title").First().Text()), " ")
}

func (d *document) setTitle(title string) {
	sel := d.selection(0).Find("title").First()
	var n *html.Node
	if sel.Length() > 0 {
		n = sel.Nodes[0]
	} else {
		head := d.selection(0).Find("head").First()
		if head.Length() == 0 {
			return
		}
		n = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		head.Nodes[0].AppendChild(n)
	}
	replaceChildren(n, &html.Node{Type: html.TextNode, Data: title})
	d.touch()
}

func (d *document) query(selector string, root int, all bool) []int {
	if selector == "" {
		return nil
	}
	found := d.selection(root).Find(selector)
	if !all {
		found = found.First()
	}
	out := make([]int, 0, found.Length())
	for _, n := range found.Nodes {
		out = append(out, d.handle(n))
	}
	return out
}

func (d *document) tag(h int) string {
	if n := d.nodes[h]; n != nil {
		return n.Data
	}
	return ""
}

func (d *document) parent(h int) int {
	n := d.nodes[h]
	if n == nil {
		return 0
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return d.handle(p)
		}
	}
	return 0
}

// path lists n and its element ancestors as handles, innermost first.
func (d *document) path(n *html.Node) []int {
	var out []int
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode {
			out = append(out, d.handle(n))
		}
	}
	return out
}

func (d *document) text(h int) string {
	if d.nodes[h] == nil {
		return ""
	}
	return d.selection(h).Text()
}

func (d *document) setText(h int, text string) {
	n := d.nodes[h]
	if n == nil {
		return
	}
	replaceChildren(n, &html.Node{Type: html.TextNode, Data: text})
	d.touch()
}

func (d *document) innerHTML(h int) string {
	n := d.nodes[h]
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func (d *document) setInnerHTML(h int, markup string) error {
	n := d.nodes[h]
	if n == nil {
		return fmt.Errorf("element %d not found", h)
	}
	children, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return fmt.Errorf("parsing fragment: %w", err)
	}
	replaceChildren(n, children...)
	d.touch()
	return nil
}

func (d *document) attr(h int, name string) (string, bool) {
	n := d.nodes[h]
	if n == nil {
		return "", false
	}
	return getAttr(n, name)
}

func (d *document) setAttr(h int, name, value string) {
	n := d.nodes[h]
	if n == nil {
		return
	}
	name = strings.ToLower(name)
	for i := range n.Attr {
		if n.Attr[i].Key == name && n.Attr[i].Namespace == "" {
			n.Attr[i].Val = value
			d.touch()
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	d.touch()
}

func (d *document) removeAttr(h int, name string) {
	n := d.nodes[h]
	if n == nil {
		return
	}
	name = strings.ToLower(name)
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
	d.touch()
}

func (d *document) serialize() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	return buf.String()
}

// pageScript is one <script> element in document order.
type pageScript struct {
	kind webapi.ScriptKind
	src  string
	code string
	name string
}

func (d *document) scripts() []pageScript {
	var out []pageScript
	d.selection(0).Find("script").Each(func(i int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		ps := pageScript{kind: webapi.ClassifyScript(typ), code: s.Text()}
		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			ps.src = d.resolve(src)
			ps.name = ps.src
		} else {
			ps.name = fmt.Sprintf("%s#script%d", d.url, i)
		}
		out = append(out, ps)
	})
	return out
}

// link returns the resolved href of the nearest enclosing anchor.
func (d *document) link(n *html.Node) (string, bool) {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href, ok := getAttr(n, "href"); ok && !strings.HasPrefix(strings.TrimSpace(href), "javascript:") {
				return d.resolve(href), true
			}
		}
	}
	return "", false
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name && a.Namespace == "" {
			return a.Val, true
		}
	}
	return "", false
}

func replaceChildren(n *html.Node, children ...*html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, c := range children {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		n.AppendChild(c)
	}
}
