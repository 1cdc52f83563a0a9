package headless

import (
	"image"
	"image/color"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Layout metrics, in pixels at scale 1.
const (
	pageMargin  = 8
	lineHeight  = 16
	glyphWidth  = 7
	glyphHeight = 13
)

type paintKind int

const (
	opFill paintKind = iota
	opStroke
	opText
)

// paintOp is one drawing command in page coordinates.
type paintOp struct {
	kind      paintKind
	rect      image.Rectangle
	color     color.RGBA
	text      string
	scale     int
	underline bool
}

// box is a laid-out region that input can hit.
type box struct {
	rect  image.Rectangle
	node  *html.Node
	depth int
}

// displayList is an immutable snapshot of a laid-out document. The renderer
// publishes it and the compositor rasterizes it.
type displayList struct {
	ops           []paintOp
	boxes         []box
	background    color.RGBA
	width         int
	contentHeight int
	scrollY       int
}

// withScroll returns a copy scrolled to y.
func (dl *displayList) withScroll(y int) *displayList {
	c := *dl
	c.scrollY = y
	return &c
}

// maxScroll is the largest scroll offset for a viewport of height h.
func (dl *displayList) maxScroll(h int) int {
	if m := dl.contentHeight - h; m > 0 {
		return m
	}
	return 0
}

// hitTest returns the innermost node under the viewport point (x, y).
func (dl *displayList) hitTest(x, y int) *html.Node {
	p := image.Pt(x, y+dl.scrollY)
	var best *html.Node
	bestDepth := -1
	for _, b := range dl.boxes {
		if p.In(b.rect) && b.depth >= bestDepth {
			best, bestDepth = b.node, b.depth
		}
	}
	return best
}

var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Title: true,
	atom.Meta: true, atom.Link: true, atom.Noscript: true, atom.Template: true,
	atom.Base: true,
}

var blocks = map[atom.Atom]bool{
	atom.Html: true, atom.Body: true, atom.Div: true, atom.P: true, atom.Ul: true,
	atom.Ol: true, atom.Li: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Main: true,
	atom.Form: true, atom.Table: true, atom.Tr: true, atom.Pre: true,
	atom.Blockquote: true, atom.Center: true, atom.Aside: true, atom.Figure: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true,
	atom.H6: true, atom.Dl: true, atom.Dt: true, atom.Dd: true, atom.Fieldset: true,
}

var (
	textColor = color.RGBA{A: 0xff}
	linkColor = color.RGBA{B: 0xee, A: 0xff}
	edgeColor = color.RGBA{R: 0x76, G: 0x76, B: 0x76, A: 0xff}
)

// inherited is the style context passed down the tree.
type inherited struct {
	color color.RGBA
	scale int
	link  bool
	pre   bool
	depth int
}

type layouter struct {
	dl     *displayList
	left   int
	right  int
	x, y   int
	lineH  int
	inLine bool
}

// layoutDocument flows d into a viewport width wide. bg is used when the
// body paints no background of its own.
func layoutDocument(d *document, width int, bg color.RGBA) *displayList {
	if width < 2*pageMargin+glyphWidth {
		width = 2*pageMargin + glyphWidth
	}
	l := &layouter{
		dl:    &displayList{background: bg, width: width},
		left:  pageMargin,
		right: width - pageMargin,
		x:     pageMargin,
		y:     pageMargin,
		lineH: lineHeight,
	}
	if body := d.selection(0).Find("body").First(); body.Length() > 0 {
		if c, ok := background(body.Nodes[0], inlineStyle(body.Nodes[0])); ok {
			l.dl.background = c
		}
	}
	l.walk(d.root, inherited{color: textColor, scale: 1})
	l.newline()
	l.dl.contentHeight = l.y + pageMargin
	return l.dl
}

func (l *layouter) newline() {
	if l.inLine {
		l.y += l.lineH
	}
	l.x = l.left
	l.lineH = lineHeight
	l.inLine = false
}

func (l *layouter) advance(w, h int) {
	if l.x+w > l.right && l.x > l.left {
		l.newline()
	}
	if h > l.lineH {
		l.lineH = h
	}
	l.inLine = true
}

func (l *layouter) walk(n *html.Node, ctx inherited) {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			l.walk(c, ctx)
		}
		return
	case html.TextNode:
		l.text(n, ctx)
		return
	case html.ElementNode:
	default:
		return
	}
	if skipped[n.DataAtom] {
		return
	}
	if _, hidden := getAttr(n, "hidden"); hidden {
		return
	}
	style := inlineStyle(n)
	if style["display"] == "none" || style["visibility"] == "hidden" {
		return
	}
	ctx.depth++
	if c, ok := parseColor(style["color"]); ok {
		ctx.color = c
	} else if c, ok := getAttr(n, "color"); ok && n.DataAtom == atom.Font {
		if parsed, ok := parseColor(c); ok {
			ctx.color = parsed
		}
	}

	switch n.DataAtom {
	case atom.Br:
		l.inLine = true
		l.newline()
		return
	case atom.Hr:
		l.newline()
		y := l.y + lineHeight/2
		l.dl.ops = append(l.dl.ops, paintOp{kind: opStroke, rect: image.Rect(l.left, y, l.right, y+1), color: edgeColor})
		l.y += lineHeight
		return
	case atom.Input, atom.Button, atom.Textarea, atom.Select, atom.Img:
		l.control(n, ctx)
		return
	case atom.A:
		if _, ok := getAttr(n, "href"); ok {
			ctx.link = true
			if _, set := style["color"]; !set {
				ctx.color = linkColor
			}
		}
	case atom.H1, atom.H2:
		ctx.scale = 2
	case atom.Pre:
		ctx.pre = true
	}

	block := blocks[n.DataAtom] || style["display"] == "block"
	if !block {
		start := len(l.dl.boxes)
		startX, startY := l.x, l.y
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			l.walk(c, ctx)
		}
		// Inline elements hit-test through the words they produced.
		if len(l.dl.boxes) == start && l.inLine {
			l.dl.boxes = append(l.dl.boxes, box{rect: image.Rect(startX, startY, l.x, startY+l.lineH), node: n, depth: ctx.depth})
		}
		return
	}

	l.newline()
	gap := 0
	switch n.DataAtom {
	case atom.P, atom.Ul, atom.Ol, atom.Pre, atom.Blockquote:
		gap = lineHeight / 2
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		gap = lineHeight / 2
	}
	l.y += gap
	top := l.y
	fill := -1
	if n.DataAtom != atom.Body && n.DataAtom != atom.Html {
		if c, ok := background(n, style); ok {
			fill = len(l.dl.ops)
			l.dl.ops = append(l.dl.ops, paintOp{kind: opFill, color: c})
		}
	}
	if n.DataAtom == atom.Li {
		l.listMarker(n, ctx)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.walk(c, ctx)
	}
	l.newline()
	if fill >= 0 {
		l.dl.ops[fill].rect = image.Rect(l.left, top, l.right, l.y)
	}
	left := l.left
	if n.DataAtom == atom.Html || n.DataAtom == atom.Body {
		left = 0
	}
	l.dl.boxes = append(l.dl.boxes, box{rect: image.Rect(left, top, l.right+pageMargin, l.y), node: n, depth: ctx.depth})
	l.y += gap
}

func (l *layouter) listMarker(n *html.Node, ctx inherited) {
	marker := "- "
	if p := n.Parent; p != nil && p.DataAtom == atom.Ol {
		i := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.DataAtom == atom.Li {
				i++
			}
		}
		marker = strconv.Itoa(i) + ". "
	}
	w := len(marker) * glyphWidth
	l.advance(w, lineHeight)
	l.dl.ops = append(l.dl.ops, paintOp{kind: opText, rect: image.Rect(l.x, l.y, l.x+w, l.y+lineHeight), color: ctx.color, text: marker, scale: 1})
	l.x += w
}

func (l *layouter) text(n *html.Node, ctx inherited) {
	if n.Parent == nil {
		return
	}
	if ctx.pre {
		for i, line := range strings.Split(n.Data, "\n") {
			if i > 0 {
				l.inLine = true
				l.newline()
			}
			l.word(n.Parent, strings.ReplaceAll(line, "\t", "    "), ctx)
		}
		return
	}
	leadingSpace := len(n.Data) > 0 && isSpace(n.Data[0])
	if leadingSpace && l.inLine && l.x > l.left {
		l.x += glyphWidth * ctx.scale
	}
	words := strings.Fields(n.Data)
	for i, w := range words {
		if i > 0 {
			l.x += glyphWidth * ctx.scale
		}
		l.word(n.Parent, w, ctx)
	}
	if len(words) > 0 && isSpace(n.Data[len(n.Data)-1]) {
		l.x += glyphWidth * ctx.scale
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

func (l *layouter) word(owner *html.Node, w string, ctx inherited) {
	if w == "" {
		return
	}
	width := utf8.RuneCountInString(w) * glyphWidth * ctx.scale
	h := lineHeight * ctx.scale
	l.advance(width, h)
	r := image.Rect(l.x, l.y, l.x+width, l.y+h)
	l.dl.ops = append(l.dl.ops, paintOp{kind: opText, rect: r, color: ctx.color, text: w, scale: ctx.scale, underline: ctx.link})
	l.dl.boxes = append(l.dl.boxes, box{rect: r, node: owner, depth: ctx.depth})
	l.x += width
}

// control lays out a replaced element as a bordered box.
func (l *layouter) control(n *html.Node, ctx inherited) {
	label := ""
	w, h := 150, 22
	switch n.DataAtom {
	case atom.Input:
		typ, _ := getAttr(n, "type")
		switch strings.ToLower(typ) {
		case "hidden":
			return
		case "checkbox", "radio":
			w, h = 13, 13
			if _, ok := getAttr(n, "checked"); ok {
				label = "x"
			}
		case "button", "submit", "reset":
			label, _ = getAttr(n, "value")
			if label == "" {
				label = "Submit"
			}
			w = utf8.RuneCountInString(label)*glyphWidth + 16
		default:
			label, _ = getAttr(n, "value")
			if label == "" {
				label, _ = getAttr(n, "placeholder")
			}
			if size, err := strconv.Atoi(attrOr(n, "size", "")); err == nil && size > 0 {
				w = size*glyphWidth + 8
			}
		}
	case atom.Button:
		label = strings.Join(strings.Fields(textContent(n)), " ")
		w = utf8.RuneCountInString(label)*glyphWidth + 16
	case atom.Textarea:
		label = textContent(n)
		if v, ok := getAttr(n, "value"); ok {
			label = v
		}
		w, h = 200, 40
	case atom.Select:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Option {
				label = strings.TrimSpace(textContent(c))
				break
			}
		}
		w = utf8.RuneCountInString(label)*glyphWidth + 24
	case atom.Img:
		w, h = 16, 16
		if v, err := strconv.Atoi(attrOr(n, "width", "")); err == nil && v > 0 {
			w = v
		}
		if v, err := strconv.Atoi(attrOr(n, "height", "")); err == nil && v > 0 {
			h = v
		}
		label, _ = getAttr(n, "alt")
	}
	if avail := l.right - l.left; w > avail {
		w = avail
	}
	l.advance(w, h+4)
	r := image.Rect(l.x, l.y+2, l.x+w, l.y+2+h)
	if n.DataAtom != atom.Img {
		l.dl.ops = append(l.dl.ops, paintOp{kind: opFill, rect: r, color: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}})
	}
	l.dl.ops = append(l.dl.ops, paintOp{kind: opStroke, rect: r, color: edgeColor})
	if label != "" {
		maxChars := (w - 4) / glyphWidth
		if runes := []rune(label); len(runes) > maxChars && maxChars >= 0 {
			label = string(runes[:maxChars])
		}
		tw := utf8.RuneCountInString(label) * glyphWidth
		tx := r.Min.X + 4
		if n.DataAtom == atom.Button || w <= 13 {
			tx = r.Min.X + (w-tw)/2
		}
		ty := r.Min.Y + (h-glyphHeight)/2 - 1
		l.dl.ops = append(l.dl.ops, paintOp{kind: opText, rect: image.Rect(tx, ty, tx+tw, ty+lineHeight), color: ctx.color, text: label, scale: 1})
	}
	l.dl.boxes = append(l.dl.boxes, box{rect: r, node: n, depth: ctx.depth})
	l.x += w + 4
}

func attrOr(n *html.Node, name, def string) string {
	if v, ok := getAttr(n, name); ok {
		return v
	}
	return def
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}
