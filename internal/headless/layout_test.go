package headless

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findText(dl *displayList, text string) (paintOp, bool) {
	for _, op := range dl.ops {
		if op.kind == opText && op.text == text {
			return op, true
		}
	}
	return paintOp{}, false
}

func center(r image.Rectangle) (int, int) {
	return (r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want color.RGBA
		ok   bool
	}{
		{"#fff", color.RGBA{0xff, 0xff, 0xff, 0xff}, true},
		{"#00ff00", color.RGBA{0, 0xff, 0, 0xff}, true},
		{"#ff000080", color.RGBA{0x80, 0, 0, 0x80}, true},
		{"rgb(0, 128, 255)", color.RGBA{0, 128, 255, 255}, true},
		{"rgba(255,0,0,0.5)", color.RGBA{0x80, 0, 0, 0x80}, true},
		{"RED", color.RGBA{0xff, 0, 0, 0xff}, true},
		{"transparent", color.RGBA{}, true},
		{"#12", color.RGBA{}, false},
		{"bogus", color.RGBA{}, false},
	}
	for _, tc := range cases {
		got, ok := parseColor(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestArgbColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, argbColor(0xffffffff))
	assert.Equal(t, color.RGBA{}, argbColor(0x00ffffff))
}

func TestLayout_FlowAndHitTest(t *testing.T) {
	d := mustParse(t, `<html><head><title>T</title><script>var hidden = 1;</script></head>
		<body bgcolor="#ff0000">
		<p>hello <a href="/x">link</a></p>
		<div style="display:none">secret</div>
		<button id="b">Go</button>
		<h1>Big</h1>
		</body></html>`, "https://example.com/")

	dl := layoutDocument(d, 320, color.RGBA{A: 0xff})
	assert.Equal(t, color.RGBA{0xff, 0, 0, 0xff}, dl.background)

	_, ok := findText(dl, "secret")
	assert.False(t, ok)
	_, ok = findText(dl, "hidden")
	assert.False(t, ok)

	hello, ok := findText(dl, "hello")
	require.True(t, ok)
	link, ok := findText(dl, "link")
	require.True(t, ok)
	assert.True(t, link.underline)
	assert.Equal(t, linkColor, link.color)
	assert.Equal(t, hello.rect.Min.Y, link.rect.Min.Y, "inline content shares a line")
	assert.Greater(t, link.rect.Min.X, hello.rect.Max.X)

	x, y := center(link.rect)
	n := dl.hitTest(x, y)
	require.NotNil(t, n)
	assert.Equal(t, "a", n.Data)

	label, ok := findText(dl, "Go")
	require.True(t, ok)
	x, y = center(label.rect)
	n = dl.hitTest(x, y)
	require.NotNil(t, n)
	assert.Equal(t, "button", n.Data)

	big, ok := findText(dl, "Big")
	require.True(t, ok)
	assert.Equal(t, 2, big.scale)
	assert.Equal(t, 3*glyphWidth*2, big.rect.Dx())
	assert.Greater(t, big.rect.Min.Y, label.rect.Min.Y)
}

func TestLayout_WrapsAndScrolls(t *testing.T) {
	d := mustParse(t, `<body><p>aaaa bbbb cccc dddd eeee ffff gggg hhhh</p></body>`, "about:blank")
	dl := layoutDocument(d, 60, color.RGBA{})

	first, _ := findText(dl, "aaaa")
	last, _ := findText(dl, "hhhh")
	assert.Greater(t, last.rect.Min.Y, first.rect.Min.Y)
	for _, op := range dl.ops {
		if op.kind == opText {
			assert.LessOrEqual(t, op.rect.Max.X, 60-pageMargin, op.text)
		}
	}

	assert.Equal(t, 0, dl.maxScroll(10000))
	assert.Equal(t, dl.contentHeight-20, dl.maxScroll(20))

	scrolled := dl.withScroll(16)
	assert.Equal(t, 0, dl.scrollY)
	x, y := center(last.rect)
	n := scrolled.hitTest(x, y-16)
	require.NotNil(t, n)
	assert.Equal(t, "p", n.Data)
}

func TestRasterize(t *testing.T) {
	d := mustParse(t, `<body style="background-color: #0000ff"><h2>Hi</h2></body>`, "about:blank")
	dl := layoutDocument(d, 64, color.RGBA{})
	img := rasterize(dl, 64, 48)

	assert.Equal(t, color.RGBA{0, 0, 0xff, 0xff}, img.RGBAAt(0, 0))

	op, ok := findText(dl, "Hi")
	require.True(t, ok)
	inked := false
	for y := op.rect.Min.Y; y < op.rect.Max.Y && !inked; y++ {
		for x := op.rect.Min.X; x < op.rect.Max.X; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{0, 0, 0xff, 0xff}) {
				inked = true
				break
			}
		}
	}
	assert.True(t, inked, "text pixels were drawn")

	buf := make([]byte, 64*48*4)
	toBGRA(img, buf)
	assert.Equal(t, []byte{0xff, 0, 0, 0xff}, buf[:4])
}
