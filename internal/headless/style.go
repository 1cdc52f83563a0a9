package headless

import (
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"golang.org/x/net/html"
)

// inlineStyle parses a style attribute into lower-cased property/value pairs.
func inlineStyle(n *html.Node) map[string]string {
	raw, ok := getAttr(n, "style")
	if !ok || raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		if k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

// parseColor understands named colors, #rgb, #rgba, #rrggbb, #rrggbbaa,
// rgb() and rgba(). The result is alpha-premultiplied.
func parseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.RGBA{}, false
	}
	if s == "transparent" {
		return color.RGBA{}, true
	}
	if c, ok := colornames.Map[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		open, close := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
		if open < 0 || close < open {
			return color.RGBA{}, false
		}
		parts := strings.FieldsFunc(s[open+1:close], func(r rune) bool { return r == ',' || r == ' ' || r == '/' })
		if len(parts) < 3 {
			return color.RGBA{}, false
		}
		var ch [3]uint8
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(strings.TrimSuffix(parts[i], "%"), 64)
			if err != nil {
				return color.RGBA{}, false
			}
			if strings.HasSuffix(parts[i], "%") {
				v = v * 255 / 100
			}
			ch[i] = clampByte(v)
		}
		alpha := uint8(255)
		if len(parts) >= 4 {
			a, err := strconv.ParseFloat(strings.TrimSuffix(parts[3], "%"), 64)
			if err != nil {
				return color.RGBA{}, false
			}
			if strings.HasSuffix(parts[3], "%") {
				a /= 100
			}
			alpha = clampByte(a * 255)
		}
		return premultiply(color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}), true
	}
	return color.RGBA{}, false
}

func parseHexColor(h string) (color.RGBA, bool) {
	expand := func(c byte) string { return string([]byte{c, c}) }
	switch len(h) {
	case 3, 4:
		var b strings.Builder
		for i := 0; i < len(h); i++ {
			b.WriteString(expand(h[i]))
		}
		h = b.String()
	case 6, 8:
	default:
		return color.RGBA{}, false
	}
	if len(h) == 6 {
		h += "ff"
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return premultiply(color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}), true
}

// argbColor converts a 0xAARRGGBB value.
func argbColor(argb uint32) color.RGBA {
	return premultiply(color.NRGBA{
		A: uint8(argb >> 24),
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
	})
}

func premultiply(c color.NRGBA) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

// background returns the element's own background color, if any.
func background(n *html.Node, style map[string]string) (color.RGBA, bool) {
	for _, prop := range []string{"background-color", "background"} {
		if v, ok := style[prop]; ok {
			// Only the leading color of a background shorthand is honored.
			if c, ok := parseColor(strings.Fields(v + " ")[0]); ok {
				return c, true
			}
		}
	}
	if v, ok := getAttr(n, "bgcolor"); ok {
		return parseColor(v)
	}
	return color.RGBA{}, false
}
