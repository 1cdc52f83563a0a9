package headless

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// rasterize draws dl into a w by h RGBA image at its scroll offset.
func rasterize(dl *displayList, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(dl.background), image.Point{}, draw.Src)
	off := image.Pt(0, -dl.scrollY)
	for _, op := range dl.ops {
		r := op.rect.Add(off)
		if !r.Overlaps(img.Bounds()) {
			continue
		}
		src := image.NewUniform(op.color)
		switch op.kind {
		case opFill:
			draw.Draw(img, r, src, image.Point{}, draw.Over)
		case opStroke:
			strokeRect(img, r, src)
		case opText:
			drawText(img, r.Min, op.text, op.scale, op.color)
			if op.underline {
				y := r.Min.Y + (glyphHeight-1)*op.scale
				draw.Draw(img, image.Rect(r.Min.X, y, r.Max.X, y+op.scale), src, image.Point{}, draw.Over)
			}
		}
	}
	return img
}

func strokeRect(dst draw.Image, r image.Rectangle, src image.Image) {
	if r.Dy() <= 1 || r.Dx() <= 1 {
		draw.Draw(dst, r, src, image.Point{}, draw.Over)
		return
	}
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y+1, r.Min.X+1, r.Max.Y-1), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y+1, r.Max.X, r.Max.Y-1), src, image.Point{}, draw.Over)
}

// drawText renders s with its top-left corner at pt. Scaled text is drawn
// at 1x and enlarged with nearest-neighbor sampling.
func drawText(dst *image.RGBA, pt image.Point, s string, scale int, c color.RGBA) {
	face := basicfont.Face7x13
	if scale <= 1 {
		d := font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face, Dot: fixed.P(pt.X, pt.Y+face.Ascent)}
		d.DrawString(s)
		return
	}
	width := font.MeasureString(face, s).Ceil()
	if width == 0 {
		return
	}
	glyphs := image.NewRGBA(image.Rect(0, 0, width, glyphHeight))
	d := font.Drawer{Dst: glyphs, Src: image.NewUniform(c), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(s)
	target := image.Rect(pt.X, pt.Y, pt.X+width*scale, pt.Y+glyphHeight*scale)
	draw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), draw.Over, nil)
}

// toBGRA writes img into dst as tightly packed BGRA rows.
func toBGRA(img *image.RGBA, dst []byte) {
	b := img.Bounds()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		row := dst[y*w*4 : (y+1)*w*4]
		for i := 0; i < len(src); i += 4 {
			row[i] = src[i+2]
			row[i+1] = src[i+1]
			row[i+2] = src[i]
			row[i+3] = src[i+3]
		}
	}
}
