package canvas

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face is the bitmap font used for every label.
var Face font.Face = basicfont.Face7x13

// Clear makes r fully transparent.
func Clear(dst draw.Image, r image.Rectangle) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

// Fill paints r with c, blending when c is translucent.
func Fill(dst draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// HLine draws a 1px horizontal line from x0 to x1 (inclusive) at y, clipped to clip.
func HLine(dst draw.Image, x0, x1, y int, c color.Color, clip image.Rectangle) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	Fill(dst, image.Rect(x0, y, x1+1, y+1).Intersect(clip), c)
}

// VLine draws a 1px vertical line from y0 to y1 (inclusive) at x, clipped to clip.
func VLine(dst draw.Image, x, y0, y1 int, c color.Color, clip image.Rectangle) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	Fill(dst, image.Rect(x, y0, x+1, y1+1).Intersect(clip), c)
}

// Stroke outlines r with a 1px border.
func Stroke(dst draw.Image, r image.Rectangle, c color.Color) {
	if r.Empty() {
		return
	}
	HLine(dst, r.Min.X, r.Max.X-1, r.Min.Y, c, r)
	HLine(dst, r.Min.X, r.Max.X-1, r.Max.Y-1, c, r)
	VLine(dst, r.Min.X, r.Min.Y, r.Max.Y-1, c, r)
	VLine(dst, r.Max.X-1, r.Min.Y, r.Max.Y-1, c, r)
}

// Line draws a 1px line between two points (Bresenham), clipped to clip.
func Line(dst draw.Image, x0, y0, x1, y1 int, c color.Color, clip image.Rectangle) {
	clip = clip.Intersect(dst.Bounds())
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(clip) {
			dst.Set(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// TextWidth is the advance of s in Face, in pixels.
func TextWidth(s string) int {
	return font.MeasureString(Face, s).Ceil()
}

// TextHeight is the line height of Face.
func TextHeight() int {
	return Face.Metrics().Height.Ceil()
}

// Text draws s with its top-left corner at (x, y), clipped to clip.
func Text(dst draw.Image, x, y int, s string, c color.Color, clip image.Rectangle) {
	clip = clip.Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}
	d := &font.Drawer{
		Dst:  clipped{dst, clip},
		Src:  image.NewUniform(c),
		Face: Face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y + Face.Metrics().Ascent.Ceil())},
	}
	d.DrawString(s)
}

// Label draws s on a filled box with pad pixels of padding and returns the box.
func Label(dst draw.Image, x, y int, s string, fg, bg color.Color, pad int, clip image.Rectangle) image.Rectangle {
	box := image.Rect(x, y, x+TextWidth(s)+2*pad, y+TextHeight()+2*pad)
	Fill(dst, box.Intersect(clip), bg)
	Text(dst, x+pad, y+pad, s, fg, clip)
	return box
}

// clipped restricts writes to a rectangle so text never bleeds into a
// neighbouring region.
type clipped struct {
	draw.Image
	r image.Rectangle
}

func (c clipped) Bounds() image.Rectangle { return c.r }

func (c clipped) Set(x, y int, col color.Color) {
	if image.Pt(x, y).In(c.r) {
		c.Image.Set(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
