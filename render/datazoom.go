package render

import (
	"image"
	"image/draw"
	"math"

	"github.com/yitech/candlechart/canvas"
)

// DataZoom draws a miniature close-price line of the whole dataset and a
// translucent indicator of the visible window over it.
type DataZoom struct{}

func (DataZoom) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	if r.Empty() || len(f.All) == 0 {
		return nil
	}
	p := f.Palette
	canvas.Fill(dst, r, p.Panel)

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range f.All {
		c := f.All[i].Close
		lo = math.Min(lo, c)
		hi = math.Max(hi, c)
	}
	inner := r.Inset(2)
	if inner.Empty() {
		inner = r
	}
	ys := newYScale(lo, hi, inner)

	// one sample per pixel column keeps long datasets cheap
	n := len(f.All)
	cols := inner.Dx()
	if cols < 1 {
		cols = 1
	}
	px, py := -1, 0
	for c := 0; c < cols; c++ {
		i := c * n / cols
		if i >= n {
			i = n - 1
		}
		x := inner.Min.X + c
		y := ys.Y(f.All[i].Close)
		if px >= 0 {
			canvas.Line(dst, px, py, x, y, p.ZoomLine, r)
		}
		px, py = x, y
	}

	win := f.Layout.ZoomWindow(f.Range.Start, f.Range.Count, f.Range.Total).Intersect(r)
	if !win.Empty() {
		canvas.Fill(dst, win, WithAlpha(p.ZoomWindow, 60))
		canvas.Stroke(dst, win, p.ZoomWindow)
	}
	return nil
}
