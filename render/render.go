// Package render holds the chart renderers. Each one draws a single region of
// a Frame onto a surface, never mutates the data it reads, and produces the
// same pixels for the same inputs.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/yitech/candlechart/charterr"
	"github.com/yitech/candlechart/data"
	"github.com/yitech/candlechart/layout"
	"github.com/yitech/candlechart/model/kline"
)

// Renderer draws one region of a frame.
type Renderer interface {
	Render(dst draw.Image, r image.Rectangle, f *Frame) error
}

// Pointer is the slice of mouse state renderers read.
type Pointer struct {
	X, Y    int
	Area    layout.Area
	Hovered int // dataset index, -1 when none
	Inside  bool

	// Grab is the datazoom edge being dragged: -1 left, 1 right, 0 none.
	Grab int
}

// Frame is everything one draw pass needs, assembled by the engine before
// any renderer runs.
type Frame struct {
	Layout   layout.Layout
	All      []kline.Item // whole dataset
	Items    []kline.Item // visible window
	Range    data.VisibleRange
	Stats    data.Stats
	Revision uint64

	Pointer Pointer
	Quality float64
	Palette *Palette

	HeatMapMode bool
	SplitVolume bool
}

// Item returns dataset item i and whether it exists.
func (f *Frame) Item(i int) (*kline.Item, bool) {
	if i < 0 || i >= len(f.All) {
		return nil, false
	}
	return &f.All[i], true
}

// Hovered returns the item under the pointer, if any.
func (f *Frame) Hovered() (*kline.Item, bool) {
	return f.Item(f.Pointer.Hovered)
}

// errorf wraps a drawing failure as charterr.ErrRender.
func errorf(name, format string, args ...any) error {
	return fmt.Errorf("render: %s: %w: %s", name, charterr.ErrRender, fmt.Sprintf(format, args...))
}

// yScale maps a value range onto the rows of a rectangle, min at the bottom.
type yScale struct {
	min, max float64
	top, bot int
}

func newYScale(min, max float64, r image.Rectangle) yScale {
	if max <= min || math.IsInf(min, 0) || math.IsInf(max, 0) {
		mid := min
		if math.IsInf(mid, 0) || math.IsNaN(mid) {
			mid = 0
		}
		pad := math.Abs(mid) * 0.005
		if pad == 0 {
			pad = 1
		}
		min, max = mid-pad, mid+pad
	}
	return yScale{min: min, max: max, top: r.Min.Y, bot: r.Max.Y - 1}
}

// Y is the pixel row of value v.
func (s yScale) Y(v float64) int {
	t := (v - s.min) / (s.max - s.min)
	return s.bot - int(math.Round(t*float64(s.bot-s.top)))
}

// Value inverts Y.
func (s yScale) Value(y int) float64 {
	if s.bot == s.top {
		return s.max
	}
	t := float64(s.bot-y) / float64(s.bot-s.top)
	return s.min + t*(s.max-s.min)
}

// slots divides a rectangle horizontally into count equal candle slots.
type slots struct {
	x0    float64
	width float64
}

func newSlots(r image.Rectangle, count int) slots {
	if count < 1 {
		count = 1
	}
	return slots{x0: float64(r.Min.X), width: float64(r.Dx()) / float64(count)}
}

// span returns the [left, right) pixel columns of slot i.
func (s slots) span(i int) (int, int) {
	l := int(s.x0 + float64(i)*s.width)
	r := int(s.x0 + float64(i+1)*s.width)
	if r <= l {
		r = l + 1
	}
	return l, r
}

// body returns the [left, right) columns of the candle body inside slot i
// after removing the gap ratio, and its center column.
func (s slots) body(i int, gap float64) (l, r, mid int) {
	sl, sr := s.span(i)
	w := sr - sl
	bw := int(float64(w) * (1 - gap))
	if bw < 1 {
		bw = 1
	}
	l = sl + (w-bw)/2
	return l, l + bw, l + bw/2
}
