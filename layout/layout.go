// Package layout maps a canvas size to a breakpoint and the named regions of
// the chart. Layouts are plain values; renderers receive them per frame and
// never hold on to them.
package layout

import (
	"fmt"
	"image"
	"math"

	"github.com/yitech/candlechart/charterr"
)

// Breakpoint is a named layout configuration selected by canvas width.
type Breakpoint int

const (
	Mobile Breakpoint = iota
	Tablet
	Desktop
	Large
)

func (b Breakpoint) String() string {
	switch b {
	case Mobile:
		return "mobile"
	case Tablet:
		return "tablet"
	case Desktop:
		return "desktop"
	case Large:
		return "large"
	}
	return fmt.Sprintf("breakpoint(%d)", int(b))
}

// Region names one rectangle of the chart.
type Region int

const (
	Header Region = iota
	Toolbar
	Price
	Volume
	DataZoom
	YAxis
	OrderBook
	numRegions
)

func (r Region) String() string {
	return [...]string{"header", "toolbar", "price", "volume", "datazoom", "y-axis", "order-book"}[r]
}

// threshold table, ordered: first maxWidth that the canvas is below wins.
var thresholds = []struct {
	maxWidth int
	bp       Breakpoint
}{
	{768, Mobile},
	{1024, Tablet},
	{1440, Desktop},
}

// proportions per breakpoint, as fractions of canvas width/height.
type proportions struct {
	toolbarW, mainW, yAxisW, orderBookW float64
	headerH, dataZoomH                  float64
	priceShare                          float64 // of the main column below the header, excluding datazoom
}

var table = map[Breakpoint]proportions{
	Mobile:  {toolbarW: 0, mainW: 0.86, yAxisW: 0.14, orderBookW: 0, headerH: 0.08, dataZoomH: 0.10, priceShare: 0.75},
	Tablet:  {toolbarW: 0.06, mainW: 0.70, yAxisW: 0.10, orderBookW: 0.14, headerH: 0.06, dataZoomH: 0.08, priceShare: 0.75},
	Desktop: {toolbarW: 0.07, mainW: 0.65, yAxisW: 0.08, orderBookW: 0.20, headerH: 0.05, dataZoomH: 0.07, priceShare: 0.75},
	Large:   {toolbarW: 0.05, mainW: 0.67, yAxisW: 0.06, orderBookW: 0.22, headerH: 0.04, dataZoomH: 0.06, priceShare: 0.75},
}

// Layout is the breakpoint plus the rectangle of every region.
type Layout struct {
	Breakpoint Breakpoint
	Width      int
	Height     int
	Regions    [numRegions]image.Rectangle
}

// Rect returns the rectangle of region r.
func (l Layout) Rect(r Region) image.Rectangle { return l.Regions[r] }

// Bounds is the whole canvas.
func (l Layout) Bounds() image.Rectangle { return image.Rect(0, 0, l.Width, l.Height) }

// ChartArea is the price and volume regions together.
func (l Layout) ChartArea() image.Rectangle {
	return l.Regions[Price].Union(l.Regions[Volume])
}

// Empty reports whether the layout was never computed.
func (l Layout) Empty() bool { return l.Width == 0 || l.Height == 0 }

// Select picks the breakpoint for a canvas width.
func Select(width int) Breakpoint {
	for _, t := range thresholds {
		if width < t.maxWidth {
			return t.bp
		}
	}
	return Large
}

// Compute derives the layout for a canvas. Degenerate sizes fail with
// charterr.ErrLayout and the caller keeps its previous layout.
func Compute(width, height int) (Layout, error) {
	if width <= 0 || height <= 0 {
		return Layout{}, fmt.Errorf("layout: %w: canvas %dx%d", charterr.ErrLayout, width, height)
	}
	bp := Select(width)
	p := table[bp]

	// columns left to right: toolbar, main, y-axis, order book
	cols := split(width, p.toolbarW, p.mainW, p.yAxisW, p.orderBookW)
	x0 := 0
	x1 := x0 + cols[0]
	x2 := x1 + cols[1]
	x3 := x2 + cols[2]

	// rows: header spans the full width; below it the main column stacks
	// price, volume and the datazoom strip.
	headerH := scale(height, p.headerH)
	zoomH := scale(height, p.dataZoomH)
	body := height - headerH - zoomH
	if body < 0 {
		body = 0
	}
	priceH := scale(body, p.priceShare)
	volumeH := body - priceH

	y1 := headerH
	y2 := y1 + priceH
	y3 := y2 + volumeH

	l := Layout{Breakpoint: bp, Width: width, Height: height}
	l.Regions[Header] = image.Rect(0, 0, width, y1)
	l.Regions[Toolbar] = image.Rect(x0, y1, x1, height)
	l.Regions[Price] = image.Rect(x1, y1, x2, y2)
	l.Regions[Volume] = image.Rect(x1, y2, x2, y3)
	l.Regions[DataZoom] = image.Rect(x1, y3, x2, height)
	l.Regions[YAxis] = image.Rect(x2, y1, x3, height)
	l.Regions[OrderBook] = image.Rect(x3, y1, width, height)
	return l, nil
}

// split divides total by the given fractions, handing the rounding
// remainder to the last non-empty part so the parts sum to total.
func split(total int, fracs ...float64) []int {
	out := make([]int, len(fracs))
	sum, last := 0, -1
	for i, f := range fracs {
		out[i] = scale(total, f)
		sum += out[i]
		if f > 0 {
			last = i
		}
	}
	if last >= 0 {
		out[last] += total - sum
	}
	return out
}

// scale truncates total*f, tolerating binary fractions like 0.65 landing a
// hair under the integer.
func scale(total int, f float64) int {
	return int(math.Floor(float64(total)*f + 1e-9))
}
