package layout

import "image"

// Area classifies a pointer position for interaction.
type Area int

const (
	AreaNone Area = iota
	AreaChart
	AreaYAxis
	AreaDataZoom
	AreaOrderBook
	AreaHeader
	AreaToolbar
	AreaModeToggle
)

func (a Area) String() string {
	return [...]string{"none", "chart", "y-axis", "datazoom", "order-book", "header", "toolbar", "mode-toggle"}[a]
}

// HandleWidth is the hit width of a datazoom window edge, in pixels.
const HandleWidth = 6

// Hit classifies the point (x, y). Affordances win over the region they sit in.
func (l Layout) Hit(x, y int) Area {
	pt := image.Pt(x, y)
	if !pt.In(l.Bounds()) {
		return AreaNone
	}
	if pt.In(l.ModeToggle()) {
		return AreaModeToggle
	}
	switch {
	case pt.In(l.ChartArea()):
		return AreaChart
	case pt.In(l.Regions[DataZoom]):
		return AreaDataZoom
	case pt.In(l.Regions[YAxis]):
		return AreaYAxis
	case pt.In(l.Regions[OrderBook]):
		return AreaOrderBook
	case pt.In(l.Regions[Header]):
		return AreaHeader
	case pt.In(l.Regions[Toolbar]):
		return AreaToolbar
	}
	return AreaNone
}

// ModeToggle is the hit rectangle of the candlestick/heat-map switch: the
// top of the toolbar, or the right end of the header when there is no toolbar.
func (l Layout) ModeToggle() image.Rectangle {
	tb := l.Regions[Toolbar]
	if tb.Dx() > 0 {
		side := tb.Dx() - 8
		if side < 8 {
			side = tb.Dx()
		}
		x := tb.Min.X + (tb.Dx()-side)/2
		return image.Rect(x, tb.Min.Y+4, x+side, tb.Min.Y+4+side).Intersect(tb)
	}
	h := l.Regions[Header]
	side := h.Dy() - 4
	if side < 4 {
		side = h.Dy()
	}
	return image.Rect(h.Max.X-side-4, h.Min.Y+(h.Dy()-side)/2, h.Max.X-4, h.Min.Y+(h.Dy()-side)/2+side).Intersect(h)
}

// ZoomWindow is the indicator rectangle for window [start, start+count) of
// total items inside the datazoom strip.
func (l Layout) ZoomWindow(start, count, total int) image.Rectangle {
	r := l.Regions[DataZoom]
	if total <= 0 || r.Empty() {
		return image.Rectangle{}
	}
	w := float64(r.Dx())
	x0 := r.Min.X + int(float64(start)*w/float64(total))
	x1 := r.Min.X + int(float64(start+count)*w/float64(total)+0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	return image.Rect(x0, r.Min.Y, x1, r.Max.Y)
}

// ZoomHandles returns the left and right edge hit rectangles of a window.
func ZoomHandles(win image.Rectangle) (left, right image.Rectangle) {
	half := HandleWidth / 2
	left = image.Rect(win.Min.X-half, win.Min.Y, win.Min.X+half, win.Max.Y)
	right = image.Rect(win.Max.X-half, win.Min.Y, win.Max.X+half, win.Max.Y)
	return left, right
}

// IndexAt maps an x coordinate inside the chart area to a dataset index for a
// window of count items starting at start.
func (l Layout) IndexAt(x, start, count int) int {
	r := l.Regions[Price]
	if count <= 0 || r.Dx() <= 0 {
		return -1
	}
	off := int(float64(x-r.Min.X) * float64(count) / float64(r.Dx()))
	if off < 0 {
		off = 0
	}
	if off >= count {
		off = count - 1
	}
	return start + off
}

// CandleWidth is the pixel width of one window slot.
func (l Layout) CandleWidth(count int) float64 {
	if count <= 0 {
		return 0
	}
	return float64(l.Regions[Price].Dx()) / float64(count)
}
