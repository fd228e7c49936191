package render

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/yitech/candlechart/canvas"
	"github.com/yitech/candlechart/model/kline"
)

// DepthLevel is one cumulative step of a depth side.
type DepthLevel struct {
	Price      float64
	Cumulative float64
}

// Depth is a cumulative bid/ask snapshot around a reference price. Bids are
// ordered from the reference price downward, asks upward.
type Depth struct {
	Reference float64
	Bids      []DepthLevel
	Asks      []DepthLevel
}

// MaxCumulative is the deeper of the two sides.
func (d *Depth) MaxCumulative() float64 {
	var m float64
	if n := len(d.Bids); n > 0 {
		m = d.Bids[n-1].Cumulative
	}
	if n := len(d.Asks); n > 0 && d.Asks[n-1].Cumulative > m {
		m = d.Asks[n-1].Cumulative
	}
	return m
}

// Snapshot splits an item's levels at its close: levels below are bids,
// levels at or above are asks, each accumulated outward from the close.
func Snapshot(it *kline.Item) Depth {
	d := Depth{Reference: it.Close}
	var bids, asks []kline.PriceVolume
	for _, lv := range it.Volumes {
		if lv.Volume <= 0 {
			continue
		}
		if lv.Price < it.Close {
			bids = append(bids, lv)
		} else {
			asks = append(asks, lv)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	var cum float64
	for _, lv := range bids {
		cum += lv.Volume
		d.Bids = append(d.Bids, DepthLevel{Price: lv.Price, Cumulative: cum})
	}
	cum = 0
	for _, lv := range asks {
		cum += lv.Volume
		d.Asks = append(d.Asks, DepthLevel{Price: lv.Price, Cumulative: cum})
	}
	return d
}

type bookKey struct {
	index    int
	revision uint64
	size     image.Point
	palette  string
}

// OrderBook draws the cumulative depth of the hovered item (the newest one
// when nothing is hovered) into the right-hand panel. The panel bitmap is
// rebuilt only when the snapshot source or panel size changes.
type OrderBook struct {
	key    bookKey
	depth  Depth
	bitmap *image.RGBA
}

// Source is the dataset index the panel shows for f.
func (OrderBook) Source(f *Frame) int {
	if _, ok := f.Hovered(); ok {
		return f.Pointer.Hovered
	}
	return len(f.All) - 1
}

// Depth returns the snapshot drawn last.
func (ob *OrderBook) Depth() Depth { return ob.depth }

func (ob *OrderBook) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	if r.Empty() {
		return nil
	}
	idx := ob.Source(f)
	key := bookKey{index: idx, revision: f.Revision, size: r.Size(), palette: f.Palette.Name}
	if ob.bitmap == nil || key != ob.key {
		if err := ob.rebuild(key, f); err != nil {
			return err
		}
	}
	canvas.Clear(dst, r)
	draw.Draw(dst, r, ob.bitmap, image.Point{}, draw.Over)
	return nil
}

func (ob *OrderBook) rebuild(key bookKey, f *Frame) error {
	sz := key.size
	img := image.NewRGBA(image.Rectangle{Max: sz})
	p := f.Palette
	local := img.Rect
	canvas.Fill(img, local, p.Panel)

	it, ok := f.Item(key.index)
	if !ok {
		ob.key, ob.bitmap, ob.depth = key, img, Depth{}
		return nil
	}
	d := Snapshot(it)

	pad := 4
	th := canvas.TextHeight()
	plot := image.Rect(pad, th+2*pad, sz.X-pad, sz.Y-pad)
	if plot.Empty() {
		ob.key, ob.bitmap, ob.depth = key, img, d
		return nil
	}

	lo, hi := d.Reference, d.Reference
	if n := len(d.Bids); n > 0 {
		lo = d.Bids[n-1].Price
	}
	if n := len(d.Asks); n > 0 {
		hi = d.Asks[n-1].Price
	}
	ys := newYScale(lo, hi, plot)
	maxCum := d.MaxCumulative()

	if maxCum > 0 {
		gc, err := drawing.NewRasterGraphicContext(img)
		if err != nil {
			return errorf("orderbook", "%v", err)
		}
		xOf := func(cum float64) float64 {
			return float64(plot.Min.X) + cum/maxCum*float64(plot.Dx())
		}
		side := func(levels []DepthLevel, col drawing.Color) {
			if len(levels) == 0 {
				return
			}
			ref := float64(ys.Y(d.Reference))
			gc.BeginPath()
			gc.MoveTo(float64(plot.Min.X), ref)
			prevX := float64(plot.Min.X)
			for _, lv := range levels {
				y := float64(ys.Y(lv.Price))
				gc.LineTo(prevX, y)
				prevX = xOf(lv.Cumulative)
				gc.LineTo(prevX, y)
			}
			gc.LineTo(float64(plot.Min.X), float64(ys.Y(levels[len(levels)-1].Price)))
			gc.Close()
			gc.SetFillColor(col.WithAlpha(140))
			gc.SetStrokeColor(col)
			gc.SetLineWidth(1)
			gc.FillStroke()
		}
		side(d.Bids, toDrawing(p.Bid))
		side(d.Asks, toDrawing(p.Ask))
	}

	refY := ys.Y(d.Reference)
	canvas.HLine(img, plot.Min.X, plot.Max.X-1, refY, p.Muted, plot)
	canvas.Text(img, pad, pad, "depth "+FormatPrice(d.Reference), p.Text, local)
	if maxCum > 0 {
		canvas.Text(img, plot.Max.X-canvas.TextWidth(FormatVolume(maxCum)), plot.Max.Y-th, FormatVolume(maxCum), p.Muted, local)
	}

	ob.key, ob.bitmap, ob.depth = key, img, d
	return nil
}

// toDrawing converts an opaque palette color into the rasterizer's color type.
func toDrawing(c color.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
