package render

import (
	"image"
	"image/draw"

	"github.com/yitech/candlechart/canvas"
)

// GapRatio is the share of a candle slot left empty between bodies.
const GapRatio = 0.2

// Price draws one OHLC candle per visible item, mapped linearly from
// [MinLow, MaxHigh] onto the region height.
type Price struct{}

func (Price) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	if r.Empty() {
		return nil
	}
	if len(f.Items) == 0 {
		return nil
	}
	ys := newYScale(f.Stats.MinLow, f.Stats.MaxHigh, r)
	s := newSlots(r, len(f.Items))
	p := f.Palette

	for i := range f.Items {
		it := &f.Items[i]
		col := p.Bear
		if it.Bullish() {
			col = p.Bull
		}
		l, rr, mid := s.body(i, GapRatio)

		canvas.VLine(dst, mid, ys.Y(it.High), ys.Y(it.Low), col, r)

		top, bot := ys.Y(it.Open), ys.Y(it.Close)
		if top > bot {
			top, bot = bot, top
		}
		canvas.Fill(dst, image.Rect(l, top, rr, bot+1).Intersect(r), col)
	}
	return nil
}

// CloseLine draws the close prices of the window as a polyline. The heat-map
// mode uses it to keep price context on top of the density.
type CloseLine struct{}

func (CloseLine) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	if r.Empty() || len(f.Items) < 2 {
		return nil
	}
	ys := newYScale(f.Stats.MinLow, f.Stats.MaxHigh, r)
	s := newSlots(r, len(f.Items))
	_, _, px := s.body(0, GapRatio)
	py := ys.Y(f.Items[0].Close)
	for i := 1; i < len(f.Items); i++ {
		_, _, x := s.body(i, GapRatio)
		y := ys.Y(f.Items[i].Close)
		canvas.Line(dst, px, py, x, y, f.Palette.Text, r)
		px, py = x, y
	}
	return nil
}

// Volume draws one bar per visible item mapped from [0, MaxVolume]. With
// SplitVolume the bar stacks buy volume (bull color) under sell volume (bear).
type Volume struct{}

func (Volume) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	if r.Empty() || len(f.Items) == 0 {
		return nil
	}
	ys := newYScale(0, f.Stats.MaxVolume, r)
	if f.Stats.MaxVolume <= 0 {
		return nil
	}
	s := newSlots(r, len(f.Items))
	p := f.Palette

	for i := range f.Items {
		it := &f.Items[i]
		l, rr, _ := s.body(i, GapRatio)
		top := ys.Y(it.Volume())

		if f.SplitVolume {
			mid := ys.Y(it.BuyVolume)
			canvas.Fill(dst, image.Rect(l, mid, rr, r.Max.Y).Intersect(r), WithAlpha(p.Bull, 200))
			canvas.Fill(dst, image.Rect(l, top, rr, mid).Intersect(r), WithAlpha(p.Bear, 200))
			continue
		}
		col := p.Bear
		if it.Bullish() {
			col = p.Bull
		}
		canvas.Fill(dst, image.Rect(l, top, rr, r.Max.Y).Intersect(r), WithAlpha(col, 200))
	}
	return nil
}
