package render

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yitech/candlechart/canvas"
	"github.com/yitech/candlechart/layout"
)

// Grid paints the static base layer: background, panel fills, region frames
// and evenly spaced grid lines. It depends only on the layout.
type Grid struct{}

func (Grid) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	p := f.Palette
	l := f.Layout
	canvas.Fill(dst, r, p.Background)

	for _, reg := range []layout.Region{layout.Toolbar, layout.YAxis, layout.OrderBook, layout.DataZoom} {
		canvas.Fill(dst, l.Rect(reg), p.Panel)
	}

	price := l.Rect(layout.Price)
	for i := 1; i < 5; i++ {
		y := price.Min.Y + price.Dy()*i/5
		canvas.HLine(dst, price.Min.X, price.Max.X-1, y, p.Grid, price)
	}
	vol := l.Rect(layout.Volume)
	canvas.HLine(dst, vol.Min.X, vol.Max.X-1, vol.Min.Y+vol.Dy()/2, p.Grid, vol)

	chart := l.ChartArea()
	for i := 1; i < 8; i++ {
		x := chart.Min.X + chart.Dx()*i/8
		canvas.VLine(dst, x, chart.Min.Y, chart.Max.Y-1, p.Grid, chart)
	}

	for reg := layout.Header; reg <= layout.OrderBook; reg++ {
		canvas.Stroke(dst, l.Rect(reg), p.Frame)
	}
	return nil
}

// Labels draws the data-dependent axis text on the main layer: price ticks in
// the y-axis column, the volume scale, time ticks and the header summary.
type Labels struct {
	// Title is shown at the left of the header.
	Title string
}

const tickSpacingPx = 48

func (lb Labels) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	p := f.Palette
	l := f.Layout
	price := l.Rect(layout.Price)
	axis := l.Rect(layout.YAxis)
	th := canvas.TextHeight()

	if len(f.Items) > 0 && axis.Dx() > 0 {
		ys := newYScale(f.Stats.MinLow, f.Stats.MaxHigh, price)
		target := price.Dy() / tickSpacingPx
		for _, t := range Ticks(ys.min, ys.max, target) {
			y := ys.Y(t.Value)
			canvas.HLine(dst, axis.Min.X, axis.Min.X+3, y, p.Muted, axis)
			canvas.Text(dst, axis.Min.X+6, y-th/2, t.Label, p.Text, axis.Intersect(price))
		}

		vol := l.Rect(layout.Volume)
		if f.Stats.MaxVolume > 0 {
			canvas.Text(dst, axis.Min.X+6, vol.Min.Y+2, FormatVolume(f.Stats.MaxVolume), p.Muted, axis)
		}
		lb.timeTicks(dst, f)
	}

	hdr := l.Rect(layout.Header)
	text := lb.Title
	if n := len(f.All); n > 0 {
		last := f.All[n-1]
		text = fmt.Sprintf("%s  O:%s H:%s L:%s C:%s V:%s", lb.Title,
			FormatPrice(last.Open), FormatPrice(last.High), FormatPrice(last.Low),
			FormatPrice(last.Close), FormatVolume(last.Volume()))
	}
	clip := hdr
	if mt := l.ModeToggle(); mt.In(hdr) {
		clip.Max.X = mt.Min.X - 4
	}
	canvas.Text(dst, hdr.Min.X+8, hdr.Min.Y+(hdr.Dy()-th)/2, text, p.Text, clip)
	return nil
}

func (lb Labels) timeTicks(dst draw.Image, f *Frame) {
	vol := f.Layout.Rect(layout.Volume)
	s := newSlots(vol, len(f.Items))
	every := int(math.Ceil(100 / math.Max(s.width, 1)))
	th := canvas.TextHeight()
	for i := 0; i < len(f.Items); i += every {
		x, _ := s.span(i)
		label := time.Unix(int64(f.Items[i].Timestamp), 0).UTC().Format("15:04")
		canvas.Text(dst, x+2, vol.Max.Y-th-2, label, f.Palette.Muted, vol)
	}
}

// Tick is one labelled axis value.
type Tick struct {
	Value float64
	Label string
}

// Ticks returns roughly target evenly spaced "nice" values (1, 2 or 5 times
// a power of ten apart) inside [min, max]. Labels are computed in decimal so
// they never show binary float noise.
func Ticks(min, max float64, target int) []Tick {
	if target < 2 {
		target = 2
	}
	span := max - min
	if !(span > 0) || math.IsInf(span, 0) {
		return nil
	}
	raw := span / float64(target)
	exp := int32(math.Floor(math.Log10(raw)))
	norm := raw / math.Pow(10, float64(exp))
	var mult int64
	switch {
	case norm < 1.5:
		mult = 1
	case norm < 3:
		mult = 2
	case norm < 7:
		mult = 5
	default:
		mult = 10
	}
	step := decimal.New(mult, exp)
	places := int32(0)
	if exp < 0 {
		places = -exp
	}

	hi := decimal.NewFromFloat(max)
	var out []Tick
	for v := decimal.NewFromFloat(min).Div(step).Ceil().Mul(step); v.LessThanOrEqual(hi); v = v.Add(step) {
		out = append(out, Tick{Value: v.InexactFloat64(), Label: v.StringFixed(places)})
		if len(out) > 4*target {
			break
		}
	}
	return out
}

// FormatPrice renders a price with precision suited to its magnitude.
func FormatPrice(v float64) string {
	places := int32(2)
	switch a := math.Abs(v); {
	case a >= 10000:
		places = 1
	case a < 1 && a > 0:
		places = 5
	case a < 10:
		places = 3
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// FormatVolume abbreviates large volumes (1.2K, 3.4M).
func FormatVolume(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1e9:
		return decimal.NewFromFloat(v/1e9).StringFixed(2) + "B"
	case a >= 1e6:
		return decimal.NewFromFloat(v/1e6).StringFixed(2) + "M"
	case a >= 1e3:
		return decimal.NewFromFloat(v/1e3).StringFixed(2) + "K"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}
