package render

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"github.com/yitech/candlechart/canvas"
	"github.com/yitech/candlechart/layout"
)

// Overlay draws the pointer-dependent layer: crosshair, hover tooltip, the
// render-mode toggle and the datazoom edge handles. It is cleared and redrawn
// on every pointer move, so it never caches anything.
type Overlay struct{}

func (Overlay) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	canvas.Clear(dst, r)
	l := f.Layout
	p := f.Palette

	drawToggle(dst, l, f)
	drawHandles(dst, l, f)

	if !f.Pointer.Inside || f.Pointer.Area != layout.AreaChart {
		return nil
	}
	chart := l.ChartArea()
	x, y := f.Pointer.X, f.Pointer.Y
	if _, ok := f.Hovered(); ok {
		// snap the vertical line to the hovered candle
		s := newSlots(l.Rect(layout.Price), len(f.Items))
		_, _, x = s.body(f.Pointer.Hovered-f.Range.Start, GapRatio)
		drawTooltip(dst, l, f, x)
	}
	canvas.VLine(dst, x, chart.Min.Y, chart.Max.Y-1, p.Crosshair, chart)
	canvas.HLine(dst, chart.Min.X, chart.Max.X-1, y, p.Crosshair, chart)

	price := l.Rect(layout.Price)
	axis := l.Rect(layout.YAxis)
	if y >= price.Min.Y && y < price.Max.Y && axis.Dx() > 0 && len(f.Items) > 0 {
		ys := newYScale(f.Stats.MinLow, f.Stats.MaxHigh, price)
		th := canvas.TextHeight()
		canvas.Label(dst, axis.Min.X+2, y-th/2-1, FormatPrice(ys.Value(y)), p.Background, p.Crosshair, 1, axis)
	}
	return nil
}

// ToggleLabel is the caption of the mode toggle for the mode it switches to.
func ToggleLabel(heatMap bool) string {
	if heatMap {
		return "K"
	}
	return "HM"
}

func drawToggle(dst draw.Image, l layout.Layout, f *Frame) {
	btn := l.ModeToggle()
	if btn.Empty() {
		return
	}
	p := f.Palette
	bg := p.Panel
	if f.Pointer.Area == layout.AreaModeToggle {
		bg = p.Grid
	}
	canvas.Fill(dst, btn, bg)
	canvas.Stroke(dst, btn, p.Frame)
	label := ToggleLabel(f.HeatMapMode)
	x := btn.Min.X + (btn.Dx()-canvas.TextWidth(label))/2
	y := btn.Min.Y + (btn.Dy()-canvas.TextHeight())/2
	canvas.Text(dst, x, y, label, p.Text, btn)
}

func drawHandles(dst draw.Image, l layout.Layout, f *Frame) {
	win := l.ZoomWindow(f.Range.Start, f.Range.Count, f.Range.Total)
	if win.Empty() {
		return
	}
	strip := l.Rect(layout.DataZoom)
	left, right := layout.ZoomHandles(win)
	p := f.Palette
	for i, h := range []image.Rectangle{left, right} {
		col := WithAlpha(p.Handle, 160)
		if (i == 0 && f.Pointer.Grab < 0) || (i == 1 && f.Pointer.Grab > 0) {
			col = p.Handle
		}
		canvas.Fill(dst, h.Intersect(strip), col)
	}
}

func drawTooltip(dst draw.Image, l layout.Layout, f *Frame, x int) {
	it, ok := f.Hovered()
	if !ok {
		return
	}
	p := f.Palette
	chart := l.ChartArea()
	lines := []string{
		time.Unix(int64(it.Timestamp), 0).UTC().Format("2006-01-02 15:04"),
		"O " + FormatPrice(it.Open),
		"H " + FormatPrice(it.High),
		"L " + FormatPrice(it.Low),
		"C " + FormatPrice(it.Close),
		"V " + FormatVolume(it.Volume()),
	}
	if it.Open != 0 {
		lines = append(lines, fmt.Sprintf("%+.2f%%", (it.Close-it.Open)/it.Open*100))
	}

	w := 0
	for _, s := range lines {
		if tw := canvas.TextWidth(s); tw > w {
			w = tw
		}
	}
	th := canvas.TextHeight()
	const pad = 4
	box := image.Rect(0, 0, w+2*pad, len(lines)*th+2*pad)

	// keep the box on the side of the chart away from the pointer
	at := image.Pt(chart.Min.X+8, chart.Min.Y+8)
	if x < chart.Min.X+chart.Dx()/2 {
		at.X = chart.Max.X - box.Dx() - 8
	}
	box = box.Add(at).Intersect(chart)
	canvas.Fill(dst, box, WithAlpha(p.TooltipBG, 230))
	canvas.Stroke(dst, box, p.Frame)
	for i, s := range lines {
		canvas.Text(dst, box.Min.X+pad, box.Min.Y+pad+i*th, s, p.Text, box)
	}
}
