// Package chart is the engine façade a host drives: it owns the dataset, the
// layout, the three surfaces and the gesture state, and redraws only what a
// mutation made stale.
package chart

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"strings"
	"time"

	"github.com/yitech/candlechart/canvas"
	"github.com/yitech/candlechart/charterr"
	"github.com/yitech/candlechart/codec"
	"github.com/yitech/candlechart/data"
	"github.com/yitech/candlechart/interact"
	"github.com/yitech/candlechart/layout"
	"github.com/yitech/candlechart/model/kline"
	"github.com/yitech/candlechart/quality"
	"github.com/yitech/candlechart/render"
)

// RenderMode selects what the price region shows.
type RenderMode int

const (
	Candlestick RenderMode = iota
	HeatMap
	numModes
)

func (m RenderMode) String() string {
	switch m {
	case Candlestick:
		return "candlestick"
	case HeatMap:
		return "heatmap"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseRenderMode accepts the String forms plus "k" and "hm".
func ParseRenderMode(s string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "candlestick", "candles", "k":
		return Candlestick, nil
	case "heatmap", "heat-map", "hm":
		return HeatMap, nil
	}
	return Candlestick, fmt.Errorf("chart: %w: unknown render mode %q", charterr.ErrValidation, s)
}

// pass binds a renderer to the layout region it draws.
type pass struct {
	region   layout.Region
	renderer render.Renderer
}

// Engine is one chart instance. It is not safe for concurrent use; the host
// calls it from a single goroutine.
type Engine struct {
	log *slog.Logger
	now func() time.Time

	data    *data.Manager
	canvas  *canvas.Manager
	input   *interact.Dispatcher
	quality *quality.Controller

	layout  layout.Layout
	mode    RenderMode
	palette *render.Palette
	split   bool

	grid    render.Renderer
	labels  render.Renderer
	zoom    render.Renderer
	overlay render.Renderer
	book    *render.OrderBook
	heat    *render.HeatMap

	// renderers of the price and volume regions, per mode
	modes [numModes][]pass

	disposed bool
}

// New decodes mem[offset:offset+length] and builds an engine over it. The
// buffer is only read during the call.
func New(mem []byte, offset, length int, opts ...Option) (*Engine, error) {
	o := options{
		logger:    slog.Default(),
		targetFPS: quality.DefaultTargetFPS,
		palette:   render.DefaultPalette(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	buf, err := window(mem, offset, length)
	if err != nil {
		return nil, err
	}
	items, err := codec.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("chart: new: %w", err)
	}

	e := &Engine{
		log:     o.logger.With("component", "chart"),
		now:     o.now,
		data:    data.NewManager(items, data.WithCandleWidth(o.candleWidth), data.WithMinVisible(o.minVisible)),
		canvas:  canvas.NewManager(),
		quality: quality.New(o.targetFPS),
		palette: o.palette,
		split:   o.splitVolume,
		grid:    render.Grid{},
		labels:  render.Labels{Title: o.title},
		zoom:    render.DataZoom{},
		overlay: render.Overlay{},
		book:    &render.OrderBook{},
		heat:    render.NewHeatMap(o.policy),
	}
	e.input = interact.New(e.data, e.canvas, e.toggleMode)
	e.modes = [numModes][]pass{
		Candlestick: {
			{layout.Price, render.Price{}},
			{layout.Volume, render.Volume{}},
		},
		HeatMap: {
			{layout.Price, e.heat},
			{layout.Price, render.CloseLine{}},
			{layout.Volume, render.Volume{}},
		},
	}
	e.log.Info("engine created", "items", len(items), "policy", o.policy, "palette", o.palette.Name)
	return e, nil
}

// window bounds-checks a host memory range.
func window(mem []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset > len(mem) || length > len(mem)-offset {
		return nil, fmt.Errorf("chart: %w: range [%d, %d+%d) outside %d bytes",
			charterr.ErrBuffer, offset, offset, length, len(mem))
	}
	return mem[offset : offset+length], nil
}

// AttachSurfaces binds the host's drawing targets, bottom to top.
func (e *Engine) AttachSurfaces(base, main, overlay draw.Image) {
	e.canvas.Attach(base, main, overlay)
	e.disposed = false
}

// Resize recomputes the layout and re-sizes the window to the new price
// width. A degenerate size returns charterr.ErrLayout and keeps the
// previous layout.
func (e *Engine) Resize(width, height int) error {
	l, err := layout.Compute(width, height)
	if err != nil {
		e.log.Warn("resize rejected", "width", width, "height", height, "error", err)
		return fmt.Errorf("chart: resize: %w", err)
	}
	prevWidth := e.layout.Rect(layout.Price).Dx()
	e.layout = l
	e.input.SetLayout(l)
	if pw := l.Rect(layout.Price).Dx(); pw != prevWidth {
		e.data.InitializeRange(pw)
	}
	e.input.Refresh()
	e.canvas.MarkAll()
	e.log.Debug("resized", "width", width, "height", height, "breakpoint", l.Breakpoint)
	return nil
}

// DrawAll applies any coalesced drag, then redraws the dirty surfaces and
// clears their flags. A failing renderer is skipped for the frame; only when
// every renderer fails is the error returned and the flags kept.
func (e *Engine) DrawAll() error {
	if e.disposed || !e.canvas.Attached() {
		return fmt.Errorf("chart: draw: %w: surfaces not attached", charterr.ErrRender)
	}
	if e.layout.Empty() {
		return fmt.Errorf("chart: draw: %w: no layout, call Resize first", charterr.ErrLayout)
	}
	start := e.now()
	e.input.Flush()
	if !e.canvas.AnyDirty() {
		return nil
	}

	f := e.frame()
	var attempted, failed int
	var firstErr error
	run := func(dst draw.Image, r image.Rectangle, rd render.Renderer) {
		attempted++
		if err := rd.Render(dst, r, f); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			e.log.Warn("renderer failed", "renderer", fmt.Sprintf("%T", rd), "error", err)
		}
	}

	var drawn []canvas.Layer
	panelOnly := false
	if e.canvas.Dirty(canvas.Base) {
		dst := e.canvas.Surface(canvas.Base)
		canvas.Clear(dst, dst.Bounds())
		run(dst, dst.Bounds(), e.grid)
		drawn = append(drawn, canvas.Base)
	}
	if e.canvas.Dirty(canvas.Main) {
		dst := e.canvas.Surface(canvas.Main)
		canvas.Clear(dst, dst.Bounds())
		for _, p := range e.modes[e.mode] {
			run(dst, e.layout.Rect(p.region), p.renderer)
		}
		run(dst, e.layout.Rect(layout.DataZoom), e.zoom)
		run(dst, e.layout.Rect(layout.OrderBook), e.book)
		run(dst, dst.Bounds(), e.labels)
		drawn = append(drawn, canvas.Main)
	} else if e.canvas.PanelStale() {
		run(e.canvas.Surface(canvas.Main), e.layout.Rect(layout.OrderBook), e.book)
		panelOnly = true
	}
	if e.canvas.Dirty(canvas.Overlay) {
		dst := e.canvas.Surface(canvas.Overlay)
		run(dst, dst.Bounds(), e.overlay)
		drawn = append(drawn, canvas.Overlay)
	}

	if attempted > 0 && failed == attempted {
		return fmt.Errorf("chart: draw: all %d renderers failed: %w", failed, firstErr)
	}
	e.canvas.Clear(drawn...)
	if panelOnly {
		e.canvas.ClearPanel()
	}

	elapsed := e.now().Sub(start)
	e.quality.Observe(elapsed)
	e.log.Debug("frame drawn", "layers", len(drawn), "elapsed", elapsed,
		"fps", e.quality.FPS(), "quality", e.quality.Level())
	return nil
}

// Composite flattens the three surfaces onto dst.
func (e *Engine) Composite(dst draw.Image) { e.canvas.Composite(dst) }

func (e *Engine) frame() *render.Frame {
	m := e.input.Mouse()
	return &render.Frame{
		Layout:   e.layout,
		All:      e.data.Items(),
		Items:    e.data.Visible(),
		Range:    e.data.Range(),
		Stats:    e.data.Stats(),
		Revision: e.data.Revision(),
		Pointer: render.Pointer{
			X: m.X, Y: m.Y,
			Area:    m.Area,
			Hovered: m.HoveredIndex,
			Inside:  m.Inside,
			Grab:    m.Grab,
		},
		Quality:     e.quality.Level(),
		Palette:     e.palette,
		HeatMapMode: e.mode == HeatMap,
		SplitVolume: e.split,
	}
}

func (e *Engine) HandleMouseMove(x, y int) { e.input.MouseMove(x, y) }

// HandleWheel zooms around the pointer; see interact.WheelFactor.
func (e *Engine) HandleWheel(deltaY float64, x, y int) error {
	if err := e.input.Wheel(deltaY, x, y); err != nil {
		return fmt.Errorf("chart: wheel: %w", err)
	}
	return nil
}

// HandleClick reports whether an affordance consumed the click.
func (e *Engine) HandleClick(x, y int) bool { return e.input.Click(x, y) }

func (e *Engine) HandleMouseDown(x, y int) { e.input.MouseDown(x, y) }
func (e *Engine) HandleMouseUp(x, y int)   { e.input.MouseUp(x, y) }
func (e *Engine) HandleMouseDrag(x, y int) { e.input.MouseDrag(x, y) }
func (e *Engine) HandleMouseLeave()        { e.input.Leave() }

// UpdateLatest ingests a buffer of streaming ticks from
// mem[offset:offset+length]. The whole batch is validated before any item is
// applied, so a rejected batch leaves the dataset unchanged.
func (e *Engine) UpdateLatest(mem []byte, offset, length int) error {
	buf, err := window(mem, offset, length)
	if err != nil {
		return err
	}
	items, err := codec.Decode(buf)
	if err != nil {
		return fmt.Errorf("chart: update: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	if n := e.data.Len(); n > 0 {
		last, _ := e.data.At(n - 1)
		if items[0].Timestamp < last.Timestamp {
			return fmt.Errorf("chart: update: %w: timestamp %d before last %d",
				charterr.ErrValidation, items[0].Timestamp, last.Timestamp)
		}
	}
	for i := range items {
		if err := e.data.UpdateLatest(items[i]); err != nil {
			return fmt.Errorf("chart: update: %w", err)
		}
	}
	e.input.Refresh()
	e.canvas.Mark(canvas.Main, canvas.Overlay)
	return nil
}

// Load replaces the dataset. On error the previous dataset stays displayed.
func (e *Engine) Load(buf []byte) error {
	if err := e.data.Load(buf); err != nil {
		e.log.Warn("load rejected", "error", err)
		return fmt.Errorf("chart: %w", err)
	}
	e.input.Refresh()
	e.canvas.Mark(canvas.Main, canvas.Overlay)
	e.log.Info("dataset loaded", "items", e.data.Len())
	return nil
}

// SetRenderMode switches what the price region shows. The base layer is
// left alone.
func (e *Engine) SetRenderMode(m RenderMode) error {
	if m < 0 || m >= numModes {
		return fmt.Errorf("chart: %w: render mode %d", charterr.ErrValidation, int(m))
	}
	if m != e.mode {
		e.mode = m
		e.canvas.Mark(canvas.Main, canvas.Overlay)
	}
	return nil
}

func (e *Engine) toggleMode() {
	e.mode = (e.mode + 1) % numModes
	e.log.Debug("render mode toggled", "mode", e.mode)
}

// SetPolicy changes the heat-map aggregation policy.
func (e *Engine) SetPolicy(p render.Policy) {
	if e.heat.Policy != p {
		e.heat.Policy = p
		if e.mode == HeatMap {
			e.canvas.Mark(canvas.Main)
		}
	}
}

func (e *Engine) RenderMode() RenderMode { return e.mode }

// Cursor is the pointer style the host should show.
func (e *Engine) Cursor() string { return string(e.input.Cursor()) }

// Quality is the current adaptive quality level.
func (e *Engine) Quality() float64 { return e.quality.Level() }

// FPS is the rolling average frame rate.
func (e *Engine) FPS() float64 { return e.quality.FPS() }

func (e *Engine) Layout() layout.Layout    { return e.layout }
func (e *Engine) Range() data.VisibleRange { return e.data.Range() }
func (e *Engine) Stats() data.Stats        { return e.data.Stats() }
func (e *Engine) Len() int                 { return e.data.Len() }

// At returns a copy of item i.
func (e *Engine) At(i int) (kline.Item, bool) {
	it, ok := e.data.At(i)
	return it.Clone(), ok
}

// IndexNearest returns the index of the candle closest to ts, -1 when empty.
func (e *Engine) IndexNearest(ts int32) int { return e.data.IndexNearest(ts) }

func (e *Engine) Mouse() interact.MouseState { return e.input.Mouse() }
func (e *Engine) Dirty(l canvas.Layer) bool  { return e.canvas.Dirty(l) }
func (e *Engine) State() interact.State      { return e.input.State() }
func (e *Engine) Depth() render.Depth        { return e.book.Depth() }

// Zoom scales the window around anchor, as the wheel does.
func (e *Engine) Zoom(factor float64, anchor int) error {
	if err := e.data.Zoom(factor, anchor); err != nil {
		return fmt.Errorf("chart: zoom: %w", err)
	}
	e.input.Refresh()
	e.canvas.Mark(canvas.Main, canvas.Overlay)
	return nil
}

// Pan shifts the window by delta candles.
func (e *Engine) Pan(delta int) {
	e.data.Pan(delta)
	e.input.Refresh()
	e.canvas.Mark(canvas.Main, canvas.Overlay)
}

// SetWindow replaces the visible window.
func (e *Engine) SetWindow(start, count int) {
	e.data.SetWindow(start, count)
	e.input.Refresh()
	e.canvas.Mark(canvas.Main, canvas.Overlay)
}

// Dispose releases the surfaces. The engine draws nothing until surfaces are
// attached again.
func (e *Engine) Dispose() {
	e.canvas.Detach()
	e.disposed = true
	e.log.Debug("engine disposed")
}
