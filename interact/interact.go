// Package interact turns host pointer events into window mutations and
// dirty-flag updates. Gestures run through a small synchronous state machine;
// nothing here draws.
package interact

import (
	"fmt"
	"image"
	"math"

	"github.com/yitech/candlechart/canvas"
	"github.com/yitech/candlechart/data"
	"github.com/yitech/candlechart/layout"
)

// State is the gesture state.
type State int

const (
	Idle State = iota
	HoverChart
	DraggingDataZoomHandle
	DraggingDataZoomBar
	PanningChart
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HoverChart:
		return "hover-chart"
	case DraggingDataZoomHandle:
		return "dragging-datazoom-handle"
	case DraggingDataZoomBar:
		return "dragging-datazoom-bar"
	case PanningChart:
		return "panning-chart"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Dragging reports whether s is one of the drag states.
func (s State) Dragging() bool { return s >= DraggingDataZoomHandle }

// Cursor is the pointer style the host should show.
type Cursor string

const (
	CursorDefault   Cursor = "default"
	CursorCrosshair Cursor = "crosshair"
	CursorResize    Cursor = "ew-resize"
	CursorGrab      Cursor = "grab"
	CursorGrabbing  Cursor = "grabbing"
	CursorPointer   Cursor = "pointer"
)

// WheelSensitivity converts a wheel delta into a zoom exponent.
const WheelSensitivity = 0.0015

// WheelFactor is the zoom factor for a wheel delta; scrolling up zooms in.
func WheelFactor(deltaY float64) float64 {
	return math.Exp(-deltaY * WheelSensitivity)
}

// MouseState is the last known pointer position and what it is over.
type MouseState struct {
	X, Y         int
	Area         layout.Area
	Inside       bool
	Dragging     bool
	HoveredIndex int // -1 when no candle is hovered

	// Grab is the datazoom edge held during a handle drag: -1 left, 1 right.
	Grab int
}

type point struct{ x, y int }

// Dispatcher owns the gesture state. It mutates the data manager and flags
// canvas layers; the caller draws.
type Dispatcher struct {
	data   *data.Manager
	canvas *canvas.Manager
	layout layout.Layout
	toggle func()

	state  State
	mouse  MouseState
	cursor Cursor

	// window and pointer at mouse-down
	downX       int
	anchorStart int
	anchorCount int

	// latest drag position not yet applied
	pending *point
}

// New returns an idle Dispatcher. toggle is called when the mode affordance
// is clicked.
func New(dm *data.Manager, cm *canvas.Manager, toggle func()) *Dispatcher {
	return &Dispatcher{
		data:   dm,
		canvas: cm,
		toggle: toggle,
		cursor: CursorDefault,
		mouse:  MouseState{HoveredIndex: -1},
	}
}

// SetLayout replaces the layout used for hit-testing.
func (d *Dispatcher) SetLayout(l layout.Layout) { d.layout = l }

func (d *Dispatcher) State() State      { return d.state }
func (d *Dispatcher) Mouse() MouseState { return d.mouse }
func (d *Dispatcher) Cursor() Cursor    { return d.cursor }

// PendingDrag reports whether a drag position awaits the next Flush.
func (d *Dispatcher) PendingDrag() bool { return d.pending != nil }

// MouseMove classifies the pointer and refreshes the hover. Only the overlay
// is marked, plus the order-book panel when the hovered candle changes. While
// a drag is in progress it behaves as MouseDrag.
func (d *Dispatcher) MouseMove(x, y int) {
	if d.state.Dragging() {
		d.MouseDrag(x, y)
		return
	}
	if !image.Pt(x, y).In(d.layout.Bounds()) {
		d.Leave()
		return
	}
	area := d.layout.Hit(x, y)
	d.setHover(x, y, area)

	d.state = Idle
	if area == layout.AreaChart {
		d.state = HoverChart
	}
	d.cursor = d.hoverCursor(x, y, area)
	d.canvas.Mark(canvas.Overlay)
}

// Wheel zooms around the hovered candle. Outside the chart area it is a
// no-op. An invalid delta returns the zoom validation error.
func (d *Dispatcher) Wheel(deltaY float64, x, y int) error {
	if d.layout.Hit(x, y) != layout.AreaChart {
		return nil
	}
	rng := d.data.Range()
	anchor := d.layout.IndexAt(x, rng.Start, rng.Count)
	if err := d.data.Zoom(WheelFactor(deltaY), anchor); err != nil {
		return err
	}
	d.setHover(x, y, layout.AreaChart)
	d.canvas.Mark(canvas.Main, canvas.Overlay)
	return nil
}

// MouseDown starts a gesture according to the region under the pointer.
func (d *Dispatcher) MouseDown(x, y int) {
	area := d.layout.Hit(x, y)
	rng := d.data.Range()
	d.downX = x
	d.anchorStart, d.anchorCount = rng.Start, rng.Count
	d.pending = nil

	switch area {
	case layout.AreaChart:
		d.state = PanningChart
		d.cursor = CursorGrabbing
	case layout.AreaDataZoom:
		win := d.layout.ZoomWindow(rng.Start, rng.Count, rng.Total)
		left, right := layout.ZoomHandles(win)
		pt := image.Pt(x, y)
		switch {
		case pt.In(left):
			d.state, d.mouse.Grab = DraggingDataZoomHandle, -1
			d.cursor = CursorResize
		case pt.In(right):
			d.state, d.mouse.Grab = DraggingDataZoomHandle, 1
			d.cursor = CursorResize
		case pt.In(win):
			d.state = DraggingDataZoomBar
			d.cursor = CursorGrabbing
		default:
			// jump: center the window on the pointer, then drag it from there
			center := d.stripIndex(x)
			d.data.SetWindow(center-rng.Count/2, rng.Count)
			d.anchorStart = d.data.Range().Start
			d.state = DraggingDataZoomBar
			d.cursor = CursorGrabbing
			d.canvas.Mark(canvas.Main)
		}
	default:
		return
	}
	d.mouse.Dragging = true
	d.canvas.Mark(canvas.Overlay)
}

// MouseDrag records the pointer position of a drag. Positions are coalesced
// and applied by Flush, once per drawn frame. Without an active drag it
// behaves as MouseMove; outside the canvas it abandons the drag.
func (d *Dispatcher) MouseDrag(x, y int) {
	if !d.state.Dragging() {
		d.MouseMove(x, y)
		return
	}
	if !image.Pt(x, y).In(d.layout.Bounds()) {
		d.Leave()
		return
	}
	d.pending = &point{x, y}
	d.mouse.X, d.mouse.Y = x, y
	d.canvas.Mark(canvas.Main, canvas.Overlay)
}

// MouseUp ends any gesture, applying the last drag position first.
func (d *Dispatcher) MouseUp(x, y int) {
	if d.state.Dragging() {
		d.Flush()
	}
	d.endDrag()
	d.MouseMove(x, y)
}

// Click handles affordance clicks and reports whether one consumed it.
func (d *Dispatcher) Click(x, y int) bool {
	if d.layout.Hit(x, y) != layout.AreaModeToggle {
		return false
	}
	if d.toggle != nil {
		d.toggle()
	}
	d.canvas.Mark(canvas.Main, canvas.Overlay)
	return true
}

// Leave abandons any gesture and clears the hover.
func (d *Dispatcher) Leave() {
	d.endDrag()
	if d.mouse.HoveredIndex >= 0 {
		d.canvas.MarkPanel()
	}
	d.mouse = MouseState{X: d.mouse.X, Y: d.mouse.Y, HoveredIndex: -1}
	d.state = Idle
	d.cursor = CursorDefault
	d.canvas.Mark(canvas.Overlay)
}

// Flush applies the coalesced drag position, if any. The engine calls it at
// the start of every draw pass.
func (d *Dispatcher) Flush() {
	if d.pending == nil || !d.state.Dragging() {
		d.pending = nil
		return
	}
	p := *d.pending
	d.pending = nil

	rng := d.data.Range()
	dx := p.x - d.downX
	switch d.state {
	case PanningChart:
		cw := d.layout.CandleWidth(d.anchorCount)
		if cw <= 0 {
			return
		}
		// dragging right reveals older candles
		shift := int(math.Round(float64(dx) / cw))
		d.data.SetWindow(d.anchorStart-shift, d.anchorCount)
	case DraggingDataZoomBar:
		d.data.SetWindow(d.anchorStart+d.stripShift(dx, rng.Total), d.anchorCount)
	case DraggingDataZoomHandle:
		shift := d.stripShift(dx, rng.Total)
		minCount := d.data.MinVisible()
		end := d.anchorStart + d.anchorCount
		if d.mouse.Grab < 0 {
			start := clamp(d.anchorStart+shift, 0, end-minCount)
			d.data.SetWindow(start, end-start)
		} else {
			newEnd := clamp(end+shift, d.anchorStart+minCount, rng.Total)
			d.data.SetWindow(d.anchorStart, newEnd-d.anchorStart)
		}
	}
	if area := d.layout.Hit(p.x, p.y); area == layout.AreaChart {
		d.setHover(p.x, p.y, area)
	}
	d.canvas.Mark(canvas.Main, canvas.Overlay)
}

// Refresh re-resolves the hovered candle after the window or layout changed
// underneath a stationary pointer.
func (d *Dispatcher) Refresh() {
	if !d.mouse.Inside {
		return
	}
	d.setHover(d.mouse.X, d.mouse.Y, d.layout.Hit(d.mouse.X, d.mouse.Y))
}

func (d *Dispatcher) endDrag() {
	d.pending = nil
	d.mouse.Dragging = false
	d.mouse.Grab = 0
	if d.state.Dragging() {
		d.state = Idle
	}
}

func (d *Dispatcher) setHover(x, y int, area layout.Area) {
	hovered := -1
	if area == layout.AreaChart {
		rng := d.data.Range()
		hovered = d.layout.IndexAt(x, rng.Start, rng.Count)
	}
	if hovered != d.mouse.HoveredIndex {
		d.canvas.MarkPanel()
	}
	d.mouse.X, d.mouse.Y = x, y
	d.mouse.Area = area
	d.mouse.Inside = area != layout.AreaNone
	d.mouse.HoveredIndex = hovered
}

func (d *Dispatcher) hoverCursor(x, y int, area layout.Area) Cursor {
	switch area {
	case layout.AreaChart:
		return CursorCrosshair
	case layout.AreaModeToggle:
		return CursorPointer
	case layout.AreaDataZoom:
		rng := d.data.Range()
		win := d.layout.ZoomWindow(rng.Start, rng.Count, rng.Total)
		left, right := layout.ZoomHandles(win)
		pt := image.Pt(x, y)
		switch {
		case pt.In(left), pt.In(right):
			return CursorResize
		case pt.In(win):
			return CursorGrab
		}
		return CursorPointer
	}
	return CursorDefault
}

// stripShift converts a horizontal datazoom drag into items.
func (d *Dispatcher) stripShift(dx, total int) int {
	w := d.layout.Rect(layout.DataZoom).Dx()
	if w <= 0 {
		return 0
	}
	return int(math.Round(float64(dx) * float64(total) / float64(w)))
}

// stripIndex maps an x inside the datazoom strip to a dataset index.
func (d *Dispatcher) stripIndex(x int) int {
	r := d.layout.Rect(layout.DataZoom)
	total := d.data.Len()
	if r.Dx() <= 0 {
		return 0
	}
	return int(float64(x-r.Min.X) * float64(total) / float64(r.Dx()))
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
