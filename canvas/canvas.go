// Package canvas owns the three drawing surfaces of a chart and their dirty
// flags, plus the small set of pixel primitives the renderers draw with.
package canvas

import (
	"image"
	"image/draw"
)

// Layer identifies one of the three surfaces, bottom to top.
type Layer int

const (
	// Base holds static content: background, frames, grid.
	Base Layer = iota
	// Main holds data: candles, volume, heat map, order book.
	Main
	// Overlay holds interactive content: crosshair, tooltip, handles.
	Overlay
	numLayers
)

func (l Layer) String() string {
	return [...]string{"base", "main", "overlay"}[l]
}

// Layers lists every layer bottom to top.
var Layers = [...]Layer{Base, Main, Overlay}

// Surface is a host-owned drawing target.
type Surface = draw.Image

// Manager holds the surface set. It is not safe for concurrent use.
type Manager struct {
	surfaces [numLayers]Surface
	dirty    [numLayers]bool

	// order-book panel of the main layer needs a redraw on its own
	panelStale bool
}

// NewManager returns a Manager with every layer dirty and nothing attached.
func NewManager() *Manager {
	m := &Manager{}
	m.MarkAll()
	return m
}

// Attach binds the three drawing targets and marks everything dirty.
func (m *Manager) Attach(base, main, overlay Surface) {
	m.surfaces = [numLayers]Surface{base, main, overlay}
	m.MarkAll()
}

// Detach drops every surface reference.
func (m *Manager) Detach() {
	m.surfaces = [numLayers]Surface{}
}

// Attached reports whether all three surfaces are bound.
func (m *Manager) Attached() bool {
	for _, s := range m.surfaces {
		if s == nil {
			return false
		}
	}
	return true
}

// Surface returns the target for layer l, nil when detached.
func (m *Manager) Surface(l Layer) Surface { return m.surfaces[l] }

// Mark flags the given layers for redraw.
func (m *Manager) Mark(layers ...Layer) {
	for _, l := range layers {
		m.dirty[l] = true
	}
}

// MarkAll flags every layer.
func (m *Manager) MarkAll() {
	for i := range m.dirty {
		m.dirty[i] = true
	}
	m.panelStale = true
}

// MarkPanel flags only the order-book panel of the main layer.
func (m *Manager) MarkPanel() { m.panelStale = true }

// Dirty reports whether layer l needs a redraw.
func (m *Manager) Dirty(l Layer) bool { return m.dirty[l] }

// PanelStale reports whether the order-book panel needs a redraw.
func (m *Manager) PanelStale() bool { return m.panelStale || m.dirty[Main] }

// AnyDirty reports whether a draw pass has work to do.
func (m *Manager) AnyDirty() bool {
	return m.dirty[Base] || m.dirty[Main] || m.dirty[Overlay] || m.panelStale
}

// Clear resets the flags of the given layers after they were drawn.
func (m *Manager) Clear(layers ...Layer) {
	for _, l := range layers {
		m.dirty[l] = false
		if l == Main {
			m.panelStale = false
		}
	}
}

// ClearPanel resets the panel flag after a panel-only redraw.
func (m *Manager) ClearPanel() { m.panelStale = false }

// Composite draws the three layers onto dst, bottom to top.
func (m *Manager) Composite(dst draw.Image) {
	for _, s := range m.surfaces {
		if s == nil {
			continue
		}
		draw.Draw(dst, dst.Bounds(), s, dst.Bounds().Min, draw.Over)
	}
}

// NewSurface allocates a transparent RGBA surface of the given size.
func NewSurface(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
