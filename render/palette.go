package render

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette is the color scheme of a chart. Ramp names the heat-map gradient.
type Palette struct {
	Name string

	Background color.RGBA
	Panel      color.RGBA
	Grid       color.RGBA
	Frame      color.RGBA
	Text       color.RGBA
	Muted      color.RGBA

	Bull color.RGBA
	Bear color.RGBA
	Wick color.RGBA

	Crosshair color.RGBA
	TooltipBG color.RGBA

	Bid color.RGBA
	Ask color.RGBA

	ZoomLine   color.RGBA
	ZoomWindow color.RGBA
	Handle     color.RGBA

	Ramp []string
}

// hex colors per palette, keyed by field.
var palettes = map[string]map[string]string{
	"dark": {
		"background": "#101318", "panel": "#14181f", "grid": "#1e232b", "frame": "#2a303a",
		"text": "#c8ccd4", "muted": "#6b7280",
		"bull": "#26a641", "bear": "#e05c5c", "wick": "#888888",
		"crosshair": "#9aa0a6", "tooltip": "#1b1f27",
		"bid": "#26a641", "ask": "#e05c5c",
		"zoomline": "#4b5563", "zoomwindow": "#3b82f6", "handle": "#93c5fd",
	},
	"light": {
		"background": "#ffffff", "panel": "#f6f7f9", "grid": "#eceef1", "frame": "#d0d4da",
		"text": "#1f2328", "muted": "#8b929a",
		"bull": "#1a7f37", "bear": "#cf222e", "wick": "#57606a",
		"crosshair": "#57606a", "tooltip": "#ffffff",
		"bid": "#1a7f37", "ask": "#cf222e",
		"zoomline": "#afb8c1", "zoomwindow": "#0969da", "handle": "#0550ae",
	},
}

var ramps = map[string][]string{
	"inferno": {"#000004", "#320a5e", "#781c6d", "#bc3754", "#ed6925", "#fbb61a", "#fcffa4"},
	"ocean":   {"#03051a", "#0b2e59", "#12638f", "#1e9bb3", "#5fd1c7", "#d9f7e8"},
	"mono":    {"#111111", "#eeeeee"},
}

// Palettes lists the palette names NewPalette accepts.
func Palettes() []string { return []string{"dark", "light"} }

// NewPalette builds a named palette with the given heat-map ramp.
func NewPalette(name, ramp string) (*Palette, error) {
	hexes, ok := palettes[name]
	if !ok {
		return nil, fmt.Errorf("render: unknown palette %q", name)
	}
	stops, ok := ramps[ramp]
	if !ok {
		return nil, fmt.Errorf("render: unknown heat-map ramp %q", ramp)
	}

	p := &Palette{Name: name + "/" + ramp, Ramp: stops}
	fields := map[string]*color.RGBA{
		"background": &p.Background, "panel": &p.Panel, "grid": &p.Grid, "frame": &p.Frame,
		"text": &p.Text, "muted": &p.Muted,
		"bull": &p.Bull, "bear": &p.Bear, "wick": &p.Wick,
		"crosshair": &p.Crosshair, "tooltip": &p.TooltipBG,
		"bid": &p.Bid, "ask": &p.Ask,
		"zoomline": &p.ZoomLine, "zoomwindow": &p.ZoomWindow, "handle": &p.Handle,
	}
	for key, dst := range fields {
		c, err := ParseHex(hexes[key])
		if err != nil {
			return nil, fmt.Errorf("render: palette %s.%s: %w", name, key, err)
		}
		*dst = c
	}
	return p, nil
}

// DefaultPalette is dark with the inferno ramp.
func DefaultPalette() *Palette {
	p, err := NewPalette("dark", "inferno")
	if err != nil {
		panic(err)
	}
	return p
}

// ParseHex converts "#rrggbb" into an opaque RGBA color.
func ParseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// WithAlpha returns c premultiplied to alpha a.
func WithAlpha(c color.RGBA, a uint8) color.RGBA {
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(a) / 255),
		G: uint8(uint16(c.G) * uint16(a) / 255),
		B: uint8(uint16(c.B) * uint16(a) / 255),
		A: a,
	}
}

// LUTSize is the number of entries of a heat-map lookup ramp.
const LUTSize = 256

// LUT maps a magnitude index to a color so the heat map never converts
// floats to colors per pixel.
type LUT [LUTSize]color.RGBA

// NewLUT interpolates the stops in CIE-Lab space. Index 0 is fully
// transparent; alpha ramps up over the low end so sparse cells fade out.
func NewLUT(stops []string) (*LUT, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("render: ramp needs at least 2 stops, got %d", len(stops))
	}
	cs := make([]colorful.Color, len(stops))
	for i, s := range stops {
		c, err := colorful.Hex(s)
		if err != nil {
			return nil, fmt.Errorf("render: ramp stop %q: %w", s, err)
		}
		cs[i] = c
	}

	var lut LUT
	segs := float64(len(cs) - 1)
	for i := 1; i < LUTSize; i++ {
		t := float64(i) / float64(LUTSize-1) * segs
		seg := int(t)
		if seg >= len(cs)-1 {
			seg = len(cs) - 2
		}
		c := cs[seg].BlendLab(cs[seg+1], t-float64(seg)).Clamped()
		r, g, b := c.RGB255()

		a := uint8(255)
		if i < 64 {
			a = uint8(96 + i*159/63)
		}
		lut[i] = WithAlpha(color.RGBA{R: r, G: g, B: b, A: 255}, a)
	}
	return &lut, nil
}

// At returns the color for a magnitude in [0, 1].
func (l *LUT) At(v float64) color.RGBA {
	switch {
	case v <= 0:
		return l[0]
	case v >= 1:
		return l[LUTSize-1]
	}
	return l[int(v*float64(LUTSize-1))]
}
