package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/yitech/candlechart/model/kline"
)

// Policy selects how an item's depth levels are weighted before they are
// summed into heat-map cells.
type Policy int

const (
	// Sum adds raw level volumes.
	Sum Policy = iota
	// VolumeWeighted scales every level by its candle's share of the busiest candle.
	VolumeWeighted
	// TimeDecayed discounts older candles geometrically.
	TimeDecayed
)

func (p Policy) String() string {
	switch p {
	case Sum:
		return "sum"
	case VolumeWeighted:
		return "volume-weighted"
	case TimeDecayed:
		return "time-decayed"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts the String forms (and "weighted"/"decay").
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sum", "raw":
		return Sum, nil
	case "volume-weighted", "weighted":
		return VolumeWeighted, nil
	case "time-decayed", "decay":
		return TimeDecayed, nil
	}
	return Sum, fmt.Errorf("render: unknown heat-map policy %q", s)
}

const (
	// DefaultDecay is the per-candle weight factor of TimeDecayed.
	DefaultDecay = 0.97

	// rowPixels is the bucket height at full quality.
	rowPixels = 2
	minRows   = 8
)

type heatKey struct {
	start, count, total int
	revision            uint64
	policy              Policy
	palette             string
	quality             int
	size                image.Point
	minLow, maxHigh     float64
}

// HeatMap buckets [MinLow, MaxHigh] into price rows and accumulates each
// visible item's depth levels into them. The bitmap is cached until the
// window, data, policy, palette or quality level changes.
type HeatMap struct {
	Policy Policy
	Decay  float64

	luts map[string]*LUT

	key    heatKey
	bitmap *image.RGBA

	// cells is reused between rebuilds
	cells    []float64
	rebuilds int
}

// NewHeatMap returns a HeatMap using policy.
func NewHeatMap(policy Policy) *HeatMap {
	return &HeatMap{Policy: policy, Decay: DefaultDecay, luts: make(map[string]*LUT)}
}

// Grid returns the bucket dimensions used at quality q for a region of size
// sz showing count items: rows of price, columns of items, and how many
// consecutive items fold into one column.
func Grid(sz image.Point, count int, q float64) (rows, cols, group int) {
	if q <= 0 || q > 1 {
		q = 1
	}
	rows = int(float64(sz.Y/rowPixels) * q)
	if rows < minRows {
		rows = minRows
	}
	if rows > sz.Y && sz.Y > 0 {
		rows = sz.Y
	}
	maxCols := int(float64(sz.X) * q)
	if maxCols < 1 {
		maxCols = 1
	}
	group = (count + maxCols - 1) / maxCols
	if group < 1 {
		group = 1
	}
	cols = (count + group - 1) / group
	return rows, cols, group
}

func (h *HeatMap) Render(dst draw.Image, r image.Rectangle, f *Frame) error {
	if r.Empty() || len(f.Items) == 0 {
		return nil
	}
	key := heatKey{
		start: f.Range.Start, count: f.Range.Count, total: f.Range.Total,
		revision: f.Revision,
		policy:   h.Policy,
		palette:  f.Palette.Name,
		quality:  int(math.Round(f.Quality * 20)),
		size:     r.Size(),
		minLow:   f.Stats.MinLow, maxHigh: f.Stats.MaxHigh,
	}
	if h.bitmap == nil || key != h.key {
		if err := h.rebuild(key, f); err != nil {
			return err
		}
	}
	draw.Draw(dst, r, h.bitmap, image.Point{}, draw.Over)
	return nil
}

// Rebuilds counts how many times the bitmap was recomputed.
func (h *HeatMap) Rebuilds() int { return h.rebuilds }

func (h *HeatMap) lut(p *Palette) (*LUT, error) {
	if l, ok := h.luts[p.Name]; ok {
		return l, nil
	}
	l, err := NewLUT(p.Ramp)
	if err != nil {
		return nil, err
	}
	h.luts[p.Name] = l
	return l, nil
}

func (h *HeatMap) rebuild(key heatKey, f *Frame) error {
	lut, err := h.lut(f.Palette)
	if err != nil {
		return errorf("heatmap", "%v", err)
	}

	sz := key.size
	rows, cols, group := Grid(sz, len(f.Items), float64(key.quality)/20)
	if need := rows * cols; cap(h.cells) < need {
		h.cells = make([]float64, need)
	} else {
		h.cells = h.cells[:need]
		clear(h.cells)
	}

	lo, hi := f.Stats.MinLow, f.Stats.MaxHigh
	span := hi - lo
	if !(span > 0) {
		span = math.Max(math.Abs(lo)*0.01, 1)
		lo -= span / 2
	}

	n := len(f.Items)
	peak := h.accumulate(f.Items, f.Stats.MaxVolume, lo, span, rows, group)

	if h.bitmap == nil || h.bitmap.Rect.Size() != sz {
		h.bitmap = image.NewRGBA(image.Rectangle{Max: sz})
	} else {
		clear(h.bitmap.Pix)
	}
	if peak > 0 {
		colW := float64(sz.X) / float64(n) * float64(group)
		rowH := float64(sz.Y) / float64(rows)
		for c := 0; c < cols; c++ {
			x0, x1 := int(float64(c)*colW), int(float64(c+1)*colW)
			if x1 > sz.X {
				x1 = sz.X
			}
			for row := 0; row < rows; row++ {
				v := h.cells[c*rows+row]
				if v <= 0 {
					continue
				}
				// row 0 is the bottom of the region
				y1 := sz.Y - int(float64(row)*rowH)
				y0 := sz.Y - int(float64(row+1)*rowH)
				col := lut.At(math.Sqrt(v / peak))
				fillRGBA(h.bitmap, image.Rect(x0, y0, x1, y1), col)
			}
		}
	}
	h.key = key
	h.rebuilds++
	return nil
}

// accumulate adds every item's weighted levels into h.cells, laid out column
// by column with rows price buckets each, and returns the largest cell.
func (h *HeatMap) accumulate(items []kline.Item, maxVolume, lo, span float64, rows, group int) float64 {
	n := len(items)
	peak := 0.0
	for i := range items {
		it := &items[i]
		w := h.weight(it, i, n, maxVolume)
		if w == 0 {
			continue
		}
		c := i / group
		for _, lv := range it.Volumes {
			if lv.Volume <= 0 || lv.Price < lo || lv.Price > lo+span {
				continue
			}
			row := int((lv.Price - lo) / span * float64(rows))
			if row >= rows {
				row = rows - 1
			}
			idx := c*rows + row
			h.cells[idx] += lv.Volume * w
			if h.cells[idx] > peak {
				peak = h.cells[idx]
			}
		}
	}
	return peak
}

// weight is the policy factor of item i of n visible items.
func (h *HeatMap) weight(it *kline.Item, i, n int, maxVolume float64) float64 {
	switch h.Policy {
	case VolumeWeighted:
		if maxVolume > 0 {
			return it.Volume() / maxVolume
		}
	case TimeDecayed:
		decay := h.Decay
		if decay <= 0 || decay > 1 {
			decay = DefaultDecay
		}
		return math.Pow(decay, float64(n-1-i))
	}
	return 1
}

// fillRGBA writes c straight into the pixel buffer.
func fillRGBA(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Rect)
	px := [4]uint8{c.R, c.G, c.B, c.A}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			copy(img.Pix[off:off+4], px[:])
			off += 4
		}
	}
}
