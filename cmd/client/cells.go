package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// halfBlock paints the top half of a cell in the foreground color and the
// bottom half in the background color, giving two pixels per cell.
const halfBlock = "▀"

// cell is one terminal cell: the averaged colors of its two halves.
type cell struct {
	fg, bg color.RGBA
}

// cellGrid downsamples img into cells. Every cell covers scale pixel columns
// and 2*scale pixel rows.
func cellGrid(img *image.RGBA, scale int) [][]cell {
	if scale < 1 {
		scale = 1
	}
	b := img.Bounds()
	cols := b.Dx() / scale
	rows := b.Dy() / (2 * scale)
	out := make([][]cell, rows)
	for r := range out {
		out[r] = make([]cell, cols)
		for c := range out[r] {
			x := b.Min.X + c*scale
			y := b.Min.Y + r*2*scale
			out[r][c] = cell{
				fg: average(img, image.Rect(x, y, x+scale, y+scale)),
				bg: average(img, image.Rect(x, y+scale, x+scale, y+2*scale)),
			}
		}
	}
	return out
}

// average is the mean color of r, which must lie inside img.
func average(img *image.RGBA, r image.Rectangle) color.RGBA {
	var sr, sg, sb, n uint32
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		for x := r.Min.X; x < r.Max.X; x++ {
			sr += uint32(img.Pix[off])
			sg += uint32(img.Pix[off+1])
			sb += uint32(img.Pix[off+2])
			off += 4
			n++
		}
	}
	if n == 0 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n), A: 0xff}
}

// run is a stretch of identical cells.
type run struct {
	cell
	n int
}

func runs(row []cell) []run {
	var out []run
	for _, c := range row {
		if k := len(out); k > 0 && out[k-1].cell == c {
			out[k-1].n++
			continue
		}
		out = append(out, run{cell: c, n: 1})
	}
	return out
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var (
	styleMu    sync.Mutex
	styleCache = map[cell]lipgloss.Style{}
)

func styleFor(c cell) lipgloss.Style {
	styleMu.Lock()
	defer styleMu.Unlock()
	if s, ok := styleCache[c]; ok {
		return s
	}
	s := lipgloss.NewStyle().
		Foreground(lipgloss.Color(hex(c.fg))).
		Background(lipgloss.Color(hex(c.bg)))
	// colors of a moving chart are unbounded; keep the cache from growing forever
	if len(styleCache) > 1<<14 {
		clear(styleCache)
	}
	styleCache[c] = s
	return s
}

// halfBlocks renders img as terminal lines, one per cell row.
func halfBlocks(img *image.RGBA, scale int) []string {
	grid := cellGrid(img, scale)
	lines := make([]string, len(grid))
	var b strings.Builder
	for i, row := range grid {
		b.Reset()
		for _, r := range runs(row) {
			b.WriteString(styleFor(r.cell).Render(strings.Repeat(halfBlock, r.n)))
		}
		lines[i] = b.String()
	}
	return lines
}
