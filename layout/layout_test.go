package layout

import (
	"errors"
	"testing"

	"github.com/yitech/candlechart/charterr"
)

func TestCompute_Breakpoints(t *testing.T) {
	tests := []struct {
		w, h int
		want Breakpoint
	}{
		{500, 800, Mobile},
		{767, 600, Mobile},
		{768, 600, Tablet},
		{900, 800, Tablet},
		{1200, 800, Desktop},
		{1439, 800, Desktop},
		{1600, 900, Large},
	}
	for _, tt := range tests {
		l, err := Compute(tt.w, tt.h)
		if err != nil {
			t.Fatalf("Compute(%d,%d): %v", tt.w, tt.h, err)
		}
		if l.Breakpoint != tt.want {
			t.Errorf("Compute(%d,%d): expected %s, got %s", tt.w, tt.h, tt.want, l.Breakpoint)
		}
	}
}

func TestCompute_RegionsTile(t *testing.T) {
	for _, w := range []int{320, 500, 767, 800, 1023, 1200, 1437, 1600, 2561} {
		for _, h := range []int{1, 97, 480, 801, 1440} {
			l, err := Compute(w, h)
			if err != nil {
				t.Fatal(err)
			}
			widths := l.Rect(Toolbar).Dx() + l.Rect(Price).Dx() + l.Rect(YAxis).Dx() + l.Rect(OrderBook).Dx()
			if widths != w {
				t.Errorf("%dx%d: column widths sum to %d", w, h, widths)
			}
			if l.Rect(Header).Dx() != w {
				t.Errorf("%dx%d: header width %d", w, h, l.Rect(Header).Dx())
			}
			mainCol := l.Rect(Header).Dy() + l.Rect(Price).Dy() + l.Rect(Volume).Dy() + l.Rect(DataZoom).Dy()
			if mainCol != h {
				t.Errorf("%dx%d: main column heights sum to %d", w, h, mainCol)
			}
			for _, r := range []Region{Toolbar, YAxis, OrderBook} {
				if got := l.Rect(Header).Dy() + l.Rect(r).Dy(); got != h {
					t.Errorf("%dx%d: %s column heights sum to %d", w, h, r, got)
				}
			}
			if l.Breakpoint == Mobile && l.Rect(OrderBook).Dx() != 0 {
				t.Errorf("%dx%d: order book visible on mobile", w, h)
			}
		}
	}
}

func TestCompute_DesktopProportions(t *testing.T) {
	l, err := Compute(1200, 800)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.Rect(Header).Dy(); got != 40 {
		t.Errorf("Expected header height 40, got %d", got)
	}
	if got := l.Rect(Price).Dx(); got != 780 {
		t.Errorf("Expected main column width 780, got %d", got)
	}
	if got := l.Rect(YAxis).Dx(); got != 96 {
		t.Errorf("Expected y-axis width 96, got %d", got)
	}
	price, vol := l.Rect(Price).Dy(), l.Rect(Volume).Dy()
	if price != 3*vol && price != 3*vol+1 && price != 3*vol-1 {
		t.Errorf("Expected 75/25 price/volume split, got %d/%d", price, vol)
	}
}

func TestCompute_Degenerate(t *testing.T) {
	for _, c := range [][2]int{{0, 100}, {100, 0}, {-5, 10}} {
		_, err := Compute(c[0], c[1])
		if !errors.Is(err, charterr.ErrLayout) {
			t.Errorf("Compute(%d,%d): expected layout error, got %v", c[0], c[1], err)
		}
	}
}

func TestHit(t *testing.T) {
	l, _ := Compute(1200, 800)
	price := l.Rect(Price)
	zoom := l.Rect(DataZoom)

	if a := l.Hit(price.Min.X+5, price.Min.Y+5); a != AreaChart {
		t.Errorf("Expected chart, got %s", a)
	}
	if a := l.Hit(zoom.Min.X+5, zoom.Min.Y+2); a != AreaDataZoom {
		t.Errorf("Expected datazoom, got %s", a)
	}
	mt := l.ModeToggle()
	if a := l.Hit(mt.Min.X+1, mt.Min.Y+1); a != AreaModeToggle {
		t.Errorf("Expected mode toggle, got %s", a)
	}
	if a := l.Hit(-1, 10); a != AreaNone {
		t.Errorf("Expected none outside canvas, got %s", a)
	}
}

func TestModeToggle_MobileInHeader(t *testing.T) {
	l, _ := Compute(500, 800)
	mt := l.ModeToggle()
	if mt.Empty() || !mt.In(l.Rect(Header)) {
		t.Errorf("Expected toggle inside header on mobile, got %v", mt)
	}
}

func TestIndexAt(t *testing.T) {
	l, _ := Compute(1200, 800)
	r := l.Rect(Price)
	if got := l.IndexAt(r.Min.X, 100, 50); got != 100 {
		t.Errorf("Expected 100 at left edge, got %d", got)
	}
	if got := l.IndexAt(r.Max.X-1, 100, 50); got != 149 {
		t.Errorf("Expected 149 at right edge, got %d", got)
	}
	if got := l.IndexAt(r.Max.X+500, 100, 50); got != 149 {
		t.Errorf("Expected clamp to 149, got %d", got)
	}
}

func TestZoomWindow(t *testing.T) {
	l, _ := Compute(1200, 800)
	z := l.Rect(DataZoom)
	w := l.ZoomWindow(0, 1000, 1000)
	if w.Min.X != z.Min.X || w.Max.X != z.Max.X {
		t.Errorf("full window should span the strip: %v vs %v", w, z)
	}
	half := l.ZoomWindow(500, 500, 1000)
	if half.Min.X != z.Min.X+z.Dx()/2 {
		t.Errorf("Expected window to start mid-strip, got %v", half)
	}
}
