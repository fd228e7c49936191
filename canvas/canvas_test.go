package canvas

import (
	"image"
	"image/color"
	"testing"
)

func TestManager_DirtyFlags(t *testing.T) {
	m := NewManager()
	for _, l := range Layers {
		if !m.Dirty(l) {
			t.Errorf("Expected %s dirty on creation", l)
		}
	}
	m.Clear(Base, Main, Overlay)
	if m.AnyDirty() {
		t.Fatal("Expected no dirty layers after Clear")
	}

	m.Mark(Overlay)
	if m.Dirty(Base) || m.Dirty(Main) || !m.Dirty(Overlay) {
		t.Errorf("Mark(Overlay) touched other layers")
	}

	m.Clear(Overlay)
	m.MarkPanel()
	if !m.PanelStale() || m.Dirty(Main) {
		t.Errorf("panel flag should be independent of the main flag")
	}
	m.Clear(Main)
	if m.PanelStale() {
		t.Errorf("clearing main should clear the panel flag")
	}
}

func TestManager_Attach(t *testing.T) {
	m := NewManager()
	if m.Attached() {
		t.Fatal("Expected nothing attached")
	}
	m.Attach(NewSurface(4, 4), NewSurface(4, 4), NewSurface(4, 4))
	if !m.Attached() {
		t.Fatal("Expected surfaces attached")
	}
	m.Detach()
	if m.Attached() || m.Surface(Main) != nil {
		t.Errorf("Detach kept a surface reference")
	}
}

func TestComposite_LayerOrder(t *testing.T) {
	base, main, over := NewSurface(2, 1), NewSurface(2, 1), NewSurface(2, 1)
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	Fill(base, base.Bounds(), red)
	Fill(over, image.Rect(1, 0, 2, 1), blue)

	m := NewManager()
	m.Attach(base, main, over)
	dst := NewSurface(2, 1)
	m.Composite(dst)

	if got := dst.RGBAAt(0, 0); got != red {
		t.Errorf("Expected base color at (0,0), got %v", got)
	}
	if got := dst.RGBAAt(1, 0); got != blue {
		t.Errorf("Expected overlay color at (1,0), got %v", got)
	}
}

func TestText_Clipped(t *testing.T) {
	img := NewSurface(40, 20)
	clip := image.Rect(0, 0, 10, 20)
	Text(img, 0, 0, "WWWWWW", color.White, clip)

	drawn := false
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			if img.RGBAAt(x, y).A == 0 {
				continue
			}
			if x >= 10 {
				t.Fatalf("text bled outside clip at (%d,%d)", x, y)
			}
			drawn = true
		}
	}
	if !drawn {
		t.Errorf("Expected some glyph pixels inside the clip")
	}
}

func TestLine_Endpoints(t *testing.T) {
	img := NewSurface(10, 10)
	Line(img, 1, 1, 8, 5, color.White, img.Bounds())
	if img.RGBAAt(1, 1).A == 0 || img.RGBAAt(8, 5).A == 0 {
		t.Errorf("Expected both endpoints drawn")
	}
}
