package quality

import (
	"testing"
	"time"
)

func frameTime(fps float64) time.Duration {
	return time.Duration(float64(time.Second) / fps)
}

func TestController_DegradesToFloor(t *testing.T) {
	c := New(60)
	prev := c.Level()
	for i := 0; i < 100; i++ {
		c.Observe(frameTime(20))
		lvl := c.Level()
		if lvl > prev {
			t.Fatalf("sample %d: level rose from %v to %v", i, prev, lvl)
		}
		if lvl < MinLevel {
			t.Fatalf("sample %d: level %v below floor", i, lvl)
		}
		prev = lvl
	}
	if c.Level() != MinLevel {
		t.Errorf("Expected level at floor %v, got %v", MinLevel, c.Level())
	}
}

func TestController_RecoversToCap(t *testing.T) {
	c := New(60)
	for i := 0; i < 100; i++ {
		c.Observe(frameTime(20))
	}
	c.Reset()
	c.level = MinLevel

	prev := c.Level()
	for i := 0; i < 200; i++ {
		c.Observe(frameTime(60))
		lvl := c.Level()
		if lvl < prev {
			t.Fatalf("sample %d: level fell from %v to %v", i, prev, lvl)
		}
		if lvl > MaxLevel {
			t.Fatalf("sample %d: level %v above cap", i, lvl)
		}
		prev = lvl
	}
	if c.Level() != MaxLevel {
		t.Errorf("Expected level at cap, got %v", c.Level())
	}
}

func TestController_HoldsInBand(t *testing.T) {
	c := New(60)
	c.level = 0.5
	for i := 0; i < 20; i++ {
		c.Observe(frameTime(52)) // between 0.8x and 0.95x of target
	}
	if c.Level() != 0.5 {
		t.Errorf("Expected level unchanged inside the band, got %v", c.Level())
	}
}

func TestController_RollingAverage(t *testing.T) {
	c := New(60)
	if c.FPS() != 0 {
		t.Errorf("Expected 0 fps before samples")
	}
	for i := 0; i < window; i++ {
		c.Observe(frameTime(10))
	}
	for i := 0; i < window; i++ {
		c.Observe(frameTime(100))
	}
	if fps := c.FPS(); fps < 99 || fps > 101 {
		t.Errorf("Expected old samples to roll out, got %.1f fps", fps)
	}
}

func TestController_IgnoresNonPositive(t *testing.T) {
	c := New(0)
	if c.Target() != DefaultTargetFPS {
		t.Errorf("Expected default target, got %v", c.Target())
	}
	c.Observe(0)
	c.Observe(-time.Millisecond)
	if c.FPS() != 0 || c.Level() != MaxLevel {
		t.Errorf("non-positive samples should be ignored")
	}
}
