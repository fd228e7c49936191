// Package data owns the kline dataset, the visible window over it and the
// statistics derived from that window.
package data

import (
	"fmt"
	"math"
	"sort"

	"github.com/yitech/candlechart/charterr"
	"github.com/yitech/candlechart/codec"
	"github.com/yitech/candlechart/model/kline"
)

const (
	// CandlePixelWidth is the default horizontal space given to one candle
	// when sizing the initial window.
	CandlePixelWidth = 8

	// MinVisibleCount is the smallest window zoom-in can reach.
	MinVisibleCount = 10
)

// Stats are the extremes of the visible window.
type Stats struct {
	MinLow    float64
	MaxHigh   float64
	MaxVolume float64
}

// Manager owns the dataset exclusively. It is not safe for concurrent use;
// the engine calls it from a single goroutine.
type Manager struct {
	items []kline.Item
	rng   VisibleRange

	// preferred window size, restored on Load
	want int

	candleWidth int
	minVisible  int

	stats      Stats
	statsValid bool

	// revision increments on every dataset mutation.
	revision uint64
}

// Option tunes a Manager.
type Option func(*Manager)

// WithCandleWidth overrides CandlePixelWidth.
func WithCandleWidth(px int) Option {
	return func(m *Manager) {
		if px > 0 {
			m.candleWidth = px
		}
	}
}

// WithMinVisible overrides MinVisibleCount.
func WithMinVisible(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.minVisible = n
		}
	}
}

// NewManager returns a Manager over items, taking ownership of the slice.
// The window starts out covering the whole dataset.
func NewManager(items []kline.Item, opts ...Option) *Manager {
	m := &Manager{
		items:       items,
		candleWidth: CandlePixelWidth,
		minVisible:  MinVisibleCount,
	}
	for _, o := range opts {
		o(m)
	}
	m.want = len(items)
	m.rng = clampRange(0, len(items), len(items), m.minVisible)
	return m
}

// Load decodes buf and replaces the dataset, re-anchoring the window to the
// newest data. On error the previous dataset and window are untouched.
func (m *Manager) Load(buf []byte) error {
	items, err := codec.Decode(buf)
	if err != nil {
		return fmt.Errorf("data: load: %w", err)
	}
	m.items = items
	want := m.want
	if want <= 0 {
		want = len(items)
	}
	m.rng = clampRange(len(items)-want, want, len(items), m.minVisible)
	m.revision++
	m.invalidate()
	return nil
}

// UpdateLatest ingests a streaming tick. An equal timestamp replaces the
// still-forming last candle, a newer one appends, an older one is rejected.
func (m *Manager) UpdateLatest(item kline.Item) error {
	if !item.Finite() {
		return fmt.Errorf("data: update: %w: non-finite values at %d", charterr.ErrValidation, item.Timestamp)
	}
	item = item.Clone()

	n := len(m.items)
	if n > 0 {
		last := m.items[n-1].Timestamp
		switch {
		case item.Timestamp == last:
			m.items[n-1] = item
			m.revision++
			m.invalidate()
			return nil
		case item.Timestamp < last:
			return fmt.Errorf("data: update: %w: timestamp %d before last %d",
				charterr.ErrValidation, item.Timestamp, last)
		}
	}

	atEdge := m.rng.End() == n
	m.items = append(m.items, item)
	start, count := m.rng.Start, m.rng.Count
	if n == 0 {
		count = 1
	}
	if atEdge && n > 0 {
		// keep following the newest candle
		if count < m.want {
			count++
		} else {
			start++
		}
	}
	m.rng = clampRange(start, count, len(m.items), m.minVisible)
	m.revision++
	m.invalidate()
	return nil
}

// InitializeRange sizes the window to the pixel width of the price area and
// anchors it at the newest data.
func (m *Manager) InitializeRange(priceWidth int) {
	count := priceWidth / m.candleWidth
	if count < 1 {
		count = 1
	}
	m.want = count
	m.rng = clampRange(len(m.items)-count, count, len(m.items), m.minVisible)
	m.invalidate()
}

// Pan shifts the window by delta items. Out-of-range requests clamp.
func (m *Manager) Pan(delta int) {
	next := clampRange(m.rng.Start+delta, m.rng.Count, m.rng.Total, m.minVisible)
	if next != m.rng {
		m.rng = next
		m.invalidate()
	}
}

// Zoom scales the window by factor (>1 zooms in) keeping anchor at the same
// relative offset within the window.
func (m *Manager) Zoom(factor float64, anchor int) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("data: zoom: %w: factor %v", charterr.ErrValidation, factor)
	}
	if m.rng.Total == 0 {
		return nil
	}
	old := m.rng
	anchor = clampInt(anchor, old.Start, old.End()-1)

	count := int(math.Round(float64(old.Count) / factor))
	next := clampRange(0, count, old.Total, m.minVisible)
	start := float64(anchor) - float64(anchor-old.Start)*float64(next.Count)/float64(old.Count)
	next = clampRange(int(math.Round(start)), next.Count, old.Total, m.minVisible)

	if next != m.rng {
		m.rng = next
		m.want = next.Count
		m.invalidate()
	}
	return nil
}

// SetWindow replaces the window with a clamped [start, start+count).
func (m *Manager) SetWindow(start, count int) {
	next := clampRange(start, count, len(m.items), m.minVisible)
	if next != m.rng {
		m.rng = next
		m.want = next.Count
		m.invalidate()
	}
}

// Stats returns the cached window statistics, recomputing them over exactly
// the visible items when stale.
func (m *Manager) Stats() Stats {
	if m.statsValid {
		return m.stats
	}
	var s Stats
	vis := m.Visible()
	if len(vis) > 0 {
		s.MinLow = math.Inf(1)
		s.MaxHigh = math.Inf(-1)
		for i := range vis {
			it := &vis[i]
			if it.Low < s.MinLow {
				s.MinLow = it.Low
			}
			if it.High > s.MaxHigh {
				s.MaxHigh = it.High
			}
			if v := it.Volume(); v > s.MaxVolume {
				s.MaxVolume = v
			}
		}
	}
	m.stats = s
	m.statsValid = true
	return s
}

// Range returns the current window.
func (m *Manager) Range() VisibleRange { return m.rng }

// MinVisible is the smallest window the manager allows.
func (m *Manager) MinVisible() int { return m.minVisible }

// Len is the dataset length.
func (m *Manager) Len() int { return len(m.items) }

// Items returns the whole dataset. Callers must not modify it.
func (m *Manager) Items() []kline.Item { return m.items }

// Visible returns the items inside the window. Callers must not modify it.
func (m *Manager) Visible() []kline.Item {
	return m.items[m.rng.Start:m.rng.End()]
}

// At returns item i, or false when out of bounds.
func (m *Manager) At(i int) (kline.Item, bool) {
	if i < 0 || i >= len(m.items) {
		return kline.Item{}, false
	}
	return m.items[i], true
}

// Revision changes whenever the dataset content changes.
func (m *Manager) Revision() uint64 { return m.revision }

// IndexNearest returns the index of the item whose timestamp is closest to
// ts, or -1 for an empty dataset.
func (m *Manager) IndexNearest(ts int32) int {
	n := len(m.items)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return m.items[i].Timestamp >= ts })
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	if ts-m.items[i-1].Timestamp <= m.items[i].Timestamp-ts {
		return i - 1
	}
	return i
}

func (m *Manager) invalidate() {
	m.statsValid = false
}
