package synth

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yitech/candlechart/adapter"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBackfill_Deterministic(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	end := start.Add(99 * time.Minute)

	a := New(quiet())
	defer a.Close()
	first, err := a.Backfill("BTCUSDT", "1m", start, end)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	second, _ := New(quiet()).Backfill("BTCUSDT", "1m", start, end)

	if len(first) != 100 {
		t.Fatalf("Expected 100 candles, got %d", len(first))
	}
	for i, c := range first {
		it := c.Item
		if it.Close != second[i].Item.Close {
			t.Fatalf("candle %d differs between runs", i)
		}
		if it.High < max(it.Open, it.Close) || it.Low > min(it.Open, it.Close) {
			t.Errorf("candle %d breaks OHLC bounds: %+v", i, it)
		}
		if i > 0 && it.Timestamp-first[i-1].Item.Timestamp != 60 {
			t.Errorf("candle %d not one minute after the previous", i)
		}
		if len(it.Volumes) == 0 || !c.IsClosed {
			t.Errorf("candle %d missing depth or not closed", i)
		}
	}
}

func TestBackfill_BadInterval(t *testing.T) {
	if _, err := New(quiet()).Backfill("BTCUSDT", "1y", time.Now(), time.Now()); err == nil {
		t.Error("Expected an error for a bad interval")
	}
}

func TestSubscribe_RollsOver(t *testing.T) {
	a := New(quiet())
	defer a.Close()

	var mu sync.Mutex
	clock := time.Unix(1_700_000_000, 0)
	a.tick = 2 * time.Millisecond
	a.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(10 * time.Second)
		return clock
	}

	hist, _ := a.Backfill("BTCUSDT", "1m", clock.Add(-time.Hour), clock.Add(-time.Minute))
	lastClose := hist[len(hist)-1].Item.Close

	got := make(chan *adapter.Candle, 64)
	tok, err := a.Subscribe("BTCUSDT", "1m", func(c *adapter.Candle) {
		select {
		case got <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer tok.Unsubscribe()

	var sawClosed bool
	var firstOpen float64
	deadline := time.After(2 * time.Second)
	for n := 0; !sawClosed; n++ {
		select {
		case c := <-got:
			if n == 0 {
				firstOpen = c.Item.Open
			}
			if c.IsClosed {
				sawClosed = true
			} else if len(c.Item.Volumes) != 2*bookLevels {
				t.Errorf("Expected %d book levels, got %d", 2*bookLevels, len(c.Item.Volumes))
			}
		case <-deadline:
			t.Fatal("no closed candle before the deadline")
		}
	}
	if firstOpen != lastClose {
		t.Errorf("Expected live data to continue from %v, got %v", lastClose, firstOpen)
	}
}
