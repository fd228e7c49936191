package aggregator

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/model/kline"
)

type fakeToken struct{ f *fakeAdapter }

func (t fakeToken) Unsubscribe() {
	t.f.mu.Lock()
	t.f.unsubscribed++
	t.f.mu.Unlock()
}

// fakeAdapter hands its handler to the test and serves a fixed backfill.
type fakeAdapter struct {
	name    string
	history []*adapter.Candle
	fillErr error
	subErr  error

	mu           sync.Mutex
	handler      adapter.CandleHandler
	subscribes   int
	unsubscribed int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Subscribe(symbol, interval string, h adapter.CandleHandler) (adapter.Token, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.mu.Lock()
	f.handler = h
	f.subscribes++
	f.mu.Unlock()
	return fakeToken{f}, nil
}

func (f *fakeAdapter) Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error) {
	return f.history, f.fillErr
}

func (f *fakeAdapter) Close() error { return nil }

func (f *fakeAdapter) push(ts int32, o, h, l, c, buy float64, closed bool) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(candle(f.name, ts, o, h, l, c, buy, closed))
}

func candle(ex string, ts int32, o, h, l, c, buy float64, closed bool) *adapter.Candle {
	return &adapter.Candle{
		Exchange: ex,
		Symbol:   "BTCUSDT",
		Interval: "1m",
		Item:     kline.Item{Timestamp: ts, Open: o, High: h, Low: l, Close: c, BuyVolume: buy, SellVolume: 1},
		IsClosed: closed,
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recorder struct {
	mu  sync.Mutex
	out []adapter.Candle
}

func (r *recorder) handle(c *adapter.Candle) {
	r.mu.Lock()
	r.out = append(r.out, *c)
	r.mu.Unlock()
}

func (r *recorder) last() adapter.Candle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out[len(r.out)-1]
}

func setup(t *testing.T, limit int) (*Aggregator, *fakeAdapter, *fakeAdapter, *recorder) {
	t.Helper()
	a := &fakeAdapter{name: "binance"}
	b := &fakeAdapter{name: "bybit"}
	agg := New(quiet(), limit, a, b)
	rec := &recorder{}
	if _, err := agg.Subscribe("BTCUSDT", "1m", rec.handle); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return agg, a, b, rec
}

func TestMerge(t *testing.T) {
	per := map[string]*adapter.Candle{
		"binance": candle("binance", 60, 100, 110, 95, 105, 2, false),
		"bybit":   candle("bybit", 60, 101, 112, 97, 103, 3, false),
	}
	per["binance"].Item.Volumes = []kline.PriceVolume{{Price: 100, Volume: 1}}
	per["bybit"].Item.Volumes = []kline.PriceVolume{{Price: 100, Volume: 2}, {Price: 101, Volume: 1}}

	got := merge(per, "binance")
	if got.Open != 100 || got.High != 112 || got.Low != 95 || got.Close != 105 {
		t.Errorf("unexpected prices: %+v", got)
	}
	if got.BuyVolume != 5 || got.SellVolume != 2 {
		t.Errorf("Expected summed volumes 5/2, got %v/%v", got.BuyVolume, got.SellVolume)
	}
	if len(got.Volumes) != 2 || got.Volumes[0].Volume != 3 {
		t.Errorf("Expected merged depth, got %+v", got.Volumes)
	}

	per["binance"].Item.Volumes = nil
	per["bybit"].Item.Volumes = nil
	got = merge(per, "")
	if got.Close != 103 {
		t.Errorf("Expected the last exchange by name to close, got %v", got.Close)
	}
	if len(got.Volumes) != ProfileLevels {
		t.Errorf("Expected a %d-level profile, got %d", ProfileLevels, len(got.Volumes))
	}
}

func TestFinalizeWhenAllClosed(t *testing.T) {
	agg, a, b, rec := setup(t, 10)

	a.push(60, 100, 101, 99, 100, 1, true)
	if rec.last().IsClosed {
		t.Error("Expected the period to stay open until every exchange closes it")
	}
	b.push(60, 100, 102, 98, 101, 1, true)
	if !rec.last().IsClosed || rec.last().Exchange != Exchange {
		t.Errorf("Expected an aggregated closed candle, got %+v", rec.last())
	}
	if h := agg.History(Key("BTCUSDT", "1m")); len(h) != 1 || h[0].High != 102 {
		t.Errorf("Expected one finalized candle with high 102, got %+v", h)
	}

	// late update for the finalized period is dropped
	n := len(rec.out)
	a.push(60, 100, 200, 1, 150, 1, true)
	if len(rec.out) != n {
		t.Error("Expected a late candle to be dropped")
	}
}

func TestForceClose(t *testing.T) {
	agg, a, b, rec := setup(t, 10)

	a.push(60, 100, 101, 99, 100, 1, false)
	b.push(60, 100, 101, 99, 100, 1, false)
	a.push(120, 100, 101, 99, 100, 1, false)

	rec.mu.Lock()
	out := append([]adapter.Candle(nil), rec.out...)
	rec.mu.Unlock()
	if len(out) != 4 {
		t.Fatalf("Expected 4 publications, got %d", len(out))
	}
	if !out[2].IsClosed || out[2].Item.Timestamp != 60 {
		t.Errorf("Expected period 60 to be force-closed, got %+v", out[2])
	}
	if out[3].IsClosed || out[3].Item.Timestamp != 120 {
		t.Errorf("Expected period 120 to be forming, got %+v", out[3])
	}
	if h := agg.History(Key("BTCUSDT", "1m")); len(h) != 1 {
		t.Errorf("Expected one finalized candle, got %d", len(h))
	}
}

func TestHistoryTrim(t *testing.T) {
	agg, a, b, _ := setup(t, 3)
	for i := range 7 {
		ts := int32(60 * (i + 1))
		a.push(ts, 1, 1, 1, 1, 1, true)
		b.push(ts, 1, 1, 1, 1, 1, true)
	}
	h := agg.History(Key("BTCUSDT", "1m"))
	if len(h) != 3 {
		t.Fatalf("Expected the buffer trimmed back to 3, got %d", len(h))
	}
	if h[0].Timestamp != 300 || h[2].Timestamp != 420 {
		t.Errorf("Expected the newest candles kept, got %d..%d", h[0].Timestamp, h[2].Timestamp)
	}
}

func TestBackfill(t *testing.T) {
	a := &fakeAdapter{name: "binance", history: []*adapter.Candle{
		candle("binance", 60, 1, 5, 1, 4, 1, true),
		candle("binance", 120, 4, 6, 3, 5, 1, true),
	}}
	b := &fakeAdapter{name: "bybit", history: []*adapter.Candle{
		candle("bybit", 120, 4, 7, 2, 6, 1, true),
	}}
	c := &fakeAdapter{name: "okx", fillErr: errors.New("boom")}
	agg := New(quiet(), 10, a, b, c)

	out, err := agg.Backfill("BTCUSDT", "1m", time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if len(out) != 2 || out[1].Item.High != 7 || out[1].Item.Low != 2 {
		t.Errorf("unexpected merged backfill: %+v", out)
	}
	if h := agg.History(Key("BTCUSDT", "1m")); len(h) != 2 {
		t.Errorf("Expected backfill to seed the history, got %d", len(h))
	}

	bad := New(quiet(), 10, c)
	if _, err := bad.Backfill("BTCUSDT", "1m", time.Time{}, time.Now()); err == nil {
		t.Error("Expected an error when every exchange fails")
	}
}

func TestSubscribeOnceAndUnsubscribe(t *testing.T) {
	a := &fakeAdapter{name: "binance"}
	agg := New(quiet(), 10, a)

	r1, r2 := &recorder{}, &recorder{}
	tok, err := agg.Subscribe("BTCUSDT", "1m", r1.handle)
	if err != nil {
		t.Fatal(err)
	}
	agg.Subscribe("BTCUSDT", "1m", r2.handle)
	if a.subscribes != 1 {
		t.Errorf("Expected a single exchange subscription, got %d", a.subscribes)
	}

	tok.Unsubscribe()
	a.push(60, 1, 1, 1, 1, 1, false)
	if len(r1.out) != 0 || len(r2.out) != 1 {
		t.Errorf("Expected only the remaining handler to receive, got %d / %d", len(r1.out), len(r2.out))
	}

	agg.Close()
	if a.unsubscribed != 1 {
		t.Errorf("Expected Close to unsubscribe the exchange, got %d", a.unsubscribed)
	}
}

func TestSubscribeError(t *testing.T) {
	a := &fakeAdapter{name: "binance"}
	b := &fakeAdapter{name: "bybit", subErr: errors.New("down")}
	agg := New(quiet(), 10, a, b)
	if _, err := agg.Subscribe("BTCUSDT", "1m", func(*adapter.Candle) {}); err == nil {
		t.Fatal("Expected the exchange error")
	}
	if a.unsubscribed != 1 {
		t.Error("Expected already-started subscriptions to be rolled back")
	}
}

func TestPublishesInMergeOrder(t *testing.T) {
	a := &fakeAdapter{name: "binance"}
	b := &fakeAdapter{name: "bybit"}
	agg := New(quiet(), 10, a, b)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var closes []float64
	first := true
	_, err := agg.Subscribe("BTCUSDT", "1m", func(c *adapter.Candle) {
		mu.Lock()
		block := first
		first = false
		mu.Unlock()
		if block {
			close(entered)
			<-release
		}
		mu.Lock()
		closes = append(closes, c.Item.Close)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.push(60, 100, 101, 99, 100, 1, false)
	}()
	<-entered
	go func() {
		defer wg.Done()
		b.push(60, 100, 102, 98, 101, 1, false)
	}()

	// wait until the second merge is done and queued behind the first
	state := agg.getOrCreateState(Key("BTCUSDT", "1m"))
	deadline := time.Now().Add(2 * time.Second)
	for {
		state.mu.Lock()
		queued := state.ticket == 2
		state.mu.Unlock()
		if queued {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second update never merged")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if len(closes) != 2 || closes[0] != 100 || closes[1] != 101 {
		t.Errorf("Expected closes [100 101] in merge order, got %v", closes)
	}
}
