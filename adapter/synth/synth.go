// Package synth is an offline adapter producing a random-walk market with a
// synthetic order book, for demos and tests without exchange access.
package synth

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/model/kline"
)

const (
	name = "synth"

	basePrice  = 40000.0
	volatility = 0.0015
	bookLevels = 12
)

// Adapter generates candles instead of reading them from an exchange.
type Adapter struct {
	log  *slog.Logger
	tick time.Duration
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	last map[string]float64 // last close per symbol, so live continues history
}

func New(log *slog.Logger) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		log:    log,
		tick:   time.Second,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		last:   make(map[string]float64),
	}
}

func (a *Adapter) Name() string { return name }

func seed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}

// walker is a multiplicative random walk.
type walker struct {
	rng   *rand.Rand
	price float64
}

func newWalker(s uint64, price float64) *walker {
	return &walker{rng: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15)), price: price}
}

func (w *walker) step() float64 {
	w.price *= math.Exp(w.rng.NormFloat64() * volatility)
	return w.price
}

// volume draws a traded amount for one step.
func (w *walker) volume() float64 {
	return w.rng.ExpFloat64() * 2
}

// book builds bookLevels levels per side around price with sizes growing
// away from the touch.
func (w *walker) book(price float64) []kline.PriceVolume {
	tick := price * 0.0002
	out := make([]kline.PriceVolume, 0, 2*bookLevels)
	for i := bookLevels; i >= 1; i-- {
		out = append(out, kline.PriceVolume{Price: price - float64(i)*tick, Volume: w.levelSize(i)})
	}
	for i := 1; i <= bookLevels; i++ {
		out = append(out, kline.PriceVolume{Price: price + float64(i)*tick, Volume: w.levelSize(i)})
	}
	return out
}

func (w *walker) levelSize(i int) float64 {
	return (0.5 + float64(i)*0.25) * (0.5 + w.rng.Float64())
}

// Backfill generates closed candles for every period in [start, end]. The
// same symbol and range always produce the same candles.
func (a *Adapter) Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error) {
	d, err := adapter.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	w := newWalker(seed(symbol)^uint64(start.Unix()), basePrice)

	var out []*adapter.Candle
	for t := start.Truncate(d); !t.After(end); t = t.Add(d) {
		it := kline.Item{Timestamp: int32(t.Unix()), Open: w.price, High: w.price, Low: w.price}
		for range 8 {
			p := w.step()
			it.High = max(it.High, p)
			it.Low = min(it.Low, p)
			v := w.volume()
			if p >= it.Open {
				it.BuyVolume += v
			} else {
				it.SellVolume += v
			}
		}
		it.Close = w.price
		it.Volumes = kline.Profile(&it, bookLevels)
		out = append(out, &adapter.Candle{
			Exchange: name, Symbol: symbol, Interval: interval, Item: it, IsClosed: true,
		})
	}

	a.mu.Lock()
	a.last[symbol] = w.price
	a.mu.Unlock()
	return out, nil
}

// Subscribe emits the forming candle once per tick and a closed candle when
// the period rolls over.
func (a *Adapter) Subscribe(symbol, interval string, handler adapter.CandleHandler) (adapter.Token, error) {
	d, err := adapter.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	price, ok := a.last[symbol]
	a.mu.Unlock()
	if !ok {
		price = basePrice
	}

	ctx, cancel := context.WithCancel(a.ctx)
	log := adapter.StreamLogger(a.log, name, symbol, interval)
	w := newWalker(seed(symbol)^uint64(a.now().UnixNano()), price)
	go a.run(ctx, log, w, symbol, interval, d, handler)
	return adapter.NewToken(cancel), nil
}

func (a *Adapter) run(ctx context.Context, log *slog.Logger, w *walker, symbol, interval string, d time.Duration, handler adapter.CandleHandler) {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	open := a.now().Truncate(d)
	cur := fresh(open, w.price)
	log.Debug("synthetic stream started", "price", w.price)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if period := a.now().Truncate(d); period.After(open) {
			handler(&adapter.Candle{Exchange: name, Symbol: symbol, Interval: interval, Item: cur.Clone(), IsClosed: true})
			open = period
			cur = fresh(open, w.price)
		}

		p := w.step()
		cur.High = max(cur.High, p)
		cur.Low = min(cur.Low, p)
		cur.Close = p
		v := w.volume()
		if p >= cur.Open {
			cur.BuyVolume += v
		} else {
			cur.SellVolume += v
		}
		cur.Volumes = w.book(p)
		handler(&adapter.Candle{Exchange: name, Symbol: symbol, Interval: interval, Item: cur.Clone()})
	}
}

func fresh(open time.Time, price float64) kline.Item {
	return kline.Item{Timestamp: int32(open.Unix()), Open: price, High: price, Low: price, Close: price}
}

// Close stops every stream.
func (a *Adapter) Close() error {
	a.cancel()
	return nil
}
