package aggregator

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/model/kline"
)

// MaxRequestLimit is the default target buffer size after a resize.
// The buffer grows freely until it hits 2×limit, then trims back.
const MaxRequestLimit = 365

// ProfileLevels is the number of synthetic depth levels given to merged
// candles when no exchange supplied a book.
const ProfileLevels = 16

// Exchange is the name stamped on merged candles.
const Exchange = "aggregated"

// Aggregator multiplexes candle updates from multiple exchange adapters into a
// single aggregated stream per "symbol:interval" key.
//
// Closed semantics: a period is marked IsClosed only when every exchange has
// confirmed it.  If exchange A starts the next period before exchange B has
// closed the current one, the current period is force-closed immediately.
// Late-arriving candles for an already-finalized period are dropped.
type Aggregator struct {
	adapters []adapter.Adapter
	numEx    int
	maxLimit int
	log      *slog.Logger

	mu     sync.Mutex
	states map[string]*symState
}

// symState holds runtime data for one "symbol:interval" key.
type symState struct {
	mu       sync.Mutex
	setup    bool
	setupErr error

	// Exchange-level subscription tokens (for cleanup).
	tokens []adapter.Token

	// Rolling history of finalized candles, oldest first.
	candles []kline.Item

	// In-flight periods, keyed by open time.
	pending map[int32]*pendingCandle

	// Open times that have been finalized (normally or force-closed).
	finalized map[int32]struct{}

	// Registered downstream handlers.
	handlers map[uint64]adapter.CandleHandler
	nextID   uint64

	// Publications run outside mu but in the order their merges were made:
	// each takes a ticket under mu and waits for serving to reach it.
	pubMu   sync.Mutex
	pubTurn *sync.Cond
	ticket  uint64
	serving uint64
}

// inTurn runs publish once every earlier ticket has been published.
func (s *symState) inTurn(ticket uint64, publish func()) {
	s.pubMu.Lock()
	for s.serving != ticket {
		s.pubTurn.Wait()
	}
	s.pubMu.Unlock()

	defer func() {
		s.pubMu.Lock()
		s.serving++
		s.pubTurn.Broadcast()
		s.pubMu.Unlock()
	}()
	publish()
}

// pendingCandle tracks the merged state of one time period across all exchanges.
type pendingCandle struct {
	agg         kline.Item
	perExchange map[string]*adapter.Candle
	closedBy    map[string]struct{}
	lastEx      string
}

// aggregatorToken cancels a single handler registration.
type aggregatorToken struct {
	id    uint64
	state *symState
}

func (t *aggregatorToken) Unsubscribe() {
	t.state.mu.Lock()
	delete(t.state.handlers, t.id)
	t.state.mu.Unlock()
}

// New creates an Aggregator backed by the given exchange adapters, keeping
// limit finalized candles per key (MaxRequestLimit when limit <= 0).
func New(log *slog.Logger, limit int, adapters ...adapter.Adapter) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	if limit <= 0 {
		limit = MaxRequestLimit
	}
	return &Aggregator{
		adapters: adapters,
		numEx:    len(adapters),
		maxLimit: limit,
		log:      log,
		states:   make(map[string]*symState),
	}
}

// Key is the "SYMBOL:INTERVAL" key of a subscription.
func Key(symbol, interval string) string {
	return symbol + ":" + interval
}

// Subscribe registers handler to receive aggregated candle updates for
// symbol/interval.  Exchange subscriptions are created lazily on the first
// call for each key.
func (a *Aggregator) Subscribe(symbol, interval string, handler adapter.CandleHandler) (adapter.Token, error) {
	key := Key(symbol, interval)
	state := a.getOrCreateState(key)

	// Register the handler before starting exchange connections so we
	// never miss an early candle.
	state.mu.Lock()
	id := state.nextID
	state.nextID++
	state.handlers[id] = handler
	needsSetup := !state.setup
	if needsSetup {
		state.setup = true // claim the setup slot
	}
	state.mu.Unlock()

	if needsSetup {
		tokens, err := a.startExchangeSubs(key, symbol, interval, state)
		state.mu.Lock()
		if err != nil {
			state.setup = false // allow a future retry
			delete(state.handlers, id)
			state.setupErr = err
		} else {
			state.tokens = tokens
			state.setupErr = nil
		}
		state.mu.Unlock()
		if err != nil {
			return nil, err
		}
		a.log.Info("exchange streams started", "key", key, "exchanges", a.numEx)
	} else {
		state.mu.Lock()
		err := state.setupErr
		if err != nil {
			delete(state.handlers, id)
		}
		state.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}

	return &aggregatorToken{id: id, state: state}, nil
}

// Backfill fetches historical candles from every exchange, merges them by
// open time, and returns them in chronological order. An exchange that fails
// is logged and skipped; Backfill fails only when every exchange does. The
// result also seeds the key's rolling history.
func (a *Aggregator) Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error) {
	groups := make(map[int32]map[string]*adapter.Candle)

	var failed int
	var lastErr error
	for _, ad := range a.adapters {
		batch, err := ad.Backfill(symbol, interval, start, end)
		if err != nil {
			failed++
			lastErr = err
			a.log.Warn("backfill failed", "exchange", ad.Name(), "key", Key(symbol, interval), "err", err)
			continue
		}
		for _, c := range batch {
			ts := c.Item.Timestamp
			if groups[ts] == nil {
				groups[ts] = make(map[string]*adapter.Candle)
			}
			groups[ts][c.Exchange] = c
		}
	}
	if failed > 0 && failed == len(a.adapters) {
		return nil, fmt.Errorf("aggregator backfill [%s:%s]: %w", symbol, interval, lastErr)
	}

	times := make([]int32, 0, len(groups))
	for t := range groups {
		times = append(times, t)
	}
	slices.Sort(times)

	out := make([]*adapter.Candle, 0, len(times))
	items := make([]kline.Item, 0, len(times))
	for _, t := range times {
		agg := merge(groups[t], "")
		items = append(items, agg)
		out = append(out, &adapter.Candle{
			Exchange: Exchange,
			Symbol:   symbol,
			Interval: interval,
			Item:     agg,
			IsClosed: true, // historical candles are always closed
		})
	}

	state := a.getOrCreateState(Key(symbol, interval))
	state.mu.Lock()
	seed(state, items, a.maxLimit)
	state.mu.Unlock()
	return out, nil
}

// History returns a copy of the finalized candles kept for key, oldest first.
func (a *Aggregator) History(key string) []kline.Item {
	a.mu.Lock()
	state, ok := a.states[key]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	out := make([]kline.Item, len(state.candles))
	for i, it := range state.candles {
		out[i] = it.Clone()
	}
	return out
}

// Close cancels all exchange subscriptions managed by this aggregator.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, state := range a.states {
		state.mu.Lock()
		for _, tok := range state.tokens {
			tok.Unsubscribe()
		}
		state.tokens = nil
		state.setup = false
		state.mu.Unlock()
	}
}

// ── internal ─────────────────────────────────────────────────────────────────

func (a *Aggregator) getOrCreateState(key string) *symState {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[key]; ok {
		return s
	}
	s := &symState{
		pending:   make(map[int32]*pendingCandle),
		finalized: make(map[int32]struct{}),
		handlers:  make(map[uint64]adapter.CandleHandler),
	}
	s.pubTurn = sync.NewCond(&s.pubMu)
	a.states[key] = s
	return s
}

func (a *Aggregator) startExchangeSubs(key, symbol, interval string, state *symState) ([]adapter.Token, error) {
	tokens := make([]adapter.Token, 0, len(a.adapters))
	for _, ad := range a.adapters {
		tok, err := ad.Subscribe(symbol, interval, func(c *adapter.Candle) {
			a.handleCandle(state, symbol, interval, c)
		})
		if err != nil {
			for _, t := range tokens {
				t.Unsubscribe()
			}
			return nil, fmt.Errorf("aggregator [%s]: %w", key, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// handleCandle is called by every exchange adapter for every incoming candle.
func (a *Aggregator) handleCandle(state *symState, symbol, interval string, c *adapter.Candle) {
	openTime := c.Item.Timestamp
	var toPublish []adapter.Candle

	state.mu.Lock()

	// 1. Drop candles for already-finalized periods.
	if _, done := state.finalized[openTime]; done {
		state.mu.Unlock()
		return
	}

	// 2. Force-close any pending period that is older than the incoming one.
	//    This handles the race where exchange A has moved to the next period
	//    before exchange B confirmed the close of the current period.
	older := make([]int32, 0, len(state.pending))
	for t := range state.pending {
		if t < openTime {
			older = append(older, t)
		}
	}
	slices.Sort(older)
	for _, t := range older {
		p := state.pending[t]
		appendAndResize(state, p.agg, a.maxLimit)
		toPublish = append(toPublish, published(symbol, interval, p.agg, true))
		delete(state.pending, t)
		state.finalized[t] = struct{}{}
	}

	// 3. Get or create the pending entry for this period.
	p, ok := state.pending[openTime]
	if !ok {
		p = &pendingCandle{
			perExchange: make(map[string]*adapter.Candle),
			closedBy:    make(map[string]struct{}),
		}
		state.pending[openTime] = p
	}

	// 4. Store the latest candle from this exchange and re-merge.
	cp := *c
	cp.Item = c.Item.Clone()
	p.perExchange[c.Exchange] = &cp
	p.lastEx = c.Exchange
	if c.IsClosed {
		p.closedBy[c.Exchange] = struct{}{}
	}
	p.agg = merge(p.perExchange, p.lastEx)

	// 5. Finalize the period when all exchanges have confirmed the close.
	closed := len(p.closedBy) == a.numEx
	if closed {
		appendAndResize(state, p.agg, a.maxLimit)
		delete(state.pending, openTime)
		state.finalized[openTime] = struct{}{}
	}

	toPublish = append(toPublish, published(symbol, interval, p.agg, closed))

	// Snapshot handlers before releasing the lock to avoid holding it
	// while calling user code.
	hs := snapshotHandlers(state)
	ticket := state.ticket
	state.ticket++
	state.mu.Unlock()

	state.inTurn(ticket, func() {
		for i := range toPublish {
			for _, h := range hs {
				h(&toPublish[i])
			}
		}
	})
}

func published(symbol, interval string, it kline.Item, closed bool) adapter.Candle {
	return adapter.Candle{
		Exchange: Exchange,
		Symbol:   symbol,
		Interval: interval,
		Item:     it.Clone(),
		IsClosed: closed,
	}
}

// snapshotHandlers returns the handlers in registration order (called under lock).
func snapshotHandlers(state *symState) []adapter.CandleHandler {
	ids := make([]uint64, 0, len(state.handlers))
	for id := range state.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]adapter.CandleHandler, len(ids))
	for i, id := range ids {
		hs[i] = state.handlers[id]
	}
	return hs
}

// appendAndResize appends it to the buffer and trims if it exceeds 2×limit.
func appendAndResize(state *symState, it kline.Item, limit int) {
	state.candles = append(state.candles, it)
	if len(state.candles) > limit*2 {
		// Keep the most recent `limit` candles; wait for the buffer to
		// grow to 2×limit again before the next resize.
		state.candles = slices.Clone(state.candles[len(state.candles)-limit:])
		pruneFinalized(state)
	}
}

// seed merges backfilled items into the history. Items older than the
// newest finalized candle are already covered and are skipped.
func seed(state *symState, items []kline.Item, limit int) {
	var newest int32 = -1 << 31
	if n := len(state.candles); n > 0 {
		newest = state.candles[n-1].Timestamp
	}
	for _, it := range items {
		if it.Timestamp <= newest {
			continue
		}
		if _, pending := state.pending[it.Timestamp]; pending {
			continue
		}
		state.candles = append(state.candles, it)
		state.finalized[it.Timestamp] = struct{}{}
	}
	if len(state.candles) > limit {
		state.candles = slices.Clone(state.candles[len(state.candles)-limit:])
		pruneFinalized(state)
	}
}

// pruneFinalized forgets open times older than the retained history.
func pruneFinalized(state *symState) {
	if len(state.candles) == 0 {
		return
	}
	oldest := state.candles[0].Timestamp
	for t := range state.finalized {
		if t < oldest {
			delete(state.finalized, t)
		}
	}
}

// merge combines per-exchange candles into one aggregated item.
//   - Open     : from the first exchange by name (all share the period open)
//   - High     : max across exchanges
//   - Low      : min across exchanges
//   - Close    : from lastEx, the exchange that updated most recently;
//     the last exchange by name when lastEx is empty
//   - Buy/Sell : sum across exchanges
//   - Volumes  : depth levels summed per price, or a kline.Profile of the
//     merged candle when no exchange carried depth
func merge(perEx map[string]*adapter.Candle, lastEx string) kline.Item {
	names := make([]string, 0, len(perEx))
	for n := range perEx {
		names = append(names, n)
	}
	slices.Sort(names)
	if _, ok := perEx[lastEx]; !ok && len(names) > 0 {
		lastEx = names[len(names)-1]
	}

	var agg kline.Item
	for i, n := range names {
		it := &perEx[n].Item
		if i == 0 {
			agg = kline.Item{
				Timestamp: it.Timestamp,
				Open:      it.Open,
				High:      it.High,
				Low:       it.Low,
			}
		}
		agg.High = max(agg.High, it.High)
		agg.Low = min(agg.Low, it.Low)
		agg.BuyVolume += it.BuyVolume
		agg.SellVolume += it.SellVolume
		agg.Volumes = kline.MergeLevels(agg.Volumes, it.Volumes)
	}
	if c, ok := perEx[lastEx]; ok {
		agg.Close = c.Item.Close
	}
	if len(agg.Volumes) == 0 {
		agg.Volumes = kline.Profile(&agg, ProfileLevels)
	}
	return agg
}
