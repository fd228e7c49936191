package adapter

import (
	"context"
	"log/slog"
	"time"

	"github.com/yitech/candlechart/model/kline"
)

// Candle is one exchange's view of a kline period. Item.Timestamp is the
// period open time in seconds.
type Candle struct {
	Exchange string
	Symbol   string
	Interval string
	Item     kline.Item
	IsClosed bool
}

// CandleHandler receives every update of a subscription. It is called from the
// adapter's read goroutine and must not block for long.
type CandleHandler func(*Candle)

// Token cancels a single subscription.
type Token interface {
	Unsubscribe()
}

// Adapter defines the contract for exchange market-data adapters.
type Adapter interface {
	// Name is the exchange identifier stamped on every Candle.
	Name() string

	// Subscribe starts streaming candles for the given symbol and interval.
	// Interval uses the "1m", "1h", "1d" notation; adapters translate it.
	Subscribe(symbol, interval string, handler CandleHandler) (Token, error)

	// Backfill returns closed candles whose open time lies in [start, end],
	// oldest first.
	Backfill(symbol, interval string, start, end time.Time) ([]*Candle, error)

	// Close shuts down the adapter and releases all resources.
	Close() error
}

type cancelToken struct {
	cancel context.CancelFunc
}

func (t *cancelToken) Unsubscribe() { t.cancel() }

// NewToken returns a Token that calls cancel on Unsubscribe.
func NewToken(cancel context.CancelFunc) Token {
	return &cancelToken{cancel: cancel}
}

// MaxBackoff caps the reconnect delay of Reconnect.
const MaxBackoff = 30 * time.Second

// Reconnect runs session until ctx is cancelled. A session that fails is
// retried after a delay that doubles up to MaxBackoff; a session that ends
// cleanly resets the delay.
func Reconnect(ctx context.Context, log *slog.Logger, session func(context.Context) error) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := session(ctx); err != nil && ctx.Err() == nil {
			log.Warn("stream failed, reconnecting", "err", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < MaxBackoff {
				backoff *= 2
			}
		} else {
			backoff = time.Second
		}
	}
}

// StreamLogger tags log lines with the exchange and subscription the way
// every adapter reports them.
func StreamLogger(log *slog.Logger, exchange, symbol, interval string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With("exchange", exchange, "stream", symbol+"/"+interval)
}
