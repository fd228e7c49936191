package bybit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yitech/candlechart/adapter"
)

const name = "bybit"

// Adapter is the Bybit exchange adapter.
type Adapter struct {
	httpClient *http.Client
	category   string // "linear" | "spot" | "inverse"
	log        *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func New(log *slog.Logger) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		category:   "linear",
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *Adapter) Name() string { return name }

// Subscribe opens a WebSocket kline + order book stream for symbol/interval.
// The returned Token cancels this specific subscription.
func (a *Adapter) Subscribe(symbol, interval string, handler adapter.CandleHandler) (adapter.Token, error) {
	bi, err := toBybitInterval(interval)
	if err != nil {
		return nil, err
	}
	log := adapter.StreamLogger(a.log, name, symbol, interval)
	return subscribeKline(a.ctx, log, symbol, interval, bi, handler), nil
}

// Backfill fetches historical klines via the Bybit REST API.
func (a *Adapter) Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error) {
	bi, err := toBybitInterval(interval)
	if err != nil {
		return nil, err
	}
	return fetchKlines(a.ctx, a.httpClient, a.category, symbol, interval, bi, start.UnixMilli(), end.UnixMilli())
}

// Close cancels all active subscriptions and releases resources.
func (a *Adapter) Close() error {
	a.cancel()
	return nil
}
