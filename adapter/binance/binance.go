package binance

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yitech/candlechart/adapter"
)

const name = "binance"

// Adapter is the Binance spot exchange adapter.
type Adapter struct {
	httpClient *http.Client
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
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *Adapter) Name() string { return name }

// Subscribe opens the combined kline + depth stream for symbol/interval.
func (a *Adapter) Subscribe(symbol, interval string, handler adapter.CandleHandler) (adapter.Token, error) {
	if _, err := adapter.ParseInterval(interval); err != nil {
		return nil, err
	}
	return subscribeKline(a.ctx, adapter.StreamLogger(a.log, name, symbol, interval), symbol, interval, handler), nil
}

// Backfill fetches historical klines via the Binance REST API.
func (a *Adapter) Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error) {
	return fetchKlines(a.ctx, a.httpClient, symbol, interval, start.UnixMilli(), end.UnixMilli())
}

// Close cancels all active subscriptions.
func (a *Adapter) Close() error {
	a.cancel()
	return nil
}
