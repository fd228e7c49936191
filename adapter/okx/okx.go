package okx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yitech/candlechart/adapter"
)

const name = "okx"

// Adapter is the OKX spot exchange adapter.
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

// Subscribe opens a WebSocket candle + books5 stream for symbol/interval.
func (a *Adapter) Subscribe(symbol, interval string, handler adapter.CandleHandler) (adapter.Token, error) {
	bar, err := toBar(interval)
	if err != nil {
		return nil, err
	}
	log := adapter.StreamLogger(a.log, name, symbol, interval)
	return subscribeKline(a.ctx, log, symbol, instID(symbol), interval, bar, handler), nil
}

// Backfill fetches historical klines via the OKX history-candles endpoint.
func (a *Adapter) Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error) {
	bar, err := toBar(interval)
	if err != nil {
		return nil, err
	}
	out, err := fetchKlines(a.ctx, a.httpClient, instID(symbol), bar, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		c.Symbol, c.Interval = symbol, interval
	}
	return out, nil
}

// Close cancels all active subscriptions.
func (a *Adapter) Close() error {
	a.cancel()
	return nil
}

var quotes = []string{"USDT", "USDC", "USD", "BTC", "ETH"}

// instID maps "BTCUSDT" to the OKX instrument "BTC-USDT". Symbols that
// already carry a dash pass through.
func instID(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.Contains(s, "-") {
		return s
	}
	for _, q := range quotes {
		if base, ok := strings.CutSuffix(s, q); ok && base != "" {
			return base + "-" + q
		}
	}
	return s
}

// toBar converts "1m", "4h", "1d", "1w" into OKX bar notation, which keeps
// minutes lowercase and uppercases hours and above.
func toBar(interval string) (string, error) {
	if _, err := adapter.ParseInterval(interval); err != nil {
		return "", err
	}
	n, unit := interval[:len(interval)-1], interval[len(interval)-1]
	switch unit {
	case 'm':
		return interval, nil
	case 'h', 'd', 'w':
		return n + strings.ToUpper(string(unit)), nil
	default:
		return "", fmt.Errorf("okx: unsupported interval %q", interval)
	}
}
