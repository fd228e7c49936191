package bybit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/model/kline"
)

var baseURL = "https://api.bybit.com"

const (
	klinePath = "/v5/market/kline"
	maxLimit  = 200
)

// fetchKlines requests historical klines from the Bybit REST API,
// paginating automatically until the full [startMs, endMs] range is covered.
//
// Bybit returns candles newest-first; this function reverses the result
// to chronological order before returning.
func fetchKlines(ctx context.Context, client *http.Client, category, symbol, interval, bybitInterval string, startMs, endMs int64) ([]*adapter.Candle, error) {
	var all []*adapter.Candle
	end := endMs

	for {
		batch, err := fetchBatch(ctx, client, category, symbol, bybitInterval, startMs, end)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, c := range batch {
			c.Interval = interval
		}
		all = append(all, batch...)

		if len(batch) < maxLimit {
			break
		}

		// batch is newest-first, so the oldest open time is at the end.
		end = int64(all[len(all)-1].Item.Timestamp)*1000 - 1
		if end < startMs {
			break
		}
	}

	// Reverse to chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// fetchBatch fetches a single page from the Bybit kline endpoint.
func fetchBatch(ctx context.Context, client *http.Client, category, symbol, interval string, startMs, endMs int64) ([]*adapter.Candle, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("start", strconv.FormatInt(startMs, 10))
	q.Set("end", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(maxLimit))

	var envelope struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := adapter.GetJSON(ctx, client, name, baseURL+klinePath, q, &envelope); err != nil {
		return nil, err
	}
	if envelope.RetCode != 0 {
		return nil, fmt.Errorf("bybit: api error %d: %s", envelope.RetCode, envelope.RetMsg)
	}
	return parseKlines(symbol, interval, envelope.Result.List)
}

// parseKlines converts the Bybit wire format into candles.
//
// Bybit kline array layout:
//
//	[0] startTime  (ms)
//	[1] openPrice
//	[2] highPrice
//	[3] lowPrice
//	[4] closePrice
//	[5] volume     (base coin)
//	[6] turnover   (quote coin)
//
// Bybit has no taker split, so volume is divided with kline.Item.SplitVolume.
func parseKlines(symbol, interval string, rows [][]string) ([]*adapter.Candle, error) {
	out := make([]*adapter.Candle, 0, len(rows))

	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("bybit: kline[%d] has %d fields, want ≥6", i, len(r))
		}

		openTime, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bybit: kline[%d] open_time: %w", i, err)
		}
		f, err := adapter.Floats(r[1], r[2], r[3], r[4], r[5])
		if err != nil {
			return nil, fmt.Errorf("bybit: kline[%d]: %w", i, err)
		}

		out = append(out, &adapter.Candle{
			Exchange: name,
			Symbol:   symbol,
			Interval: interval,
			Item:     item(openTime, f),
			IsClosed: true,
		})
	}
	return out, nil
}

func item(openMs int64, ohlcv []float64) kline.Item {
	it := kline.Item{
		Timestamp: adapter.Seconds(openMs),
		Open:      ohlcv[0],
		High:      ohlcv[1],
		Low:       ohlcv[2],
		Close:     ohlcv[3],
	}
	it.SplitVolume(ohlcv[4])
	return it
}

// toBybitInterval converts "1m".."12h", "1d", "1w" into Bybit notation:
// plain minute numbers below a day, then "D" and "W".
func toBybitInterval(interval string) (string, error) {
	d, err := adapter.ParseInterval(interval)
	if err != nil {
		return "", err
	}
	switch {
	case d == 24*time.Hour:
		return "D", nil
	case d == 7*24*time.Hour:
		return "W", nil
	case d < 24*time.Hour && d >= time.Minute && d%time.Minute == 0:
		return strconv.Itoa(int(d / time.Minute)), nil
	default:
		return "", fmt.Errorf("bybit: unsupported interval %q", interval)
	}
}
