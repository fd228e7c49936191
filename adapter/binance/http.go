package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/model/kline"
)

var baseURL = "https://api.binance.com"

const (
	klinePath = "/api/v3/klines"
	maxLimit  = 1000
)

// fetchKlines requests historical klines from the Binance REST API,
// paginating automatically until the full [startMs, endMs] range is covered.
func fetchKlines(ctx context.Context, client *http.Client, symbol, interval string, startMs, endMs int64) ([]*adapter.Candle, error) {
	var out []*adapter.Candle

	for {
		batch, last, err := fetchBatch(ctx, client, symbol, interval, startMs, endMs)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)

		// Fewer than maxLimit means we've reached the end of the range.
		if len(batch) < maxLimit {
			break
		}

		startMs = last + 1
		if startMs > endMs {
			break
		}
	}

	return out, nil
}

// fetchBatch fetches a single page and returns it with the last open time in ms.
func fetchBatch(ctx context.Context, client *http.Client, symbol, interval string, startMs, endMs int64) ([]*adapter.Candle, int64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("endTime", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(maxLimit))

	var raw [][]json.RawMessage
	if err := adapter.GetJSON(ctx, client, name, baseURL+klinePath, q, &raw); err != nil {
		return nil, 0, err
	}
	return parseKlines(symbol, interval, raw)
}

// parseKlines converts the raw Binance wire format into candles.
//
// Binance kline array layout:
//
//	[0]  Open time       (int64, Unix ms)
//	[1]  Open            (string)
//	[2]  High            (string)
//	[3]  Low             (string)
//	[4]  Close           (string)
//	[5]  Volume          (string, base asset)
//	[6]  Close time      (int64, Unix ms)
//	[7]  Quote volume    (string)
//	[8]  Trade count     (int64)
//	[9]  Taker buy base  (string)
//	[10] Taker buy quote (string)
//	[11] Ignore          (string)
func parseKlines(symbol, interval string, raw [][]json.RawMessage) ([]*adapter.Candle, int64, error) {
	out := make([]*adapter.Candle, 0, len(raw))
	var last int64
	for i, r := range raw {
		if len(r) < 10 {
			return nil, 0, fmt.Errorf("binance: kline[%d] has %d fields, want ≥10", i, len(r))
		}

		openTime, err := parseInt64(r[0])
		if err != nil {
			return nil, 0, fmt.Errorf("binance: kline[%d] open_time: %w", i, err)
		}
		f, err := adapter.Floats(jsonString(r[1]), jsonString(r[2]), jsonString(r[3]),
			jsonString(r[4]), jsonString(r[5]), jsonString(r[9]))
		if err != nil {
			return nil, 0, fmt.Errorf("binance: kline[%d]: %w", i, err)
		}

		last = openTime
		out = append(out, &adapter.Candle{
			Exchange: name,
			Symbol:   symbol,
			Interval: interval,
			Item:     item(openTime, f[0], f[1], f[2], f[3], f[4], f[5]),
			IsClosed: true, // historical candles are always closed
		})
	}
	return out, last, nil
}

func item(openMs int64, open, high, low, close, volume, takerBuy float64) kline.Item {
	return kline.Item{
		Timestamp:  adapter.Seconds(openMs),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
		BuyVolume:  takerBuy,
		SellVolume: max(0, volume-takerBuy),
	}
}

// parseInt64 unmarshals a JSON number into an int64.
func parseInt64(raw json.RawMessage) (int64, error) {
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// jsonString strips surrounding quotes from a JSON string token.
func jsonString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Fallback: return the raw token as-is.
		return string(raw)
	}
	return s
}
