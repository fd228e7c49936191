package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/model/kline"
)

var baseURL = "https://www.okx.com"

const (
	klinePath = "/api/v5/market/history-candles"
	maxLimit  = 100
)

// fetchKlines requests historical klines from the OKX REST API,
// paginating automatically until the full [startMs, endMs] range is covered.
//
// OKX returns candles newest-first using cursor-based pagination via the
// `after` parameter; this function reverses the result to chronological order.
func fetchKlines(ctx context.Context, client *http.Client, inst, bar string, startMs, endMs int64) ([]*adapter.Candle, error) {
	var all []*adapter.Candle

	// after=T returns candles with ts < T, so seed with endMs+1 to include endMs.
	after := endMs + 1

	for {
		batch, err := fetchBatch(ctx, client, inst, bar, after)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		// Collect candles that fall within [startMs, endMs]; stop when we go older.
		done := false
		for _, c := range batch {
			if int64(c.Item.Timestamp)*1000 < startMs {
				done = true
				break
			}
			all = append(all, c)
		}

		if done || len(batch) < maxLimit {
			break
		}

		after = int64(all[len(all)-1].Item.Timestamp) * 1000
	}

	// Reverse to chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// fetchBatch fetches a single page from the OKX history-candles endpoint.
func fetchBatch(ctx context.Context, client *http.Client, inst, bar string, after int64) ([]*adapter.Candle, error) {
	q := url.Values{}
	q.Set("instId", inst)
	q.Set("bar", bar)
	q.Set("after", strconv.FormatInt(after, 10))
	q.Set("limit", strconv.Itoa(maxLimit))

	var envelope struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := adapter.GetJSON(ctx, client, name, baseURL+klinePath, q, &envelope); err != nil {
		return nil, err
	}
	if envelope.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", envelope.Code, envelope.Msg)
	}

	out, err := parseRows(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("okx: %w", err)
	}
	return out, nil
}

// parseRows converts OKX candle rows, shared by REST and WebSocket.
//
// OKX kline array layout:
//
//	[0] ts        (open time, ms)
//	[1] o         (open)
//	[2] h         (high)
//	[3] l         (low)
//	[4] c         (close)
//	[5] vol       (base currency volume)
//	[6] volCcy    (quote currency volume)
//	[7] volCcyQuote
//	[8] confirm   ("1"=closed, "0"=current)
func parseRows(rows [][]string) ([]*adapter.Candle, error) {
	out := make([]*adapter.Candle, 0, len(rows))
	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("kline[%d] has %d fields, want ≥6", i, len(r))
		}

		openTime, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("kline[%d] open_time: %w", i, err)
		}
		f, err := adapter.Floats(r[1], r[2], r[3], r[4], r[5])
		if err != nil {
			return nil, fmt.Errorf("kline[%d]: %w", i, err)
		}

		it := kline.Item{
			Timestamp: adapter.Seconds(openTime),
			Open:      f[0],
			High:      f[1],
			Low:       f[2],
			Close:     f[3],
		}
		it.SplitVolume(f[4])
		out = append(out, &adapter.Candle{
			Exchange: name,
			Item:     it,
			IsClosed: len(r) > 8 && r[8] == "1",
		})
	}
	return out, nil
}
