package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

func TestInstID(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT": "BTC-USDT", "ethusdc": "ETH-USDC", "SOLBTC": "SOL-BTC",
		"BTC-USDT": "BTC-USDT", "XYZ": "XYZ",
	}
	for in, want := range cases {
		if got := instID(in); got != want {
			t.Errorf("instID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToBar(t *testing.T) {
	cases := map[string]string{"1m": "1m", "15m": "15m", "1h": "1H", "4h": "4H", "1d": "1D", "1w": "1W"}
	for in, want := range cases {
		got, err := toBar(in)
		if err != nil || got != want {
			t.Errorf("toBar(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := toBar("30s"); err == nil {
		t.Error("Expected seconds to be unsupported")
	}
}

func TestParseRows(t *testing.T) {
	out, err := parseRows([][]string{
		{"1700000000000", "10", "12", "8", "11", "4", "44", "44", "1"},
		{"1700000060000", "11", "11", "11", "11", "2", "22", "22", "0"},
	})
	if err != nil {
		t.Fatalf("parseRows: %v", err)
	}
	if !out[0].IsClosed || out[1].IsClosed {
		t.Errorf("Expected the confirm flag to map to IsClosed")
	}
	if out[0].Item.BuyVolume != 3 || out[0].Item.SellVolume != 1 {
		t.Errorf("Expected 3/1 split, got %v/%v", out[0].Item.BuyVolume, out[0].Item.SellVolume)
	}
	if out[1].Item.Timestamp != 1700000060 {
		t.Errorf("Expected 1700000060, got %d", out[1].Item.Timestamp)
	}
}

func TestFetchKlines_StopsAtStart(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("instId") != "BTC-USDT" || r.URL.Query().Get("bar") != "1m" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		top := (after - 1) / 60_000 * 60_000
		rows := make([]string, maxLimit)
		for i := range rows {
			rows[i] = fmt.Sprintf(`["%d","1","2","0.5","1.5","4","0","0","1"]`, top-int64(i)*60_000)
		}
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[%s]}`, strings.Join(rows, ","))
	}))
	defer srv.Close()
	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	end := int64(1_700_000_040_000)
	start := end - 149*60_000
	out, err := fetchKlines(context.Background(), srv.Client(), "BTC-USDT", "1m", start, end)
	if err != nil {
		t.Fatalf("fetchKlines: %v", err)
	}
	if calls != 2 || len(out) != 150 {
		t.Fatalf("Expected 2 pages and 150 candles, got %d / %d", calls, len(out))
	}
	if int64(out[0].Item.Timestamp)*1000 != start || int64(out[149].Item.Timestamp)*1000 != end {
		t.Errorf("Expected [%d, %d], got [%d, %d]", start, end, out[0].Item.Timestamp, out[149].Item.Timestamp)
	}
}

func TestStream_Handle(t *testing.T) {
	s := newStream("BTCUSDT", "1m")

	if out, err := s.handle([]byte(`{"event":"subscribe","arg":{"channel":"candle1m","instId":"BTC-USDT"}}`)); err != nil || out != nil {
		t.Fatalf("Expected an ack to be ignored, got %v / %v", out, err)
	}
	if _, err := s.handle([]byte(`{"event":"error","code":"60012","msg":"bad"}`)); err == nil {
		t.Error("Expected an error event to fail")
	}

	book := `{"arg":{"channel":"books5","instId":"BTC-USDT"},"data":[{"asks":[["101","1","0","2"]],"bids":[["99","2","0","1"]],"ts":"1"}]}`
	if out, err := s.handle([]byte(book)); err != nil || out != nil {
		t.Fatalf("Expected books5 to only update the book, got %v / %v", out, err)
	}

	candle := `{"arg":{"channel":"candle1m","instId":"BTC-USDT"},"data":[["1700000000000","100","101","99","100","1","0","0","0"]]}`
	out, err := s.handle([]byte(candle))
	if err != nil || len(out) != 1 {
		t.Fatalf("Expected one candle, got %v / %v", out, err)
	}
	c := out[0]
	if c.Symbol != "BTCUSDT" || c.Interval != "1m" || c.Exchange != "okx" {
		t.Errorf("unexpected candle meta: %+v", c)
	}
	if len(c.Item.Volumes) != 2 || c.Item.Volumes[0].Price != 99 {
		t.Errorf("Expected the book attached, got %+v", c.Item.Volumes)
	}
}
