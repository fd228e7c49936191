package bybit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yitech/candlechart/adapter"
)

func TestToBybitInterval(t *testing.T) {
	cases := map[string]string{"1m": "1", "15m": "15", "1h": "60", "4h": "240", "1d": "D", "1w": "W"}
	for in, want := range cases {
		got, err := toBybitInterval(in)
		if err != nil || got != want {
			t.Errorf("toBybitInterval(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"30s", "2d", "x", ""} {
		if _, err := toBybitInterval(bad); err == nil {
			t.Errorf("Expected an error for %q", bad)
		}
	}
}

func TestParseKlines_SplitsVolume(t *testing.T) {
	out, err := parseKlines("BTCUSDT", "1m", [][]string{
		{"1700000060000", "100", "110", "90", "105", "8", "800"},
	})
	if err != nil {
		t.Fatalf("parseKlines: %v", err)
	}
	it := out[0].Item
	if it.Timestamp != 1700000060 {
		t.Errorf("Expected timestamp 1700000060, got %d", it.Timestamp)
	}
	// close sits 3/4 up the range
	if it.BuyVolume != 6 || it.SellVolume != 2 {
		t.Errorf("Expected 6/2 split, got %v/%v", it.BuyVolume, it.SellVolume)
	}
	if _, err := parseKlines("BTCUSDT", "1m", [][]string{{"1", "2"}}); err == nil {
		t.Error("Expected an error for a short row")
	}
	if _, err := parseKlines("BTCUSDT", "1m", [][]string{{"1", "a", "1", "1", "1", "1"}}); err == nil {
		t.Error("Expected an error for a bad price")
	}
}

func TestFetchKlines_ReversesPages(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.Query().Get("interval"); got != "1" {
			t.Errorf("Expected bybit interval 1, got %s", got)
		}
		end, _ := strconv.ParseInt(r.URL.Query().Get("end"), 10, 64)
		n := maxLimit
		if calls > 1 {
			n = 5
		}
		// newest first, minute aligned at or below end
		top := end / 60_000 * 60_000
		rows := make([]string, n)
		for i := range rows {
			rows[i] = fmt.Sprintf(`["%d","1","2","0.5","1.5","4","6"]`, top-int64(i)*60_000)
		}
		fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":{"list":[%s]}}`, strings.Join(rows, ","))
	}))
	defer srv.Close()
	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	out, err := fetchKlines(context.Background(), srv.Client(), "linear", "BTCUSDT", "1m", "1", 0, 1_700_000_000_000)
	if err != nil {
		t.Fatalf("fetchKlines: %v", err)
	}
	if calls != 2 || len(out) != maxLimit+5 {
		t.Fatalf("Expected 2 pages and %d candles, got %d / %d", maxLimit+5, calls, len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Item.Timestamp <= out[i-1].Item.Timestamp {
			t.Fatalf("Expected ascending timestamps at %d", i)
		}
	}
	if out[0].Interval != "1m" {
		t.Errorf("Expected the canonical interval on candles, got %s", out[0].Interval)
	}
}

func TestFetchKlines_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":10001,"retMsg":"params error","result":{}}`)
	}))
	defer srv.Close()
	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	if _, err := fetchKlines(context.Background(), srv.Client(), "linear", "BTCUSDT", "1m", "1", 0, 1); err == nil {
		t.Error("Expected an api error")
	}
}

func TestStream_BookAndKline(t *testing.T) {
	s := &stream{symbol: "BTCUSDT", interval: "1m", book: adapter.NewBook()}

	msgs := []string{
		`{"op":"subscribe","success":true}`,
		`{"topic":"orderbook.50.BTCUSDT","type":"snapshot","data":{"s":"BTCUSDT","b":[["99","1"],["98","2"]],"a":[["100","3"]]}}`,
		`{"topic":"orderbook.50.BTCUSDT","type":"delta","data":{"s":"BTCUSDT","b":[["98","0"]],"a":[["101","4"]]}}`,
	}
	for _, m := range msgs {
		if c, err := s.handle([]byte(m)); err != nil || c != nil {
			t.Fatalf("Expected no candles for %s, got %v / %v", m, c, err)
		}
	}

	kl := `{"topic":"kline.1.BTCUSDT","type":"snapshot","data":[{"start":1700000000000,"open":"100","high":"100","low":"100","close":"100","volume":"2","confirm":true}]}`
	out, err := s.handle([]byte(kl))
	if err != nil || len(out) != 1 {
		t.Fatalf("Expected one candle, got %v / %v", out, err)
	}
	c := out[0]
	if !c.IsClosed || c.Item.BuyVolume != 1 || c.Item.SellVolume != 1 {
		t.Errorf("Expected a closed flat candle split evenly, got %+v", c)
	}
	want := []float64{99, 100, 101}
	if len(c.Item.Volumes) != len(want) {
		t.Fatalf("Expected %d levels, got %+v", len(want), c.Item.Volumes)
	}
	for i, p := range want {
		if c.Item.Volumes[i].Price != p {
			t.Errorf("level %d: expected %v, got %v", i, p, c.Item.Volumes[i].Price)
		}
	}
}

func TestStream_SubscribeRejected(t *testing.T) {
	s := &stream{book: adapter.NewBook()}
	if _, err := s.handle([]byte(`{"op":"subscribe","success":false,"ret_msg":"bad topic"}`)); err == nil {
		t.Error("Expected a rejected subscription to error")
	}
}

func TestSessionsDoNotLeakGoroutines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage() // subscribe request
		conn.Close()
	}))
	defer srv.Close()

	old := wsURL
	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	defer func() { wsURL = old }()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := runtime.NumGoroutine()
	const sessions = 10
	for range sessions {
		if err := connectAndRead(context.Background(), log, "BTCUSDT", "1m", "1", func(*adapter.Candle) {}); err == nil {
			t.Fatal("Expected a read error from a closed session")
		}
	}

	// each session also started a ping loop
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > base+2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > base+2 {
		t.Errorf("Expected goroutines to settle near %d after %d sessions, got %d", base, sessions, n)
	}
}
