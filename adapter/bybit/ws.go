package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yitech/candlechart/adapter"
)

var wsURL = "wss://stream.bybit.com/v5/public/linear"

// pingInterval is how often we send a heartbeat to keep the connection alive.
const pingInterval = 20 * time.Second

// bookDepth is the subscribed book size; attachLevels the levels per side
// carried on each candle.
const (
	bookDepth    = 50
	attachLevels = 25
)

// subscribeKline opens a Bybit WebSocket kline + order book stream,
// invoking handler for every kline update. It reconnects automatically on error.
func subscribeKline(ctx context.Context, log *slog.Logger, symbol, interval, bybitInterval string, handler adapter.CandleHandler) adapter.Token {
	ctx, cancel := context.WithCancel(ctx)
	go adapter.Reconnect(ctx, log, func(ctx context.Context) error {
		return connectAndRead(ctx, log, symbol, interval, bybitInterval, handler)
	})
	return adapter.NewToken(cancel)
}

func topics(symbol, bybitInterval string) []string {
	return []string{
		fmt.Sprintf("kline.%s.%s", bybitInterval, symbol),
		fmt.Sprintf("orderbook.%d.%s", bookDepth, symbol),
	}
}

// connectAndRead maintains a single Bybit WebSocket session.
func connectAndRead(ctx context.Context, log *slog.Logger, symbol, interval, bybitInterval string, handler adapter.CandleHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ctx, cancel := adapter.Watch(ctx, conn)
	defer cancel()

	subMsg := map[string]any{
		"op":   "subscribe",
		"args": topics(symbol, bybitInterval),
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// Heartbeat: Bybit requires a ping every 20 s or it closes the connection.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	s := &stream{symbol: symbol, interval: interval, book: adapter.NewBook()}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		candles, err := s.handle(msg)
		if err != nil {
			log.Debug("parse error", "err", err)
			continue
		}
		for _, c := range candles {
			handler(c)
		}
	}
}

// bybitWsMsg is the generic Bybit V5 WebSocket message envelope.
type bybitWsMsg struct {
	Op      string          `json:"op"`      // "pong", "subscribe"
	Success bool            `json:"success"` // subscription ack
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"` // "kline.1.BTCUSDT"
	Type    string          `json:"type"`  // "snapshot" | "delta"
	Data    json.RawMessage `json:"data"`
}

// bybitKlineEntry is one kline object inside the data array.
type bybitKlineEntry struct {
	Start   int64  `json:"start"` // open time (ms)
	Open    string `json:"open"`
	High    string `json:"high"`
	Low     string `json:"low"`
	Close   string `json:"close"`
	Volume  string `json:"volume"`
	Confirm bool   `json:"confirm"` // true = candle is closed
}

// bybitBookData is the order book payload.
type bybitBookData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

type stream struct {
	symbol   string
	interval string
	book     *adapter.Book
}

// handle routes one message. Book updates return no candles.
func (s *stream) handle(msg []byte) ([]*adapter.Candle, error) {
	var m bybitWsMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	// Control messages: pong and subscribe ack.
	if m.Topic == "" {
		if m.Op == "subscribe" && !m.Success {
			return nil, fmt.Errorf("subscribe rejected: %s", m.RetMsg)
		}
		return nil, nil
	}

	if strings.HasPrefix(m.Topic, "orderbook.") {
		var d bybitBookData
		if err := json.Unmarshal(m.Data, &d); err != nil {
			return nil, fmt.Errorf("orderbook: %w", err)
		}
		return nil, s.book.Apply(d.Bids, d.Asks, m.Type == "snapshot")
	}

	var entries []bybitKlineEntry
	if err := json.Unmarshal(m.Data, &entries); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	out := make([]*adapter.Candle, 0, len(entries))
	for i, e := range entries {
		f, err := adapter.Floats(e.Open, e.High, e.Low, e.Close, e.Volume)
		if err != nil {
			return nil, fmt.Errorf("kline[%d]: %w", i, err)
		}
		c := &adapter.Candle{
			Exchange: name,
			Symbol:   s.symbol,
			Interval: s.interval,
			Item:     item(e.Start, f),
			IsClosed: e.Confirm,
		}
		if !s.book.Empty() {
			c.Item.Volumes = s.book.Levels(attachLevels)
		}
		out = append(out, c)
	}
	return out, nil
}
