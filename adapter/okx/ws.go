package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yitech/candlechart/adapter"
)

var wsEndpoint = "wss://ws.okx.com:8443/ws/v5/business"

// Candle channels live on the business endpoint, books on the public one.
var wsPublicEndpoint = "wss://ws.okx.com:8443/ws/v5/public"

// subscribeKline opens the OKX candle stream and the books5 stream for
// inst/bar on one shared book, invoking handler for every candle update.
// Both sessions reconnect automatically on error.
func subscribeKline(ctx context.Context, log *slog.Logger, symbol, inst, interval, bar string, handler adapter.CandleHandler) adapter.Token {
	ctx, cancel := context.WithCancel(ctx)
	s := newStream(symbol, interval)

	go adapter.Reconnect(ctx, log, func(ctx context.Context) error {
		return connectAndRead(ctx, log, wsEndpoint, "candle"+bar, inst, s, handler)
	})
	go adapter.Reconnect(ctx, log.With("channel", "books5"), func(ctx context.Context) error {
		return connectAndRead(ctx, log, wsPublicEndpoint, "books5", inst, s, handler)
	})
	return adapter.NewToken(cancel)
}

// connectAndRead maintains a single OKX WebSocket session on one channel.
func connectAndRead(ctx context.Context, log *slog.Logger, endpoint, channel, inst string, s *stream, handler adapter.CandleHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ctx, cancel := adapter.Watch(ctx, conn)
	defer cancel()

	subMsg := map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": channel, "instId": inst},
		},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		// OKX sends plain text "ping" frames (not WS protocol pings).
		switch string(msg) {
		case "ping":
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
			continue
		case "pong":
			continue
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

// okxWsMsg is the generic OKX WebSocket message envelope.
type okxWsMsg struct {
	Event string `json:"event"` // "subscribe", "error"
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data json.RawMessage `json:"data"`
}

// okxBook is one books5 snapshot. Levels are [price, size, "0", orders].
type okxBook struct {
	Asks [][]string `json:"asks"`
	Bids [][]string `json:"bids"`
}

// stream is shared by the candle and book sessions of one subscription.
type stream struct {
	symbol   string
	interval string

	mu   sync.Mutex
	book *adapter.Book
}

func newStream(symbol, interval string) *stream {
	return &stream{symbol: symbol, interval: interval, book: adapter.NewBook()}
}

// handle routes one message: books5 snapshots refresh the book, candle
// messages return candles carrying it.
func (s *stream) handle(msg []byte) ([]*adapter.Candle, error) {
	var m okxWsMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	// Subscription ack or error carry no data.
	if m.Event != "" {
		if m.Event == "error" {
			return nil, fmt.Errorf("api error %s: %s", m.Code, m.Msg)
		}
		return nil, nil
	}
	if len(m.Data) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	book := s.book

	if m.Arg.Channel == "books5" {
		var snaps []okxBook
		if err := json.Unmarshal(m.Data, &snaps); err != nil {
			return nil, fmt.Errorf("books5: %w", err)
		}
		for _, b := range snaps {
			if err := book.Apply(b.Bids, b.Asks, true); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	if !strings.HasPrefix(m.Arg.Channel, "candle") {
		return nil, fmt.Errorf("unexpected channel %q", m.Arg.Channel)
	}

	var rows [][]string
	if err := json.Unmarshal(m.Data, &rows); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	out, err := parseRows(rows)
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		c.Symbol, c.Interval = s.symbol, s.interval
		if !book.Empty() {
			c.Item.Volumes = book.Levels(5)
		}
	}
	return out, nil
}
