package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/yitech/candlechart/adapter"
)

var wsBaseURL = "wss://stream.binance.com:9443"

// depthLevels is the partial book size requested per side.
const depthLevels = 20

// subscribeKline opens a Binance combined kline + depth stream for
// symbol/interval, invoking handler for every kline update. It reconnects
// automatically on error.
func subscribeKline(ctx context.Context, log *slog.Logger, symbol, interval string, handler adapter.CandleHandler) adapter.Token {
	ctx, cancel := context.WithCancel(ctx)
	go adapter.Reconnect(ctx, log, func(ctx context.Context) error {
		return connectAndRead(ctx, log, symbol, interval, handler)
	})
	return adapter.NewToken(cancel)
}

func streamURL(symbol, interval string) string {
	sym := strings.ToLower(symbol)
	return fmt.Sprintf("%s/stream?streams=%s@kline_%s/%s@depth%d@100ms", wsBaseURL, sym, interval, sym, depthLevels)
}

// connectAndRead maintains a single WebSocket session until the context is
// cancelled or an error occurs.
func connectAndRead(ctx context.Context, log *slog.Logger, symbol, interval string, handler adapter.CandleHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL(symbol, interval), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ctx, cancel := adapter.Watch(ctx, conn)
	defer cancel()

	s := &stream{symbol: symbol, book: adapter.NewBook()}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("read: %w", err)
		}

		c, err := s.handle(msg)
		if err != nil {
			log.Debug("parse error", "err", err)
			continue
		}
		if c != nil {
			handler(c)
		}
	}
}

// stream holds the per-connection state of a combined subscription.
type stream struct {
	symbol string
	book   *adapter.Book
}

// combinedMsg is the envelope of the /stream endpoint.
type combinedMsg struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// wsKlineMsg is the Binance kline event.
type wsKlineMsg struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		TakerBuy string `json:"V"`
		IsClosed bool   `json:"x"`
	} `json:"k"`
}

// wsDepthMsg is a partial book snapshot.
type wsDepthMsg struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// handle routes one combined message. Depth snapshots only refresh the book
// and return nil; kline events return a candle carrying the current book.
func (s *stream) handle(msg []byte) (*adapter.Candle, error) {
	var env combinedMsg
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, err
	}
	switch {
	case strings.Contains(env.Stream, "@depth"):
		var d wsDepthMsg
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("depth: %w", err)
		}
		return nil, s.book.Apply(d.Bids, d.Asks, true)
	case strings.Contains(env.Stream, "@kline"):
		c, err := parseWsKline(env.Data)
		if err != nil {
			return nil, err
		}
		if !s.book.Empty() {
			c.Item.Volumes = s.book.Levels(depthLevels)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unexpected stream: %q", env.Stream)
	}
}

func parseWsKline(msg []byte) (*adapter.Candle, error) {
	var m wsKlineMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if m.EventType != "kline" {
		return nil, fmt.Errorf("unexpected event type: %s", m.EventType)
	}
	k := m.Kline
	f, err := adapter.Floats(k.Open, k.High, k.Low, k.Close, k.Volume, k.TakerBuy)
	if err != nil {
		return nil, fmt.Errorf("kline: %w", err)
	}
	return &adapter.Candle{
		Exchange: name,
		Symbol:   m.Symbol,
		Interval: k.Interval,
		Item:     item(k.OpenTime, f[0], f[1], f[2], f[3], f[4], f[5]),
		IsClosed: k.IsClosed,
	}, nil
}
