package feed

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/yitech/candlechart/adapter"
	"github.com/yitech/candlechart/codec"
	"github.com/yitech/candlechart/model/kline"
)

// Source is what the server streams from; *aggregator.Aggregator satisfies it.
type Source interface {
	Subscribe(symbol, interval string, handler adapter.CandleHandler) (adapter.Token, error)
	Backfill(symbol, interval string, start, end time.Time) ([]*adapter.Candle, error)
	History(key string) []kline.Item
}

// Server implements the feed service.
type Server struct {
	src     Source
	history int
	log     *slog.Logger
	now     func() time.Time
}

// NewServer streams from src, sending at most history candles in the snapshot.
func NewServer(src Source, history int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{src: src, history: history, log: log, now: time.Now}
}

// Subscribe sends the history snapshot followed by the live updates of the
// requested key until the client goes away. A client that falls behind gets
// only the latest update of each candle.
func (s *Server) Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStream) error {
	key := req.GetValue()
	symbol, interval, err := SplitKey(key)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	d, err := adapter.ParseInterval(interval)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	log := s.log.With("session", uuid.NewString(), "key", key)
	log.Info("new subscription")

	// Subscribe before reading history so no update falls between the two.
	queue := newPending()
	tok, err := s.src.Subscribe(symbol, interval, func(c *adapter.Candle) {
		queue.put(c.Item.Clone())
	})
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}
	defer tok.Unsubscribe()

	hist := s.src.History(key)
	if len(hist) < s.history {
		end := s.now()
		start := end.Add(-time.Duration(s.history) * d)
		if _, err := s.src.Backfill(symbol, interval, start, end); err != nil {
			log.Warn("backfill failed, streaming without history", "err", err)
		}
		hist = s.src.History(key)
	}
	if len(hist) > s.history {
		hist = hist[len(hist)-s.history:]
	}

	if err := send(stream, hist); err != nil {
		return err
	}
	var last int32 = -1 << 31
	if n := len(hist); n > 0 {
		last = hist[n-1].Timestamp
	}
	log.Debug("snapshot sent", "items", len(hist))

	for {
		select {
		case <-stream.Context().Done():
			log.Info("client disconnected")
			return stream.Context().Err()
		case <-queue.notify:
			for _, it := range queue.drain() {
				// ticks older than the last sent candle are already in the chart
				if it.Timestamp < last {
					continue
				}
				last = it.Timestamp
				if err := send(stream, []kline.Item{it}); err != nil {
					return err
				}
			}
		}
	}
}

func send(stream grpc.ServerStream, items []kline.Item) error {
	return stream.SendMsg(wrapperspb.Bytes(codec.Encode(items)))
}
