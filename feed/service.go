// Package feed streams KLI1 kline buffers over grpc: one history snapshot per
// subscription, then single-item ticks.
package feed

import (
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified grpc service name.
	ServiceName = "candlechart.feed.v1.Feed"

	subscribeMethod = "/" + ServiceName + "/Subscribe"
)

// Handler is implemented by Server. Requests carry the "SYMBOL:INTERVAL" key;
// every response is one KLI1 buffer.
type Handler interface {
	Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "candlechart/feed/v1/feed.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Handler).Subscribe(req, stream)
}

// Register installs h on s.
func Register(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&serviceDesc, h)
}

// SplitKey parses "SYMBOL:INTERVAL".
func SplitKey(key string) (symbol, interval string, err error) {
	symbol, interval, ok := strings.Cut(key, ":")
	if !ok || symbol == "" || interval == "" {
		return "", "", fmt.Errorf("feed: bad key %q, want SYMBOL:INTERVAL", key)
	}
	return symbol, interval, nil
}
