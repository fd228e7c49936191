package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client subscribes to a feed server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for addr. The connection is established lazily.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("feed: create client: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Subscribe streams key and calls fn with every buffer; snapshot is true for
// the first. It blocks until the stream ends, returning nil on a clean end of
// stream.
func (c *Client) Subscribe(ctx context.Context, key string, fn func(buf []byte, snapshot bool)) error {
	if _, _, err := SplitKey(key); err != nil {
		return err
	}
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return fmt.Errorf("feed: open stream: %w", err)
	}
	if err := stream.SendMsg(wrapperspb.String(key)); err != nil {
		return fmt.Errorf("feed: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("feed: close send: %w", err)
	}

	first := true
	for {
		msg := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("feed: recv: %w", err)
		}
		fn(msg.GetValue(), first)
		first = false
	}
}
