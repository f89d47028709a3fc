package control

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a gRPC client for the control service
type Client struct {
	cc *grpc.ClientConn
}

// Dial creates a new client for the control service at addr
func Dial(addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	unaryInterceptor := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logger.Debug("gRPC call",
			zap.String("method", method),
			zap.Duration("duration", time.Since(start)),
			zap.String("status_code", status.Code(err).String()),
		)
		return err
	}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(unaryInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial control service: %w", err)
	}
	return &Client{cc: conn}, nil
}

// Subscribe asks the server to subscribe channel
func (c *Client) Subscribe(ctx context.Context, channel string) (*ChannelReply, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Subscribe", wrapperspb.String(channel), out); err != nil {
		return nil, err
	}
	return channelReplyFromProto(out), nil
}

// Unsubscribe asks the server to unsubscribe channel
func (c *Client) Unsubscribe(ctx context.Context, channel string) (*ChannelReply, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Unsubscribe", wrapperspb.String(channel), out); err != nil {
		return nil, err
	}
	return channelReplyFromProto(out), nil
}

// Status fetches the connection state
func (c *Client) Status(ctx context.Context) (*StatusReply, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Status", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return statusReplyFromProto(out), nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out)
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.cc != nil {
		return c.cc.Close()
	}
	return nil
}
