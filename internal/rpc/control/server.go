package control

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ismaiel54/polygon-stream/internal/stream"
	"github.com/ismaiel54/polygon-stream/internal/subscription"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "polygonstream.control.v1.StreamControl"

// Controller is the part of stream.Manager the control service drives
type Controller interface {
	Subscribe(channel string) (bool, error)
	Unsubscribe(channel string) (bool, error)
	State() stream.State
	ConnectionID() string
	Subscriptions() []subscription.Entry
}

// Service is implemented by Server; it exists so the service descriptor can name a handler type
type Service interface {
	Subscribe(ctx context.Context, channel *wrapperspb.StringValue) (*structpb.Struct, error)
	Unsubscribe(ctx context.Context, channel *wrapperspb.StringValue) (*structpb.Struct, error)
	Status(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// Server exposes subscription control over gRPC
type Server struct {
	ctrl   Controller
	logger *zap.Logger
}

// NewServer creates a new control server
func NewServer(ctrl Controller, logger *zap.Logger) *Server {
	return &Server{ctrl: ctrl, logger: logger}
}

// Register adds the control service to s
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// Subscribe queues a subscribe command
func (s *Server) Subscribe(ctx context.Context, channel *wrapperspb.StringValue) (*structpb.Struct, error) {
	return s.channelCommand("subscribe", channel.GetValue(), s.ctrl.Subscribe)
}

// Unsubscribe queues an unsubscribe command
func (s *Server) Unsubscribe(ctx context.Context, channel *wrapperspb.StringValue) (*structpb.Struct, error) {
	return s.channelCommand("unsubscribe", channel.GetValue(), s.ctrl.Unsubscribe)
}

func (s *Server) channelCommand(action, channel string, fn func(string) (bool, error)) (*structpb.Struct, error) {
	requestID := uuid.New().String()

	queued, err := fn(channel)
	if err != nil {
		s.logger.Warn("control command rejected",
			zap.String("request_id", requestID),
			zap.String("action", action),
			zap.String("channel", channel),
			zap.Error(err),
		)
		return nil, toStatus(err)
	}

	s.logger.Info("control command accepted",
		zap.String("request_id", requestID),
		zap.String("action", action),
		zap.String("channel", channel),
		zap.Bool("queued", queued),
	)
	reply := &ChannelReply{RequestID: requestID, Queued: queued}
	out, err := reply.toProto()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Status reports the connection state and tracked channels
func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entries := s.ctrl.Subscriptions()
	reply := &StatusReply{
		State:         s.ctrl.State().String(),
		ConnectionID:  s.ctrl.ConnectionID(),
		Subscriptions: make([]SubscriptionInfo, 0, len(entries)),
	}
	for _, e := range entries {
		reply.Subscriptions = append(reply.Subscriptions, SubscriptionInfo{Channel: e.Symbol, State: e.State.String()})
	}
	out, err := reply.toProto()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, stream.ErrInvalidChannel):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, stream.ErrNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, stream.ErrAlreadyDisposed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func unary[Req any, Reply any](method string, call func(Service, context.Context, *Req) (*Reply, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Service), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(Service), ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Methods: []grpc.MethodDesc{
		unary("Subscribe", Service.Subscribe),
		unary("Unsubscribe", Service.Unsubscribe),
		unary("Status", Service.Status),
	},
	Metadata: "control",
}
