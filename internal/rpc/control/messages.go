package control

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Requests travel as wrapperspb.StringValue (the channel) and emptypb.Empty (Status).
// Replies travel as structpb.Struct and are converted to the types below on either end.

// ChannelReply reports whether a command was queued
type ChannelReply struct {
	RequestID string
	Queued    bool
}

// SubscriptionInfo is one tracked channel
type SubscriptionInfo struct {
	Channel string
	State   string
}

// StatusReply describes the connection
type StatusReply struct {
	State         string
	ConnectionID  string
	Subscriptions []SubscriptionInfo
}

func (r *ChannelReply) toProto() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"request_id": r.RequestID,
		"queued":     r.Queued,
	})
}

func channelReplyFromProto(s *structpb.Struct) *ChannelReply {
	f := s.GetFields()
	return &ChannelReply{
		RequestID: f["request_id"].GetStringValue(),
		Queued:    f["queued"].GetBoolValue(),
	}
}

func (r *StatusReply) toProto() (*structpb.Struct, error) {
	subs := make([]any, 0, len(r.Subscriptions))
	for _, s := range r.Subscriptions {
		subs = append(subs, map[string]any{"channel": s.Channel, "state": s.State})
	}
	st, err := structpb.NewStruct(map[string]any{
		"state":         r.State,
		"connection_id": r.ConnectionID,
		"subscriptions": subs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status reply: %w", err)
	}
	return st, nil
}

func statusReplyFromProto(s *structpb.Struct) *StatusReply {
	f := s.GetFields()
	reply := &StatusReply{
		State:        f["state"].GetStringValue(),
		ConnectionID: f["connection_id"].GetStringValue(),
	}
	for _, v := range f["subscriptions"].GetListValue().GetValues() {
		sf := v.GetStructValue().GetFields()
		reply.Subscriptions = append(reply.Subscriptions, SubscriptionInfo{
			Channel: sf["channel"].GetStringValue(),
			State:   sf["state"].GetStringValue(),
		})
	}
	return reply
}
