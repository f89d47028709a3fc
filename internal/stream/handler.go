package stream

import "github.com/ismaiel54/polygon-stream/internal/event"

// LifecycleKind identifies a connection-level notification
type LifecycleKind uint8

const (
	LifecycleStateChanged LifecycleKind = iota + 1
	LifecycleConnectFailed
	LifecycleTransportError
	LifecycleSendFailed
	LifecycleSubscriptionsDropped
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleStateChanged:
		return "state_changed"
	case LifecycleConnectFailed:
		return "connect_failed"
	case LifecycleTransportError:
		return "transport_error"
	case LifecycleSendFailed:
		return "send_failed"
	case LifecycleSubscriptionsDropped:
		return "subscriptions_dropped"
	default:
		return "unknown"
	}
}

// Lifecycle reports a connection-level change. Symbols is set for SubscriptionsDropped
// and Command for SendFailed.
type Lifecycle struct {
	Kind         LifecycleKind
	State        State
	ConnectionID string
	Err          error
	Symbols      []string
	Command      *Command
}

// Handler consumes everything the manager produces. Events, decode errors and most
// lifecycle notifications arrive on the receive goroutine in order; SendFailed arrives
// on the send goroutine. A panicking handler is recovered and does not affect others.
type Handler interface {
	HandleQuote(event.Quote)
	HandleTrade(event.Trade)
	HandleAggregate(event.Aggregate)
	HandleStatus(event.Status)
	HandleDecodeError(span []byte, err error)
	HandleLifecycle(Lifecycle)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Quote       func(event.Quote)
	Trade       func(event.Trade)
	Aggregate   func(event.Aggregate)
	Status      func(event.Status)
	DecodeError func(span []byte, err error)
	Lifecycle   func(Lifecycle)
}

func (f HandlerFuncs) HandleQuote(q event.Quote) {
	if f.Quote != nil {
		f.Quote(q)
	}
}

func (f HandlerFuncs) HandleTrade(t event.Trade) {
	if f.Trade != nil {
		f.Trade(t)
	}
}

func (f HandlerFuncs) HandleAggregate(a event.Aggregate) {
	if f.Aggregate != nil {
		f.Aggregate(a)
	}
}

func (f HandlerFuncs) HandleStatus(s event.Status) {
	if f.Status != nil {
		f.Status(s)
	}
}

func (f HandlerFuncs) HandleDecodeError(span []byte, err error) {
	if f.DecodeError != nil {
		f.DecodeError(span, err)
	}
}

func (f HandlerFuncs) HandleLifecycle(l Lifecycle) {
	if f.Lifecycle != nil {
		f.Lifecycle(l)
	}
}
