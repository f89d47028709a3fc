package stream

import "context"

// Transport carries whole messages in both directions
type Transport interface {
	// ReadFrame blocks for the next complete inbound message. The returned slice is
	// only valid until the next call.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame sends data as one message
	WriteFrame(ctx context.Context, data []byte) error
	// Close releases the connection; it is safe to call more than once
	Close() error
}

// Dialer opens transports
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// DialerFunc adapts a function to Dialer
type DialerFunc func(ctx context.Context, url string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Transport, error) {
	return f(ctx, url)
}
