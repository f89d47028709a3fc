package chaos

import (
	"context"
	"fmt"

	"github.com/ismaiel54/polygon-stream/internal/stream"
)

// Dialer wraps a stream.Dialer so every transport it opens is subject to chaos
type Dialer struct {
	next  stream.Dialer
	chaos *Chaos
}

// WrapDialer returns next unchanged when chaos is disabled
func WrapDialer(next stream.Dialer, c *Chaos) stream.Dialer {
	if c == nil || !c.cfg.Enabled {
		return next
	}
	return &Dialer{next: next, chaos: c}
}

func (d *Dialer) Dial(ctx context.Context, url string) (stream.Transport, error) {
	if err := d.chaos.MaybeDelay(ctx, "dial"); err != nil {
		return nil, err
	}
	if err := d.chaos.MaybeFail("dial"); err != nil {
		return nil, err
	}
	t, err := d.next.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return &transport{next: t, chaos: d.chaos}, nil
}

type transport struct {
	next  stream.Transport
	chaos *Chaos
}

// ReadFrame drops whole frames and injects read errors, which the manager treats as a lost connection
func (t *transport) ReadFrame(ctx context.Context) ([]byte, error) {
	for {
		data, err := t.next.ReadFrame(ctx)
		if err != nil {
			return nil, err
		}
		if err := t.chaos.MaybeFail("read"); err != nil {
			return nil, fmt.Errorf("%w: %w", stream.ErrTransport, err)
		}
		if t.chaos.MaybeDrop("read") {
			continue
		}
		return data, nil
	}
}

func (t *transport) WriteFrame(ctx context.Context, data []byte) error {
	if err := t.chaos.MaybeDelay(ctx, "write"); err != nil {
		return err
	}
	return t.next.WriteFrame(ctx, data)
}

func (t *transport) Close() error {
	return t.next.Close()
}
