package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/event"
)

type fakeTransport struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	writes   []string
	writeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case b := <-f.in:
		return b, nil
	case <-f.closed:
		return nil, ErrTransport
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) WriteFrame(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, string(data))
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) push(frame string) {
	f.in <- []byte(frame)
}

func (f *fakeTransport) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

type fakeDialer struct {
	mu    sync.Mutex
	fails int
	dials int
	conns chan *fakeTransport
}

func newFakeDialer(fails int) *fakeDialer {
	return &fakeDialer{fails: fails, conns: make(chan *fakeTransport, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.dials <= d.fails {
		return nil, errors.New("connection refused")
	}
	t := newFakeTransport()
	d.conns <- t
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(timeout time.Duration) *fakeTransport {
	select {
	case t := <-d.conns:
		return t
	case <-time.After(timeout):
		return nil
	}
}

type collector struct {
	mu        sync.Mutex
	quotes    []event.Quote
	trades    []event.Trade
	statuses  []event.Status
	errs      []error
	lifecycle []Lifecycle
}

func (c *collector) HandleQuote(q event.Quote) {
	c.mu.Lock()
	c.quotes = append(c.quotes, q)
	c.mu.Unlock()
}

func (c *collector) HandleTrade(t event.Trade) {
	c.mu.Lock()
	c.trades = append(c.trades, t)
	c.mu.Unlock()
}

func (c *collector) HandleAggregate(event.Aggregate) {}

func (c *collector) HandleStatus(s event.Status) {
	c.mu.Lock()
	c.statuses = append(c.statuses, s)
	c.mu.Unlock()
}

func (c *collector) HandleDecodeError(_ []byte, err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *collector) HandleLifecycle(l Lifecycle) {
	c.mu.Lock()
	c.lifecycle = append(c.lifecycle, l)
	c.mu.Unlock()
}

func (c *collector) quoteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quotes)
}

func (c *collector) lifecycleOf(kind LifecycleKind) []Lifecycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Lifecycle
	for _, l := range c.lifecycle {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

func fastOptions() Options {
	return Options{
		URL:            "ws://test.invalid/stocks",
		MaxAttempts:    2,
		ConnectTimeout: time.Second,
		RetryInterval:  5 * time.Millisecond,
		Cooldown:       10 * time.Millisecond,
		CooldownMax:    10 * time.Millisecond,
		BatchInterval:  5 * time.Millisecond,
		IdleInterval:   5 * time.Millisecond,
		ErrorBackoff:   10 * time.Millisecond,
		StatsInterval:  time.Hour,
	}
}

const (
	authSuccessFrame = `[{"ev":"status","status":"auth_success","message":"authenticated"}]`
	authFailedFrame  = `[{"ev":"status","status":"auth_failed","message":"authentication failed"}]`
	quoteFrame       = `[{"ev":"Q","sym":"MSFT","bx":4,"bp":114.125,"bs":100,"ax":7,"ap":114.128,"as":160,"c":0,"t":1536036818784,"z":3}]`
)

func subscribedFrame(channel string) string {
	return `[{"ev":"status","status":"success","message":"subscribed to: ` + channel + `"}]`
}
