package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/event"
	"github.com/ismaiel54/polygon-stream/internal/observability"
	"github.com/ismaiel54/polygon-stream/internal/stream"
	"go.uber.org/zap"
)

// Publisher forwards decoded events to an external system
type Publisher interface {
	Name() string
	PublishQuote(ctx context.Context, q event.Quote) error
	PublishTrade(ctx context.Context, t event.Trade) error
	PublishAggregate(ctx context.Context, a event.Aggregate) error
}

// drainTimeout bounds how long Run keeps publishing queued items after shutdown
const drainTimeout = 5 * time.Second

// Queue decouples a Publisher from the receive goroutine. Events are dropped, never
// blocked on, when the queue is full.
type Queue struct {
	pub     Publisher
	items   chan func(context.Context) error
	logger  *zap.Logger
	metrics *observability.Metrics

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewQueue creates a queue holding at most capacity pending events
func NewQueue(pub Publisher, capacity int, logger *zap.Logger, metrics *observability.Metrics) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		pub:     pub,
		items:   make(chan func(context.Context) error, capacity),
		logger:  logger.With(zap.String("sink", pub.Name())),
		metrics: metrics,
	}
}

// Handler returns a stream.Handler that enqueues quotes, trades and aggregates
func (q *Queue) Handler() stream.Handler {
	return stream.HandlerFuncs{
		Quote: func(ev event.Quote) {
			q.offer(func(ctx context.Context) error { return q.pub.PublishQuote(ctx, ev) })
		},
		Trade: func(ev event.Trade) {
			q.offer(func(ctx context.Context) error { return q.pub.PublishTrade(ctx, ev) })
		},
		Aggregate: func(ev event.Aggregate) {
			q.offer(func(ctx context.Context) error { return q.pub.PublishAggregate(ctx, ev) })
		},
	}
}

func (q *Queue) offer(fn func(context.Context) error) {
	select {
	case q.items <- fn:
	default:
		q.dropped.Add(1)
		q.metrics.SinkDropped(q.pub.Name())
	}
}

// Run publishes queued events until ctx is done, then drains what is left
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case fn := <-q.items:
			q.publish(ctx, fn)
		}
	}
}

func (q *Queue) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, drainTimeout)
	defer cancel()

	for {
		select {
		case fn := <-q.items:
			if ctx.Err() != nil {
				q.dropped.Add(1)
				q.metrics.SinkDropped(q.pub.Name())
				continue
			}
			q.publish(ctx, fn)
		default:
			q.logger.Info("sink drained",
				zap.Int64("published", q.published.Load()),
				zap.Int64("failed", q.failed.Load()),
				zap.Int64("dropped", q.dropped.Load()),
			)
			return
		}
	}
}

func (q *Queue) publish(ctx context.Context, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		q.failed.Add(1)
		q.logger.Warn("publish failed", zap.Error(err))
		return
	}
	q.published.Add(1)
}

// Len returns the number of pending events
func (q *Queue) Len() int {
	return len(q.items)
}

// Stats returns published, failed and dropped counts
func (q *Queue) Stats() (published, failed, dropped int64) {
	return q.published.Load(), q.failed.Load(), q.dropped.Load()
}
