package store

import (
	"context"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/observability"
	"go.uber.org/zap"
)

// Recorder batches frames from the receive goroutine into the store
type Recorder struct {
	store     *Store
	logger    *zap.Logger
	metrics   *observability.Metrics
	frames    chan Frame
	batchSize int
	interval  time.Duration
}

// NewRecorder creates a recorder buffering up to buffer frames
func NewRecorder(store *Store, batchSize int, interval time.Duration, buffer int, logger *zap.Logger, metrics *observability.Metrics) *Recorder {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &Recorder{
		store:     store,
		logger:    logger,
		metrics:   metrics,
		frames:    make(chan Frame, buffer),
		batchSize: batchSize,
		interval:  interval,
	}
}

// RecordFrame copies frame and queues it without blocking. It matches stream.Options.FrameObserver.
func (r *Recorder) RecordFrame(connectionID string, receivedAt time.Time, frame []byte) {
	f := Frame{
		ConnectionID:       connectionID,
		ReceivedUnixMillis: receivedAt.UnixMilli(),
		Payload:            append([]byte(nil), frame...),
	}
	select {
	case r.frames <- f:
	default:
		r.metrics.RecorderDropped()
	}
}

// Run writes batches until ctx is done, then flushes what is buffered
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]Frame, 0, r.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := r.store.AppendFrames(ctx, batch); err != nil {
			// dropped rather than retried so a stuck disk cannot grow memory
			r.logger.Error("failed to write frames", zap.Int("frames", len(batch)), zap.Error(err))
			for range batch {
				r.metrics.RecorderDropped()
			}
		} else {
			r.metrics.RecorderWritten(len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			final := context.WithoutCancel(ctx)
			for {
				select {
				case f := <-r.frames:
					batch = append(batch, f)
					if len(batch) >= r.batchSize {
						flush(final)
					}
				default:
					flush(final)
					return ctx.Err()
				}
			}
		case f := <-r.frames:
			batch = append(batch, f)
			if len(batch) >= r.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
