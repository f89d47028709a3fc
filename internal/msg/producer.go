package msg

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Producer wraps a Kafka producer
type Producer struct {
	client       *kgo.Client
	logger       *zap.Logger
	produceCount int64
	errorCount   int64
	stop         chan struct{}
	closeOnce    sync.Once
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, clientID string, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	p := &Producer{
		client: client,
		logger: logger,
		stop:   make(chan struct{}),
	}

	logger.Info("producer initialized",
		zap.Strings("brokers", brokers),
		zap.String("client_id", clientID),
	)

	go p.logStats()

	return p, nil
}

// Ping checks that at least one seed broker is reachable
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// ProduceJSON produces a JSON message and waits for the broker ack
func (p *Producer) ProduceJSON(ctx context.Context, topic string, key string, v any) error {
	record, err := p.record(topic, key, v)
	if err != nil {
		return err
	}

	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := p.client.ProduceSync(produceCtx, record)
	if result.FirstErr() != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return fmt.Errorf("failed to produce message: %w", result.FirstErr())
	}

	atomic.AddInt64(&p.produceCount, 1)
	return nil
}

// ProduceJSONAsync buffers a JSON message; done (if non-nil) receives the delivery result
func (p *Producer) ProduceJSONAsync(ctx context.Context, topic string, key string, v any, done func(error)) error {
	record, err := p.record(topic, key, v)
	if err != nil {
		return err
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			atomic.AddInt64(&p.errorCount, 1)
			p.logger.Warn("async produce failed", zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		} else {
			atomic.AddInt64(&p.produceCount, 1)
		}
		if done != nil {
			done(err)
		}
	})
	return nil
}

// Flush waits for every buffered record to be acknowledged
func (p *Producer) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

func (p *Producer) record(topic, key string, v any) (*kgo.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		atomic.AddInt64(&p.errorCount, 1)
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}, nil
}

// Close closes the producer
func (p *Producer) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
		if p.client != nil {
			p.client.Close()
		}
	})
}

// logStats logs producer statistics periodically
func (p *Producer) logStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.logger.Info("producer stats",
				zap.Int64("produced", atomic.LoadInt64(&p.produceCount)),
				zap.Int64("errors", atomic.LoadInt64(&p.errorCount)),
			)
		}
	}
}
