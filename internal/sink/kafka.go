package sink

import (
	"context"

	"github.com/ismaiel54/polygon-stream/internal/event"
	"github.com/ismaiel54/polygon-stream/internal/msg"
)

// JSONProducer is the subset of msg.Producer used by KafkaPublisher
type JSONProducer interface {
	ProduceJSONAsync(ctx context.Context, topic string, key string, v any, done func(error)) error
}

// KafkaPublisher writes events to the market topics keyed by symbol, so each
// symbol stays ordered within its partition.
type KafkaPublisher struct {
	producer JSONProducer
}

// NewKafkaPublisher creates a publisher on top of producer
func NewKafkaPublisher(producer JSONProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (k *KafkaPublisher) Name() string { return "kafka" }

func (k *KafkaPublisher) PublishQuote(ctx context.Context, q event.Quote) error {
	return k.produce(ctx, msg.TopicQuotes, q.Symbol.String(), msg.FromQuote(q))
}

func (k *KafkaPublisher) PublishTrade(ctx context.Context, t event.Trade) error {
	return k.produce(ctx, msg.TopicTrades, t.Symbol.String(), msg.FromTrade(t))
}

func (k *KafkaPublisher) PublishAggregate(ctx context.Context, a event.Aggregate) error {
	return k.produce(ctx, msg.TopicAggregates, a.Symbol.String(), msg.FromAggregate(a))
}

// produce detaches the record from ctx cancellation: records still buffered when the
// worker stops must survive until the producer is flushed.
func (k *KafkaPublisher) produce(ctx context.Context, topic, key string, v any) error {
	return k.producer.ProduceJSONAsync(context.WithoutCancel(ctx), topic, key, v, nil)
}
