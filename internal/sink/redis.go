package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ismaiel54/polygon-stream/internal/event"
	"github.com/ismaiel54/polygon-stream/internal/msg"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher keeps the latest quote, trade and bar per symbol in hashes and
// fans each event out on a per-symbol pub/sub channel.
//
//	quote:<sym>  trade:<sym>  agg:<sym>      hashes
//	quotes.<sym> trades.<sym> aggs.<sym>     channels
type RedisPublisher struct {
	client redis.Cmdable
}

// NewRedisPublisher creates a publisher using client
func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (r *RedisPublisher) Name() string { return "redis" }

func (r *RedisPublisher) PublishQuote(ctx context.Context, q event.Quote) error {
	sym := q.Symbol.String()
	return r.write(ctx, "quote:"+sym, "quotes."+sym, map[string]any{
		"bid_price": q.BidPrice,
		"bid_size":  q.BidSize,
		"ask_price": q.AskPrice,
		"ask_size":  q.AskSize,
		"sequence":  q.Sequence,
		"ts":        q.Timestamp.UnixMilli(),
	}, msg.FromQuote(q))
}

func (r *RedisPublisher) PublishTrade(ctx context.Context, t event.Trade) error {
	sym := t.Symbol.String()
	return r.write(ctx, "trade:"+sym, "trades."+sym, map[string]any{
		"id":       t.ID,
		"price":    t.Price,
		"size":     t.Size,
		"sequence": t.Sequence,
		"ts":       t.Timestamp.UnixMilli(),
	}, msg.FromTrade(t))
}

func (r *RedisPublisher) PublishAggregate(ctx context.Context, a event.Aggregate) error {
	sym := a.Symbol.String()
	return r.write(ctx, "agg:"+sym, "aggs."+sym, map[string]any{
		"kind":   a.Kind.String(),
		"open":   a.Open,
		"close":  a.Close,
		"high":   a.High,
		"low":    a.Low,
		"volume": a.Volume,
		"start":  a.Start.UnixMilli(),
		"end":    a.End.UnixMilli(),
	}, msg.FromAggregate(a))
}

func (r *RedisPublisher) write(ctx context.Context, key, channel string, fields map[string]any, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Publish(ctx, channel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
