package msg

import (
	"fmt"

	"github.com/ismaiel54/polygon-stream/internal/event"
)

// QuoteMsg represents a quote published to Kafka
type QuoteMsg struct {
	EventID       string  `json:"event_id"`
	Symbol        string  `json:"symbol"`
	BidExchangeID uint32  `json:"bid_exchange_id"`
	BidSize       uint32  `json:"bid_size"`
	BidPrice      float32 `json:"bid_price"`
	AskExchangeID uint32  `json:"ask_exchange_id"`
	AskSize       uint32  `json:"ask_size"`
	AskPrice      float32 `json:"ask_price"`
	Condition     *uint32 `json:"condition,omitempty"`
	Tape          uint32  `json:"tape"`
	Sequence      int64   `json:"sequence"`
	TsUnixMillis  int64   `json:"ts_unix_millis"`
}

// TradeMsg represents a trade published to Kafka
type TradeMsg struct {
	EventID      string   `json:"event_id"`
	Symbol       string   `json:"symbol"`
	TradeID      string   `json:"trade_id"`
	ExchangeID   uint32   `json:"exchange_id"`
	Price        float32  `json:"price"`
	Size         uint32   `json:"size"`
	Conditions   []uint32 `json:"conditions,omitempty"`
	Tape         uint32   `json:"tape"`
	Sequence     int64    `json:"sequence"`
	TsUnixMillis int64    `json:"ts_unix_millis"`
}

// AggregateMsg represents a per-second or per-minute bar published to Kafka
type AggregateMsg struct {
	EventID           string  `json:"event_id"`
	Kind              string  `json:"kind"` // "A" or "AM"
	Symbol            string  `json:"symbol"`
	Volume            uint64  `json:"volume"`
	AccumulatedVolume uint64  `json:"accumulated_volume"`
	Open              float32 `json:"open"`
	Close             float32 `json:"close"`
	High              float32 `json:"high"`
	Low               float32 `json:"low"`
	VWAP              float32 `json:"vwap"`
	StartUnixMillis   int64   `json:"start_unix_millis"`
	TsUnixMillis      int64   `json:"ts_unix_millis"`
	OTC               bool    `json:"otc,omitempty"`
}

// FromQuote converts a decoded quote. The event ID is derived from the vendor sequence
// so a replayed tape produces the same IDs.
func FromQuote(q event.Quote) QuoteMsg {
	m := QuoteMsg{
		EventID:       fmt.Sprintf("Q:%s:%d", q.Symbol, q.Sequence),
		Symbol:        q.Symbol.String(),
		BidExchangeID: q.BidExchangeID,
		BidSize:       q.BidSize,
		BidPrice:      q.BidPrice,
		AskExchangeID: q.AskExchangeID,
		AskSize:       q.AskSize,
		AskPrice:      q.AskPrice,
		Tape:          q.Tape,
		Sequence:      q.Sequence,
		TsUnixMillis:  q.Timestamp.UnixMilli(),
	}
	if q.HasCondition {
		c := uint32(q.Condition)
		m.Condition = &c
	}
	return m
}

// FromTrade converts a decoded trade
func FromTrade(t event.Trade) TradeMsg {
	return TradeMsg{
		EventID:      fmt.Sprintf("T:%s:%d", t.Symbol, t.Sequence),
		Symbol:       t.Symbol.String(),
		TradeID:      t.ID,
		ExchangeID:   t.ExchangeID,
		Price:        t.Price,
		Size:         t.Size,
		Conditions:   t.Conditions,
		Tape:         t.Tape,
		Sequence:     t.Sequence,
		TsUnixMillis: t.Timestamp.UnixMilli(),
	}
}

// FromAggregate converts a decoded aggregate. Bars are keyed by kind, symbol and window start.
func FromAggregate(a event.Aggregate) AggregateMsg {
	return AggregateMsg{
		EventID:           fmt.Sprintf("%s:%s:%d", a.Kind, a.Symbol, a.Start.UnixMilli()),
		Kind:              a.Kind.String(),
		Symbol:            a.Symbol.String(),
		Volume:            a.Volume,
		AccumulatedVolume: a.AccumulatedVolume,
		Open:              a.Open,
		Close:             a.Close,
		High:              a.High,
		Low:               a.Low,
		VWAP:              a.VWAP,
		StartUnixMillis:   a.Start.UnixMilli(),
		TsUnixMillis:      a.End.UnixMilli(),
		OTC:               a.OTC,
	}
}
