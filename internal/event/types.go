package event

import "time"

// Quote is a top-of-book update ("ev":"Q")
type Quote struct {
	Symbol        Symbol
	BidExchangeID uint32
	BidSize       uint32
	BidPrice      float32
	AskExchangeID uint32
	AskSize       uint32
	AskPrice      float32
	Condition     QuoteCondition
	HasCondition  bool
	Tape          uint32
	Sequence      int64
	Timestamp     time.Time
}

// Trade is a single execution ("ev":"T")
type Trade struct {
	Symbol     Symbol
	ID         string
	ExchangeID uint32
	Price      float32
	Size       uint32
	Conditions []uint32
	Tape       uint32
	Sequence   int64
	Timestamp  time.Time
}

// AggregateKind distinguishes per-second and per-minute bars
type AggregateKind uint8

const (
	AggregateSecond AggregateKind = iota + 1
	AggregateMinute
)

func (k AggregateKind) String() string {
	switch k {
	case AggregateSecond:
		return "A"
	case AggregateMinute:
		return "AM"
	default:
		return "unknown"
	}
}

// Aggregate is an OHLCV bar ("ev":"A" or "ev":"AM")
type Aggregate struct {
	Kind              AggregateKind
	Symbol            Symbol
	Volume            uint64
	AccumulatedVolume uint64
	OfficialOpen      float32
	VWAP              float32
	Open              float32
	Close             float32
	High              float32
	Low               float32
	DayVWAP           float32
	AverageTradeSize  uint32
	Start             time.Time
	End               time.Time
	OTC               bool
}

// StatusKind classifies a vendor status message
type StatusKind uint8

const (
	StatusUnknown StatusKind = iota
	StatusConnected
	StatusAuthSuccess
	StatusAuthFailure
	StatusSubscribeSuccess
	StatusUnsubscribeSuccess
)

func (k StatusKind) String() string {
	switch k {
	case StatusConnected:
		return "connected"
	case StatusAuthSuccess:
		return "auth_success"
	case StatusAuthFailure:
		return "auth_failure"
	case StatusSubscribeSuccess:
		return "subscribe_success"
	case StatusUnsubscribeSuccess:
		return "unsubscribe_success"
	default:
		return "unknown"
	}
}

// Status is a control message ("ev":"status").
// Symbol is set only for subscribe and unsubscribe confirmations.
type Status struct {
	Kind    StatusKind
	Status  string
	Message string
	Symbol  string
}
