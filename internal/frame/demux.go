package frame

import (
	"github.com/ismaiel54/polygon-stream/internal/event"
)

// Sink receives the results of demultiplexing a frame
type Sink interface {
	OnQuote(event.Quote)
	OnTrade(event.Trade)
	OnAggregate(event.Aggregate)
	OnStatus(event.Status)
	OnDecodeError(span []byte, err error)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Quote       func(event.Quote)
	Trade       func(event.Trade)
	Aggregate   func(event.Aggregate)
	Status      func(event.Status)
	DecodeError func(span []byte, err error)
}

func (f SinkFuncs) OnQuote(q event.Quote) {
	if f.Quote != nil {
		f.Quote(q)
	}
}

func (f SinkFuncs) OnTrade(t event.Trade) {
	if f.Trade != nil {
		f.Trade(t)
	}
}

func (f SinkFuncs) OnAggregate(a event.Aggregate) {
	if f.Aggregate != nil {
		f.Aggregate(a)
	}
}

func (f SinkFuncs) OnStatus(s event.Status) {
	if f.Status != nil {
		f.Status(s)
	}
}

func (f SinkFuncs) OnDecodeError(span []byte, err error) {
	if f.DecodeError != nil {
		f.DecodeError(span, err)
	}
}

// Demultiplexer splits frames into objects and routes each one to its decoder.
// It reuses one scanner, so a Demultiplexer belongs to a single goroutine.
type Demultiplexer struct {
	scanner Scanner
}

// NewDemultiplexer creates a new demultiplexer
func NewDemultiplexer() *Demultiplexer {
	return &Demultiplexer{}
}

// Process dispatches every object in frame to sink in scan order. A bad object is reported
// through OnDecodeError and processing continues with the next one. If the frame itself is
// structurally broken the objects before the break are still delivered, the break is reported
// through OnDecodeError with the unscanned tail, and the MalformedFrameError is returned.
func (d *Demultiplexer) Process(frame []byte, sink Sink) error {
	d.scanner.Reset(frame)

	for d.scanner.Next() {
		dispatch(d.scanner.Span(), sink)
	}

	if err := d.scanner.Err(); err != nil {
		sink.OnDecodeError(d.scanner.Remaining(), err)
		return err
	}
	return nil
}

func dispatch(span []byte, sink Sink) {
	marker, ok := Discriminant(span)
	if !ok {
		sink.OnDecodeError(span, &event.DecodeError{Field: "ev", Kind: event.ErrUnknownEvent})
		return
	}

	switch marker {
	case 'Q':
		q, err := event.DecodeQuote(span)
		if err != nil {
			sink.OnDecodeError(span, err)
			return
		}
		sink.OnQuote(q)
	case 'T':
		t, err := event.DecodeTrade(span)
		if err != nil {
			sink.OnDecodeError(span, err)
			return
		}
		sink.OnTrade(t)
	case 'A':
		a, err := event.DecodeAggregate(span)
		if err != nil {
			sink.OnDecodeError(span, err)
			return
		}
		sink.OnAggregate(a)
	case 's':
		s, err := event.DecodeStatus(span)
		if err != nil {
			sink.OnDecodeError(span, err)
			return
		}
		sink.OnStatus(s)
	default:
		sink.OnDecodeError(span, &event.DecodeError{Event: string(marker), Field: "ev", Kind: event.ErrUnknownEvent})
	}
}
