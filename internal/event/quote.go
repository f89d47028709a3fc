package event

import "github.com/buger/jsonparser"

const evQuote = "Q"

const (
	qSym uint16 = 1 << iota
	qBidExchange
	qAskExchange
	qBidPrice
	qAskPrice
	qBidSize
	qAskSize
	qTimestamp
	qTape
	qCondition
	qSequence

	qRequired = qSym | qBidExchange | qAskExchange | qBidPrice | qAskPrice | qBidSize | qAskSize | qTimestamp | qTape
)

var quoteFieldNames = []string{"sym", "bx", "ax", "bp", "ap", "bs", "as", "t", "z", "c", "q"}

// DecodeQuote decodes one quote object. Field order is irrelevant; an unknown key fails the whole object.
func DecodeQuote(span []byte) (Quote, error) {
	var q Quote
	var seen uint16

	err := jsonparser.ObjectEach(span, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		var err error
		switch string(key) {
		case "ev":
			if dt != jsonparser.String {
				return mismatch(evQuote, "ev", nil)
			}
		case "sym":
			q.Symbol, err = parseSymbol(evQuote, "sym", value, dt)
			seen |= qSym
		case "bx":
			q.BidExchangeID, err = parseUint32(evQuote, "bx", value, dt)
			seen |= qBidExchange
		case "ax":
			q.AskExchangeID, err = parseUint32(evQuote, "ax", value, dt)
			seen |= qAskExchange
		case "bp":
			q.BidPrice, err = parseFloat32(evQuote, "bp", value, dt)
			seen |= qBidPrice
		case "ap":
			q.AskPrice, err = parseFloat32(evQuote, "ap", value, dt)
			seen |= qAskPrice
		case "bs":
			q.BidSize, err = parseUint32(evQuote, "bs", value, dt)
			seen |= qBidSize
		case "as":
			q.AskSize, err = parseUint32(evQuote, "as", value, dt)
			seen |= qAskSize
		case "t":
			q.Timestamp, err = parseMillis(evQuote, "t", value, dt)
			seen |= qTimestamp
		case "z":
			q.Tape, err = parseUint32(evQuote, "z", value, dt)
			seen |= qTape
		case "c":
			var c uint32
			c, err = parseUint32(evQuote, "c", value, dt)
			q.Condition = QuoteCondition(c)
			q.HasCondition = err == nil
			seen |= qCondition
		case "q":
			q.Sequence, err = parseInt64(evQuote, "q", value, dt)
			seen |= qSequence
		default:
			return unexpected(evQuote, key)
		}
		return err
	})
	if err != nil {
		return Quote{}, malformed(evQuote, err)
	}
	if seen&qRequired != qRequired {
		return Quote{}, missing(evQuote, firstMissing(seen, qRequired, quoteFieldNames))
	}
	return q, nil
}
