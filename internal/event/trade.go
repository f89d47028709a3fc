package event

import "github.com/buger/jsonparser"

const evTrade = "T"

const (
	tSym uint16 = 1 << iota
	tID
	tExchange
	tPrice
	tSize
	tTimestamp
	tTape
	tConditions
	tSequence

	tRequired = tSym | tID | tExchange | tPrice | tSize | tTimestamp | tTape
)

var tradeFieldNames = []string{"sym", "i", "x", "p", "s", "t", "z", "c", "q"}

// DecodeTrade decodes one trade object. The conditions array is optional and may be empty.
func DecodeTrade(span []byte) (Trade, error) {
	var tr Trade
	var seen uint16

	err := jsonparser.ObjectEach(span, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		var err error
		switch string(key) {
		case "ev":
			if dt != jsonparser.String {
				return mismatch(evTrade, "ev", nil)
			}
		case "sym":
			tr.Symbol, err = parseSymbol(evTrade, "sym", value, dt)
			seen |= tSym
		case "i":
			tr.ID, err = parseTradeID(value, dt)
			seen |= tID
		case "x":
			tr.ExchangeID, err = parseUint32(evTrade, "x", value, dt)
			seen |= tExchange
		case "p":
			tr.Price, err = parseFloat32(evTrade, "p", value, dt)
			seen |= tPrice
		case "s":
			tr.Size, err = parseUint32(evTrade, "s", value, dt)
			seen |= tSize
		case "t":
			tr.Timestamp, err = parseMillis(evTrade, "t", value, dt)
			seen |= tTimestamp
		case "z":
			tr.Tape, err = parseUint32(evTrade, "z", value, dt)
			seen |= tTape
		case "c":
			tr.Conditions, err = parseConditions(value, dt)
			seen |= tConditions
		case "q":
			tr.Sequence, err = parseInt64(evTrade, "q", value, dt)
			seen |= tSequence
		default:
			return unexpected(evTrade, key)
		}
		return err
	})
	if err != nil {
		return Trade{}, malformed(evTrade, err)
	}
	if seen&tRequired != tRequired {
		return Trade{}, missing(evTrade, firstMissing(seen, tRequired, tradeFieldNames))
	}
	return tr, nil
}

// parseTradeID accepts the id as a string, or as a bare number from older feeds
func parseTradeID(value []byte, dt jsonparser.ValueType) (string, error) {
	switch dt {
	case jsonparser.String:
		return parseString(evTrade, "i", value, dt)
	case jsonparser.Number:
		return string(value), nil
	default:
		return "", mismatch(evTrade, "i", nil)
	}
}

func parseConditions(value []byte, dt jsonparser.ValueType) ([]uint32, error) {
	if dt == jsonparser.Null {
		return nil, nil
	}
	if dt != jsonparser.Array {
		return nil, mismatch(evTrade, "c", nil)
	}

	var conds []uint32
	var firstErr error
	_, err := jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, _ int, _ error) {
		if firstErr != nil {
			return
		}
		c, err := parseUint32(evTrade, "c", v, vt)
		if err != nil {
			firstErr = err
			return
		}
		conds = append(conds, c)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if err != nil {
		return nil, mismatch(evTrade, "c", err)
	}
	return conds, nil
}
