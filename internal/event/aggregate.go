package event

import "github.com/buger/jsonparser"

const evAggregate = "A"

const (
	aKind uint16 = 1 << iota
	aSym
	aVolume
	aOpen
	aClose
	aHigh
	aLow
	aStart
	aEnd
	aAccVolume
	aOfficialOpen
	aVWAP
	aDayVWAP
	aAvgSize
	aOTC

	aRequired = aKind | aSym | aVolume | aOpen | aClose | aHigh | aLow | aStart | aEnd
)

var aggregateFieldNames = []string{"ev", "sym", "v", "o", "c", "h", "l", "s", "e", "av", "op", "vw", "a", "z", "otc"}

// DecodeAggregate decodes one per-second ("A") or per-minute ("AM") bar
func DecodeAggregate(span []byte) (Aggregate, error) {
	var ag Aggregate
	var seen uint16

	err := jsonparser.ObjectEach(span, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		var err error
		switch string(key) {
		case "ev":
			ag.Kind, err = parseAggregateKind(value, dt)
			seen |= aKind
		case "sym":
			ag.Symbol, err = parseSymbol(evAggregate, "sym", value, dt)
			seen |= aSym
		case "v":
			ag.Volume, err = parseUint64(evAggregate, "v", value, dt)
			seen |= aVolume
		case "o":
			ag.Open, err = parseFloat32(evAggregate, "o", value, dt)
			seen |= aOpen
		case "c":
			ag.Close, err = parseFloat32(evAggregate, "c", value, dt)
			seen |= aClose
		case "h":
			ag.High, err = parseFloat32(evAggregate, "h", value, dt)
			seen |= aHigh
		case "l":
			ag.Low, err = parseFloat32(evAggregate, "l", value, dt)
			seen |= aLow
		case "s":
			ag.Start, err = parseMillis(evAggregate, "s", value, dt)
			seen |= aStart
		case "e":
			ag.End, err = parseMillis(evAggregate, "e", value, dt)
			seen |= aEnd
		case "av":
			ag.AccumulatedVolume, err = parseUint64(evAggregate, "av", value, dt)
			seen |= aAccVolume
		case "op":
			ag.OfficialOpen, err = parseFloat32(evAggregate, "op", value, dt)
			seen |= aOfficialOpen
		case "vw":
			ag.VWAP, err = parseFloat32(evAggregate, "vw", value, dt)
			seen |= aVWAP
		case "a":
			ag.DayVWAP, err = parseFloat32(evAggregate, "a", value, dt)
			seen |= aDayVWAP
		case "z":
			ag.AverageTradeSize, err = parseUint32(evAggregate, "z", value, dt)
			seen |= aAvgSize
		case "otc":
			if dt != jsonparser.Boolean {
				return mismatch(evAggregate, "otc", nil)
			}
			ag.OTC, err = jsonparser.ParseBoolean(value)
			seen |= aOTC
		default:
			return unexpected(evAggregate, key)
		}
		return err
	})
	if err != nil {
		return Aggregate{}, malformed(evAggregate, err)
	}
	if seen&aRequired != aRequired {
		return Aggregate{}, missing(evAggregate, firstMissing(seen, aRequired, aggregateFieldNames))
	}
	return ag, nil
}

func parseAggregateKind(value []byte, dt jsonparser.ValueType) (AggregateKind, error) {
	if dt != jsonparser.String {
		return 0, mismatch(evAggregate, "ev", nil)
	}
	switch string(value) {
	case "A":
		return AggregateSecond, nil
	case "AM":
		return AggregateMinute, nil
	default:
		return 0, &DecodeError{Event: evAggregate, Field: "ev", Kind: ErrUnknownEvent}
	}
}
