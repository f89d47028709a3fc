package event

import (
	"errors"
	"math"
	"math/bits"
	"time"

	"github.com/buger/jsonparser"
)

var errOutOfRange = errors.New("value out of range")

func parseUint32(ev, field string, value []byte, dt jsonparser.ValueType) (uint32, error) {
	if dt != jsonparser.Number {
		return 0, mismatch(ev, field, nil)
	}
	n, err := jsonparser.ParseInt(value)
	if err != nil {
		return 0, mismatch(ev, field, err)
	}
	if n < 0 || n > math.MaxUint32 {
		return 0, mismatch(ev, field, errOutOfRange)
	}
	return uint32(n), nil
}

func parseUint64(ev, field string, value []byte, dt jsonparser.ValueType) (uint64, error) {
	if dt != jsonparser.Number {
		return 0, mismatch(ev, field, nil)
	}
	n, err := jsonparser.ParseInt(value)
	if err != nil {
		return 0, mismatch(ev, field, err)
	}
	if n < 0 {
		return 0, mismatch(ev, field, errOutOfRange)
	}
	return uint64(n), nil
}

func parseInt64(ev, field string, value []byte, dt jsonparser.ValueType) (int64, error) {
	if dt != jsonparser.Number {
		return 0, mismatch(ev, field, nil)
	}
	n, err := jsonparser.ParseInt(value)
	if err != nil {
		return 0, mismatch(ev, field, err)
	}
	return n, nil
}

func parseFloat32(ev, field string, value []byte, dt jsonparser.ValueType) (float32, error) {
	if dt != jsonparser.Number {
		return 0, mismatch(ev, field, nil)
	}
	f, err := jsonparser.ParseFloat(value)
	if err != nil {
		return 0, mismatch(ev, field, err)
	}
	if math.IsInf(float64(float32(f)), 0) {
		return 0, mismatch(ev, field, errOutOfRange)
	}
	return float32(f), nil
}

// parseMillis converts unsigned epoch milliseconds into an absolute UTC time
func parseMillis(ev, field string, value []byte, dt jsonparser.ValueType) (time.Time, error) {
	ms, err := parseUint64(ev, field, value, dt)
	if err != nil {
		return time.Time{}, err
	}
	if ms > math.MaxInt64 {
		return time.Time{}, mismatch(ev, field, errOutOfRange)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

func parseString(ev, field string, value []byte, dt jsonparser.ValueType) (string, error) {
	if dt != jsonparser.String {
		return "", mismatch(ev, field, nil)
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return "", mismatch(ev, field, err)
	}
	return s, nil
}

func parseSymbol(ev, field string, value []byte, dt jsonparser.ValueType) (Symbol, error) {
	s, err := parseString(ev, field, value, dt)
	if err != nil {
		return "", err
	}
	sym, err := NewSymbol(s)
	if err != nil {
		return "", mismatch(ev, field, err)
	}
	return sym, nil
}

// firstMissing returns the name of the lowest required bit not present in seen
func firstMissing(seen, required uint16, names []string) string {
	idx := bits.TrailingZeros16(required &^ seen)
	if idx < len(names) {
		return names[idx]
	}
	return "?"
}
