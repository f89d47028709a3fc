package frame

import (
	"bytes"

	"github.com/buger/jsonparser"
)

// discriminantOffset is where the event marker sits in the vendor's {"ev":"X layout
const discriminantOffset = 7

var evPrefix = []byte(`{"ev":"`)

// Discriminant returns the first byte of an object's "ev" value. The fixed offset is
// trusted only when the span starts with the exact vendor prefix; anything else is
// located by reading the object.
func Discriminant(span []byte) (byte, bool) {
	if len(span) > discriminantOffset && bytes.HasPrefix(span, evPrefix) {
		return span[discriminantOffset], true
	}

	value, dt, _, err := jsonparser.Get(span, "ev")
	if err != nil || dt != jsonparser.String || len(value) == 0 {
		return 0, false
	}
	return value[0], true
}
