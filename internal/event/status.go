package event

import (
	"strings"

	"github.com/buger/jsonparser"
)

const evStatus = "status"

// Substrings the vendor uses in its free-text status channel
const (
	markerConnected     = "Connected Successfully"
	markerAuthenticated = "authenticated"
	markerAuthFailed    = "authentication failed"
	markerSubscribed    = "subscribed to: "
	markerUnsubscribed  = "unsubscribed to: "
)

// DecodeStatus decodes a status object and classifies it by its message text.
// Keys other than ev, status and message are ignored.
func DecodeStatus(span []byte) (Status, error) {
	var st Status
	var haveMessage bool

	err := jsonparser.ObjectEach(span, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		var err error
		switch string(key) {
		case "status":
			st.Status, err = parseString(evStatus, "status", value, dt)
		case "message":
			st.Message, err = parseString(evStatus, "message", value, dt)
			haveMessage = err == nil
		}
		return err
	})
	if err != nil {
		return Status{}, malformed(evStatus, err)
	}
	if !haveMessage {
		return Status{}, missing(evStatus, "message")
	}

	st.Kind, st.Symbol = ClassifyStatus(st.Status, st.Message)
	return st, nil
}

// ClassifyStatus maps a status message to its kind. For subscription confirmations it also
// returns the symbol, taken as the text after the marker up to the next quote character.
func ClassifyStatus(status, message string) (StatusKind, string) {
	switch {
	case strings.Contains(message, markerConnected):
		return StatusConnected, ""
	// checked before "subscribed to: ", which it contains
	case strings.Contains(message, markerUnsubscribed):
		return StatusUnsubscribeSuccess, symbolAfter(message, markerUnsubscribed)
	case strings.Contains(message, markerSubscribed):
		return StatusSubscribeSuccess, symbolAfter(message, markerSubscribed)
	case status == "auth_failed" || strings.Contains(message, markerAuthFailed):
		return StatusAuthFailure, ""
	case strings.Contains(message, markerAuthenticated):
		return StatusAuthSuccess, ""
	default:
		return StatusUnknown, ""
	}
}

func symbolAfter(message, marker string) string {
	rest := message[strings.Index(message, marker)+len(marker):]
	if i := strings.IndexByte(rest, '"'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
