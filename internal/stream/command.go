package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ismaiel54/polygon-stream/internal/event"
)

// Action is the verb of an outbound command
type Action string

const (
	ActionAuth        Action = "auth"
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
)

// Command is one outbound control message. It encodes to {"action":"...","params":"..."}.
type Command struct {
	Action Action `json:"action"`
	Params string `json:"params"`

	// gen is the connection the command was issued for
	gen uint64
}

// Encode returns the compact wire form of the command
func (c Command) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}
	return data, nil
}

// ValidateChannel checks a channel-prefixed symbol such as "T.MSFT" or "AM.*"
func ValidateChannel(channel string) error {
	prefix, sym, ok := strings.Cut(channel, ".")
	if !ok || prefix == "" {
		return fmt.Errorf("%w: %q has no channel prefix", ErrInvalidChannel, channel)
	}
	if sym == "*" {
		return nil
	}
	if _, err := event.NewSymbol(sym); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChannel, err)
	}
	return nil
}
