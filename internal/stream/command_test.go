package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandEncode(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Action: ActionAuth, Params: "abc123"}, `{"action":"auth","params":"abc123"}`},
		{Command{Action: ActionSubscribe, Params: "T.MSFT"}, `{"action":"subscribe","params":"T.MSFT"}`},
		{Command{Action: ActionUnsubscribe, Params: "Q.AAPL", gen: 7}, `{"action":"unsubscribe","params":"Q.AAPL"}`},
	}

	for _, tt := range tests {
		data, err := tt.cmd.Encode()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(data))
	}
}

func TestValidateChannel(t *testing.T) {
	for _, ok := range []string{"T.MSFT", "Q.AAPL", "A.AAPL", "AM.*", "T.BRK.A"} {
		assert.NoError(t, ValidateChannel(ok), ok)
	}
	for _, bad := range []string{"", "MSFT", ".MSFT", "T.", "T.TOOLONGSYMBOL"} {
		assert.ErrorIs(t, ValidateChannel(bad), ErrInvalidChannel, bad)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "unknown", State(42).String())
}
