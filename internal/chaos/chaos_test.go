package chaos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("drop-pct=30,delay=50-250,read-error-pct=5")
	require.NoError(t, err)
	assert.Equal(t, Profile{DropPct: 30, ReadErrorPct: 5, DelayMin: 50, DelayMax: 250}, p)

	p, err = ParseProfile("delay=10")
	require.NoError(t, err)
	assert.Equal(t, 10, p.DelayMin)
	assert.Equal(t, 10, p.DelayMax)

	for _, bad := range []string{"drop-pct=x", "drop-pct=101", "delay=9-1", "jitter=1", "drop-pct"} {
		_, err := ParseProfile(bad)
		assert.Error(t, err, bad)
	}
}

func TestChaos_Deterministic(t *testing.T) {
	cfg := Config{Enabled: true, DropPct: 40, Seed: 42}
	a := New(cfg, zap.NewNop())
	b := New(cfg, zap.NewNop())

	var seqA, seqB []bool
	for i := 0; i < 200; i++ {
		seqA = append(seqA, a.MaybeDrop("read"))
		seqB = append(seqB, b.MaybeDrop("read"))
	}
	assert.Equal(t, seqA, seqB)
	assert.Contains(t, seqA, true)
	assert.Contains(t, seqA, false)
}

func TestChaos_Disabled(t *testing.T) {
	c := New(Config{DropPct: 100, ReadErrorPct: 100, DelayMsMin: 1000, DelayMsMax: 1000}, zap.NewNop())
	assert.False(t, c.MaybeDrop("read"))
	assert.NoError(t, c.MaybeFail("read"))
	assert.NoError(t, c.MaybeDelay(context.Background(), "write"))
}

func TestChaos_ProfileOverrides(t *testing.T) {
	c := New(Config{Enabled: true, Profile: "drop-pct=100"}, zap.NewNop())
	assert.True(t, c.MaybeDrop("read"))
}

func TestChaos_DelayHonoursContext(t *testing.T) {
	c := New(Config{Enabled: true, DelayMsMin: 5000, DelayMsMax: 5000}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.MaybeDelay(ctx, "write"), context.DeadlineExceeded)
}

type staticTransport struct {
	frames [][]byte
	closed bool
}

func (s *staticTransport) ReadFrame(context.Context) ([]byte, error) {
	if len(s.frames) == 0 {
		return nil, errors.New("eof")
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *staticTransport) WriteFrame(context.Context, []byte) error { return nil }

func (s *staticTransport) Close() error {
	s.closed = true
	return nil
}

func TestWrapDialer(t *testing.T) {
	inner := &staticTransport{frames: [][]byte{[]byte("a"), []byte("b")}}
	base := stream.DialerFunc(func(context.Context, string) (stream.Transport, error) { return inner, nil })

	_, wrapped := WrapDialer(base, New(Config{}, zap.NewNop())).(*Dialer)
	assert.False(t, wrapped, "disabled chaos is a no-op")

	d := WrapDialer(base, New(Config{Enabled: true, ReadErrorPct: 100}, zap.NewNop()))
	tr, err := d.Dial(context.Background(), "ws://x")
	// dial itself is subject to the same error rate
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInjected)
	assert.Nil(t, tr)

	d = WrapDialer(base, New(Config{Enabled: true, DropPct: 100}, zap.NewNop()))
	tr, err = d.Dial(context.Background(), "ws://x")
	require.NoError(t, err)
	_, err = tr.ReadFrame(context.Background())
	assert.Error(t, err, "every frame dropped until the inner transport ends")
	require.NoError(t, tr.Close())
	assert.True(t, inner.closed)
}
