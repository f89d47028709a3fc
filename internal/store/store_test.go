package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "frames.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AppendAndList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.AppendFrames(ctx, nil))
	require.NoError(t, s.AppendFrames(ctx, []Frame{
		{ConnectionID: "c1", ReceivedUnixMillis: 10, Payload: []byte(`[{"ev":"status"}]`)},
		{ConnectionID: "c1", ReceivedUnixMillis: 11, Payload: []byte(`[{"ev":"Q"}]`)},
		{ConnectionID: "c2", ReceivedUnixMillis: 12, Payload: []byte(`[{"ev":"T"}]`)},
	}))

	n, err := s.CountFrames(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	frames, err := s.ListFrames(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "c1", frames[0].ConnectionID)
	assert.Equal(t, `[{"ev":"Q"}]`, string(frames[1].Payload))
	assert.Less(t, frames[0].ID, frames[1].ID)

	rest, err := s.ListFrames(ctx, frames[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(12), rest[0].ReceivedUnixMillis)
}

func TestStore_EachFrame(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	var in []Frame
	for i := 0; i < 7; i++ {
		in = append(in, Frame{ConnectionID: "c", ReceivedUnixMillis: int64(i), Payload: []byte("[]")})
	}
	require.NoError(t, s.AppendFrames(ctx, in))

	var seen []int64
	require.NoError(t, s.EachFrame(ctx, 0, 3, func(f Frame) error {
		seen = append(seen, f.ReceivedUnixMillis)
		return nil
	}))
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6}, seen)

	stop := errors.New("stop")
	err := s.EachFrame(ctx, 0, 3, func(f Frame) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendFrames(context.Background(), []Frame{{ConnectionID: "c", Payload: []byte("[]")}}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.CountFrames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRecorder_FlushesOnShutdown(t *testing.T) {
	s := openTemp(t)
	r := NewRecorder(s, 100, time.Hour, 16, zap.NewNop(), observability.NewMetrics())

	buf := []byte(`[{"ev":"Q","sym":"AAPL"}]`)
	r.RecordFrame("conn-1", time.UnixMilli(1000), buf)
	buf[2] = 'X' // recorder must own its copy
	r.RecordFrame("conn-1", time.UnixMilli(1001), []byte(`[]`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)

	frames, err := s.ListFrames(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, `[{"ev":"Q","sym":"AAPL"}]`, string(frames[0].Payload))
	assert.Equal(t, int64(1000), frames[0].ReceivedUnixMillis)
}

func TestRecorder_BatchesWhileRunning(t *testing.T) {
	s := openTemp(t)
	r := NewRecorder(s, 2, 10*time.Millisecond, 16, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for i := 0; i < 5; i++ {
		r.RecordFrame("c", time.Now(), []byte("[]"))
	}

	require.Eventually(t, func() bool {
		n, err := s.CountFrames(context.Background())
		return err == nil && n == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	s := openTemp(t)
	r := NewRecorder(s, 10, time.Hour, 1, zap.NewNop(), nil)

	r.RecordFrame("c", time.Now(), []byte("[1]"))
	r.RecordFrame("c", time.Now(), []byte("[2]"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = r.Run(ctx)

	n, err := s.CountFrames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
