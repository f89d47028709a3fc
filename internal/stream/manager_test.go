package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ismaiel54/polygon-stream/internal/event"
	"github.com/ismaiel54/polygon-stream/internal/observability"
	"github.com/ismaiel54/polygon-stream/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func startManager(t *testing.T, dialer Dialer, handlers ...Handler) *Manager {
	t.Helper()
	m := NewManager(fastOptions(), dialer, zap.NewNop(), nil)
	for _, h := range handlers {
		m.AddHandler(h)
	}
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Close() })
	return m
}

func connected(t *testing.T, m *Manager, d *fakeDialer) *fakeTransport {
	t.Helper()
	ft := d.next(waitFor)
	require.NotNil(t, ft, "no connection established")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	return ft
}

func authenticated(t *testing.T, m *Manager, d *fakeDialer) *fakeTransport {
	t.Helper()
	ft := connected(t, m, d)
	require.NoError(t, m.Authenticate("secret"))
	ft.push(authSuccessFrame)
	require.Eventually(t, func() bool { return m.State() == StateAuthenticated }, waitFor, tick)
	return ft
}

func TestManager_StartAndCloseGuards(t *testing.T) {
	m := NewManager(fastOptions(), newFakeDialer(0), zap.NewNop(), nil)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyDisposed)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_CloseBeforeStart(t *testing.T) {
	m := NewManager(fastOptions(), newFakeDialer(0), zap.NewNop(), nil)
	assert.NoError(t, m.Close())
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyDisposed)
}

func TestManager_ParentContextCancel(t *testing.T) {
	d := newFakeDialer(0)
	m := NewManager(fastOptions(), d, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	connected(t, m, d)

	cancel()
	require.Eventually(t, func() bool { return m.State() == StateDisconnected }, waitFor, tick)
	assert.NoError(t, m.Close())
}

func TestManager_SubscribeRequiresAuthentication(t *testing.T) {
	d := newFakeDialer(0)
	m := startManager(t, d)

	_, err := m.Subscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrNotReady)

	ft := connected(t, m, d)
	_, err = m.Subscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrNotReady, "connected but not authenticated")

	require.NoError(t, m.Authenticate("secret"))
	assert.ErrorIs(t, m.Authenticate("secret"), ErrNotReady, "auth is accepted once per connection")
	assert.Equal(t, StateAuthenticating, m.State())

	_, err = m.Subscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrNotReady)

	ft.push(authSuccessFrame)
	require.Eventually(t, func() bool { return m.State() == StateAuthenticated }, waitFor, tick)

	queued, err := m.Subscribe("T.MSFT")
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = m.Subscribe("T.MSFT")
	require.NoError(t, err)
	assert.False(t, queued, "second request is a no-op")

	require.Eventually(t, func() bool { return len(ft.written()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{
		`{"action":"auth","params":"secret"}`,
		`{"action":"subscribe","params":"T.MSFT"}`,
	}, ft.written())

	assert.False(t, m.IsSubscribed("T.MSFT"))
	ft.push(subscribedFrame("T.MSFT"))
	require.Eventually(t, func() bool { return m.IsSubscribed("T.MSFT") }, waitFor, tick)
}

func TestManager_UnsolicitedAuthSuccessIsIgnored(t *testing.T) {
	d := newFakeDialer(0)
	c := &collector{}
	m := startManager(t, d, c)
	ft := connected(t, m, d)

	ft.push(authSuccessFrame)
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.statuses) == 1
	}, waitFor, tick)

	assert.Equal(t, StateConnected, m.State())
	_, err := m.Subscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, ft.written())

	require.NoError(t, m.Authenticate("secret"))
	ft.push(authSuccessFrame)
	require.Eventually(t, func() bool { return m.State() == StateAuthenticated }, waitFor, tick)

	_, err = m.Subscribe("T.MSFT")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(ft.written()) == 2 }, waitFor, tick)
	assert.Equal(t, `{"action":"auth","params":"secret"}`, ft.written()[0])
}

func TestManager_CommandsAfterClose(t *testing.T) {
	d := newFakeDialer(0)
	m := startManager(t, d)
	authenticated(t, m, d)
	require.NoError(t, m.Close())

	_, err := m.Subscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrAlreadyDisposed)
	_, err = m.Unsubscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrAlreadyDisposed)
	assert.ErrorIs(t, m.Authenticate("secret"), ErrAlreadyDisposed)
}

func TestManager_InvalidChannel(t *testing.T) {
	m := NewManager(fastOptions(), newFakeDialer(0), zap.NewNop(), nil)

	_, err := m.Subscribe("MSFT")
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = m.Subscribe("T.ABCDEFGHIJKLM")
	assert.ErrorIs(t, err, ErrInvalidChannel)
	assert.ErrorIs(t, err, event.ErrSymbolTooLong)
}

func TestManager_UnsubscribeRemovesOnConfirmation(t *testing.T) {
	d := newFakeDialer(0)
	m := startManager(t, d)
	ft := authenticated(t, m, d)

	queued, err := m.Unsubscribe("T.MSFT")
	require.NoError(t, err)
	assert.False(t, queued, "nothing to unsubscribe")

	_, err = m.Subscribe("T.MSFT")
	require.NoError(t, err)
	ft.push(subscribedFrame("T.MSFT"))
	require.Eventually(t, func() bool { return m.IsSubscribed("T.MSFT") }, waitFor, tick)

	queued, err = m.Unsubscribe("T.MSFT")
	require.NoError(t, err)
	assert.True(t, queued)
	require.Eventually(t, func() bool { return len(ft.written()) == 3 }, waitFor, tick)
	assert.Equal(t, `{"action":"unsubscribe","params":"T.MSFT"}`, ft.written()[2])

	ft.push(`[{"ev":"status","status":"success","message":"unsubscribed to: T.MSFT"}]`)
	require.Eventually(t, func() bool { return len(m.Subscriptions()) == 0 }, waitFor, tick)
}

func TestManager_AuthFailureReturnsToConnected(t *testing.T) {
	d := newFakeDialer(0)
	m := startManager(t, d)
	ft := connected(t, m, d)

	require.NoError(t, m.Authenticate("wrong"))
	ft.push(authFailedFrame)
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	require.NoError(t, m.Authenticate("right"))
	ft.push(authSuccessFrame)
	require.Eventually(t, func() bool { return m.State() == StateAuthenticated }, waitFor, tick)
}

func TestManager_ReconnectDropsSubscriptions(t *testing.T) {
	d := newFakeDialer(0)
	c := &collector{}
	m := startManager(t, d, c)

	first := authenticated(t, m, d)
	_, err := m.Subscribe("T.MSFT")
	require.NoError(t, err)
	first.push(subscribedFrame("T.MSFT"))
	require.Eventually(t, func() bool { return m.IsSubscribed("T.MSFT") }, waitFor, tick)
	firstID := m.ConnectionID()

	first.Close()

	second := d.next(waitFor)
	require.NotNil(t, second, "manager did not reconnect")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	assert.NotEqual(t, firstID, m.ConnectionID())
	assert.False(t, m.IsSubscribed("T.MSFT"), "subscriptions are not restored automatically")
	_, err = m.Subscribe("T.MSFT")
	assert.ErrorIs(t, err, ErrNotReady)

	dropped := c.lifecycleOf(LifecycleSubscriptionsDropped)
	require.Len(t, dropped, 1)
	assert.Equal(t, []string{"T.MSFT"}, dropped[0].Symbols)
	assert.Equal(t, firstID, dropped[0].ConnectionID)
	assert.NotEmpty(t, c.lifecycleOf(LifecycleTransportError))
}

func TestManager_ConnectFailureCooldown(t *testing.T) {
	// two full cycles of two attempts fail before a dial succeeds
	d := newFakeDialer(4)
	c := &collector{}
	m := startManager(t, d, c)

	ft := d.next(waitFor)
	require.NotNil(t, ft)
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	failures := c.lifecycleOf(LifecycleConnectFailed)
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0].Err, ErrConnectFailed)
	assert.Equal(t, 5, d.dialCount())
}

func TestManager_HandlerPanicIsIsolated(t *testing.T) {
	d := newFakeDialer(0)
	c := &collector{}
	metrics := observability.NewMetrics()

	m := NewManager(fastOptions(), d, zap.NewNop(), metrics)
	m.AddHandler(HandlerFuncs{Quote: func(event.Quote) { panic("boom") }})
	m.AddHandler(c)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	ft := connected(t, m, d)
	ft.push(quoteFrame)
	ft.push(quoteFrame)

	require.Eventually(t, func() bool { return c.quoteCount() == 2 }, waitFor, tick)
	assert.Equal(t, StateConnected, m.State())
}

func TestManager_DecodeErrorsReachHandlers(t *testing.T) {
	d := newFakeDialer(0)
	c := &collector{}
	m := startManager(t, d, c)
	ft := connected(t, m, d)

	ft.push(`[{"ev":"Q","sym":"MSFT","bogus":1},` + quoteFrame[1:])
	ft.push(`[{"ev":"Q"`)
	ft.push(quoteFrame)

	require.Eventually(t, func() bool { return c.quoteCount() == 2 }, waitFor, tick)
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.errs, 2)
	assert.ErrorIs(t, c.errs[0], event.ErrUnexpectedField)
}

func TestManager_FrameObserver(t *testing.T) {
	d := newFakeDialer(0)
	seen := make(chan string, 4)

	opts := fastOptions()
	opts.FrameObserver = func(connID string, _ time.Time, frame []byte) {
		seen <- connID + "|" + string(frame)
	}
	m := NewManager(opts, d, zap.NewNop(), nil)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	ft := connected(t, m, d)
	ft.push(quoteFrame)

	select {
	case got := <-seen:
		assert.Equal(t, m.ConnectionID()+"|"+quoteFrame, got)
	case <-time.After(waitFor):
		t.Fatal("observer not called")
	}
}

func TestDrain_DiscardsStaleCommands(t *testing.T) {
	m := NewManager(fastOptions(), newFakeDialer(0), zap.NewNop(), nil)
	ft := newFakeTransport()
	l := &link{t: ft, gen: 2, id: "conn-2"}

	m.tracker.Request("T.OLD")
	m.queue.Enqueue(Command{Action: ActionSubscribe, Params: "T.OLD", gen: 1})
	m.queue.Enqueue(Command{Action: ActionAuth, Params: "k", gen: 2})

	require.NoError(t, m.drain(context.Background(), l))
	assert.Equal(t, []string{`{"action":"auth","params":"k"}`}, ft.written())
	assert.Equal(t, subscription.Unrequested, m.tracker.State("T.OLD"))
}

func TestDrain_SendFailureIsNotRetried(t *testing.T) {
	c := &collector{}
	m := NewManager(fastOptions(), newFakeDialer(0), zap.NewNop(), nil)
	m.AddHandler(c)

	ft := newFakeTransport()
	ft.failWrites(errors.New("broken pipe"))
	l := &link{t: ft, gen: 1, id: "conn-1"}

	m.tracker.Request("T.MSFT")
	m.queue.Enqueue(Command{Action: ActionSubscribe, Params: "T.MSFT", gen: 1})

	require.Error(t, m.drain(context.Background(), l))
	assert.Zero(t, m.queue.Len(), "failed command is not requeued")
	assert.Equal(t, subscription.Unrequested, m.tracker.State("T.MSFT"), "caller may request again")

	failed := c.lifecycleOf(LifecycleSendFailed)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].Command)
	assert.Equal(t, ActionSubscribe, failed[0].Command.Action)
}

func TestManager_Bootstrap(t *testing.T) {
	d := newFakeDialer(0)
	m := NewManager(fastOptions(), d, zap.NewNop(), nil)
	NewBootstrap(m, "secret", []string{"T.MSFT", "Q.AAPL", "bad"}, zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	first := d.next(waitFor)
	require.NotNil(t, first)
	require.Eventually(t, func() bool { return len(first.written()) == 1 }, waitFor, tick)
	assert.Equal(t, `{"action":"auth","params":"secret"}`, first.written()[0])

	first.push(authSuccessFrame)
	require.Eventually(t, func() bool { return len(first.written()) == 3 }, waitFor, tick)
	assert.Equal(t, []string{
		`{"action":"auth","params":"secret"}`,
		`{"action":"subscribe","params":"T.MSFT"}`,
		`{"action":"subscribe","params":"Q.AAPL"}`,
	}, first.written())

	// after a reconnect the same sequence is replayed on the new connection
	first.Close()
	second := d.next(waitFor)
	require.NotNil(t, second)
	require.Eventually(t, func() bool { return len(second.written()) == 1 }, waitFor, tick)
	second.push(authSuccessFrame)
	require.Eventually(t, func() bool { return len(second.written()) == 3 }, waitFor, tick)
}

func TestManager_BootstrapDoesNotRetryRejectedKey(t *testing.T) {
	d := newFakeDialer(0)
	m := NewManager(fastOptions(), d, zap.NewNop(), nil)
	NewBootstrap(m, "wrong", nil, zap.NewNop())
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	ft := d.next(waitFor)
	require.NotNil(t, ft)
	require.Eventually(t, func() bool { return len(ft.written()) == 1 }, waitFor, tick)

	ft.push(authFailedFrame)
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, ft.written(), 1)
}
