package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/ismaiel54/polygon-stream/internal/event"
	"github.com/ismaiel54/polygon-stream/internal/frame"
	"github.com/ismaiel54/polygon-stream/internal/observability"
	"github.com/ismaiel54/polygon-stream/internal/subscription"
	"go.uber.org/zap"
)

// link is one established connection
type link struct {
	t   Transport
	gen uint64
	id  string
}

// Manager owns the connection to the vendor. One goroutine connects and receives,
// another drains the command queue; neither waits on the other.
type Manager struct {
	opts    Options
	dialer  Dialer
	logger  *zap.Logger
	metrics *observability.Metrics

	queue   *CommandQueue
	tracker *subscription.Tracker
	demux   *frame.Demultiplexer

	state atomic.Int32
	link  atomic.Pointer[link]
	gen   atomic.Uint64

	handlersMu sync.RWMutex
	handlers   []Handler

	lifeMu   sync.Mutex
	started  bool
	disposed bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closeOne sync.Once

	frameCount    int64
	eventCount    int64
	decodeErrors  int64
	commandsSent  int64
	connectsCount int64
}

// NewManager creates a manager. metrics may be nil.
func NewManager(opts Options, dialer Dialer, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		opts:    opts.withDefaults(),
		dialer:  dialer,
		logger:  logger,
		metrics: metrics,
		queue:   NewCommandQueue(),
		tracker: subscription.NewTracker(),
		demux:   frame.NewDemultiplexer(),
	}
}

// AddHandler registers h for every subsequent event
func (m *Manager) AddHandler(h Handler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()

	next := make([]Handler, len(m.handlers), len(m.handlers)+1)
	copy(next, m.handlers)
	m.handlers = append(next, h)
}

// Start launches the connect/receive and send loops
func (m *Manager) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.disposed {
		return ErrAlreadyDisposed
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.logger.Info("stream manager starting",
		zap.String("url", m.opts.URL),
		zap.Int("max_attempts", m.opts.MaxAttempts),
		zap.Duration("connect_timeout", m.opts.ConnectTimeout),
	)

	m.wg.Add(3)
	go m.connectLoop(runCtx)
	go m.sendLoop(runCtx)
	go m.logStats(runCtx)
	return nil
}

// Close stops both loops and closes the transport. It is safe to call more than once,
// and before Start.
func (m *Manager) Close() error {
	m.closeOne.Do(func() {
		m.lifeMu.Lock()
		m.disposed = true
		cancel := m.cancel
		m.lifeMu.Unlock()

		if cancel == nil {
			return
		}
		cancel()
		if l := m.link.Load(); l != nil {
			_ = l.t.Close()
		}
		m.wg.Wait()
		m.logger.Info("stream manager stopped")
	})
	return nil
}

// State returns the current connection state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// ConnectionID identifies the live connection, or is empty while disconnected
func (m *Manager) ConnectionID() string {
	if l := m.link.Load(); l != nil {
		return l.id
	}
	return ""
}

// IsSubscribed reports whether the server confirmed channel on the current connection
func (m *Manager) IsSubscribed(channel string) bool {
	return m.tracker.IsSubscribed(channel)
}

// Subscriptions returns a snapshot of tracked channels
func (m *Manager) Subscriptions() []subscription.Entry {
	return m.tracker.Entries()
}

// Authenticate queues the auth command. It is accepted only while Connected, which makes
// it the first command of the connection. The move to Authenticating is not reported as a
// lifecycle notification; the server's answer is.
func (m *Manager) Authenticate(apiKey string) error {
	if m.isDisposed() {
		return ErrAlreadyDisposed
	}
	l := m.link.Load()
	if l == nil || !m.state.CompareAndSwap(int32(StateConnected), int32(StateAuthenticating)) {
		return fmt.Errorf("%w: authenticate in state %s", ErrNotReady, m.State())
	}
	if m.link.Load() != l {
		// the connection was replaced between the two checks
		m.state.CompareAndSwap(int32(StateAuthenticating), int32(StateConnected))
		return fmt.Errorf("%w: connection changed", ErrNotReady)
	}
	m.metrics.SetConnectionState(int(StateAuthenticating))
	m.queue.Enqueue(Command{Action: ActionAuth, Params: apiKey, gen: l.gen})
	return nil
}

// Subscribe queues a subscribe command for a channel-prefixed symbol such as "T.MSFT".
// It returns false without queueing when the channel is already requested or confirmed,
// ErrNotReady unless the connection is authenticated, and ErrAlreadyDisposed after Close.
func (m *Manager) Subscribe(channel string) (bool, error) {
	if err := ValidateChannel(channel); err != nil {
		return false, err
	}
	if m.isDisposed() {
		return false, ErrAlreadyDisposed
	}
	l := m.link.Load()
	if l == nil || m.State() != StateAuthenticated {
		return false, fmt.Errorf("%w: subscribe in state %s", ErrNotReady, m.State())
	}
	if !m.tracker.Request(channel) {
		return false, nil
	}
	m.queue.Enqueue(Command{Action: ActionSubscribe, Params: channel, gen: l.gen})
	return true, nil
}

// Unsubscribe queues an unsubscribe command for a tracked channel. The entry is removed
// when the server confirms.
func (m *Manager) Unsubscribe(channel string) (bool, error) {
	if err := ValidateChannel(channel); err != nil {
		return false, err
	}
	if m.isDisposed() {
		return false, ErrAlreadyDisposed
	}
	l := m.link.Load()
	if l == nil || m.State() != StateAuthenticated {
		return false, fmt.Errorf("%w: unsubscribe in state %s", ErrNotReady, m.State())
	}
	if m.tracker.State(channel) == subscription.Unrequested {
		return false, nil
	}
	m.queue.Enqueue(Command{Action: ActionUnsubscribe, Params: channel, gen: l.gen})
	return true, nil
}

func (m *Manager) isDisposed() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.disposed
}

// connectLoop connects, receives until the connection fails, and starts over until cancelled
func (m *Manager) connectLoop(ctx context.Context) {
	defer m.wg.Done()
	defer m.setState(StateDisconnected)

	cooldown := backoff.NewExponentialBackOff()
	cooldown.InitialInterval = m.opts.Cooldown
	cooldown.MaxInterval = m.opts.CooldownMax
	cooldown.RandomizationFactor = 0
	cooldown.Reset()

	for ctx.Err() == nil {
		m.setState(StateConnecting)
		t, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.metrics.ConnectFailure()
			m.logger.Warn("connect cycle failed", zap.String("url", m.opts.URL), zap.Error(err))
			m.setState(StateDisconnected)
			m.emitLifecycle(Lifecycle{Kind: LifecycleConnectFailed, State: StateDisconnected, Err: err})
			if !sleepCtx(ctx, cooldown.NextBackOff()) {
				return
			}
			continue
		}
		cooldown.Reset()

		l := &link{t: t, gen: m.gen.Add(1), id: uuid.NewString()}
		if atomic.AddInt64(&m.connectsCount, 1) > 1 {
			m.metrics.Reconnect()
		}
		m.link.Store(l)
		m.logger.Info("connected", zap.String("connection_id", l.id), zap.String("url", m.opts.URL))
		m.setState(StateConnected)

		err = m.receive(ctx, l)
		m.teardown(l)
		if ctx.Err() != nil {
			return
		}

		m.logger.Warn("connection lost", zap.String("connection_id", l.id), zap.Error(err))
		m.emitLifecycle(Lifecycle{Kind: LifecycleTransportError, State: StateDisconnected, ConnectionID: l.id, Err: err})
		if !sleepCtx(ctx, cooldown.NextBackOff()) {
			return
		}
	}
}

// connect dials with a bounded number of attempts inside an overall timeout
func (m *Manager) connect(ctx context.Context) (Transport, error) {
	connectCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	attempt := 0
	t, err := backoff.Retry(connectCtx, func() (Transport, error) {
		attempt++
		m.logger.Debug("dialing", zap.String("url", m.opts.URL), zap.Int("attempt", attempt))
		return m.dialer.Dial(connectCtx, m.opts.URL)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.opts.RetryInterval)),
		backoff.WithMaxTries(uint(m.opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(m.opts.ConnectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.logger.Debug("dial failed, retrying", zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectFailed, attempt, err)
	}
	return t, nil
}

// receive feeds frames to the demultiplexer until the transport fails
func (m *Manager) receive(ctx context.Context, l *link) error {
	stop := context.AfterFunc(ctx, func() { _ = l.t.Close() })
	defer stop()

	sink := &dispatcher{m: m}
	for {
		data, err := l.t.ReadFrame(ctx)
		if err != nil {
			return err
		}
		atomic.AddInt64(&m.frameCount, 1)
		m.metrics.FrameReceived(len(data))

		if m.opts.FrameObserver != nil {
			m.opts.FrameObserver(l.id, time.Now(), data)
		}

		if err := m.demux.Process(data, sink); err != nil {
			m.metrics.MalformedFrame()
			m.logger.Warn("dropped malformed frame", zap.String("connection_id", l.id), zap.Int("bytes", len(data)), zap.Error(err))
		}
	}
}

// teardown releases a finished connection. Pending commands and subscription state
// belong to that connection and are discarded; callers resubscribe on the next one.
func (m *Manager) teardown(l *link) {
	m.setState(StateClosing)
	_ = l.t.Close()
	m.link.CompareAndSwap(l, nil)

	if n := m.queue.Clear(); n > 0 {
		m.logger.Debug("discarded pending commands", zap.String("connection_id", l.id), zap.Int("count", n))
		for i := 0; i < n; i++ {
			m.metrics.CommandDropped()
		}
	}

	if dropped := m.tracker.Reset(); len(dropped) > 0 {
		m.logger.Info("subscriptions dropped with connection",
			zap.String("connection_id", l.id),
			zap.Strings("channels", dropped),
		)
		m.emitLifecycle(Lifecycle{Kind: LifecycleSubscriptionsDropped, State: StateClosing, ConnectionID: l.id, Symbols: dropped})
	}
	m.setState(StateDisconnected)
}

// sendLoop drains the queue onto the live connection. Commands are sent at most once.
func (m *Manager) sendLoop(ctx context.Context) {
	defer m.wg.Done()

	for ctx.Err() == nil {
		l := m.link.Load()
		if l == nil {
			sleepCtx(ctx, m.opts.IdleInterval)
			continue
		}

		if err := m.drain(ctx, l); err != nil {
			if ctx.Err() != nil {
				return
			}
			sleepCtx(ctx, m.opts.ErrorBackoff)
			continue
		}

		timer := time.NewTimer(m.opts.BatchInterval)
		select {
		case <-ctx.Done():
		case <-m.queue.Ready():
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (m *Manager) drain(ctx context.Context, l *link) error {
	for {
		cmd, ok := m.queue.TryDequeue()
		if !ok {
			return nil
		}
		if cmd.gen != l.gen {
			m.discard(cmd, l)
			continue
		}

		data, err := cmd.Encode()
		if err == nil {
			writeCtx, cancel := context.WithTimeout(ctx, m.opts.WriteTimeout)
			err = l.t.WriteFrame(writeCtx, data)
			cancel()
		}
		if err != nil {
			m.metrics.SendFailure()
			if cmd.Action == ActionSubscribe {
				m.tracker.Withdraw(cmd.Params)
			}
			m.logger.Error("failed to send command",
				zap.String("connection_id", l.id),
				zap.String("action", string(cmd.Action)),
				zap.Error(err),
			)
			failed := cmd
			m.emitLifecycle(Lifecycle{Kind: LifecycleSendFailed, State: m.State(), ConnectionID: l.id, Err: err, Command: &failed})
			return err
		}

		atomic.AddInt64(&m.commandsSent, 1)
		m.metrics.CommandSent(string(cmd.Action))
		m.logger.Debug("command sent",
			zap.String("connection_id", l.id),
			zap.String("action", string(cmd.Action)),
		)
	}
}

// discard drops a command issued for an earlier connection
func (m *Manager) discard(cmd Command, l *link) {
	m.metrics.CommandDropped()
	if cmd.Action == ActionSubscribe {
		m.tracker.Withdraw(cmd.Params)
	}
	m.logger.Debug("discarded stale command",
		zap.String("connection_id", l.id),
		zap.String("action", string(cmd.Action)),
	)
}

// applyStatus updates connection and subscription state before handlers see the status
func (m *Manager) applyStatus(st event.Status) {
	switch st.Kind {
	case event.StatusAuthSuccess:
		// only an auth this connection sent can succeed; an unsolicited success leaves
		// the state alone so subscribes still wait for Authenticate
		if m.transition(StateAuthenticated, StateAuthenticating) {
			m.logger.Info("authenticated", zap.String("connection_id", m.ConnectionID()))
		}
	case event.StatusAuthFailure:
		if m.transition(StateConnected, StateAuthenticating) {
			m.logger.Error("authentication failed", zap.String("message", st.Message))
		}
	case event.StatusSubscribeSuccess:
		if st.Symbol != "" {
			m.tracker.Confirm(st.Symbol)
		}
	case event.StatusUnsubscribeSuccess:
		if st.Symbol != "" {
			m.tracker.Remove(st.Symbol)
		}
	}
}

// transition moves to next if the current state is one of from
func (m *Manager) transition(next State, from ...State) bool {
	for _, s := range from {
		if m.state.CompareAndSwap(int32(s), int32(next)) {
			m.metrics.SetConnectionState(int(next))
			m.emitLifecycle(Lifecycle{Kind: LifecycleStateChanged, State: next, ConnectionID: m.ConnectionID()})
			return true
		}
	}
	return false
}

func (m *Manager) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old == s {
		return
	}
	m.metrics.SetConnectionState(int(s))
	m.logger.Debug("state changed", zap.Stringer("from", old), zap.Stringer("to", s))
	m.emitLifecycle(Lifecycle{Kind: LifecycleStateChanged, State: s, ConnectionID: m.ConnectionID()})
}

func (m *Manager) emitLifecycle(ev Lifecycle) {
	m.each(func(h Handler) { h.HandleLifecycle(ev) })
}

func (m *Manager) each(fn func(Handler)) {
	m.handlersMu.RLock()
	handlers := m.handlers
	m.handlersMu.RUnlock()

	for _, h := range handlers {
		m.safeCall(fn, h)
	}
}

func (m *Manager) safeCall(fn func(Handler), h Handler) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.HandlerPanic()
			m.logger.Error("handler panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn(h)
}

// logStats logs stream statistics periodically
func (m *Manager) logStats(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.logger.Info("stream stats",
				zap.Stringer("state", m.State()),
				zap.Int64("frames", atomic.LoadInt64(&m.frameCount)),
				zap.Int64("events", atomic.LoadInt64(&m.eventCount)),
				zap.Int64("decode_errors", atomic.LoadInt64(&m.decodeErrors)),
				zap.Int64("commands_sent", atomic.LoadInt64(&m.commandsSent)),
				zap.Int("subscriptions", m.tracker.Len()),
			)
		}
	}
}

// dispatcher forwards demultiplexed objects to the handlers
type dispatcher struct {
	m *Manager
}

func (d *dispatcher) OnQuote(q event.Quote) {
	d.counted("quote")
	d.m.each(func(h Handler) { h.HandleQuote(q) })
}

func (d *dispatcher) OnTrade(t event.Trade) {
	d.counted("trade")
	d.m.each(func(h Handler) { h.HandleTrade(t) })
}

func (d *dispatcher) OnAggregate(a event.Aggregate) {
	d.counted("aggregate")
	d.m.each(func(h Handler) { h.HandleAggregate(a) })
}

func (d *dispatcher) OnStatus(s event.Status) {
	d.counted("status")
	d.m.logger.Debug("status received", zap.Stringer("kind", s.Kind), zap.String("message", s.Message))
	d.m.applyStatus(s)
	d.m.each(func(h Handler) { h.HandleStatus(s) })
}

func (d *dispatcher) OnDecodeError(span []byte, err error) {
	atomic.AddInt64(&d.m.decodeErrors, 1)
	if !errors.Is(err, frame.ErrMalformedFrame) {
		d.m.metrics.DecodeError(event.Reason(err))
	}
	d.m.each(func(h Handler) { h.HandleDecodeError(span, err) })
}

func (d *dispatcher) counted(kind string) {
	atomic.AddInt64(&d.m.eventCount, 1)
	d.m.metrics.EventDecoded(kind)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
