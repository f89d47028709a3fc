package stream

import (
	"errors"
	"sync"

	"github.com/ismaiel54/polygon-stream/internal/event"
	"go.uber.org/zap"
)

// Bootstrap authenticates each new connection and subscribes a fixed channel list once
// the server accepts the key. The manager never restores subscriptions by itself, so this
// is what re-establishes them after a reconnect.
type Bootstrap struct {
	HandlerFuncs

	m        *Manager
	apiKey   string
	channels []string
	logger   *zap.Logger

	mu       sync.Mutex
	lastConn string
}

// NewBootstrap creates the handler and registers it with m
func NewBootstrap(m *Manager, apiKey string, channels []string, logger *zap.Logger) *Bootstrap {
	b := &Bootstrap{
		m:        m,
		apiKey:   apiKey,
		channels: channels,
		logger:   logger,
	}
	b.HandlerFuncs = HandlerFuncs{
		Lifecycle: b.onLifecycle,
		Status:    b.onStatus,
	}
	m.AddHandler(b)
	return b
}

func (b *Bootstrap) onLifecycle(ev Lifecycle) {
	switch ev.Kind {
	case LifecycleStateChanged:
		if ev.State != StateConnected || ev.ConnectionID == "" {
			return
		}
		// a failed auth also lands in Connected; only the first arrival authenticates
		b.mu.Lock()
		first := b.lastConn != ev.ConnectionID
		b.lastConn = ev.ConnectionID
		b.mu.Unlock()
		if !first {
			return
		}

		if err := b.m.Authenticate(b.apiKey); err != nil {
			b.logger.Warn("failed to queue auth", zap.String("connection_id", ev.ConnectionID), zap.Error(err))
		}
	case LifecycleSubscriptionsDropped:
		b.logger.Info("connection dropped subscriptions, they will be restored after auth",
			zap.Strings("channels", ev.Symbols),
		)
	}
}

func (b *Bootstrap) onStatus(st event.Status) {
	switch st.Kind {
	case event.StatusAuthSuccess:
		queued := 0
		for _, ch := range b.channels {
			ok, err := b.m.Subscribe(ch)
			if err != nil {
				if errors.Is(err, ErrNotReady) || errors.Is(err, ErrAlreadyDisposed) {
					b.logger.Warn("connection left authenticated state during bootstrap", zap.Error(err))
					return
				}
				b.logger.Error("invalid channel", zap.String("channel", ch), zap.Error(err))
				continue
			}
			if ok {
				queued++
			}
		}
		b.logger.Info("subscriptions queued", zap.Int("count", queued), zap.Int("configured", len(b.channels)))
	case event.StatusAuthFailure:
		b.logger.Error("authentication rejected", zap.String("message", st.Message))
	}
}
