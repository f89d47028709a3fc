package chaos

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInjected is returned for failures produced by chaos
var ErrInjected = errors.New("chaos: injected failure")

// Chaos provides deterministic failure injection
type Chaos struct {
	cfg    Config
	logger *zap.Logger
	rng    *rand.Rand
	mu     sync.Mutex
	start  time.Time
}

// New creates a new Chaos instance. Profile values override the individual settings.
func New(cfg Config, logger *zap.Logger) *Chaos {
	if cfg.Profile != "" {
		p, err := ParseProfile(cfg.Profile)
		if err != nil {
			logger.Warn("failed to parse chaos profile", zap.String("profile", cfg.Profile), zap.Error(err))
		} else {
			if p.DropPct > 0 {
				cfg.DropPct = p.DropPct
			}
			if p.ReadErrorPct > 0 {
				cfg.ReadErrorPct = p.ReadErrorPct
			}
			if p.DelayMin > 0 || p.DelayMax > 0 {
				cfg.DelayMsMin = p.DelayMin
				cfg.DelayMsMax = p.DelayMax
			}
		}
	}

	return &Chaos{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		start:  time.Now(),
	}
}

// Enabled reports whether injection is active right now
func (c *Chaos) Enabled() bool {
	if !c.cfg.Enabled {
		return false
	}
	if c.cfg.WindowMs > 0 && time.Since(c.start).Milliseconds() > int64(c.cfg.WindowMs) {
		return false
	}
	return true
}

// MaybeDelay injects a random delay if chaos is enabled
func (c *Chaos) MaybeDelay(ctx context.Context, op string) error {
	if !c.Enabled() || (c.cfg.DelayMsMin == 0 && c.cfg.DelayMsMax == 0) {
		return nil
	}

	c.mu.Lock()
	delayMs := c.cfg.DelayMsMin
	if c.cfg.DelayMsMax > c.cfg.DelayMsMin {
		delayMs += c.rng.Intn(c.cfg.DelayMsMax - c.cfg.DelayMsMin + 1)
	}
	c.mu.Unlock()

	if delayMs <= 0 {
		return nil
	}
	c.logger.Info("chaos delay injected",
		zap.String("op", op),
		zap.Int("delay_ms", delayMs),
	)

	timer := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MaybeDrop returns true if the item should be dropped
func (c *Chaos) MaybeDrop(op string) bool {
	if !c.roll(c.cfg.DropPct) {
		return false
	}
	c.logger.Info("chaos drop injected", zap.String("op", op))
	return true
}

// MaybeFail returns ErrInjected at the configured read error rate
func (c *Chaos) MaybeFail(op string) error {
	if !c.roll(c.cfg.ReadErrorPct) {
		return nil
	}
	c.logger.Info("chaos failure injected", zap.String("op", op))
	return ErrInjected
}

func (c *Chaos) roll(pct int) bool {
	if pct <= 0 || !c.Enabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(100) < pct
}
