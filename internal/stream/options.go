package stream

import "time"

// Options tunes the manager. Zero fields take the defaults below.
type Options struct {
	URL string

	// connect cycle: MaxAttempts dials, RetryInterval apart, within ConnectTimeout
	MaxAttempts    int
	ConnectTimeout time.Duration
	RetryInterval  time.Duration

	// wait between failed cycles or after a dropped connection, growing up to CooldownMax
	Cooldown    time.Duration
	CooldownMax time.Duration

	BatchInterval time.Duration
	IdleInterval  time.Duration
	ErrorBackoff  time.Duration
	WriteTimeout  time.Duration

	StatsInterval time.Duration

	// FrameObserver sees every raw frame before it is demultiplexed. It must not keep the slice.
	FrameObserver func(connectionID string, receivedAt time.Time, frame []byte)
}

// DefaultOptions returns the production tuning
func DefaultOptions() Options {
	return Options{
		URL:            "wss://socket.polygon.io/stocks",
		MaxAttempts:    5,
		ConnectTimeout: 17 * time.Second,
		RetryInterval:  2 * time.Second,
		Cooldown:       10 * time.Second,
		CooldownMax:    10 * time.Second,
		BatchInterval:  500 * time.Millisecond,
		IdleInterval:   time.Second,
		ErrorBackoff:   10 * time.Second,
		WriteTimeout:   5 * time.Second,
		StatsInterval:  30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.URL == "" {
		o.URL = d.URL
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = d.RetryInterval
	}
	if o.Cooldown <= 0 {
		o.Cooldown = d.Cooldown
	}
	if o.CooldownMax < o.Cooldown {
		o.CooldownMax = o.Cooldown
	}
	if o.BatchInterval <= 0 {
		o.BatchInterval = d.BatchInterval
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = d.IdleInterval
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = d.ErrorBackoff
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.StatsInterval <= 0 {
		o.StatsInterval = d.StatsInterval
	}
	return o
}
