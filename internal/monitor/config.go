package monitor

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/frame"
)

const (
	DefaultHost              = "192.168.55.1"
	DefaultPort              = 5000
	DefaultStartupDelay      = 30 * time.Second
	DefaultReconnectInterval = 10 * time.Second
	DefaultFastRetryCount    = 3
	DefaultFastRetryInterval = 2 * time.Second
	DefaultHeartbeatTimeout  = 45 * time.Second
	DefaultDataWarnTimeout   = 30 * time.Second
	DefaultStaleAfter        = 30 * time.Second
	DefaultWatchdogTick      = 5 * time.Second
	DefaultLockTimeout       = 100 * time.Millisecond
	DefaultMaxFrameSize      = 16 * 1024

	maxHostLength   = 253
	minMaxFrameSize = 1024
	maxMaxFrameSize = 1 << 20
)

// Config holds the monitor settings validated by Init
type Config struct {
	Host      string
	Port      int
	TLS       bool
	Event     string
	AutoStart bool

	// StartupDelay holds off the first connection attempt while the AGX boots
	StartupDelay time.Duration
	// ReconnectInterval is the wait between attempts once fast retries are used up
	ReconnectInterval time.Duration
	FastRetryCount    int
	FastRetryInterval time.Duration

	// DataWarnTimeout is the silence after which a warning is logged;
	// HeartbeatTimeout the silence after which the link is declared dead
	DataWarnTimeout  time.Duration
	HeartbeatTimeout time.Duration

	StaleAfter   time.Duration
	WatchdogTick time.Duration
	LockTimeout  time.Duration
	// MaxFrameSize bounds the inbound frame size processed; larger frames
	// are dropped
	MaxFrameSize int
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		Event:             frame.DefaultEvent,
		AutoStart:         true,
		StartupDelay:      DefaultStartupDelay,
		ReconnectInterval: DefaultReconnectInterval,
		FastRetryCount:    DefaultFastRetryCount,
		FastRetryInterval: DefaultFastRetryInterval,
		DataWarnTimeout:   DefaultDataWarnTimeout,
		HeartbeatTimeout:  DefaultHeartbeatTimeout,
		StaleAfter:        DefaultStaleAfter,
		WatchdogTick:      DefaultWatchdogTick,
		LockTimeout:       DefaultLockTimeout,
		MaxFrameSize:      DefaultMaxFrameSize,
	}
}

// URL returns the websocket endpoint of the telemetry source
func (c Config) URL() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}

	return fmt.Sprintf("%s://%s/socket.io/?EIO=4&transport=websocket",
		scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// FieldError describes one rejected configuration value
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s=%v: %s", e.Field, e.Value, e.Reason)
}

// Validate checks every field against its allowed range
func (c Config) Validate() error {
	errFactory := errors.New()
	invalid := func(field string, value any, reason string) error {
		return errFactory.WithData(errors.ErrInvalidArgument, FieldError{
			Field:  field,
			Value:  value,
			Reason: reason,
		})
	}

	switch {
	case c.Host == "":
		return invalid("host", c.Host, "must not be empty")
	case len(c.Host) > maxHostLength:
		return invalid("host", c.Host, "too long")
	case c.Port < 1 || c.Port > 65535:
		return invalid("port", c.Port, "must be between 1 and 65535")
	case c.Event == "":
		return invalid("event", c.Event, "must not be empty")
	}

	durations := []struct {
		field    string
		value    time.Duration
		min, max time.Duration
	}{
		{"startup_delay", c.StartupDelay, 0, 30 * time.Minute},
		{"reconnect_interval", c.ReconnectInterval, 100 * time.Millisecond, time.Hour},
		{"fast_retry_interval", c.FastRetryInterval, 100 * time.Millisecond, 10 * time.Minute},
		{"data_warn_timeout", c.DataWarnTimeout, time.Second, time.Hour},
		{"heartbeat_timeout", c.HeartbeatTimeout, time.Second, time.Hour},
		{"stale_after", c.StaleAfter, time.Second, 24 * time.Hour},
		{"watchdog_tick", c.WatchdogTick, 10 * time.Millisecond, time.Minute},
		{"lock_timeout", c.LockTimeout, time.Millisecond, 10 * time.Second},
	}
	for _, d := range durations {
		if d.value < d.min || d.value > d.max {
			return invalid(d.field, d.value, fmt.Sprintf("must be between %v and %v", d.min, d.max))
		}
	}

	if c.HeartbeatTimeout <= c.DataWarnTimeout {
		return invalid("heartbeat_timeout", c.HeartbeatTimeout, "must exceed data_warn_timeout")
	}
	if c.FastRetryCount < 0 || c.FastRetryCount > 100 {
		return invalid("fast_retry_count", c.FastRetryCount, "must be between 0 and 100")
	}
	if c.MaxFrameSize < minMaxFrameSize || c.MaxFrameSize > maxMaxFrameSize {
		return invalid("max_frame_size", c.MaxFrameSize,
			fmt.Sprintf("must be between %d and %d", minMaxFrameSize, maxMaxFrameSize))
	}

	return nil
}
