// Package monitor keeps a connection to the AGX telemetry source alive and
// holds the most recent snapshot for concurrent readers.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/frame"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/telemetry"
)

const component = "monitor"

// Option customises a Monitor
type Option func(*Monitor)

// WithClock replaces the wall clock used for policy decisions
func WithClock(c Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithFramePolicy replaces the corrupt frame heuristic
func WithFramePolicy(p frame.Policy) Option {
	return func(m *Monitor) {
		m.policy = p
	}
}

// Monitor drives the connection lifecycle. All exported methods are safe
// for concurrent use.
type Monitor struct {
	transport Transport
	clock     Clock
	policy    frame.Policy

	// lifecycle serialises Init, Start, Stop and Deinit
	lifecycle sync.Mutex
	// dispatch serialises callback invocations
	dispatch sync.Mutex

	lockTimeout atomic.Int64
	mu          *timedMutex

	// guarded by mu
	cfg         Config
	initialized bool
	running     bool
	state       State
	demux       *frame.Demuxer
	reconnect   ReconnectContext
	store       store
	stats       Stats
	since       time.Time
	stoppedAt   time.Time
	attempted   bool
	warned      bool
	callback    EventFunc
	userCtx     any
	cancel      context.CancelFunc
	done        chan struct{}
	kick        chan struct{}
}

// New returns a monitor driving t. The monitor installs itself as the
// transport handler.
func New(t Transport, opts ...Option) *Monitor {
	m := &Monitor{
		transport: t,
		clock:     realClock{},
		policy:    frame.DefaultPolicy(),
		mu:        newTimedMutex(),
		state:     StateUninitialized,
	}
	m.lockTimeout.Store(int64(DefaultLockTimeout))

	for _, opt := range opts {
		opt(m)
	}

	t.SetHandler(m.handleTransport)

	return m
}

func (m *Monitor) tryLock() bool {
	return m.mu.TryLockFor(time.Duration(m.lockTimeout.Load()))
}

func lockTimeoutError() error {
	return errors.New().WithMessage(errors.ErrTimeout, "monitor lock busy")
}

// unlockAndDispatch releases the lock and then delivers queued events to
// the callback registered at the time of release
func (m *Monitor) unlockAndDispatch(out *outbox) {
	fn, userCtx := m.callback, m.userCtx
	m.mu.Unlock()

	if fn == nil || len(out.events) == 0 {
		return
	}

	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	for _, ev := range out.events {
		fn(ev, userCtx)
	}
}

// Init validates cfg and moves the monitor to StateInitialized
func (m *Monitor) Init(cfg Config) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return errors.New().WithMessage(errors.ErrInvalidState, "monitor already initialized")
	}

	m.cfg = cfg
	m.demux = frame.NewDemuxer(cfg.Event, m.policy)
	m.store = newStore(cfg.StaleAfter)
	m.stats = Stats{}
	m.state = StateInitialized
	m.initialized = true
	m.lockTimeout.Store(int64(cfg.LockTimeout))

	logger.Debug().
		Str("component", component).
		Str("url", cfg.URL()).
		Str("event", cfg.Event).
		Msg("Monitor initialized")

	return nil
}

// Start launches the watchdog. The first connection attempt is made once
// the startup delay has elapsed.
func (m *Monitor) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if !m.tryLock() {
		return lockTimeoutError()
	}

	switch {
	case !m.initialized:
		m.mu.Unlock()
		return errors.New().WithMessage(errors.ErrInvalidState, "monitor not initialized")
	case m.running:
		m.mu.Unlock()
		return errors.New().New(errors.ErrAlreadyRunning)
	}

	now := m.clock.Now()
	m.stats = Stats{StartTime: now}
	m.reconnect = NewReconnectContext(m.cfg, now)
	m.store = newStore(m.cfg.StaleAfter)
	m.attempted = false
	m.warned = false
	m.stoppedAt = time.Time{}
	m.setState(StateConnecting, now)
	m.running = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.kick = make(chan struct{}, 1)
	tick, done, kick := m.cfg.WatchdogTick, m.done, m.kick
	m.mu.Unlock()

	go m.watchdog(ctx, tick, done, kick)

	logger.Info().
		Str("component", component).
		Dur("startup_delay", m.cfg.StartupDelay).
		Msg("Monitor started")

	return nil
}

// Stop halts the watchdog and closes the connection. Stopping a monitor
// that is not running is a no-op.
func (m *Monitor) Stop() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if !m.tryLock() {
		return lockTimeoutError()
	}
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	if err := m.transport.Disconnect(); err != nil {
		logger.Debug().Str("component", component).Err(err).Msg("Disconnect on stop failed")
	}

	m.mu.Lock()
	now := m.clock.Now()
	m.setState(StateInitialized, now)
	m.store.invalidate()
	m.stoppedAt = now
	m.cancel = nil
	m.mu.Unlock()

	logger.Info().Str("component", component).Msg("Monitor stopped")

	return nil
}

// Deinit releases the configuration. The monitor must be stopped first.
func (m *Monitor) Deinit() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New().WithMessage(errors.ErrInvalidState, "monitor is running")
	}
	if !m.initialized {
		return nil
	}

	m.cfg = Config{}
	m.demux = nil
	m.store = store{}
	m.stats = Stats{}
	m.callback = nil
	m.userCtx = nil
	m.initialized = false
	m.state = StateUninitialized
	m.lockTimeout.Store(int64(DefaultLockTimeout))

	return nil
}

// RegisterCallback installs fn as the sole event receiver, replacing any
// previous one. userCtx is passed back on every call.
func (m *Monitor) RegisterCallback(fn EventFunc, userCtx any) error {
	if !m.tryLock() {
		return lockTimeoutError()
	}
	m.callback = fn
	m.userCtx = userCtx
	m.mu.Unlock()

	return nil
}

// UnregisterCallback removes the event receiver
func (m *Monitor) UnregisterCallback() error {
	return m.RegisterCallback(nil, nil)
}

// Status returns the current state, counters and derived figures
func (m *Monitor) Status() (Status, error) {
	if !m.tryLock() {
		return Status{}, lockTimeoutError()
	}
	defer m.mu.Unlock()

	now := m.clock.Now()
	st := Status{
		Stats:             m.stats,
		Initialized:       m.initialized,
		Running:           m.running,
		State:             m.state,
		Connected:         m.state == StateConnected,
		DataValid:         m.store.fresh(now),
		ReconnectAttempts: m.reconnect.Attempts,
	}
	if m.initialized {
		st.URL = m.cfg.URL()
	}
	if st.Connected {
		st.ConnectedTime += now.Sub(m.since)
	}

	if !m.stats.StartTime.IsZero() {
		end := now
		if !m.running && !m.stoppedAt.IsZero() {
			end = m.stoppedAt
		}
		st.Uptime = end.Sub(m.stats.StartTime)
	}
	st.Reliability = reliability(st.ConnectedTime, st.Uptime)

	return st, nil
}

// LatestData returns a copy of the latest snapshot. Valid is false when
// the snapshot failed to decode or is older than the staleness window.
func (m *Monitor) LatestData() (telemetry.Snapshot, error) {
	if !m.tryLock() {
		return telemetry.Snapshot{}, lockTimeoutError()
	}
	defer m.mu.Unlock()

	return m.store.read(m.clock.Now()), nil
}

// IsDataValid reports whether a fresh, fully decoded snapshot is held.
// A lock timeout reports false.
func (m *Monitor) IsDataValid() bool {
	if !m.tryLock() {
		return false
	}
	defer m.mu.Unlock()

	return m.store.fresh(m.clock.Now())
}

// setState changes state and folds connected time into the stats. Callers
// hold mu.
func (m *Monitor) setState(to State, now time.Time) {
	from := m.state
	if from == to {
		return
	}
	if from == StateConnected {
		m.stats.ConnectedTime += now.Sub(m.since)
	}
	if to == StateConnected {
		m.since = now
	}
	m.state = to

	logger.Info().
		Str("component", component).
		Stringer("from", from).
		Stringer("to", to).
		Msg("State changed")
}

// raise queues ev, stamped with the current state. Callers hold mu.
func (m *Monitor) raise(out *outbox, ev Event) {
	ev.State = m.state
	out.add(ev)
}

// requestReconnect drops the link and asks the watchdog for an immediate
// attempt. Callers hold mu.
func (m *Monitor) requestReconnect(out *outbox, now time.Time, cause error) {
	m.stats.LastError = cause.Error()
	m.setState(StateReconnecting, now)
	m.reconnect.Expedite()
	m.raise(out, Event{Type: EventReconnecting, Time: now, Err: cause})
}

// wake nudges the watchdog to evaluate now
func wake(kick chan struct{}) {
	select {
	case kick <- struct{}{}:
	default:
	}
}
