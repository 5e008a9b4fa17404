package monitor

import (
	"context"
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
)

const minWake = time.Millisecond

// watchdog evaluates the link every tick, or sooner when a retry falls due
// or it is woken through kick
func (m *Monitor) watchdog(ctx context.Context, tick time.Duration, done chan<- struct{}, kick <-chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		timer.Reset(m.evaluate(ctx, tick))
	}
}

// evaluate runs one watchdog pass and returns the wait until the next one
func (m *Monitor) evaluate(ctx context.Context, tick time.Duration) time.Duration {
	if !m.tryLock() {
		logger.Warn().Str("component", component).Msg("Watchdog skipped a pass, lock busy")
		return tick
	}
	if !m.running {
		m.mu.Unlock()
		return tick
	}

	now := m.clock.Now()
	out := &outbox{}

	dropLink := false
	if m.state == StateConnected {
		dropLink = m.checkLink(out, now)
	}

	attempt := m.state.seeking() && m.reconnect.Ready(now)
	var url string
	if attempt {
		if m.attempted {
			m.stats.TotalReconnects++
			if m.state != StateReconnecting {
				m.raise(out, Event{Type: EventReconnecting, Time: now})
			}
		}
		m.attempted = true
		m.reconnect.Record(now)
		m.setState(StateConnecting, now)
		url = m.cfg.URL()

		logger.Info().
			Str("component", component).
			Str("url", url).
			Int("attempt", m.reconnect.Attempts).
			Msg("Connecting")
	}

	wait := tick
	if m.state.seeking() {
		wait = min(wait, m.reconnect.Until(now))
	}
	m.unlockAndDispatch(out)

	if dropLink {
		if err := m.transport.Disconnect(); err != nil {
			logger.Debug().Str("component", component).Err(err).Msg("Disconnect failed")
		}
	}
	if attempt {
		m.connect(ctx, url)
	}

	return max(wait, minWake)
}

// checkLink inspects data silence on a connected link and reports whether
// it must be dropped. Callers hold mu.
func (m *Monitor) checkLink(out *outbox, now time.Time) bool {
	last := m.since
	if m.stats.LastMessageTime.After(last) {
		last = m.stats.LastMessageTime
	}
	silence := now.Sub(last)

	switch {
	case silence > m.cfg.HeartbeatTimeout:
		logger.Warn().
			Str("component", component).
			Dur("silence", silence).
			Msg("No data within heartbeat timeout, reconnecting")
		m.requestReconnect(out, now, errors.New().WithMessage(ErrLinkDead, "no data within heartbeat timeout"))

		return true
	case silence > m.cfg.DataWarnTimeout && !m.warned:
		m.warned = true
		logger.Warn().
			Str("component", component).
			Dur("silence", silence).
			Msg("No data received")
	}

	return false
}

func (m *Monitor) connect(ctx context.Context, url string) {
	err := m.transport.Connect(ctx, url)
	if err == nil || ctx.Err() != nil {
		return
	}

	cause := errors.New().Wrap(errors.ErrTransport, err)
	logger.Warn().
		Str("component", component).
		Str("url", url).
		Err(err).
		Msg("Connection attempt failed")

	if !m.tryLock() {
		return
	}
	if !m.running || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	now := m.clock.Now()
	m.stats.LastError = cause.Error()
	m.setState(StateError, now)
	m.raise(out, Event{Type: EventError, Time: now, Err: cause})
	m.unlockAndDispatch(out)
}
