package monitor

import (
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/frame"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/telemetry"
)

func (m *Monitor) handleTransport(ev TransportEvent, data []byte, err error) {
	switch ev {
	case TransportConnected:
		m.onConnected()
	case TransportDisconnected:
		m.onDisconnected(err)
	case TransportData:
		m.onData(data)
	case TransportError:
		m.onError(err)
	default:
		logger.Debug().Str("component", component).Stringer("event", ev).Msg("Unhandled transport event")
	}
}

func (m *Monitor) onConnected() {
	if !m.tryLock() {
		logger.Warn().Str("component", component).Msg("Lock busy, connect notification dropped")
		return
	}
	if !m.running {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	now := m.clock.Now()
	m.reconnect.Reset()
	m.stats.TotalReconnects = 0
	m.warned = false
	m.setState(StateConnected, now)
	m.raise(out, Event{Type: EventConnected, Time: now})
	url := m.cfg.URL()
	m.unlockAndDispatch(out)

	logger.Info().Str("component", component).Str("url", url).Msg("Connected")
}

func (m *Monitor) onDisconnected(cause error) {
	if !m.tryLock() {
		logger.Warn().Str("component", component).Msg("Lock busy, disconnect notification dropped")
		return
	}
	if !m.running || (m.state != StateConnected && m.state != StateConnecting) {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	now := m.clock.Now()
	if cause != nil {
		m.stats.LastError = cause.Error()
	}
	m.setState(StateDisconnected, now)
	m.raise(out, Event{Type: EventDisconnected, Time: now, Err: cause})
	m.unlockAndDispatch(out)

	logger.Warn().Str("component", component).AnErr("cause", cause).Msg("Disconnected")
}

func (m *Monitor) onError(cause error) {
	if cause == nil {
		cause = errors.New().New(errors.ErrTransport)
	}

	if !m.tryLock() {
		logger.Warn().Str("component", component).Err(cause).Msg("Lock busy, transport error dropped")
		return
	}
	if !m.running {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	now := m.clock.Now()
	m.stats.LastError = cause.Error()
	m.setState(StateError, now)
	m.raise(out, Event{Type: EventError, Time: now, Err: cause})
	m.unlockAndDispatch(out)

	logger.Warn().Str("component", component).Err(cause).Msg("Transport error")
}

func (m *Monitor) onData(data []byte) {
	if !m.tryLock() {
		logger.Warn().Str("component", component).Int("len", len(data)).Msg("Lock busy, frame dropped")
		return
	}
	if !m.running {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.stats.MessagesReceived++
	m.stats.LastMessageTime = now
	m.warned = false
	demux, limit := m.demux, m.cfg.MaxFrameSize
	m.mu.Unlock()

	if len(data) > limit {
		m.recordError(errors.New().WithData(errors.ErrResourceExhausted, len(data)).
			WithMessage("frame exceeds max_frame_size"))
		return
	}

	f := demux.Classify(data)
	switch f.Kind {
	case frame.KindCorrupt:
		m.dropLink(errors.New().WithMessage(ErrCorruptFrame, "corrupt frame received"), true)
	case frame.KindOpen, frame.KindPing:
		if err := m.transport.Send(f.Reply); err != nil {
			logger.Warn().Str("component", component).Stringer("kind", f.Kind).Err(err).Msg("Reply failed")
		}
	case frame.KindPong, frame.KindConnectAck:
		logger.Debug().Str("component", component).Stringer("kind", f.Kind).Msg("Control frame")
	case frame.KindDisconnect:
		m.dropLink(errors.New().WithMessage(ErrNamespace, "server closed the namespace"), false)
	case frame.KindConnectError:
		m.dropLink(errors.New().WithMessage(ErrNamespace, "server rejected the namespace"), false)
	case frame.KindEvent:
		m.onTelemetry(f.Payload, now)
	case frame.KindOtherEvent:
		logger.Debug().Str("component", component).Str("event", f.Event).Msg("Ignoring event")
	default:
		logger.Debug().Str("component", component).Int("len", len(data)).Msg("Unrecognized frame")
	}
}

func (m *Monitor) onTelemetry(payload []byte, received time.Time) {
	snap, decodeErr := telemetry.Decode(payload)

	if !m.tryLock() {
		logger.Warn().Str("component", component).Msg("Lock busy, snapshot dropped")
		return
	}
	if !m.running {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	m.store.publish(snap, received)
	if decodeErr != nil {
		m.stats.ParseErrors++
		m.stats.LastError = decodeErr.Error()
		m.raise(out, Event{Type: EventError, Time: received, Err: decodeErr})
	} else {
		m.raise(out, Event{Type: EventDataReceived, Time: received, Snapshot: m.store.read(received)})
	}
	m.unlockAndDispatch(out)
}

// recordError notes a failure that does not affect the link
func (m *Monitor) recordError(cause error) {
	logger.Warn().Str("component", component).Err(cause).Msg("Frame dropped")

	if !m.tryLock() {
		return
	}
	if !m.running {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	now := m.clock.Now()
	m.stats.LastError = cause.Error()
	m.raise(out, Event{Type: EventError, Time: now, Err: cause})
	m.unlockAndDispatch(out)
}

// dropLink closes a connected link. With expedite the watchdog reconnects
// at once, otherwise after the usual retry delay.
func (m *Monitor) dropLink(cause error, expedite bool) {
	if !m.tryLock() {
		logger.Warn().Str("component", component).Err(cause).Msg("Lock busy, link not dropped")
		return
	}
	if !m.running || m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	out := &outbox{}
	now := m.clock.Now()
	if expedite {
		m.requestReconnect(out, now, cause)
	} else {
		m.stats.LastError = cause.Error()
		m.setState(StateDisconnected, now)
		m.raise(out, Event{Type: EventDisconnected, Time: now, Err: cause})
	}
	kick := m.kick
	m.unlockAndDispatch(out)

	logger.Warn().Str("component", component).Err(cause).Msg("Dropping connection")

	if err := m.transport.Disconnect(); err != nil {
		logger.Debug().Str("component", component).Err(err).Msg("Disconnect failed")
	}
	wake(kick)
}
