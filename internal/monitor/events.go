package monitor

import (
	"time"

	"codeberg.org/mutker/agxmon/internal/telemetry"
)

// EventType identifies a monitor notification
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
	EventDataReceived
	EventError
	EventReconnecting
)

func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventDataReceived:
		return "data_received"
	case EventError:
		return "error"
	case EventReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Event is delivered to the registered EventFunc. Snapshot is set for
// EventDataReceived, Err for EventError.
type Event struct {
	Type     EventType
	State    State
	Time     time.Time
	Snapshot telemetry.Snapshot
	Err      error
}

// EventFunc is called outside the monitor lock, one event at a time.
// It must not call Init, Start, Stop or Deinit.
type EventFunc func(ev Event, userCtx any)

// Stats are the counters kept across a run
type Stats struct {
	// TotalReconnects counts retries in the current outage. It is reset to
	// zero whenever a connection is established, so it is not a running total.
	TotalReconnects  int
	MessagesReceived uint64
	ParseErrors      uint64
	LastMessageTime  time.Time
	StartTime        time.Time
	// ConnectedTime accumulates completed connected intervals
	ConnectedTime time.Duration
	LastError     string
}

// Status is a point-in-time view of the monitor
type Status struct {
	Stats

	Initialized       bool
	Running           bool
	State             State
	Connected         bool
	DataValid         bool
	URL               string
	ReconnectAttempts int
	Uptime            time.Duration
	// Reliability is the percentage of uptime spent connected
	Reliability float64
}

func reliability(connected, uptime time.Duration) float64 {
	if uptime <= 0 {
		return 0
	}
	r := float64(connected) / float64(uptime) * 100
	if r > 100 {
		return 100
	}

	return r
}

// outbox collects events raised under the lock for dispatch after release
type outbox struct {
	events []Event
}

func (o *outbox) add(ev Event) {
	o.events = append(o.events, ev)
}
