package monitor

// State is the connection lifecycle state
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateConnecting
	StateConnected
	StateDisconnected
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// seeking reports whether the watchdog should be trying to connect
func (s State) seeking() bool {
	switch s {
	case StateConnecting, StateDisconnected, StateReconnecting, StateError:
		return true
	default:
		return false
	}
}
