package monitor

import "context"

// TransportEvent is the kind of notification a Transport delivers
type TransportEvent int

const (
	TransportConnected TransportEvent = iota
	TransportDisconnected
	TransportData
	TransportError
)

func (e TransportEvent) String() string {
	switch e {
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportData:
		return "data"
	case TransportError:
		return "error"
	default:
		return "unknown"
	}
}

// TransportHandler receives transport notifications. data is set for
// TransportData and owned by the handler; err is set for TransportError.
type TransportHandler func(ev TransportEvent, data []byte, err error)

// Transport is a framed, message-oriented connection.
//
// Connect opens a session and returns once the attempt has failed or the
// session is established; TransportConnected is delivered through the
// handler. Disconnect ends the current session and suppresses any further
// events from it, so it may be called from within the handler.
type Transport interface {
	Connect(ctx context.Context, url string) error
	Disconnect() error
	Send(data []byte) error
	SetHandler(h TransportHandler)
}
