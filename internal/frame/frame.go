// Package frame classifies inbound Socket.IO (Engine.IO v4) text frames and
// extracts the payload object of the telemetry event.
package frame

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// DefaultEvent is the event name carrying telemetry
const DefaultEvent = "telemetry"

// Kind identifies what a frame is
type Kind int

const (
	KindUnknown Kind = iota
	KindOpen
	KindPing
	KindPong
	KindConnectAck
	KindDisconnect
	KindConnectError
	KindEvent
	KindOtherEvent
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindConnectAck:
		return "connect_ack"
	case KindDisconnect:
		return "disconnect"
	case KindConnectError:
		return "connect_error"
	case KindEvent:
		return "event"
	case KindOtherEvent:
		return "other_event"
	case KindCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Frame is the result of classifying one message
type Frame struct {
	Kind Kind
	// Event is the event name for KindEvent and KindOtherEvent
	Event string
	// Payload is the JSON object of a KindEvent frame, a sub-slice of the input
	Payload []byte
	// Reply is a frame to send back, nil when none is due
	Reply []byte
}

// Engine.IO and Socket.IO packet type characters
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'

	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// Demuxer classifies frames for one telemetry event name
type Demuxer struct {
	event  string
	policy Policy
}

// NewDemuxer returns a Demuxer matching event frames named event
func NewDemuxer(event string, policy Policy) *Demuxer {
	if event == "" {
		event = DefaultEvent
	}

	return &Demuxer{event: event, policy: policy}
}

// Event returns the telemetry event name
func (d *Demuxer) Event() string {
	return d.event
}

// Classify inspects one message. Messages the corruption policy flags are
// returned as KindCorrupt without further parsing.
func (d *Demuxer) Classify(msg []byte) Frame {
	if d.policy.Corrupt(msg) {
		return Frame{Kind: KindCorrupt}
	}
	if len(msg) == 0 {
		return Frame{Kind: KindUnknown}
	}

	switch msg[0] {
	case eioOpen:
		return Frame{Kind: KindOpen, Reply: []byte{eioMessage, sioConnect}}
	case eioClose:
		return Frame{Kind: KindDisconnect}
	case eioPing:
		reply := make([]byte, len(msg))
		copy(reply, msg)
		reply[0] = eioPong
		return Frame{Kind: KindPing, Reply: reply}
	case eioPong, eioNoop:
		return Frame{Kind: KindPong}
	case eioMessage:
		return d.classifyMessage(msg[1:])
	default:
		return Frame{Kind: KindUnknown}
	}
}

func (d *Demuxer) classifyMessage(body []byte) Frame {
	if len(body) == 0 {
		return Frame{Kind: KindUnknown}
	}

	switch body[0] {
	case sioConnect:
		return Frame{Kind: KindConnectAck}
	case sioDisconnect:
		return Frame{Kind: KindDisconnect}
	case sioConnectError:
		return Frame{Kind: KindConnectError}
	case sioEvent:
		return d.classifyEvent(body[1:])
	default:
		return Frame{Kind: KindUnknown}
	}
}

// classifyEvent handles `[/nsp,][ackid][name, object]`.
func (d *Demuxer) classifyEvent(body []byte) Frame {
	start := bytes.IndexByte(body, '[')
	if start < 0 {
		return Frame{Kind: KindUnknown}
	}
	array := body[start:]

	name := gjson.GetBytes(array, "0")
	if name.Type != gjson.String {
		return Frame{Kind: KindUnknown}
	}
	if name.Str != d.event {
		return Frame{Kind: KindOtherEvent, Event: name.Str}
	}

	open := bytes.IndexByte(array, '{')
	end := bytes.LastIndexByte(array, '}')
	if open < 0 || end < open {
		return Frame{Kind: KindUnknown, Event: name.Str}
	}

	return Frame{Kind: KindEvent, Event: name.Str, Payload: array[open : end+1]}
}
