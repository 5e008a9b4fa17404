package frame_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/agxmon/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemuxer() *frame.Demuxer {
	return frame.NewDemuxer(frame.DefaultEvent, frame.DefaultPolicy())
}

func TestClassifyTelemetryEvent(t *testing.T) {
	msg := []byte(`42["telemetry",{"cpu":{"cores":[{"id":0,"usage":55,"freq":1900}]}}]`)

	f := newDemuxer().Classify(msg)
	require.Equal(t, frame.KindEvent, f.Kind)
	assert.Equal(t, "telemetry", f.Event)
	assert.Equal(t, `{"cpu":{"cores":[{"id":0,"usage":55,"freq":1900}]}}`, string(f.Payload))
	assert.Nil(t, f.Reply)
}

func TestClassifyEventWithNamespaceAndAck(t *testing.T) {
	msg := []byte(`42/agx,17["telemetry",{"gpu":{"load":3}}]`)

	f := newDemuxer().Classify(msg)
	require.Equal(t, frame.KindEvent, f.Kind)
	assert.Equal(t, `{"gpu":{"load":3}}`, string(f.Payload))
}

func TestClassifyOtherEvent(t *testing.T) {
	f := newDemuxer().Classify([]byte(`42["status",{"ok":true}]`))
	assert.Equal(t, frame.KindOtherEvent, f.Kind)
	assert.Equal(t, "status", f.Event)
	assert.Nil(t, f.Payload)
}

func TestClassifyCustomEventName(t *testing.T) {
	d := frame.NewDemuxer("jtop", frame.DefaultPolicy())
	assert.Equal(t, "jtop", d.Event())

	f := d.Classify([]byte(`42["jtop",{"gpu":{}}]`))
	assert.Equal(t, frame.KindEvent, f.Kind)
}

func TestClassifyEventWithoutObject(t *testing.T) {
	cases := [][]byte{
		[]byte(`42["telemetry"]`),
		[]byte(`42["telemetry","text"]`),
		[]byte(`42[7,{"a":1}]`),
		[]byte(`42 no array`),
	}
	for _, msg := range cases {
		assert.Equal(t, frame.KindUnknown, newDemuxer().Classify(msg).Kind, string(msg))
	}
}

func TestClassifyControlFrames(t *testing.T) {
	cases := []struct {
		msg   string
		kind  frame.Kind
		reply string
	}{
		{`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`, frame.KindOpen, "40"},
		{`2`, frame.KindPing, "3"},
		{`2probe`, frame.KindPing, "3probe"},
		{`3`, frame.KindPong, ""},
		{`6`, frame.KindPong, ""},
		{`40{"sid":"xyz"}`, frame.KindConnectAck, ""},
		{`41`, frame.KindDisconnect, ""},
		{`1`, frame.KindDisconnect, ""},
		{`44{"message":"unauthorized"}`, frame.KindConnectError, ""},
		{`43["ack"]`, frame.KindUnknown, ""},
		{`hello world`, frame.KindUnknown, ""},
	}

	for _, tc := range cases {
		f := newDemuxer().Classify([]byte(tc.msg))
		assert.Equal(t, tc.kind, f.Kind, tc.msg)
		if tc.reply == "" {
			assert.Nil(t, f.Reply, tc.msg)
		} else {
			assert.Equal(t, tc.reply, string(f.Reply), tc.msg)
		}
	}
}

func TestPingReplyDoesNotAliasInput(t *testing.T) {
	msg := []byte("2probe")
	f := newDemuxer().Classify(msg)
	f.Reply[1] = 'X'
	assert.Equal(t, "2probe", string(msg))
}

func TestCorruptShortFrame(t *testing.T) {
	d := newDemuxer()

	assert.Equal(t, frame.KindCorrupt, d.Classify([]byte{0x01}).Kind)
	assert.Equal(t, frame.KindCorrupt, d.Classify([]byte{'4', 0x00}).Kind)
	assert.Equal(t, frame.KindCorrupt, d.Classify([]byte{0xff, 0xfe}).Kind)

	assert.Equal(t, frame.KindPing, d.Classify([]byte("2")).Kind)
	assert.Equal(t, frame.KindUnknown, d.Classify([]byte("\n")).Kind, "whitespace is not corruption")
	assert.Equal(t, frame.KindUnknown, d.Classify(nil).Kind)
}

func TestCorruptMidLengthBinary(t *testing.T) {
	d := newDemuxer()

	binary := bytes.Repeat([]byte{0x00, 0x9c, 'a', 0x13}, 10)
	assert.Equal(t, frame.KindCorrupt, d.Classify(binary).Kind)

	text := []byte(`42["telemetry",{"temperature":{"cpu":40}}]`)
	assert.Equal(t, frame.KindEvent, d.Classify(text).Kind)

	utf8Text := []byte(`42["telemetry",{"unit":"°C","temperature":{}}]`)
	assert.Equal(t, frame.KindEvent, d.Classify(utf8Text).Kind)
}

func TestPolicyThresholds(t *testing.T) {
	var off frame.Policy
	assert.False(t, off.Corrupt([]byte{0x00}))

	p := frame.Policy{ShortMaxLen: 2, MidMinLen: 3, MidMaxLen: 10, BinaryRatio: 0.5}
	assert.True(t, p.Corrupt([]byte{'a', 0x02}))
	assert.False(t, p.Corrupt([]byte{'a', 'b', 'c', 0x02}), "below ratio")
	assert.True(t, p.Corrupt([]byte{'a', 'b', 0x02, 0x03}), "at ratio")

	long := append(bytes.Repeat([]byte{0x00}, 20), '}')
	assert.False(t, p.Corrupt(long), "beyond mid range is left to the parser")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "event", frame.KindEvent.String())
	assert.Equal(t, "corrupt", frame.KindCorrupt.String())
	assert.Equal(t, "unknown", frame.Kind(99).String())
}
