package monitor_test

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/agxmon/internal/monitor"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTransport records calls and reports TransportConnected from within
// Connect unless connectErr is set
type fakeTransport struct {
	mu          sync.Mutex
	handler     monitor.TransportHandler
	connectErr  error
	connects    int
	disconnects int
	urls        []string
	sent        [][]byte
}

func (t *fakeTransport) SetHandler(h monitor.TransportHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *fakeTransport) Connect(_ context.Context, url string) error {
	t.mu.Lock()
	t.connects++
	t.urls = append(t.urls, url)
	err, h := t.connectErr, t.handler
	t.mu.Unlock()

	if err != nil {
		return err
	}
	h(monitor.TransportConnected, nil, nil)

	return nil
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	t.disconnects++
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Send(data []byte) error {
	t.mu.Lock()
	t.sent = append(t.sent, append([]byte(nil), data...))
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) setConnectErr(err error) {
	t.mu.Lock()
	t.connectErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) deliver(ev monitor.TransportEvent, data []byte, err error) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	h(ev, data, err)
}

func (t *fakeTransport) counts() (connects, disconnects int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects, t.disconnects
}

func (t *fakeTransport) sentFrames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.sent))
	for _, s := range t.sent {
		out = append(out, string(s))
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []monitor.Event
	ctxs   []any
}

func (l *eventLog) record(ev monitor.Event, userCtx any) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.ctxs = append(l.ctxs, userCtx)
	l.mu.Unlock()
}

func (l *eventLog) types() []monitor.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]monitor.EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) count(typ monitor.EventType) int {
	n := 0
	for _, t := range l.types() {
		if t == typ {
			n++
		}
	}
	return n
}

func (l *eventLog) last(typ monitor.EventType) (monitor.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == typ {
			return l.events[i], true
		}
	}
	return monitor.Event{}, false
}

func testConfig() monitor.Config {
	cfg := monitor.DefaultConfig()
	cfg.StartupDelay = 0
	cfg.FastRetryCount = 3
	cfg.FastRetryInterval = time.Second
	cfg.ReconnectInterval = 3 * time.Second
	cfg.WatchdogTick = 10 * time.Millisecond
	cfg.LockTimeout = 50 * time.Millisecond
	return cfg
}
