// Package transport provides the websocket connection used by the monitor.
package transport

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"codeberg.org/mutker/agxmon/internal/errors"
	"codeberg.org/mutker/agxmon/internal/logger"
	"codeberg.org/mutker/agxmon/internal/monitor"
	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReadLimit        = 1 << 20
)

// Options tune the websocket client. Zero values select the defaults.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// ReadLimit caps a single inbound message; exceeding it ends the session
	ReadLimit int64
	// TLSConfig is used for wss:// URLs; nil selects the system roots
	TLSConfig *tls.Config
}

// Websocket implements monitor.Transport. Each successful Connect starts a
// new session with its own read goroutine; events from any earlier session
// are discarded.
type Websocket struct {
	opts   Options
	dialer *websocket.Dialer

	mu      sync.Mutex
	handler monitor.TransportHandler
	conn    *websocket.Conn
	gen     uint64

	writeMu sync.Mutex
}

var _ monitor.Transport = (*Websocket)(nil)

// New returns a disconnected transport
func New(opts Options) *Websocket {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}

	return &Websocket{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			TLSClientConfig:  opts.TLSConfig,
		},
	}
}

func (w *Websocket) SetHandler(h monitor.TransportHandler) {
	w.mu.Lock()
	w.handler = h
	w.mu.Unlock()
}

// Connect closes any current session and dials url. TransportConnected is
// delivered before Connect returns.
func (w *Websocket) Connect(ctx context.Context, url string) error {
	w.mu.Lock()
	old := w.conn
	w.conn = nil
	w.gen++
	w.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	conn, _, err := w.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.New().Wrap(errors.ErrTransport, err)
	}
	conn.SetReadLimit(w.opts.ReadLimit)

	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.conn = conn
	h := w.handler
	w.mu.Unlock()

	logger.Debug().Str("component", "transport").Str("url", url).Uint64("session", gen).Msg("Session opened")

	if h != nil {
		h(monitor.TransportConnected, nil, nil)
	}
	go w.readLoop(conn, gen)

	return nil
}

// Disconnect ends the current session. No further events are delivered
// for it.
func (w *Websocket) Disconnect() error {
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.gen++
	w.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(w.opts.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	if err := conn.Close(); err != nil {
		return errors.New().Wrap(errors.ErrTransport, err)
	}

	return nil
}

// Send writes one text message on the current session
func (w *Websocket) Send(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return errors.New().New(errors.ErrNotOpen)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout)); err != nil {
		return errors.New().Wrap(errors.ErrTransport, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.New().Wrap(errors.ErrTransport, err)
	}

	return nil
}

func (w *Websocket) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.sessionEnded(conn, gen, err)
			return
		}

		h, ok := w.handlerFor(gen)
		if !ok {
			return
		}
		if h != nil {
			h(monitor.TransportData, data, nil)
		}
	}
}

// handlerFor returns the handler while gen is still the live session
func (w *Websocket) handlerFor(gen uint64) (monitor.TransportHandler, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.gen != gen {
		return nil, false
	}

	return w.handler, true
}

func (w *Websocket) sessionEnded(conn *websocket.Conn, gen uint64, err error) {
	_ = conn.Close()

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return
	}
	w.conn = nil
	w.gen++
	h := w.handler
	w.mu.Unlock()

	logger.Debug().Str("component", "transport").Uint64("session", gen).Err(err).Msg("Session ended")

	if h == nil {
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		h(monitor.TransportDisconnected, nil, err)
		return
	}
	h(monitor.TransportError, nil, errors.New().Wrap(errors.ErrTransport, err))
}
