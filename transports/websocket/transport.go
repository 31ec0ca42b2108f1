// Package websocket implements messaging.Transport over a WebSocket
// connection. It owns exactly one physical connection at a time, runs the
// receive loop for its lifetime, and translates socket failures into the
// connection-lost contract the connection manager consumes.
package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/JokerTrickster/dicewire-go/internal/ws"
)

// Transport connects to one server address and moves raw envelope frames.
type Transport struct {
	addr   string
	dialer *ws.Dialer
	logger *slog.Logger

	// headerFn builds the handshake header per dial, so a refreshed
	// bearer token is picked up on reconnect
	headerFn func() http.Header

	mu           sync.Mutex
	sock         *ws.Socket
	closedByUs   bool
	frameHandler func([]byte)
	lostHandler  func(error)

	readWg sync.WaitGroup
}

// TransportOption configures the Transport.
type TransportOption func(*Transport)

// WithTransportLogger sets the logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithHandshakeHeader supplies the header attached to each dial. Called
// once per connection attempt.
func WithHandshakeHeader(fn func() http.Header) TransportOption {
	return func(t *Transport) {
		t.headerFn = fn
	}
}

// WithDialer replaces the default socket dialer.
func WithDialer(d *ws.Dialer) TransportOption {
	return func(t *Transport) {
		t.dialer = d
	}
}

// NewTransport creates a transport for addr (ws:// or wss://).
func NewTransport(addr string, options ...TransportOption) *Transport {
	t := &Transport{
		addr:   addr,
		dialer: ws.NewDialer(),
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

// SetFrameHandler implements messaging.Transport.
func (t *Transport) SetFrameHandler(fn func(frame []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameHandler = fn
}

// SetConnectionLostHandler implements messaging.Transport.
func (t *Transport) SetConnectionLostHandler(fn func(err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lostHandler = fn
}

// Connect dials the server and starts the receive loop.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.sock != nil {
		t.mu.Unlock()
		return ws.ErrAlreadyConnected
	}
	var header http.Header
	if t.headerFn != nil {
		header = t.headerFn()
	}
	t.mu.Unlock()

	sock, err := t.dialer.Dial(ctx, t.addr, header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.sock != nil {
		// a concurrent Connect won the race
		t.mu.Unlock()
		sock.Close()
		return ws.ErrAlreadyConnected
	}
	t.sock = sock
	t.closedByUs = false
	t.readWg.Add(1)
	t.mu.Unlock()

	go t.readLoop(sock)

	t.logger.Debug("transport connected", "addr", t.addr)
	return nil
}

// Disconnect closes the connection and waits for the receive loop to
// observe the closed socket. Safe to call in any state.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	sock := t.sock
	if sock == nil {
		t.mu.Unlock()
		return nil
	}
	t.closedByUs = true
	t.mu.Unlock()

	err := sock.Close()
	t.readWg.Wait()
	return err
}

// Send writes one raw frame. A write failure reports connection loss to
// the owning connection manager and is returned to the caller.
func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	sock := t.sock
	lost := t.lostHandler
	t.mu.Unlock()

	if sock == nil {
		return ws.NewConnectionError("write", t.addr, ws.ErrSocketClosed)
	}

	if err := sock.WriteText(frame); err != nil {
		t.logger.Warn("send failed", "addr", t.addr, "error", err)
		if lost != nil {
			lost(err)
		}
		return err
	}
	return nil
}

// Connected implements messaging.Transport.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sock != nil
}

// readLoop is the sole reader of the socket and the only writer of
// "connection closed by peer" events. It exits when the socket errors or
// is closed locally.
func (t *Transport) readLoop(sock *ws.Socket) {
	var readErr error
	for {
		messageType, data, err := sock.ReadFrame()
		if err != nil {
			readErr = err
			break
		}
		if messageType != ws.TextMessage {
			t.logger.Debug("ignoring non-text frame", "messageType", messageType)
			continue
		}

		t.mu.Lock()
		handler := t.frameHandler
		t.mu.Unlock()
		if handler != nil {
			handler(data)
		}
	}

	sock.Close()

	t.mu.Lock()
	closedByUs := t.closedByUs
	if t.sock == sock {
		t.sock = nil
	}
	lost := t.lostHandler
	t.mu.Unlock()

	// release Disconnect before reporting loss so the connection manager
	// can call back into Disconnect without deadlocking
	t.readWg.Done()

	if closedByUs {
		t.logger.Debug("receive loop exited after local close")
		return
	}

	if ws.IsCloseError(readErr) {
		t.logger.Info("connection closed by peer", "addr", t.addr)
	} else {
		t.logger.Warn("receive loop failed", "addr", t.addr, "error", readErr)
	}
	if lost != nil {
		lost(readErr)
	}
}
