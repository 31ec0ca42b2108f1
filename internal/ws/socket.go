package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 5 * time.Second
	closeGracePeriod    = 500 * time.Millisecond

	// TextMessage is the frame type carrying envelope JSON.
	TextMessage = websocket.TextMessage
)

// Dialer establishes WebSocket connections.
type Dialer struct {
	writeTimeout time.Duration
	readLimit    int64
	logger       *slog.Logger
}

// DialerOption configures the Dialer.
type DialerOption func(*Dialer)

// WithWriteTimeout sets the per-write deadline applied to outbound frames.
func WithWriteTimeout(d time.Duration) DialerOption {
	return func(dl *Dialer) {
		dl.writeTimeout = d
	}
}

// WithReadLimit caps the size of inbound frames in bytes.
func WithReadLimit(limit int64) DialerOption {
	return func(dl *Dialer) {
		dl.readLimit = limit
	}
}

// WithDialerLogger sets the logger.
func WithDialerLogger(logger *slog.Logger) DialerOption {
	return func(dl *Dialer) {
		dl.logger = logger
	}
}

// NewDialer creates a dialer with default write timeout and read limit.
func NewDialer(options ...DialerOption) *Dialer {
	d := &Dialer{
		writeTimeout: defaultWriteTimeout,
		readLimit:    1 << 20,
		logger:       slog.Default(),
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Dial connects to addr (a ws:// or wss:// URL) and returns a Socket. The
// supplied header is sent with the handshake; ctx bounds the dial.
func (d *Dialer) Dial(ctx context.Context, addr string, header http.Header) (*Socket, error) {
	u, err := url.Parse(addr)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return nil, NewConnectionError("dial", addr, ErrInvalidAddress)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewConnectionError("dial", addr, ErrConnectTimeout)
		}
		return nil, NewConnectionError("dial", addr, err)
	}
	conn.SetReadLimit(d.readLimit)

	d.logger.Debug("websocket dialed", "addr", addr)

	return &Socket{
		conn:         conn,
		addr:         addr,
		writeTimeout: d.writeTimeout,
	}, nil
}

// Socket is a single open WebSocket connection. Writes may come from any
// goroutine; reads must come from one.
type Socket struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// WriteText sends one text frame. The write is serialized against other
// writers and bounded by the write deadline.
func (s *Socket) WriteText(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return NewConnectionError("write", s.addr, ErrSocketClosed)
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return NewConnectionError("write", s.addr, fmt.Errorf("%w: %v", ErrWriteFailed, err))
	}
	return nil
}

// ReadFrame blocks until the next complete frame arrives. Control frames are
// handled by gorilla internally; binary frames are returned as-is and left
// to the caller to reject.
func (s *Socket) ReadFrame() (messageType int, data []byte, err error) {
	messageType, data, err = s.conn.ReadMessage()
	if err != nil {
		return messageType, nil, NewConnectionError("read", s.addr, err)
	}
	return messageType, data, nil
}

// Close sends a close frame, waits briefly, and tears the connection down.
// Safe to call more than once.
func (s *Socket) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(closeGracePeriod))
	return s.conn.Close()
}

func (s *Socket) isClosed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closed
}

// IsCloseError reports whether err represents the peer closing the
// connection rather than a local fault.
func IsCloseError(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		err = ce.Err
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
