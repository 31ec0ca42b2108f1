package ws

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Connection errors
	ErrSocketClosed     = errors.New("ws: socket is closed")
	ErrConnectTimeout   = errors.New("ws: connect timeout")
	ErrInvalidAddress   = errors.New("ws: invalid server address")
	ErrAlreadyConnected = errors.New("ws: already connected")

	// Write errors
	ErrWriteFailed = errors.New("ws: write failed")
)

// ConnectionError describes a failed socket operation.
type ConnectionError struct {
	Op        string    // operation that failed ("dial", "write", "read", "close")
	URL       string    // server address
	Err       error     // underlying error
	Timestamp time.Time // when the failure occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ws connection error: %s %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps err with operation context.
func NewConnectionError(op, url string, err error) *ConnectionError {
	return &ConnectionError{
		Op:        op,
		URL:       url,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// IsFatal reports whether err can never succeed on retry, such as a
// malformed server address. Fatal errors move the connection manager into
// its error state instead of the reconnect loop.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidAddress)
}
