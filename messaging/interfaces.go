package messaging

import (
	"context"
)

// Transport moves raw frames over one physical duplex connection. The
// ConnectionManager drives Connect/Disconnect; the MessageQueue drives Send.
//
// Implementations run a receive loop for the lifetime of an open connection
// and deliver complete inbound frames through the frame handler. When the
// peer closes the connection or a read fails, the receive loop invokes the
// connection-lost handler exactly once and exits.
type Transport interface {
	// Connect establishes the connection. It is an error to call while
	// already connected.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. Safe to call in any state.
	Disconnect() error

	// Send writes one raw frame. It fails fast when not connected.
	Send(ctx context.Context, frame []byte) error

	// Connected reports whether a connection is currently open.
	Connected() bool

	// SetFrameHandler installs the inbound frame callback. Must be called
	// before Connect.
	SetFrameHandler(fn func(frame []byte))

	// SetConnectionLostHandler installs the callback invoked when the
	// connection drops outside of an explicit Disconnect. Must be called
	// before Connect.
	SetConnectionLostHandler(fn func(err error))
}
