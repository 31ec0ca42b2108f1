package messaging

// ConnectionState is the current phase of the connection state machine.
// Exactly one state is active at a time; only the ConnectionManager
// transitions between them.
type ConnectionState int

const (
	// StateDisconnected is the initial state and the terminal state for a
	// session whose reconnect attempts are exhausted.
	StateDisconnected ConnectionState = iota
	// StateConnecting is a connect attempt in flight.
	StateConnecting
	// StateConnected means the transport is usable and the heartbeat runs.
	StateConnected
	// StateReconnecting is the automatic reconnection loop.
	StateReconnecting
	// StateError is entered only on unrecoverable local faults and left
	// only by an explicit Connect.
	StateError
)

// String returns the state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
