package messaging

import (
	"errors"
)

var (
	// Connection manager errors
	ErrManagerClosed      = errors.New("messaging: connection manager is closed")
	ErrNotConnected       = errors.New("messaging: not connected")
	ErrConnectAborted     = errors.New("messaging: connect aborted by disconnect")
	ErrReconnectExhausted = errors.New("messaging: reconnect attempts exhausted")
	ErrHeartbeatTimeout   = errors.New("messaging: heartbeat timed out")

	// Queue errors
	ErrQueueDisposed        = errors.New("messaging: queue is disposed")
	ErrQueueFull            = errors.New("messaging: queue is full")
	ErrMessageExpired       = errors.New("messaging: message timed out before send")
	ErrMessageEvicted       = errors.New("messaging: message evicted for a higher priority entry")
	ErrSendRetriesExhausted = errors.New("messaging: send retries exhausted")
)
