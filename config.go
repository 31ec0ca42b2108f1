package dicewire

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/JokerTrickster/dicewire-go/internal/reliability"
)

// ErrInvalidConfig marks a configuration rejected at construction or update
// time. Invalid configuration never reaches the connection state machine.
var ErrInvalidConfig = errors.New("dicewire: invalid configuration")

// Config is the full connection configuration. It is immutable per
// connection attempt: UpdateConfig swaps the whole value and cycles the
// connection instead of mutating an active session.
type Config struct {
	// ServerAddress is the ws:// or wss:// endpoint.
	ServerAddress string

	// ConnectTimeout bounds each connect attempt.
	ConnectTimeout time.Duration

	// MessageTimeout is how long a message may wait, queued or in
	// flight, before it is discarded unsent. It also bounds inbound
	// envelope freshness.
	MessageTimeout time.Duration

	// AutoReconnect arms automatic reconnection on connection loss.
	AutoReconnect bool

	// MaxReconnectAttempts bounds one reconnection episode.
	MaxReconnectAttempts int

	// BackoffSchedule holds the delays between reconnect attempts,
	// indexed by attempt number and clamped to the last entry.
	BackoffSchedule reliability.Schedule

	// MaxQueueSize bounds the outbound queue.
	MaxQueueSize int

	// MaxMessageSize caps the serialized envelope in bytes.
	MaxMessageSize int

	// HeartbeatEnabled turns the liveness monitor on.
	HeartbeatEnabled bool

	// HeartbeatInterval is the probe period while connected.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long to wait for a reply. Must exceed the
	// interval.
	HeartbeatTimeout time.Duration
}

// DefaultConfig returns the standard configuration for addr.
func DefaultConfig(addr string) Config {
	return Config{
		ServerAddress:        addr,
		ConnectTimeout:       10 * time.Second,
		MessageTimeout:       30 * time.Second,
		AutoReconnect:        true,
		MaxReconnectAttempts: 5,
		BackoffSchedule:      reliability.DefaultReconnectSchedule(),
		MaxQueueSize:         100,
		MaxMessageSize:       1 << 20,
		HeartbeatEnabled:     true,
		HeartbeatInterval:    30 * time.Second,
		HeartbeatTimeout:     60 * time.Second,
	}
}

// Validate rejects fatal configuration before it reaches the state machine.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerAddress)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: server address %q must be a ws:// or wss:// URL", ErrInvalidConfig, c.ServerAddress)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", ErrInvalidConfig)
	}
	if c.MessageTimeout <= 0 {
		return fmt.Errorf("%w: message timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: max reconnect attempts must not be negative", ErrInvalidConfig)
	}
	if !c.BackoffSchedule.Valid() {
		return fmt.Errorf("%w: backoff schedule must be non-empty with positive delays", ErrInvalidConfig)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("%w: max queue size must be positive", ErrInvalidConfig)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	if c.HeartbeatEnabled {
		if c.HeartbeatInterval <= 0 {
			return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalidConfig)
		}
		if c.HeartbeatTimeout <= c.HeartbeatInterval {
			return fmt.Errorf("%w: heartbeat timeout must exceed the interval", ErrInvalidConfig)
		}
	}
	return nil
}
