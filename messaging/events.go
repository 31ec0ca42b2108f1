package messaging

import (
	"github.com/JokerTrickster/dicewire-go/contracts"
)

// EventKind discriminates the events surfaced to the application.
type EventKind int

const (
	// EventStateChanged carries the new ConnectionState.
	EventStateChanged EventKind = iota
	// EventMessageReceived carries a decoded inbound envelope.
	EventMessageReceived
	// EventMessageSendFailed reports a queued message that will not be
	// sent: expired, evicted, or out of retries.
	EventMessageSendFailed
	// EventQueueOverflow reports an enqueue rejected by a full queue.
	EventQueueOverflow
	// EventReconnectAttempt reports one reconnection attempt starting.
	EventReconnectAttempt
	// EventReconnected reports a successful reconnection.
	EventReconnected
	// EventReconnectExhausted reports that all reconnection attempts
	// failed; the connection stays down until an explicit Connect.
	EventReconnectExhausted
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state-changed"
	case EventMessageReceived:
		return "message-received"
	case EventMessageSendFailed:
		return "message-send-failed"
	case EventQueueOverflow:
		return "queue-overflow"
	case EventReconnectAttempt:
		return "reconnect-attempt"
	case EventReconnected:
		return "reconnected"
	case EventReconnectExhausted:
		return "reconnect-exhausted"
	default:
		return "unknown"
	}
}

// Event is one occurrence delivered to subscribers. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind EventKind

	// EventStateChanged
	State ConnectionState

	// EventMessageReceived
	Envelope *contracts.Envelope

	// EventMessageSendFailed
	MessageID string
	Reason    error

	// EventQueueOverflow
	QueueSize int

	// EventReconnectAttempt
	Attempt     int
	MaxAttempts int
}

// EventHandler receives events from the Dispatcher, one at a time, in
// publish order.
type EventHandler func(Event)

// EventSink accepts events for delivery. Both ConnectionManager and
// MessageQueue publish through it; the Dispatcher implements it.
type EventSink interface {
	Publish(evt Event)
}
