package contracts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority orders outbound envelopes in the send queue. Higher values drain
// first. Low priority envelopes are best-effort: they are never retried and
// are the first evicted when the queue overflows.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined priority levels.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// Envelope wraps an application payload for transport.
type Envelope struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProtocolVersion string          `json:"protocolVersion"`
	Priority        Priority        `json:"priority"`
}

// NewEnvelope creates an envelope with a generated ID and the current UTC
// timestamp. The payload is used as-is; callers marshal their own body.
func NewEnvelope(messageType string, payload json.RawMessage) *Envelope {
	return &Envelope{
		ID:              uuid.New().String(),
		Type:            messageType,
		Payload:         payload,
		CreatedAt:       time.Now().UTC(),
		ProtocolVersion: CurrentProtocolVersion,
		Priority:        PriorityNormal,
	}
}

// Age returns how long ago the envelope was created, relative to now.
func (e *Envelope) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Expired reports whether the envelope is older than ttl at time now.
func (e *Envelope) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && e.Age(now) > ttl
}
