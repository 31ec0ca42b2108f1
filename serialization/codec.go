package serialization

import (
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JokerTrickster/dicewire-go/contracts"
)

const (
	// DefaultMaxMessageSize caps the serialized envelope at 1 MiB.
	DefaultMaxMessageSize = 1 << 20
	// DefaultMessageTTL is how long a decoded envelope stays deliverable.
	DefaultMessageTTL = 30 * time.Second
)

// Codec encodes and decodes envelopes with validation. A Codec is immutable
// after construction and safe for concurrent use.
type Codec struct {
	maxMessageSize int
	messageTTL     time.Duration
	clock          clock.Clock
}

// CodecOption configures the Codec.
type CodecOption func(*Codec)

// WithMaxMessageSize sets the serialized size limit in bytes.
func WithMaxMessageSize(limit int) CodecOption {
	return func(c *Codec) {
		c.maxMessageSize = limit
	}
}

// WithMessageTTL sets the decode freshness window. Zero disables expiry.
func WithMessageTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.messageTTL = ttl
	}
}

// WithClock sets the clock used for stamping and expiry checks.
func WithClock(clk clock.Clock) CodecOption {
	return func(c *Codec) {
		c.clock = clk
	}
}

// NewCodec creates a codec with default limits.
func NewCodec(options ...CodecOption) *Codec {
	c := &Codec{
		maxMessageSize: DefaultMaxMessageSize,
		messageTTL:     DefaultMessageTTL,
		clock:          clock.New(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// MaxMessageSize returns the serialized size limit.
func (c *Codec) MaxMessageSize() int {
	return c.maxMessageSize
}

// Encode validates env for the outbound direction and serializes it.
// CreatedAt is stamped at call time; a missing ID or version is filled in.
// The envelope is not mutated on failure.
func (c *Codec) Encode(env *contracts.Envelope) ([]byte, error) {
	if env == nil {
		return nil, contracts.NewProtocolError("encode", "", contracts.ErrMalformedEnvelope)
	}
	if !contracts.KnownType(env.Type) {
		return nil, contracts.NewProtocolError("encode", env.Type, contracts.ErrUnknownType)
	}
	if !contracts.CanSend(env.Type) {
		return nil, contracts.NewProtocolError("encode", env.Type, contracts.ErrDirectionViolation)
	}
	if !env.Priority.Valid() {
		return nil, contracts.NewProtocolError("encode", env.Type, contracts.ErrInvalidPriority)
	}
	if !contracts.VersionSupported(versionOrCurrent(env)) {
		return nil, contracts.NewProtocolError("encode", env.Type, contracts.ErrVersionUnsupported)
	}

	stamped := *env
	stamped.CreatedAt = c.clock.Now().UTC()
	if stamped.ID == "" {
		return nil, contracts.NewProtocolError("encode", env.Type, contracts.ErrMissingID)
	}
	if stamped.ProtocolVersion == "" {
		stamped.ProtocolVersion = contracts.CurrentProtocolVersion
	}

	data, err := json.Marshal(&stamped)
	if err != nil {
		return nil, contracts.NewProtocolError("encode", env.Type, err)
	}
	if len(data) > c.maxMessageSize {
		return nil, contracts.NewProtocolError("encode", env.Type, contracts.ErrEnvelopeTooLarge)
	}

	env.CreatedAt = stamped.CreatedAt
	env.ProtocolVersion = stamped.ProtocolVersion
	return data, nil
}

// Decode parses and validates an inbound frame. Validation runs in order:
// wire format, known type, size, version, expiry. Direction is checked so a
// send-only type arriving from the service is rejected.
func (c *Codec) Decode(data []byte) (*contracts.Envelope, error) {
	var env contracts.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, contracts.NewProtocolError("decode", "", contracts.ErrMalformedEnvelope)
	}
	if env.ID == "" {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrMissingID)
	}
	if !contracts.KnownType(env.Type) {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrUnknownType)
	}
	if !contracts.CanReceive(env.Type) {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrDirectionViolation)
	}
	if len(data) > c.maxMessageSize {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrEnvelopeTooLarge)
	}
	if !contracts.VersionSupported(env.ProtocolVersion) {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrVersionUnsupported)
	}
	if env.CreatedAt.IsZero() {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrMissingCreatedAt)
	}
	if env.Expired(c.clock.Now(), c.messageTTL) {
		return nil, contracts.NewProtocolError("decode", env.Type, contracts.ErrEnvelopeExpired)
	}

	return &env, nil
}

func versionOrCurrent(env *contracts.Envelope) string {
	if env.ProtocolVersion == "" {
		return contracts.CurrentProtocolVersion
	}
	return env.ProtocolVersion
}
