package contracts

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Validation errors
	ErrMalformedEnvelope   = errors.New("contracts: malformed envelope")
	ErrMissingID           = errors.New("contracts: envelope id is empty")
	ErrUnknownType         = errors.New("contracts: unknown envelope type")
	ErrEnvelopeTooLarge    = errors.New("contracts: envelope exceeds size limit")
	ErrVersionUnsupported  = errors.New("contracts: unsupported protocol version")
	ErrEnvelopeExpired     = errors.New("contracts: envelope expired")
	ErrDirectionViolation  = errors.New("contracts: envelope type not allowed in this direction")
	ErrInvalidPriority     = errors.New("contracts: invalid priority")
	ErrMissingCreatedAt    = errors.New("contracts: envelope createdAt is zero")
)

// ProtocolError describes a validation failure during encode or decode. The
// connection is unaffected by protocol errors; the envelope is rejected
// locally.
type ProtocolError struct {
	Op          string    // "encode" or "decode"
	MessageType string    // envelope type if known at failure time
	Err         error     // underlying sentinel or wire error
	Timestamp   time.Time // when the failure occurred
}

func (e *ProtocolError) Error() string {
	if e.MessageType != "" {
		return fmt.Sprintf("protocol error: %s of %q failed: %v", e.Op, e.MessageType, e.Err)
	}
	return fmt.Sprintf("protocol error: %s failed: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError wraps err with operation context.
func NewProtocolError(op, messageType string, err error) *ProtocolError {
	return &ProtocolError{
		Op:          op,
		MessageType: messageType,
		Err:         err,
		Timestamp:   time.Now(),
	}
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
