// Package serialization implements the envelope wire codec.
//
// The codec turns contracts.Envelope values into JSON frames and back,
// enforcing the validation pipeline in a fixed order: well-formed wire
// format, known type, size limit, supported protocol version, and (on
// decode) freshness. A failure at any stage returns a typed
// contracts.ProtocolError and leaves no partial state behind.
//
// Direction is enforced here as well: encoding a receive-only type or
// decoding a send-only type is rejected before any bytes move.
package serialization
