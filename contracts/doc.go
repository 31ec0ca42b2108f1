// Package contracts defines the message envelope exchanged with the game
// service and the closed vocabulary of envelope types.
//
// An Envelope wraps an application payload with identity, timing, versioning,
// and priority metadata. The vocabulary splits types into those the client
// may send and those it may only receive; the serialization package enforces
// the split during encode and decode.
//
// Types in this package are plain data. They carry no transport or queueing
// behavior and are safe to share across goroutines once constructed.
package contracts
