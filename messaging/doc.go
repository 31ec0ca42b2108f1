// Package messaging implements the resilience core of the client.
//
// Three components live here, composed by the root package:
//   - ConnectionManager: the connection state machine. It drives the
//     transport's connect/disconnect, runs the reconnection loop against a
//     backoff schedule, and owns the heartbeat monitor. It is the single
//     source of truth for whether the connection is usable.
//   - MessageQueue: the bounded outbound priority queue. It buffers
//     envelopes while the transport is down or busy, drains them in stable
//     priority order through a single non-reentrant worker, retries
//     transient failures with an incremental delay, and evicts low-priority
//     entries to admit high-priority ones on overflow.
//   - Dispatcher: the event delivery queue. Producers (receive loop,
//     heartbeat, reconnection) publish concurrently; one consumer goroutine
//     invokes subscriber callbacks, so callers observe events in order and
//     never concurrently.
//
// Each component guards its own state with one mutex and never holds it
// across an I/O call. Background loops stop cooperatively and never panic
// the process: failures are logged, reported as events, and fed back into
// the state machine.
package messaging
