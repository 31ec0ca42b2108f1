// Package ws owns the physical WebSocket connection.
//
// A Socket wraps exactly one gorilla/websocket connection. Writes are
// serialized through a mutex and carry a write deadline; reads are expected
// from a single goroutine (the transport's receive loop). Dialing and
// failure translation into typed errors also live here, so the layers above
// only ever see the ConnectionError contract.
package ws
