// Package reliability provides the delay policies behind reconnection and
// message retry.
//
// Two policies live here:
//   - Schedule: an ordered list of delays indexed by attempt number and
//     clamped to the last entry, used between reconnection attempts
//   - IncrementalDelay: a linearly growing, capped delay used between
//     send retries of a queued message
//
// Both are plain values, safe to share, with no internal state.
package reliability
