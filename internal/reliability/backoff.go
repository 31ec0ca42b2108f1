package reliability

import (
	"time"
)

// Schedule is an ordered backoff-delay schedule. Delay(n) returns the entry
// at index n; attempts past the end reuse the last entry.
type Schedule []time.Duration

// DefaultReconnectSchedule returns the standard reconnection backoff.
func DefaultReconnectSchedule() Schedule {
	return Schedule{
		1 * time.Second,
		2 * time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
	}
}

// Delay returns the delay for the given zero-based attempt number, clamped
// to the last configured entry. An empty schedule yields zero.
func (s Schedule) Delay(attempt int) time.Duration {
	if len(s) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(s) {
		attempt = len(s) - 1
	}
	return s[attempt]
}

// Valid reports whether every entry is positive and the schedule is non-empty.
func (s Schedule) Valid() bool {
	if len(s) == 0 {
		return false
	}
	for _, d := range s {
		if d <= 0 {
			return false
		}
	}
	return true
}

// IncrementalDelay grows linearly with the retry count and caps at Max.
type IncrementalDelay struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultRetryDelay returns the send-retry policy: one second per retry,
// capped at five seconds.
func DefaultRetryDelay() IncrementalDelay {
	return IncrementalDelay{
		Base: 1 * time.Second,
		Max:  5 * time.Second,
	}
}

// Delay returns Base*retryCount clamped to Max. A retry count below one is
// treated as one.
func (d IncrementalDelay) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := d.Base * time.Duration(retryCount)
	if d.Max > 0 && delay > d.Max {
		delay = d.Max
	}
	return delay
}
