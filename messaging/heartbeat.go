package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// HeartbeatMonitor probes liveness while the connection is up. Every
// interval it sends one heartbeat frame and waits up to timeout for any
// pong to be observed. Matching is type-based only: a pong received out of
// order still satisfies the pending wait, since loss of liveness is the
// only signal that matters. Exactly one cycle is in flight at a time.
type HeartbeatMonitor struct {
	interval  time.Duration
	timeout   time.Duration
	send      func(ctx context.Context) error
	onTimeout func()
	clock     clock.Clock
	logger    *slog.Logger

	pong     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHeartbeatMonitor creates a monitor. send is invoked once per interval;
// onTimeout is invoked at most once, after which the monitor stops itself.
func NewHeartbeatMonitor(interval, timeout time.Duration, clk clock.Clock, logger *slog.Logger, send func(ctx context.Context) error, onTimeout func()) *HeartbeatMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &HeartbeatMonitor{
		interval:  interval,
		timeout:   timeout,
		send:      send,
		onTimeout: onTimeout,
		clock:     clk,
		logger:    logger,
		pong:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Start launches the heartbeat loop.
func (m *HeartbeatMonitor) Start() {
	go m.run()
}

// Stop halts the loop. Idempotent, does not wait for the goroutine.
func (m *HeartbeatMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
}

// NotifyPong records that a pong was observed. Never blocks; an extra pong
// with no cycle pending is remembered for the next one.
func (m *HeartbeatMonitor) NotifyPong() {
	select {
	case m.pong <- struct{}{}:
	default:
	}
}

func (m *HeartbeatMonitor) run() {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if !m.cycle() {
				return
			}
		}
	}
}

// cycle sends one heartbeat and waits for a pong. Returns false when the
// monitor should stop.
func (m *HeartbeatMonitor) cycle() bool {
	if err := m.send(context.Background()); err != nil {
		// the transport reports its own failure to the connection
		// manager; the loop just stops probing a dead connection
		m.logger.Warn("heartbeat send failed", "error", err)
		return false
	}

	timer := m.clock.Timer(m.timeout)
	defer timer.Stop()

	select {
	case <-m.pong:
		return true
	case <-timer.C:
		m.logger.Warn("heartbeat reply missed", "timeout", m.timeout)
		m.Stop()
		m.onTimeout()
		return false
	case <-m.done:
		return false
	}
}
