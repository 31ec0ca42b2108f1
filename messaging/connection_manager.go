package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JokerTrickster/dicewire-go/internal/reliability"
	"github.com/JokerTrickster/dicewire-go/internal/ws"
)

// ConnectionManager owns the connection state machine. It drives the
// transport's connect/disconnect, runs the reconnection loop, and owns the
// heartbeat monitor. State transitions happen nowhere else.
type ConnectionManager struct {
	transport Transport
	events    EventSink
	logger    *slog.Logger
	clock     clock.Clock

	connectTimeout       time.Duration
	autoReconnect        bool
	maxReconnectAttempts int
	schedule             reliability.Schedule

	heartbeatEnabled  bool
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	sendHeartbeat     func(ctx context.Context) error

	mu              sync.Mutex
	state           ConnectionState
	monitor         *HeartbeatMonitor
	reconnectCancel chan struct{}
	closed          bool
	wg              sync.WaitGroup
}

// ConnectionOption configures the ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithConnectionLogger sets the logger.
func WithConnectionLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithConnectionClock sets the clock used for backoff sleeps and heartbeat
// timers.
func WithConnectionClock(clk clock.Clock) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.clock = clk
	}
}

// WithConnectTimeout bounds each connect attempt.
func WithConnectTimeout(d time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.connectTimeout = d
	}
}

// WithAutoReconnect arms or disarms automatic reconnection.
func WithAutoReconnect(enabled bool) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.autoReconnect = enabled
	}
}

// WithMaxReconnectAttempts sets the reconnection attempt budget.
func WithMaxReconnectAttempts(n int) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.maxReconnectAttempts = n
	}
}

// WithBackoffSchedule sets the delays between reconnection attempts.
func WithBackoffSchedule(s reliability.Schedule) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.schedule = s
	}
}

// WithHeartbeat enables the liveness monitor. send transmits one heartbeat
// frame; the manager treats a missed reply as connection loss.
func WithHeartbeat(interval, timeout time.Duration, send func(ctx context.Context) error) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.heartbeatEnabled = true
		cm.heartbeatInterval = interval
		cm.heartbeatTimeout = timeout
		cm.sendHeartbeat = send
	}
}

// NewConnectionManager creates a manager around transport. Events flow into
// events; the manager never invokes callbacks directly.
func NewConnectionManager(transport Transport, events EventSink, options ...ConnectionOption) *ConnectionManager {
	cm := &ConnectionManager{
		transport:            transport,
		events:               events,
		logger:               slog.Default(),
		clock:                clock.New(),
		connectTimeout:       10 * time.Second,
		autoReconnect:        true,
		maxReconnectAttempts: 5,
		schedule:             reliability.DefaultReconnectSchedule(),
		state:                StateDisconnected,
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm
}

// State returns the current connection state.
func (cm *ConnectionManager) State() ConnectionState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// Usable reports whether the connection can carry traffic right now.
func (cm *ConnectionManager) Usable() bool {
	return cm.State() == StateConnected
}

// Connect establishes the connection. Idempotent: a call while already
// connecting, connected, or reconnecting returns nil without side effects.
// An explicit Connect is also the only way out of StateError.
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrManagerClosed
	}
	switch cm.state {
	case StateConnecting, StateConnected, StateReconnecting:
		cm.mu.Unlock()
		return nil
	}
	cm.setStateLocked(StateConnecting)
	cm.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, cm.connectTimeout)
	defer cancel()
	err := cm.transport.Connect(connectCtx)

	cm.mu.Lock()
	if cm.state != StateConnecting {
		// Disconnect raced the dial; roll the connection back
		cm.mu.Unlock()
		if err == nil {
			_ = cm.transport.Disconnect()
		}
		return ErrConnectAborted
	}
	if err != nil {
		if ws.IsFatal(err) {
			cm.setStateLocked(StateError)
		} else {
			cm.setStateLocked(StateDisconnected)
		}
		cm.mu.Unlock()
		return err
	}
	cm.setStateLocked(StateConnected)
	cm.startHeartbeatLocked()
	cm.mu.Unlock()

	cm.logger.Info("connected")
	return nil
}

// Disconnect tears the connection down and cancels reconnection and
// heartbeat. Always safe to call.
func (cm *ConnectionManager) Disconnect() {
	cm.mu.Lock()
	cm.cancelReconnectLocked()
	cm.stopHeartbeatLocked()
	if cm.state != StateDisconnected {
		cm.setStateLocked(StateDisconnected)
	}
	cm.mu.Unlock()

	_ = cm.transport.Disconnect()
}

// Close disconnects and permanently retires the manager.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	cm.closed = true
	cm.mu.Unlock()

	cm.Disconnect()
	cm.wg.Wait()
}

// NotifyConnectionLost is called by the transport or queue on an I/O
// failure. It transitions to Disconnected and, when auto-reconnect is
// armed, schedules reconnection. Redundant notifications are ignored.
func (cm *ConnectionManager) NotifyConnectionLost(err error) {
	cm.mu.Lock()
	if cm.closed || cm.state != StateConnected {
		cm.mu.Unlock()
		return
	}
	cm.stopHeartbeatLocked()
	cm.setStateLocked(StateDisconnected)
	armed := cm.autoReconnect
	cm.mu.Unlock()

	cm.logger.Warn("connection lost", "error", err)
	_ = cm.transport.Disconnect()

	if armed {
		cm.startReconnect()
	}
}

// NotifyPong forwards a pong observation to the active heartbeat cycle.
func (cm *ConnectionManager) NotifyPong() {
	cm.mu.Lock()
	monitor := cm.monitor
	cm.mu.Unlock()
	if monitor != nil {
		monitor.NotifyPong()
	}
}

func (cm *ConnectionManager) startReconnect() {
	cm.mu.Lock()
	if cm.closed || cm.reconnectCancel != nil || cm.state != StateDisconnected {
		cm.mu.Unlock()
		return
	}
	cancel := make(chan struct{})
	cm.reconnectCancel = cancel
	cm.setStateLocked(StateReconnecting)
	cm.wg.Add(1)
	cm.mu.Unlock()

	go cm.reconnectLoop(cancel)
}

func (cm *ConnectionManager) reconnectLoop(cancel chan struct{}) {
	defer cm.wg.Done()

	for attempt := 1; attempt <= cm.maxReconnectAttempts; attempt++ {
		delay := cm.schedule.Delay(attempt - 1)
		timer := cm.clock.Timer(delay)
		select {
		case <-cancel:
			timer.Stop()
			return
		case <-timer.C:
		}
		// the cancel signal may race the timer firing
		select {
		case <-cancel:
			return
		default:
		}

		cm.events.Publish(Event{
			Kind:        EventReconnectAttempt,
			Attempt:     attempt,
			MaxAttempts: cm.maxReconnectAttempts,
		})
		cm.logger.Info("attempting to reconnect",
			"attempt", attempt,
			"maxAttempts", cm.maxReconnectAttempts)

		connectCtx, cancelConnect := context.WithTimeout(context.Background(), cm.connectTimeout)
		err := cm.transport.Connect(connectCtx)
		cancelConnect()

		if err == nil {
			cm.mu.Lock()
			select {
			case <-cancel:
				cm.mu.Unlock()
				_ = cm.transport.Disconnect()
				return
			default:
			}
			cm.reconnectCancel = nil
			cm.setStateLocked(StateConnected)
			cm.startHeartbeatLocked()
			cm.mu.Unlock()

			cm.logger.Info("reconnected", "attempts", attempt)
			cm.events.Publish(Event{Kind: EventReconnected})
			return
		}

		cm.logger.Error("reconnect attempt failed",
			"attempt", attempt,
			"error", err)

		if ws.IsFatal(err) {
			cm.mu.Lock()
			cm.reconnectCancel = nil
			cm.setStateLocked(StateError)
			cm.mu.Unlock()
			cm.events.Publish(Event{Kind: EventReconnectExhausted, Reason: err})
			return
		}
	}

	cm.mu.Lock()
	cm.reconnectCancel = nil
	cm.setStateLocked(StateDisconnected)
	cm.mu.Unlock()

	cm.logger.Error("reconnect attempts exhausted",
		"attempts", cm.maxReconnectAttempts)
	cm.events.Publish(Event{Kind: EventReconnectExhausted, Reason: ErrReconnectExhausted})
}

// setStateLocked transitions the state machine and publishes the change.
// Callers hold cm.mu.
func (cm *ConnectionManager) setStateLocked(next ConnectionState) {
	if cm.state == next {
		return
	}
	cm.logger.Debug("connection state changed",
		"from", cm.state.String(),
		"to", next.String())
	cm.state = next
	cm.events.Publish(Event{Kind: EventStateChanged, State: next})
}

func (cm *ConnectionManager) startHeartbeatLocked() {
	if !cm.heartbeatEnabled || cm.sendHeartbeat == nil {
		return
	}
	cm.monitor = NewHeartbeatMonitor(
		cm.heartbeatInterval,
		cm.heartbeatTimeout,
		cm.clock,
		cm.logger,
		cm.sendHeartbeat,
		func() { cm.NotifyConnectionLost(ErrHeartbeatTimeout) },
	)
	cm.monitor.Start()
}

func (cm *ConnectionManager) stopHeartbeatLocked() {
	if cm.monitor != nil {
		cm.monitor.Stop()
		cm.monitor = nil
	}
}

func (cm *ConnectionManager) cancelReconnectLocked() {
	if cm.reconnectCancel != nil {
		close(cm.reconnectCancel)
		cm.reconnectCancel = nil
	}
}
