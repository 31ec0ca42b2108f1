package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JokerTrickster/dicewire-go/contracts"
)

// MessageHandler processes a decoded inbound envelope of one type.
type MessageHandler interface {
	Handle(ctx context.Context, env *contracts.Envelope) error
}

// MessageHandlerFunc is a function adapter for MessageHandler.
type MessageHandlerFunc func(ctx context.Context, env *contracts.Envelope) error

// Handle implements MessageHandler.
func (f MessageHandlerFunc) Handle(ctx context.Context, env *contracts.Envelope) error {
	return f(ctx, env)
}

// Dispatcher delivers events to subscribers through a single consumer
// goroutine. Producers publish concurrently; callbacks run one at a time in
// publish order, so subscribers never need their own locking for ordering.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers []EventHandler
	handlers    map[string][]MessageHandler

	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithEventBuffer sets the delivery queue capacity.
func WithEventBuffer(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan Event, size)
		}
	}
}

// NewDispatcher creates a dispatcher and starts its delivery loop.
func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string][]MessageHandler),
		queue:    make(chan Event, 256),
		done:     make(chan struct{}),
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Subscribe registers a handler for every event kind.
func (d *Dispatcher) Subscribe(handler EventHandler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, handler)
}

// RegisterHandler registers a typed handler for inbound envelopes of
// messageType. The type must be in the vocabulary and receivable.
func (d *Dispatcher) RegisterHandler(messageType string, handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("messaging: handler cannot be nil")
	}
	if !contracts.KnownType(messageType) {
		return fmt.Errorf("messaging: cannot register handler: %w", contracts.ErrUnknownType)
	}
	if !contracts.CanReceive(messageType) {
		return fmt.Errorf("messaging: cannot register handler for send-only type %q", messageType)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageType] = append(d.handlers[messageType], handler)

	d.logger.Debug("registered message handler", "messageType", messageType)
	return nil
}

// Publish queues an event for delivery. Publishing never blocks the caller:
// if the delivery queue is full the event is dropped and logged.
func (d *Dispatcher) Publish(evt Event) {
	select {
	case <-d.done:
		return
	default:
	}

	select {
	case d.queue <- evt:
	default:
		d.logger.Warn("event queue full, dropping event", "kind", evt.Kind.String())
	}
}

// Close stops the delivery loop after draining queued events. Idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case evt := <-d.queue:
			d.deliver(evt)
		case <-d.done:
			// drain what was published before Close
			for {
				select {
				case evt := <-d.queue:
					d.deliver(evt)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(evt Event) {
	d.mu.RLock()
	subscribers := make([]EventHandler, len(d.subscribers))
	copy(subscribers, d.subscribers)
	var typed []MessageHandler
	if evt.Kind == EventMessageReceived && evt.Envelope != nil {
		typed = append(typed, d.handlers[evt.Envelope.Type]...)
	}
	d.mu.RUnlock()

	for _, sub := range subscribers {
		d.invoke(func() { sub(evt) })
	}

	for _, handler := range typed {
		h := handler
		d.invoke(func() {
			if err := h.Handle(context.Background(), evt.Envelope); err != nil {
				d.logger.Error("message handler failed",
					"messageType", evt.Envelope.Type,
					"messageId", evt.Envelope.ID,
					"error", err)
			}
		})
	}
}

// invoke shields the delivery loop from a panicking callback.
func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event subscriber panicked", "panic", r)
		}
	}()
	fn()
}
