package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/JokerTrickster/dicewire-go/contracts"
	"github.com/JokerTrickster/dicewire-go/internal/reliability"
	"github.com/JokerTrickster/dicewire-go/serialization"
)

const (
	// DefaultMaxQueueSize bounds the number of buffered messages.
	DefaultMaxQueueSize = 100
	// DefaultMaxRetries bounds send retries per message.
	DefaultMaxRetries = 3
	// DefaultMessageTimeout is how long a queued message stays sendable.
	DefaultMessageTimeout = 30 * time.Second
)

// SendFunc transmits one encoded frame. A non-nil error marks the attempt
// failed and feeds the retry policy.
type SendFunc func(ctx context.Context, frame []byte) error

// QueuedMessage is one outbound entry. It is owned by the queue for its
// whole lifetime: created on Enqueue, mutated only by the drain loop, and
// destroyed on success, permanent failure, expiry, or eviction.
type QueuedMessage struct {
	Envelope   *contracts.Envelope
	Frame      []byte
	Priority   contracts.Priority
	EnqueuedAt time.Time
	RetryCount int

	seq         uint64
	nextAttempt time.Time
}

// MessageQueue buffers outbound envelopes while the transport is busy or
// down and drains them in stable priority order through one worker.
type MessageQueue struct {
	send   SendFunc
	ready  func() bool
	codec  *serialization.Codec
	events EventSink
	clock  clock.Clock
	logger *slog.Logger

	maxSize        int
	maxRetries     int
	messageTimeout time.Duration
	retryDelay     reliability.IncrementalDelay

	mu       sync.Mutex
	items    []*QueuedMessage
	seq      uint64
	disposed bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	disposeOnce sync.Once
}

// QueueOption configures the MessageQueue.
type QueueOption func(*MessageQueue)

// WithQueueLogger sets the logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *MessageQueue) {
		q.logger = logger
	}
}

// WithQueueClock sets the clock used for expiry and retry delays.
func WithQueueClock(clk clock.Clock) QueueOption {
	return func(q *MessageQueue) {
		q.clock = clk
	}
}

// WithMaxQueueSize bounds the queue; enqueues beyond it evict or reject.
func WithMaxQueueSize(n int) QueueOption {
	return func(q *MessageQueue) {
		q.maxSize = n
	}
}

// WithMaxRetries bounds per-message send retries.
func WithMaxRetries(n int) QueueOption {
	return func(q *MessageQueue) {
		q.maxRetries = n
	}
}

// WithMessageTimeout sets how long an entry may wait before it is discarded
// unsent.
func WithMessageTimeout(d time.Duration) QueueOption {
	return func(q *MessageQueue) {
		q.messageTimeout = d
	}
}

// WithRetryDelay sets the delay policy between send retries.
func WithRetryDelay(d reliability.IncrementalDelay) QueueOption {
	return func(q *MessageQueue) {
		q.retryDelay = d
	}
}

// WithReadyCheck gates the drain on connection usability. When the check
// returns false the drain parks until the next Wake.
func WithReadyCheck(fn func() bool) QueueOption {
	return func(q *MessageQueue) {
		q.ready = fn
	}
}

// NewMessageQueue creates a queue that drains through send. Envelopes are
// validated and encoded by codec at enqueue time; failures and overflows
// are reported through events.
func NewMessageQueue(send SendFunc, codec *serialization.Codec, events EventSink, options ...QueueOption) *MessageQueue {
	q := &MessageQueue{
		send:           send,
		codec:          codec,
		events:         events,
		clock:          clock.New(),
		logger:         slog.Default(),
		maxSize:        DefaultMaxQueueSize,
		maxRetries:     DefaultMaxRetries,
		messageTimeout: DefaultMessageTimeout,
		retryDelay:     reliability.DefaultRetryDelay(),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}

	for _, opt := range options {
		opt(q)
	}

	return q
}

// Start launches the drain worker.
func (q *MessageQueue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Dispose stops the drain worker and rejects further enqueues. Entries
// still buffered are dropped. Idempotent.
func (q *MessageQueue) Dispose() {
	q.disposeOnce.Do(func() {
		q.mu.Lock()
		q.disposed = true
		dropped := len(q.items)
		q.items = nil
		q.mu.Unlock()

		close(q.done)
		q.wg.Wait()

		if dropped > 0 {
			q.logger.Info("queue disposed with messages pending", "dropped", dropped)
		}
	})
}

// Enqueue validates, encodes, and buffers env at the given priority. When
// the queue is full, a High or Critical entry may evict the oldest Low
// entry; otherwise the enqueue is rejected and an overflow event fires.
func (q *MessageQueue) Enqueue(env *contracts.Envelope, priority contracts.Priority) error {
	if !priority.Valid() {
		return contracts.ErrInvalidPriority
	}
	env.Priority = priority

	frame, err := q.codec.Encode(env)
	if err != nil {
		return err
	}

	var evicted *QueuedMessage

	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return ErrQueueDisposed
	}
	if len(q.items) >= q.maxSize {
		if priority >= contracts.PriorityHigh {
			evicted = q.evictOldestLowLocked()
		}
		if evicted == nil {
			size := len(q.items)
			q.mu.Unlock()
			q.events.Publish(Event{Kind: EventQueueOverflow, QueueSize: size})
			return ErrQueueFull
		}
	}
	q.seq++
	q.items = append(q.items, &QueuedMessage{
		Envelope:   env,
		Frame:      frame,
		Priority:   priority,
		EnqueuedAt: q.clock.Now(),
		seq:        q.seq,
	})
	q.mu.Unlock()

	if evicted != nil {
		q.logger.Info("evicted low-priority message",
			"messageId", evicted.Envelope.ID,
			"admitted", env.ID)
		q.events.Publish(Event{
			Kind:      EventMessageSendFailed,
			MessageID: evicted.Envelope.ID,
			Reason:    ErrMessageEvicted,
		})
	}

	q.Wake()
	return nil
}

// Wake nudges the drain worker. Called after enqueue and whenever the
// connection becomes usable again.
func (q *MessageQueue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of buffered messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns buffered message counts per priority.
func (q *MessageQueue) Snapshot() map[contracts.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[contracts.Priority]int, 4)
	for _, m := range q.items {
		counts[m.Priority]++
	}
	return counts
}

func (q *MessageQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case <-q.wake:
			if !q.drain() {
				return
			}
		}
	}
}

// drain sends ripe entries until the queue empties, the connection stops
// being usable, or the queue is disposed. Only one drain pass runs at a
// time; enqueues during a pass are picked up because the next entry is
// recomputed from the live queue each iteration. Returns false on dispose.
func (q *MessageQueue) drain() bool {
	for {
		select {
		case <-q.done:
			return false
		default:
		}
		if q.ready != nil && !q.ready() {
			return true
		}

		msg, wait := q.next()
		if msg == nil {
			if wait <= 0 {
				return true
			}
			// nothing ripe yet; park until the earliest retry
			timer := q.clock.Timer(wait)
			select {
			case <-q.done:
				timer.Stop()
				return false
			case <-q.wake:
				timer.Stop()
				continue
			case <-timer.C:
				continue
			}
		}

		q.process(msg)
	}
}

// next removes and returns the ripest entry: highest priority first, ties
// broken by enqueue order. When entries exist but none are ripe, it returns
// the wait until the earliest one.
func (q *MessageQueue) next() (*QueuedMessage, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	best := -1
	var earliest time.Time

	for i, m := range q.items {
		if m.nextAttempt.After(now) {
			if earliest.IsZero() || m.nextAttempt.Before(earliest) {
				earliest = m.nextAttempt
			}
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := q.items[best]
		if m.Priority > b.Priority || (m.Priority == b.Priority && m.seq < b.seq) {
			best = i
		}
	}

	if best == -1 {
		if earliest.IsZero() {
			return nil, 0
		}
		return nil, earliest.Sub(now)
	}

	msg := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return msg, 0
}

func (q *MessageQueue) process(msg *QueuedMessage) {
	now := q.clock.Now()
	if q.messageTimeout > 0 && now.Sub(msg.EnqueuedAt) > q.messageTimeout {
		q.reportFailure(msg, ErrMessageExpired)
		return
	}

	err := q.send(context.Background(), msg.Frame)
	if err == nil {
		q.logger.Debug("message sent",
			"messageId", msg.Envelope.ID,
			"priority", msg.Priority.String(),
			"retries", msg.RetryCount)
		return
	}

	// Low priority is best-effort only: no retries, fail immediately
	if msg.Priority == contracts.PriorityLow {
		q.reportFailure(msg, fmt.Errorf("%w: %v", ErrSendRetriesExhausted, err))
		return
	}

	msg.RetryCount++
	if msg.RetryCount >= q.maxRetries {
		q.reportFailure(msg, fmt.Errorf("%w after %d retries: %v", ErrSendRetriesExhausted, msg.RetryCount, err))
		return
	}

	msg.nextAttempt = now.Add(q.retryDelay.Delay(msg.RetryCount))
	q.logger.Debug("send failed, message requeued",
		"messageId", msg.Envelope.ID,
		"retryCount", msg.RetryCount,
		"nextAttempt", msg.nextAttempt,
		"error", err)

	q.mu.Lock()
	if !q.disposed {
		q.items = append(q.items, msg)
	}
	q.mu.Unlock()
}

func (q *MessageQueue) reportFailure(msg *QueuedMessage, reason error) {
	q.logger.Warn("message will not be sent",
		"messageId", msg.Envelope.ID,
		"priority", msg.Priority.String(),
		"reason", reason)
	q.events.Publish(Event{
		Kind:      EventMessageSendFailed,
		MessageID: msg.Envelope.ID,
		Reason:    reason,
	})
}

// evictOldestLowLocked removes and returns the oldest Low entry, or nil
// when none exists. Callers hold q.mu.
func (q *MessageQueue) evictOldestLowLocked() *QueuedMessage {
	best := -1
	for i, m := range q.items {
		if m.Priority != contracts.PriorityLow {
			continue
		}
		if best == -1 || m.seq < q.items[best].seq {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	msg := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return msg
}
