// Package dicewire is a resilient duplex messaging client for the dicewire
// game service. It maintains one websocket connection with automatic
// reconnection and heartbeat liveness, buffers outbound messages in a
// priority queue with retry and eviction, and validates every envelope
// against the protocol vocabulary in both directions.
//
// Construct a Client with New, register handlers with OnMessage or
// Subscribe, then Connect. All methods are safe for concurrent use.
package dicewire

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/JokerTrickster/dicewire-go/contracts"
	"github.com/JokerTrickster/dicewire-go/internal/ws"
	"github.com/JokerTrickster/dicewire-go/messaging"
	"github.com/JokerTrickster/dicewire-go/serialization"
	"github.com/JokerTrickster/dicewire-go/transports/websocket"
)

// ErrClientClosed is returned by operations on a closed Client.
var ErrClientClosed = errors.New("dicewire: client is closed")

// readLimitSlack is added to the configured max message size when setting
// the socket read limit. Oversized envelopes must reach the codec and fail
// as protocol errors; only frames beyond cap+slack kill the read loop.
const readLimitSlack = 64 << 10

// TokenProvider supplies the bearer token presented during the connection
// handshake. Token is called on every connect attempt, so a provider may
// rotate credentials between reconnections. An empty token omits the
// Authorization header.
type TokenProvider interface {
	Token() string
}

type staticTokenProvider struct {
	mu    sync.Mutex
	token string
}

func (p *staticTokenProvider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *staticTokenProvider) set(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
}

// Client is the top level entry point. It wires the transport, connection
// manager, outbound queue, codec, and event dispatcher into one messaging
// session.
type Client struct {
	logger       *slog.Logger
	clk          clock.Clock
	tokenSource  TokenProvider
	staticTok    *staticTokenProvider
	newTransport func(cfg Config, header func() http.Header) messaging.Transport

	dispatcher *messaging.Dispatcher

	mu        sync.Mutex
	cfg       Config
	codec     *serialization.Codec
	transport messaging.Transport
	manager   *messaging.ConnectionManager
	queue     *messaging.MessageQueue
	closed    bool
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the structured logger used by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the clock used for timeouts, backoff, and heartbeat. Tests
// inject a mock here.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clk = clk
	}
}

// WithTokenProvider installs a credential source consulted on every connect
// attempt. It takes precedence over SetToken.
func WithTokenProvider(provider TokenProvider) Option {
	return func(c *Client) {
		c.tokenSource = provider
	}
}

// WithTransportFactory overrides how the transport is built from the
// configuration. Tests use this to substitute an in-memory transport.
func WithTransportFactory(fn func(cfg Config, header func() http.Header) messaging.Transport) Option {
	return func(c *Client) {
		c.newTransport = fn
	}
}

// New creates a Client for cfg. The configuration is validated up front;
// nothing connects until Connect is called.
func New(cfg Config, options ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		logger:    slog.Default(),
		clk:       clock.New(),
		staticTok: &staticTokenProvider{},
	}
	c.newTransport = func(cfg Config, header func() http.Header) messaging.Transport {
		return websocket.NewTransport(cfg.ServerAddress,
			websocket.WithTransportLogger(c.logger),
			websocket.WithHandshakeHeader(header),
			websocket.WithDialer(ws.NewDialer(
				ws.WithDialerLogger(c.logger),
				ws.WithReadLimit(int64(cfg.MaxMessageSize)+readLimitSlack),
			)),
		)
	}

	for _, opt := range options {
		opt(c)
	}

	c.dispatcher = messaging.NewDispatcher(messaging.WithDispatcherLogger(c.logger))
	c.dispatcher.Subscribe(func(evt messaging.Event) {
		// A restored connection drains whatever queued up while down.
		if evt.Kind == messaging.EventStateChanged && evt.State == messaging.StateConnected {
			c.wakeQueue()
		}
	})

	c.mu.Lock()
	c.build(cfg)
	c.mu.Unlock()

	return c, nil
}

// build assembles the per-configuration components. Caller holds c.mu. The
// closures below capture the build's own transport, codec, and manager so a
// later rebuild never routes traffic through stale components.
func (c *Client) build(cfg Config) {
	c.cfg = cfg

	codec := serialization.NewCodec(
		serialization.WithMaxMessageSize(cfg.MaxMessageSize),
		serialization.WithMessageTTL(cfg.MessageTimeout),
		serialization.WithClock(c.clk),
	)

	transport := c.newTransport(cfg, c.handshakeHeader)

	opts := []messaging.ConnectionOption{
		messaging.WithConnectionLogger(c.logger),
		messaging.WithConnectionClock(c.clk),
		messaging.WithConnectTimeout(cfg.ConnectTimeout),
		messaging.WithAutoReconnect(cfg.AutoReconnect),
		messaging.WithMaxReconnectAttempts(cfg.MaxReconnectAttempts),
		messaging.WithBackoffSchedule(cfg.BackoffSchedule),
	}
	if cfg.HeartbeatEnabled {
		opts = append(opts, messaging.WithHeartbeat(cfg.HeartbeatInterval, cfg.HeartbeatTimeout,
			func(ctx context.Context) error {
				frame, err := codec.Encode(contracts.NewEnvelope(contracts.TypePing, nil))
				if err != nil {
					return err
				}
				return transport.Send(ctx, frame)
			}))
	}
	manager := messaging.NewConnectionManager(transport, c.dispatcher, opts...)

	transport.SetFrameHandler(func(frame []byte) {
		env, err := codec.Decode(frame)
		if err != nil {
			c.logger.Warn("discarding inbound frame", "error", err)
			return
		}
		if env.Type == contracts.TypePong {
			manager.NotifyPong()
			return
		}
		c.dispatcher.Publish(messaging.Event{Kind: messaging.EventMessageReceived, Envelope: env})
	})
	transport.SetConnectionLostHandler(func(err error) {
		manager.NotifyConnectionLost(err)
	})

	queue := messaging.NewMessageQueue(transport.Send, codec, c.dispatcher,
		messaging.WithQueueLogger(c.logger),
		messaging.WithQueueClock(c.clk),
		messaging.WithMaxQueueSize(cfg.MaxQueueSize),
		messaging.WithMessageTimeout(cfg.MessageTimeout),
		messaging.WithReadyCheck(manager.Usable),
	)
	queue.Start()

	c.codec = codec
	c.transport = transport
	c.manager = manager
	c.queue = queue
}

func (c *Client) handshakeHeader() http.Header {
	token := c.staticTok.Token()
	if c.tokenSource != nil {
		token = c.tokenSource.Token()
	}
	if token == "" {
		return nil
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header
}

func (c *Client) wakeQueue() {
	c.mu.Lock()
	q := c.queue
	c.mu.Unlock()
	if q != nil {
		q.Wake()
	}
}

// SetToken sets the bearer token used on subsequent connect attempts. It is
// ignored when a TokenProvider was installed.
func (c *Client) SetToken(token string) {
	c.staticTok.set(token)
}

// Connect establishes the connection, blocking until the handshake completes
// or the connect timeout elapses. Calling Connect while already connected or
// connecting is a no-op. Connect is also the only way out of the error state
// after a fatal fault or exhausted reconnection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	manager := c.manager
	c.mu.Unlock()

	return manager.Connect(ctx)
}

// Disconnect closes the connection deliberately. No reconnection is
// attempted; queued messages stay buffered for the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	manager := c.manager
	c.mu.Unlock()
	manager.Disconnect()
}

// Close shuts the client down: the connection drops, pending queue entries
// are discarded, and no further events are delivered. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	manager, queue, transport := c.manager, c.queue, c.transport
	c.mu.Unlock()

	manager.Close()
	queue.Dispose()
	transport.Disconnect()
	c.dispatcher.Close()
	return nil
}

// Send validates and enqueues a message of messageType with the given
// payload and priority. It returns the stamped envelope so the caller can
// correlate send-failure events by ID. Send succeeds while disconnected; the
// message is delivered once the connection is restored, subject to the
// message timeout.
func (c *Client) Send(messageType string, payload json.RawMessage, priority contracts.Priority) (*contracts.Envelope, error) {
	env := contracts.NewEnvelope(messageType, payload)
	if err := c.SendEnvelope(env, priority); err != nil {
		return nil, err
	}
	return env, nil
}

// SendEnvelope enqueues a caller-built envelope at the given priority.
func (c *Client) SendEnvelope(env *contracts.Envelope, priority contracts.Priority) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	queue := c.queue
	c.mu.Unlock()

	return queue.Enqueue(env, priority)
}

// OnMessage registers a typed handler for inbound envelopes of messageType.
// Handlers run one at a time in arrival order. The type must belong to the
// protocol vocabulary and be receivable by the client.
func (c *Client) OnMessage(messageType string, handler messaging.MessageHandler) error {
	return c.dispatcher.RegisterHandler(messageType, handler)
}

// Subscribe registers a handler for all client events: state changes,
// inbound messages, send failures, queue overflow, and reconnection
// progress.
func (c *Client) Subscribe(handler messaging.EventHandler) {
	c.dispatcher.Subscribe(handler)
}

// State returns the current connection state.
func (c *Client) State() messaging.ConnectionState {
	c.mu.Lock()
	manager := c.manager
	c.mu.Unlock()
	return manager.State()
}

// QueueLen returns the number of messages waiting to be sent.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	return queue.Len()
}

// QueueSnapshot returns the pending message count per priority.
func (c *Client) QueueSnapshot() map[contracts.Priority]int {
	c.mu.Lock()
	queue := c.queue
	c.mu.Unlock()
	return queue.Snapshot()
}

// Config returns the active configuration.
func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// UpdateConfig validates cfg, tears the current session down, and rebuilds
// the client around the new configuration. Messages still queued under the
// old configuration are discarded. If the client was connected, it
// reconnects with ctx bounding the new handshake; registered handlers and
// subscribers carry over.
func (c *Client) UpdateConfig(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	wasConnected := c.manager.Usable()
	c.manager.Close()
	c.queue.Dispose()
	c.transport.Disconnect()
	c.build(cfg)
	c.mu.Unlock()

	if !wasConnected {
		return nil
	}
	return c.Connect(ctx)
}
