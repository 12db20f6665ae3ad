package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

// Client is the bench's broker connection.
//
// It publishes valve state and events, carries the command subscription,
// and keeps a retained online/offline record on benchlink/system/status
// (the broker publishes the offline record itself if the process dies).
// The session is clean, so every subscription is replayed after a
// reconnect. All methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	online atomic.Bool

	mu            sync.Mutex
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

// Logger is the logging the client needs. *logging.Logger satisfies it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MessageHandler processes one inbound message. Paho calls handlers on
// its own goroutines; a handler that moves a valve bounds the move with
// its own context. A returned error is logged.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and waits for the first connection.
//
// The last will marks the bench offline with reason unexpected_disconnect.
// Auto-reconnect uses the configured backoff; on every (re)connect the
// client replays its subscriptions and republishes the online status.
//
// Returns ErrConnectionFailed if the broker does not accept the connection
// within the connect timeout.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.warn("MQTT reconnecting", "broker", brokerURL(cfg.Broker))
	})

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: %s: no answer after %v", ErrConnectionFailed, brokerURL(cfg.Broker), defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg.Broker), err)
	}

	// handleConnect may not have run yet.
	c.online.Store(true)
	return c, nil
}

func (c *Client) handleConnect() {
	c.online.Store(true)

	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, s := range c.subscriptions {
		subs[topic] = s
	}
	callback := c.onConnect
	c.mu.Unlock()

	for topic, s := range subs {
		// A failure here shows up again on the next reconnect.
		c.paho.Subscribe(topic, s.qos, c.wrapHandler(s.handler))
	}
	c.publishStatus(statusOnline, "")

	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.online.Store(false)
	c.warn("MQTT connection lost", "error", err)

	c.mu.Lock()
	callback := c.onDisconnect
	c.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

// publishStatus sends the retained status record without waiting.
func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	payload := buildStatusPayload(c.cfg.Broker.ClientID, status, reason)
	return c.paho.Publish(Topics{}.SystemStatus(), c.QoS(), true, payload)
}

// Close replaces the retained online record with a graceful offline one
// and disconnects. Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus(statusOffline, reasonGraceful).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the current broker link state.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect registers a callback for the first connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = callback
}

// SetOnDisconnect registers a callback for lost connections.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = callback
}

// SetLogger sets the logger for connection changes and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

func (c *Client) warn(msg string, args ...any) {
	c.mu.Lock()
	logger := c.logger
	c.mu.Unlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

// dispatch runs one handler. A panicking command handler must not take the
// paho router goroutine down with it.
func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.mu.Lock()
			logger := c.logger
			c.mu.Unlock()
			if logger != nil {
				logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		c.warn("MQTT handler returned error", "topic", topic, "error", err)
	}
}
