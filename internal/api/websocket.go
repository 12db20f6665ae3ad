package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/benchlink-core/internal/auth"
	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
	"github.com/nerrad567/benchlink-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Channel spellings. An event reaches a client subscribed to its event
// type, its device, its component, or everything.
const (
	ChannelAll = "*"

	channelDevicePrefix    = "device:"
	channelComponentPrefix = "component:"
)

// wsSendBufferSize is the per-client outbound queue. A client that falls
// this far behind loses events rather than stalling valve moves.
const wsSendBufferSize = 256

// WSMessage is the envelope sent to clients.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is the envelope received from clients; the payload is decoded
// once the type is known.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// DeviceChannel carries every event of one device.
func DeviceChannel(deviceID string) string {
	return channelDevicePrefix + deviceID
}

// ComponentChannel carries the events of one valve.
func ComponentChannel(deviceID, component string) string {
	return channelComponentPrefix + deviceID + "/" + component
}

// validChannel accepts the channel spellings above and the event types.
func validChannel(ch string) bool {
	switch {
	case ch == ChannelAll:
		return true
	case strings.HasPrefix(ch, channelDevicePrefix):
		return len(ch) > len(channelDevicePrefix)
	case strings.HasPrefix(ch, channelComponentPrefix):
		dev, comp, ok := strings.Cut(strings.TrimPrefix(ch, channelComponentPrefix), "/")
		return ok && dev != "" && comp != ""
	}
	switch device.EventType(ch) {
	case device.EventPositionChanged, device.EventPositionStale, device.EventPositionSynced:
		return true
	}
	return false
}

// Hub tracks WebSocket clients and fans position events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	dropped atomic.Uint64

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

var _ device.EventSink = (*Hub)(nil)

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn

	// Identity from the bearer token; empty when security is disabled.
	subject string
	role    auth.Role

	mu       sync.Mutex
	send     chan []byte
	closed   bool
	channels map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// corsMiddleware has already vetted the origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub with no clients.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", c.subject, "role", c.role, "clients", n)
}

func (h *Hub) unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded because a client's
// queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// HandleEvent implements device.EventSink. Each event is delivered at most
// once per client, whichever of its channels the client follows.
func (h *Hub) HandleEvent(_ context.Context, ev device.Event) {
	h.broadcast([]string{
		string(ev.Type),
		DeviceChannel(ev.DeviceID),
		ComponentChannel(ev.DeviceID, ev.Component),
		ChannelAll,
	}, string(ev.Type), ev)
}

// Broadcast sends payload to the clients following channel.
func (h *Hub) Broadcast(channel string, payload any) {
	h.broadcast([]string{channel}, channel, payload)
}

func (h *Hub) broadcast(channels []string, eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("websocket event not encodable", "event_type", eventType, "error", err)
		return
	}

	// Client locks are never taken while the hub lock is held.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.follows(channels) {
			c.enqueue(data)
		}
	}
}

// handleWebSocket upgrades the request. Authentication has already run in
// authMiddleware; browsers pass the token as the token query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		c.subject = claims.Subject
		c.role = claims.Role
	}

	s.hub.register(c)
	go c.writePump(s.wsCfg)
	go c.readPump(s.wsCfg)
}

// enqueue queues data without blocking; a full or closed queue drops it.
func (c *WSClient) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.dropped.Add(1)
	}
}

// shutdown closes the send queue exactly once, which ends writePump.
func (c *WSClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) follows(channels []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if _, ok := c.channels[ch]; ok {
			return true
		}
	}
	return false
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() { c.conn.SetReadDeadline(time.Now().Add(wait)) } //nolint:errcheck // a failed deadline surfaces as a read error

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any message counts.
		extend()
		c.handle(data)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // a failed deadline surfaces as a write error
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is going away
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var p WSSubscribePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Channels) == 0 {
			c.reply(req.ID, WSTypeError, errorPayload(req.Type+" needs a non-empty channels list"))
			return
		}
		for _, ch := range p.Channels {
			if !validChannel(ch) {
				c.reply(req.ID, WSTypeError, errorPayload(fmt.Sprintf("unknown channel %q", ch)))
				return
			}
		}
		c.reply(req.ID, WSTypeResponse, c.updateChannels(req.Type == WSTypeSubscribe, p.Channels))
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

// updateChannels applies a subscribe or unsubscribe and reports the
// resulting channel set.
func (c *WSClient) updateChannels(add bool, channels []string) map[string]any {
	c.mu.Lock()
	for _, ch := range channels {
		if add {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	current := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		current = append(current, ch)
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if add {
		key = "subscribed"
	}
	c.hub.logger.Debug("websocket channels updated", "subject", c.subject, key, channels)
	return map[string]any{key: channels, "channels": current}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
