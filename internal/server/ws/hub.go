// Package ws streams bot events from the signal bus to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/emojibot/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256
)

// Channels are the bus channels relayed to clients. New clients start
// subscribed to all of them.
var Channels = []string{
	domain.ChannelOrders,
	domain.ChannelPortfolio,
	domain.ChannelDecisions,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Envelope wraps every frame sent to clients.
type Envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
	mu   sync.RWMutex
}

// subscribeMsg is sent by clients to change their channel set:
// {"action":"unsubscribe","channels":["decisions"]}.
type subscribeMsg struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

// HistoryReader returns the most recent payloads on a channel, oldest first.
type HistoryReader interface {
	History(ctx context.Context, channel string, count int64) ([][]byte, error)
}

// Hub fans bus messages out to connected clients by channel.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	status     func() any
	history    HistoryReader
	replay     int64
	mu         sync.RWMutex
	logger     *slog.Logger
}

type broadcastMsg struct {
	channel string
	data    []byte
}

// NewHub creates a hub relaying bus. status, when non-nil, produces the
// snapshot each client receives on connect under channel "status".
func NewHub(bus domain.SignalBus, status func() any, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		status:     status,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// WithHistory replays up to count recent events per channel to each new
// client before live events.
func (h *Hub) WithHistory(r HistoryReader, count int64) *Hub {
	if count <= 0 {
		return h
	}
	h.history = r
	h.replay = count
	return h
}

// Run subscribes to the bus and serves the client set until ctx is done.
// Connections registering or leaving after Run returns are closed without
// blocking.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for _, ch := range Channels {
		go h.subscribeToChannel(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.isSubscribed(msg.channel) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping message for slow client",
						slog.String("channel", msg.channel),
					)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribeToChannel(ctx context.Context, channel string) {
	msgCh, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: failed to subscribe to channel",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("ws: channel subscription closed",
					slog.String("channel", channel),
				)
				return
			}
			frame, err := encode(channel, data)
			if err != nil {
				h.logger.Warn("ws: dropping non-JSON payload",
					slog.String("channel", channel),
				)
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{channel: channel, data: frame}:
			case <-ctx.Done():
				return
			}
		}
	}
}

var errNotJSON = errors.New("ws: payload is not JSON")

func encode(channel string, payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		return nil, errNotJSON
	}
	return json.Marshal(Envelope{Channel: channel, Payload: payload})
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool, len(Channels)),
	}
	for _, ch := range Channels {
		c.subs[ch] = true
	}

	// Queued before registering: the hub owns c.send once it knows the client.
	c.sendInitialStatus()
	c.sendHistory(r.Context())

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var sub subscribeMsg
		if json.Unmarshal(message, &sub) == nil && sub.Action != "" {
			c.handleSubscription(sub)
		}
	}
}

// leave unregisters c unless the hub has already stopped.
func (c *client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, ch := range msg.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range msg.Channels {
			delete(c.subs, ch)
		}
	}
}

func (c *client) sendInitialStatus() {
	if c.hub.status == nil {
		return
	}
	payload, err := json.Marshal(c.hub.status())
	if err != nil {
		return
	}
	frame, err := encode("status", payload)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (c *client) sendHistory(ctx context.Context) {
	if c.hub.history == nil {
		return
	}
	for _, ch := range Channels {
		payloads, err := c.hub.history.History(ctx, ch, c.hub.replay)
		if err != nil {
			c.hub.logger.Warn("ws: history unavailable",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, p := range payloads {
			frame, err := encode(ch, p)
			if err != nil {
				continue
			}
			select {
			case c.send <- frame:
			default:
				return
			}
		}
	}
}

func (c *client) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
