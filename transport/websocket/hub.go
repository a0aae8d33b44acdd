package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Per-client outbound buffer.
	sendBufferSize = 256

	// Pending broadcasts before Publish starts dropping.
	broadcastBufferSize = 1024
)

// Event names
const (
	EventCommit   = "commit"
	EventSnapshot = "snapshot"
	EventDeleted  = "flight_deleted"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is what dashboards receive
type Message struct {
	FlightID string          `json:"flight_id"`
	Event    string          `json:"event"`
	Entity   store.Entity    `json:"entity,omitempty"`
	State    *store.Snapshot `json:"state,omitempty"`
}

type envelope struct {
	flightKey string
	data      []byte
}

// Client represents a WebSocket client
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	flightID string
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by lowercased flight ID
	flights map[string]map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		flights:    make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is done. Remaining
// clients are disconnected on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case env := <-h.broadcast:
			h.broadcastMessage(env)

		case <-ctx.Done():
			for _, clients := range h.flights {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return
		}
	}
}

// ServeWS upgrades the request and subscribes the client to flightID. A
// non-nil initial snapshot is sent before any commit.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, flightID string, initial *store.Snapshot) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		flightID: flightID,
	}

	if initial != nil {
		if data, err := json.Marshal(&Message{FlightID: flightID, Event: EventSnapshot, State: initial}); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Publish queues a commit for every client watching flightID. It never
// blocks; when the queue is full the commit is dropped.
func (h *Hub) Publish(flightID string, change store.Change) {
	snap := change.Snapshot
	h.enqueue(&Message{
		FlightID: flightID,
		Event:    EventCommit,
		Entity:   change.Entity,
		State:    &snap,
	})
}

// BroadcastEvent sends a bare event to all clients of a flight
func (h *Hub) BroadcastEvent(flightID, event string) {
	h.enqueue(&Message{FlightID: flightID, Event: event})
}

func (h *Hub) enqueue(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- envelope{flightKey: strings.ToLower(message.FlightID), data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			zap.String("flight_id", message.FlightID),
			zap.String("event", message.Event),
		)
	}
}

// registerClient adds a client to a flight
func (h *Hub) registerClient(client *Client) {
	key := strings.ToLower(client.flightID)
	if h.flights[key] == nil {
		h.flights[key] = make(map[*Client]bool)
	}
	h.flights[key][client] = true

	h.logger.Debug("client registered",
		zap.String("flight_id", client.flightID),
		zap.Int("clients", len(h.flights[key])),
	)
}

// unregisterClient removes a client from a flight
func (h *Hub) unregisterClient(client *Client) {
	key := strings.ToLower(client.flightID)
	clients, ok := h.flights[key]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)

	if len(clients) == 0 {
		delete(h.flights, key)
	}

	h.logger.Debug("client unregistered",
		zap.String("flight_id", client.flightID),
		zap.Int("remaining", len(clients)),
	)
}

// broadcastMessage sends a message to all clients of a flight
func (h *Hub) broadcastMessage(env envelope) {
	for client := range h.flights[env.flightKey] {
		select {
		case client.send <- env.data:
		default:
			h.logger.Warn("client too slow, disconnecting", zap.String("flight_id", client.flightID))
			h.unregisterClient(client)
		}
	}
}

// readPump services control frames until the connection fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", zap.String("flight_id", c.flightID), zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
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
				// The hub closed the channel
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
