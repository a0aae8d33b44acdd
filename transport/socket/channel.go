package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultURL is the physics service's push endpoint
const DefaultURL = "ws://localhost:8086/ws"

// State is the connection lifecycle state of a Channel
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler receives the raw payload of every inbound message
type Handler func(payload []byte)

// Channel is one WebSocket connection to the physics service
type Channel struct {
	url     string
	conn    *websocket.Conn
	state   atomic.Int32
	handler Handler
	logger  *zap.Logger
	dialer  *websocket.Dialer
	header  http.Header

	writeMu sync.Mutex
	done    chan struct{}
}

// Option configures a Channel
type Option func(*Channel)

// WithMessageHandler replaces the default logging handler
func WithMessageHandler(handler Handler) Option {
	return func(c *Channel) {
		if handler != nil {
			c.handler = handler
		}
	}
}

// WithLogger sets the channel logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDialer sets the dialer used by Open
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Channel) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithHeader adds request headers to the handshake
func WithHeader(header http.Header) Option {
	return func(c *Channel) {
		c.header = header
	}
}

// Open dials url and starts delivering inbound messages to the handler.
// There is no retry; a failed dial returns the error and no channel.
func Open(ctx context.Context, url string, opts ...Option) (*Channel, error) {
	c := &Channel{
		url:    url,
		logger: zap.NewNop(),
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.handler == nil {
		c.handler = c.logMessage
	}
	c.state.Store(int32(StateConnecting))

	conn, resp, err := c.dialer.DialContext(ctx, url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.state.Store(int32(StateClosed))
		close(c.done)
		return nil, fmt.Errorf("socket dial %s: %w", url, err)
	}

	c.conn = conn
	c.state.Store(int32(StateOpen))
	c.logger.Info("socket connected", zap.String("url", url))

	go c.readLoop()
	return c, nil
}

// URL returns the address the channel was opened with
func (c *Channel) URL() string {
	return c.url
}

// State returns the current lifecycle state
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Done is closed once the read loop has stopped
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send transmits payload as a single text message
func (c *Channel) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// SendJSON marshals v and sends it
func (c *Channel) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("socket encode: %w", err)
	}
	return c.Send(data)
}

// Close terminates the connection immediately
func (c *Channel) Close() error {
	c.state.Store(int32(StateClosed))
	return c.conn.Close()
}

func (c *Channel) readLoop() {
	defer close(c.done)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			prev := State(c.state.Swap(int32(StateClosed)))
			if prev == StateOpen && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("socket read failed", zap.String("url", c.url), zap.Error(err))
			} else {
				c.logger.Debug("socket closed", zap.String("url", c.url))
			}
			return
		}
		c.handler(payload)
	}
}

func (c *Channel) logMessage(payload []byte) {
	c.logger.Info("data from server", zap.ByteString("payload", payload))
}
