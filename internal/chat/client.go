// Package chat is the client side of the duplex JSON channel between a chat
// surface and the assistant backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Replies carry base64 audio.
	maxMessageSize = 16 << 20
)

// State of a channel connection
type State int

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
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNotConnected is returned by Send when the channel is not open
	ErrNotConnected = errors.New("chat: not connected")

	// ErrAlreadyConnected is returned by a second call to Connect
	ErrAlreadyConnected = errors.New("chat: connect called twice")
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Handler receives inbound events in delivery order on the client's read
// goroutine
type Handler interface {
	HandleEvent(event Event)

	// HandleClose is called exactly once after an open connection ends.
	// err is nil when Close was called locally.
	HandleClose(err error)
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces the default websocket dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithHeader adds headers to the opening handshake
func WithHeader(h http.Header) Option {
	return func(c *Client) {
		for k, vs := range h {
			for _, v := range vs {
				c.header.Add(k, v)
			}
		}
	}
}

// WithBearerToken authenticates the handshake with a bearer token
func WithBearerToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// Client is one connection of the duplex channel. A closed client cannot be
// reopened; create a new one to reconnect.
type Client struct {
	id      uuid.UUID
	url     string
	dialer  Dialer
	header  http.Header
	handler Handler
	logger  *zap.Logger

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a client in the Connecting state
func NewClient(url string, handler Handler, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		id:      uuid.New(),
		url:     url,
		dialer:  websocket.DefaultDialer,
		header:  http.Header{},
		handler: handler,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.With(zap.String("connectionID", c.id.String()))
	return c
}

// ID identifies this connection in logs
func (c *Client) ID() uuid.UUID {
	return c.id
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the server and starts the read and keepalive loops. A dial
// failure leaves the client Closed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateConnecting || c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		c.closeOnce.Do(func() { close(c.done) })
		c.logger.Error("Failed to connect", zap.String("url", c.url), zap.Error(err))
		return fmt.Errorf("chat: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while dialing.
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Info("Connected", zap.String("url", c.url))

	go c.readPump(conn)
	go c.pingLoop(conn)
	return nil
}

// Send writes one outbound message. It fails with ErrNotConnected when the
// channel is not open; nothing is queued for later.
func (c *Client) Send(msg domain.OutboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	payload, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("chat: encode message: %w", err)
	}

	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()
	if state != StateOpen {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Error("Failed to write message", zap.String("type", string(msg.Type)), zap.Error(err))
		c.shutdown(err)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	c.logger.Debug("Message sent",
		zap.String("type", string(msg.Type)),
		zap.Int("size", len(payload)))
	return nil
}

// Close ends the connection. Pending exchanges are abandoned, not flushed.
// It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateConnecting && c.conn == nil {
		c.state = StateClosed
		c.mu.Unlock()
		c.closeOnce.Do(func() { close(c.done) })
		return nil
	}
	c.mu.Unlock()

	c.shutdown(nil)
	return nil
}

// Done is closed once the client reaches Closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.mu.Unlock()

		close(c.done)

		if conn != nil {
			if cause == nil {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			conn.Close()
		}

		if cause != nil {
			c.logger.Warn("Connection lost", zap.Error(cause))
		} else {
			c.logger.Info("Connection closed")
		}
		c.handler.HandleClose(cause)
	})
}

// readPump dispatches inbound frames in network order until the
// connection ends
func (c *Client) readPump(conn *websocket.Conn) {
	var cause error
	defer func() {
		c.shutdown(cause)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if c.State() == StateClosed {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			cause = err
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Ignoring non-text frame", zap.Int("type", messageType))
			continue
		}

		event, err := ParseEvent(data)
		if err != nil {
			c.logger.Warn("Dropping server frame", zap.Int("size", len(data)), zap.Error(err))
			continue
		}

		if c.State() != StateOpen {
			return
		}
		c.handler.HandleEvent(event)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("Failed to send ping", zap.Error(err))
				c.shutdown(err)
				return
			}
		}
	}
}
