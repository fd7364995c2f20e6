package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/supermom/domain"
	"github.com/satriahrh/supermom/internal/metrics"
	"github.com/satriahrh/supermom/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. A minute of 16 kHz PCM16 is
	// about 2.5MB once base64 encoded.
	maxMessageSize = 16 << 20

	// Time allowed to answer one message.
	handleTimeout = 90 * time.Second

	sendBuffer  = 16
	inboxBuffer = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Assistant answers chat messages
type Assistant interface {
	Recognize(ctx context.Context, payload string) (string, error)
	Reply(ctx context.Context, chatType domain.ChatType, userText string) (usecase.Reply, error)
	Praise(ctx context.Context, memoText string) (usecase.Reply, error)
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	assistant Assistant
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(assistant Assistant, m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		assistant:  assistant,
		metrics:    m,
		logger:     logger,
	}
}

// Run starts the hub's main loop. When ctx ends every client is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.id]; ok {
				// Same client reconnecting; the newer connection wins
				old.cancel()
				h.metrics.ActiveConnections.Dec()
			}
			h.clients[client.id] = client
			h.mu.Unlock()
			h.metrics.ActiveConnections.Inc()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client.id] == client {
				delete(h.clients, client.id)
				client.cancel()
				h.metrics.ActiveConnections.Dec()
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	// Inbound text frames, answered one at a time and in order.
	inbox chan []byte

	id     string
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// HandleWebSocket upgrades the request and serves one client. clientID may
// be empty, in which case a random one is used.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		inbox:  make(chan []byte, inboxBuffer),
		id:     clientID,
		logger: hub.logger.With(zap.String("clientID", clientID)),
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		hub.logger.Warn("Connection refused, hub is not running")
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.processLoop()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the inbox.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		close(c.inbox)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}

		select {
		case c.inbox <- message:
		case <-c.ctx.Done():
			return
		}
	}
}

// writePump pumps frames to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) processLoop() {
	for message := range c.inbox {
		c.processMessage(message)
	}
}

// processMessage answers one client message
func (c *Client) processMessage(message []byte) {
	var msg domain.OutboundMessage
	if err := sonic.Unmarshal(message, &msg); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		c.sendError("", fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	c.hub.metrics.MessagesReceived.WithLabelValues(metricLabel(msg.Type)).Inc()
	start := time.Now()
	defer func() {
		c.hub.metrics.HandleDuration.WithLabelValues(metricLabel(msg.Type)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(c.ctx, handleTimeout)
	defer cancel()

	switch msg.Type {
	case domain.MessageTypeVoiceChat:
		c.handleVoiceChat(ctx, msg)
	case domain.MessageTypeTextChat:
		c.handleTextChat(ctx, msg)
	case domain.MessageTypeMemoComplete:
		c.handleMemoComplete(ctx, msg)
	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(msg.Type)))
		c.sendError("", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) handleVoiceChat(ctx context.Context, msg domain.OutboundMessage) {
	if !msg.ChatType.Valid() {
		c.sendError("", fmt.Sprintf("unknown chat type: %s", msg.ChatType))
		return
	}

	userText, err := c.hub.assistant.Recognize(ctx, msg.Audio)
	if err != nil {
		c.logger.Error("Speech recognition failed", zap.Error(err))
		c.sendError(domain.MessageTypeVoiceResponse, fmt.Sprintf("speech recognition failed: %v", err))
		return
	}
	if userText == "" {
		c.sendError(domain.MessageTypeVoiceResponse, "speech recognition failed: no speech detected")
		return
	}

	// The transcript goes out before the reply is generated.
	c.sendMessage(domain.InboundMessage{
		Type:     domain.MessageTypeUserTextRecognized,
		ChatType: msg.ChatType,
		UserText: userText,
	})

	reply, err := c.hub.assistant.Reply(ctx, msg.ChatType, userText)
	if err != nil {
		c.logger.Error("Failed to generate reply", zap.Error(err))
		c.sendError(domain.MessageTypeVoiceResponse, err.Error())
		return
	}

	c.sendMessage(domain.InboundMessage{
		Type:         domain.MessageTypeVoiceResponse,
		ChatType:     msg.ChatType,
		UserText:     userText,
		ResponseText: reply.Text,
		Audio:        reply.Audio,
	})
}

func (c *Client) handleTextChat(ctx context.Context, msg domain.OutboundMessage) {
	if !msg.ChatType.Valid() {
		c.sendError("", fmt.Sprintf("unknown chat type: %s", msg.ChatType))
		return
	}

	reply, err := c.hub.assistant.Reply(ctx, msg.ChatType, msg.Text)
	if err != nil {
		c.logger.Error("Failed to generate reply", zap.Error(err))
		c.sendError(domain.MessageTypeTextResponse, err.Error())
		return
	}

	c.sendMessage(domain.InboundMessage{
		Type:         domain.MessageTypeTextResponse,
		ChatType:     msg.ChatType,
		UserText:     msg.Text,
		ResponseText: reply.Text,
		Audio:        reply.Audio,
	})
}

func (c *Client) handleMemoComplete(ctx context.Context, msg domain.OutboundMessage) {
	reply, err := c.hub.assistant.Praise(ctx, msg.MemoText)
	if err != nil {
		c.logger.Error("Failed to generate praise", zap.Error(err))
		c.sendError(domain.MessageTypeMemoPraise, err.Error())
		return
	}

	c.sendMessage(domain.InboundMessage{
		Type:       domain.MessageTypeMemoPraise,
		PraiseText: reply.Text,
		Audio:      reply.Audio,
	})
}

func (c *Client) sendError(msgType domain.MessageType, message string) {
	c.hub.metrics.ErrorsSent.WithLabelValues(metricLabel(msgType)).Inc()
	c.sendMessage(domain.NewErrorMessage(msgType, message))
}

// sendMessage queues a frame; it gives up once the client is gone
func (c *Client) sendMessage(msg domain.InboundMessage) {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- payload:
	case <-c.ctx.Done():
		c.logger.Debug("Dropping message for closed client", zap.String("type", string(msg.Type)))
	}
}

func metricLabel(t domain.MessageType) string {
	switch t {
	case domain.MessageTypeVoiceChat, domain.MessageTypeTextChat, domain.MessageTypeMemoComplete,
		domain.MessageTypeVoiceResponse, domain.MessageTypeTextResponse, domain.MessageTypeMemoPraise:
		return string(t)
	case "":
		return "none"
	}
	return "unknown"
}
