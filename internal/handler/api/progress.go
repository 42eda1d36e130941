package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	applogger "TradePulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	clientBufSize  = 64
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream is broadcast-only status data, so any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressHub fans worker outcome events out to websocket subscribers. Events
// arrive from the Kafka outcome feed; a slow client is dropped rather than
// allowed to back-pressure the feed.
type ProgressHub struct {
	logger *applogger.Logger

	mu      sync.RWMutex
	clients map[*progressClient]struct{}
}

type progressClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewProgressHub(logger *applogger.Logger) *ProgressHub {
	return &ProgressHub{
		logger:  logger,
		clients: make(map[*progressClient]struct{}),
	}
}

// Broadcast sends a raw JSON event to every connected client.
func (h *ProgressHub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Buffer full: the client cannot keep up.
			go h.remove(c)
		}
	}
}

// Subscribers returns the current client count.
func (h *ProgressHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades the request and streams events until the client disconnects.
func (h *ProgressHub) Serve(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &progressClient{
		conn: conn,
		send: make(chan []byte, clientBufSize),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("progress subscriber connected",
		applogger.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(client)
	h.readLoop(client)
	return nil
}

// Close disconnects all clients.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	clients := make([]*progressClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*progressClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *ProgressHub) writeLoop(c *progressClient) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.remove(c)

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only consumes control frames; clients never send data.
func (h *ProgressHub) readLoop(c *progressClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) remove(c *progressClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

func (c *progressClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// OutcomeFeed bridges the Kafka outcome topic into the hub. It implements
// pkg/kafka.MessageHandler.
type OutcomeFeed struct {
	topic string
	hub   *ProgressHub
}

func NewOutcomeFeed(topic string, hub *ProgressHub) *OutcomeFeed {
	return &OutcomeFeed{topic: topic, hub: hub}
}

func (f *OutcomeFeed) Topic() string { return f.topic }

func (f *OutcomeFeed) Handle(_ context.Context, payload []byte) error {
	// Payloads are already JSON-encoded outcomes; forward as-is.
	f.hub.Broadcast(payload)
	return nil
}
