package websocket

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/stand-status/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server

	mu     sync.Mutex
	closed bool
	stands map[string]bool // subscribed stands, nil means all
}

func newClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan *Message, sendBuffer),
		server: server,
	}
}

// SendMessage queues a message for this client, dropping it when the buffer is full
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Subscriptions returns the stands this client follows, sorted; empty means all
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.stands))
	for name := range c.stands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) subscribe(data map[string]any) {
	raw, _ := data["stands"].([]any)

	var stands map[string]bool
	if len(raw) > 0 {
		stands = make(map[string]bool, len(raw))
		for _, v := range raw {
			if name, ok := v.(string); ok && name != "" {
				stands[name] = true
			}
		}
	}

	c.mu.Lock()
	c.stands = stands
	c.mu.Unlock()

	c.server.logger.Debug("Client subscription updated", logger.Int("stands", len(stands)))
}

// wants reports whether a broadcast is relevant to this client
func (c *Client) wants(message *Message) bool {
	if !isStandEvent(message.Type) {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.stands) == 0 {
		return true
	}
	name, _ := message.Data["stand"].(string)
	return c.stands[name]
}

// closeSend closes the outgoing channel once; called by the server only
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		message, err := decodeMessage(data)
		if err != nil {
			c.server.logger.Error("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		c.server.logger.Debug("Received WebSocket message",
			logger.String("type", message.Type),
			logger.String("client", c.conn.RemoteAddr().String()))

		c.server.handleMessage(c, message)
	}
}

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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
