package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yegors/stand-status/pkg/logger"
)

// Message types
const (
	MessageTypeStandOccupied        = "stand_occupied"
	MessageTypeStandVacated         = "stand_vacated"
	MessageTypeStandOccupierChanged = "stand_occupier_changed"
	MessageTypeCycleComplete        = "cycle_complete"
	MessageTypeStandsRequest        = "stands_request"  // Client requests the current stand list
	MessageTypeStandsResponse       = "stands_response" // Server replies with the stand list
	MessageTypeSubscribe            = "subscribe"       // Client narrows stand events to a set of stands
	MessageTypeSubscribed           = "subscribed"      // Server confirms the active subscription
	MessageTypeError                = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// MessageHandler handles incoming WebSocket messages the server does not process itself
type MessageHandler interface {
	HandleMessage(client *Client, messageType string, data map[string]any) error
}

// Server fans messages out to connected clients
type Server struct {
	clients        map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *Message
	done           chan struct{}
	upgrader       websocket.Upgrader
	logger         *logger.Logger
	mu             sync.RWMutex
	messageHandler MessageHandler
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.Named("web-socket"),
	}
}

// SetMessageHandler sets the handler for incoming messages
func (s *Server) SetMessageHandler(handler MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageHandler = handler
}

func (s *Server) handler() MessageHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageHandler
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run dispatches registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case <-ctx.Done():
			close(s.done)
			s.mu.Lock()
			for client := range s.clients {
				delete(s.clients, client)
				client.closeSend()
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.closeSend()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.deliver(message)
		}
	}
}

func (s *Server) deliver(message *Message) {
	s.mu.RLock()
	var stale []*Client
	for client := range s.clients {
		if !client.wants(message) {
			continue
		}
		if !client.SendMessage(message) {
			stale = append(stale, client)
		}
	}
	s.mu.RUnlock()

	if len(stale) == 0 {
		return
	}

	// Slow or closed clients are dropped
	s.mu.Lock()
	for _, client := range stale {
		if _, ok := s.clients[client]; ok {
			delete(s.clients, client)
			client.closeSend()
		}
	}
	s.mu.Unlock()
}

// HandleConnection upgrades the request and starts the client pumps
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Upgraded connection to WebSocket",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()))

	client := newClient(conn, s)
	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for all interested clients. It is a no-op once the server has stopped.
func (s *Server) Broadcast(message *Message) {
	s.logger.Debug("Broadcasting message",
		logger.String("message_type", message.Type))

	select {
	case s.broadcast <- message:
	case <-s.done:
	}
}

func (s *Server) handleMessage(c *Client, message *Message) {
	switch message.Type {
	case MessageTypeSubscribe:
		c.subscribe(message.Data)
		c.SendMessage(&Message{
			Type: MessageTypeSubscribed,
			Data: map[string]any{"stands": c.Subscriptions()},
		})
		return
	}

	h := s.handler()
	if h == nil {
		return
	}
	if err := h.HandleMessage(c, message.Type, message.Data); err != nil {
		s.logger.Error("Failed to handle WebSocket message",
			logger.Error(err),
			logger.String("type", message.Type))
		c.SendMessage(&Message{
			Type: MessageTypeError,
			Data: map[string]any{"error": err.Error(), "request": message.Type},
		})
	}
}

func isStandEvent(messageType string) bool {
	switch messageType {
	case MessageTypeStandOccupied, MessageTypeStandVacated, MessageTypeStandOccupierChanged:
		return true
	}
	return false
}

func decodeMessage(data []byte) (*Message, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return nil, err
	}
	return &message, nil
}
