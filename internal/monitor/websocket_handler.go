package monitor

import (
	"fmt"

	"github.com/yegors/stand-status/internal/websocket"
)

// HandleMessage answers stand list requests from WebSocket clients
func (s *Service) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeStandsRequest:
		list := s.status.Stands()
		if occupied, _ := data["occupied"].(bool); occupied {
			list = s.status.OccupiedStands()
		}
		client.SendMessage(&websocket.Message{
			Type: websocket.MessageTypeStandsResponse,
			Data: map[string]any{
				"stands": list,
				"count":  len(list),
				"cycle":  s.status.LastCycle(),
			},
		})
		return nil
	default:
		return fmt.Errorf("unknown message type: %s", messageType)
	}
}
