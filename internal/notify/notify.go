// Package notify delivers best-effort push notifications about battle events
// to connected clients. Delivery is fire-and-forget: failures are logged and
// never propagated to the battle path.
package notify

import (
	"encoding/json"
	"log"
)

// Event types pushed to clients.
const (
	EventBattleJoined    = "battle_joined"
	EventBattleCompleted = "battle_completed"
	EventBattleForfeited = "battle_forfeited"
)

// Event is the payload pushed to a user's open connections.
type Event struct {
	Type     string `json:"type"`
	BattleID string `json:"battleId"`
	Winner   string `json:"winner,omitempty"`
	Message  string `json:"message,omitempty"`
}

type Dispatcher interface {
	Notify(userID string, event Event)
}

// PushService fans an event out to local WebSocket clients and, when a bus is
// configured, to clients connected to other replicas.
type PushService struct {
	hub *Hub
	bus *Bus
}

func NewPushService(hub *Hub, bus *Bus) *PushService {
	return &PushService{hub: hub, bus: bus}
}

// Notify never blocks the caller: delivery runs in its own goroutine.
func (s *PushService) Notify(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal notification: %v", err)
		return
	}

	go func() {
		s.hub.Send(userID, data)
		if s.bus != nil {
			s.bus.Publish(userID, data)
		}
	}()
}
