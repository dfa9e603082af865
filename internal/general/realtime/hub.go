package realtime

import (
	"context"
	"encoding/json"

	"transport-connect/internal/general/logger"
	"transport-connect/internal/general/metrics"
)

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Frame encodes an outbound event.
func Frame(event string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: event, Data: data})
}

// Hub fans events out over the registry and the room table.
type Hub struct {
	logger   *logger.Logger
	registry *Registry
	rooms    *Rooms
}

// NewHub builds a hub over registry and rooms. A nil log discards output.
func NewHub(log *logger.Logger, registry *Registry, rooms *Rooms) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{logger: log, registry: registry, rooms: rooms}
}

func (h *Hub) Registry() *Registry { return h.registry }
func (h *Hub) Rooms() *Rooms       { return h.rooms }

// Join puts userID into the room of requestID.
func (h *Hub) Join(requestID, userID string) bool {
	return h.rooms.Join(RoomName(requestID), userID)
}

// Leave takes userID out of the room of requestID.
func (h *Hub) Leave(requestID, userID string) bool {
	return h.rooms.Leave(RoomName(requestID), userID)
}

// LeaveAll drops userID from every room.
func (h *Hub) LeaveAll(userID string) []string {
	return h.rooms.LeaveAll(userID)
}

// InRoom reports whether userID joined the room of requestID.
func (h *Hub) InRoom(requestID, userID string) bool {
	return h.rooms.IsMember(RoomName(requestID), userID)
}

func (h *Hub) IsOnline(userID string) bool {
	return h.registry.IsOnline(userID)
}

// ToRoom sends an event to every connected member of the request room except
// the given user ("" excludes nobody). It returns how many peers took the frame.
func (h *Hub) ToRoom(requestID, event string, data any, except string) int {
	frame, ok := h.encode(event, data)
	if !ok {
		return 0
	}
	n := 0
	for _, id := range h.rooms.Members(RoomName(requestID)) {
		if id == except {
			continue
		}
		if h.deliver(id, event, frame) {
			n++
		}
	}
	return n
}

// ToUser sends an event to the private channel of userID.
func (h *Hub) ToUser(userID, event string, data any) bool {
	frame, ok := h.encode(event, data)
	if !ok {
		return false
	}
	return h.deliver(userID, event, frame)
}

// ToAll sends an event to every registered user except one.
func (h *Hub) ToAll(event string, data any, except string) int {
	frame, ok := h.encode(event, data)
	if !ok {
		return 0
	}
	n := 0
	for _, p := range h.registry.ListOnline() {
		if p.UserID == except {
			continue
		}
		if h.deliver(p.UserID, event, frame) {
			n++
		}
	}
	return n
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	frame, err := Frame(event, data)
	if err != nil {
		h.logger.Error(context.Background(), "frame_encode_failed", "Event dropped, payload not encodable", err, map[string]any{
			"event": event,
		})
		return nil, false
	}
	return frame, true
}

// deliver hands frame to the user's peer. A peer whose buffer is full is
// closed; its read loop then performs the normal disconnect.
func (h *Hub) deliver(userID, event string, frame []byte) bool {
	p, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	if !p.Send(frame) {
		metrics.SlowConsumers.Inc()
		p.Close()
		return false
	}
	metrics.EventsSent.WithLabelValues(event).Inc()
	return true
}
