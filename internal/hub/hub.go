package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Client is one live connection. A client starts unbound and is bound to a
// nurse by a register message; several connections may share one nurse id.
type Client struct {
	ID      string
	NurseID string
	Send    chan []byte
}

// Hub maps subscriber ids to delivery channels. Delivery is best-effort:
// a send that would block is dropped, never retried.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	byNurse map[string]map[string]*Client
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		byNurse: make(map[string]map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes the client with immediate effect; nothing is delivered
// to it afterwards.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	h.unbindLocked(client)
	close(client.Send)
}

// Bind associates the client with a nurse id, replacing any prior binding.
func (h *Hub) Bind(client *Client, nurseID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(client)
	client.NurseID = nurseID
	if nurseID == "" {
		return
	}
	set, ok := h.byNurse[nurseID]
	if !ok {
		set = make(map[string]*Client)
		h.byNurse[nurseID] = set
	}
	set[client.ID] = client
}

func (h *Hub) unbindLocked(client *Client) {
	if client.NurseID == "" {
		return
	}
	if set, ok := h.byNurse[client.NurseID]; ok {
		delete(set, client.ID)
		if len(set) == 0 {
			delete(h.byNurse, client.NurseID)
		}
	}
	client.NurseID = ""
}

// Publish delivers the payload to every connection bound to the nurse and
// returns the number of successful sends.
func (h *Hub) Publish(nurseID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.byNurse[nurseID] {
		select {
		case client.Send <- payload:
			delivered++
		default:
			log.Printf("drop message for client %s nurse %s", client.ID, nurseID)
		}
	}
	return delivered
}

// Broadcast delivers the payload to every connected client.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

// Envelope is the outbound event frame pushed to nurse clients.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

func EncodeEnvelope(eventType string, payload interface{}) []byte {
	data, err := json.Marshal(Envelope{Type: eventType, Payload: payload, CreatedAt: time.Now().UTC()})
	if err != nil {
		log.Printf("encode envelope error: %v", err)
		return nil
	}
	return data
}

// InboundMessage is what nurse clients send over the realtime channel.
type InboundMessage struct {
	Action    string  `json:"action"`
	NurseID   string  `json:"nurse_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Available *bool   `json:"available,omitempty"`
}

func ParseInbound(data []byte) (InboundMessage, bool) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, false
	}
	if msg.Action != "register" && msg.Action != "update_location" && msg.Action != "unregister" {
		return InboundMessage{}, false
	}
	if msg.NurseID == "" {
		return InboundMessage{}, false
	}
	return msg, true
}
