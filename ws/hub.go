package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the envelope for every server->client emit.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub tracks connected clients and their group membership. A group is either
// a room code or a match group ("match_<id>"); one client may belong to
// several groups at once.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu     sync.RWMutex
	groups map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		groups:     make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			for _, group := range client.groupList() {
				h.addLocked(client, group)
			}
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			for _, group := range client.groupList() {
				h.removeLocked(client, group)
			}
			client.closeSend()
			h.mu.Unlock()
			log.Printf("client %s unregistered", client.username)
		}
	}
}

// Join adds the client to a group, creating the group on first use.
func (h *Hub) Join(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	client.groups[group] = true
	client.mu.Unlock()

	h.addLocked(client, group)
}

// Leave removes the client from a single group without disconnecting it.
func (h *Hub) Leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.mu.Lock()
	delete(client.groups, group)
	client.mu.Unlock()

	h.removeLocked(client, group)
}

// BroadcastToRoom sends one event to every client in the group. Delivery is
// best effort: a client with a full send buffer is skipped.
func (h *Hub) BroadcastToRoom(group string, event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.groups[group]
	if !ok {
		return
	}

	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s for group %s: %v", event, group, err)
		return
	}

	for client := range clients {
		client.enqueue(data)
	}
}

func (h *Hub) addLocked(client *Client, group string) {
	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
}

func (h *Hub) removeLocked(client *Client, group string) {
	clients, ok := h.groups[group]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.groups, group)
	}
}
