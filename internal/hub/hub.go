package hub

import (
	"encoding/json"
	"sync"

	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/pkg/log"
)

// Hub owns all live connections and the room membership sets. It is the
// only piece of shared mutable state in the gateway; every session
// goroutine mutates it through the methods below.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // clientID -> client
	rooms   map[string]map[string]*Client // roomID -> clientID -> client
	config  config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		config:  cfg,
	}
}

// Register adds a newly admitted client.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	log.L().Debug().Str(log.FieldClientID, client.ID).Str(log.FieldSubject, client.Identity).Msg("client registered")
}

// Unregister removes the client from every room it has joined and marks it
// closed. Safe to call more than once; later calls are no-ops.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		for roomID, members := range h.rooms {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
		delete(h.clients, client.ID)
		client.markClosed()
	}
	h.mu.Unlock()

	log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")
}

// Join adds the client to a room, creating the room on first reference.
// Idempotent: joining the same room twice leaves a single membership.
func (h *Hub) Join(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		// Closed sessions never re-enter a room.
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client

	log.L().Info().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).Msg("client joined room")
}

// Leave removes the client from one room; no-op if absent.
func (h *Hub) Leave(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}

	log.L().Info().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).Msg("client left room")
}

// Members returns a snapshot of the room's current member set.
func (h *Hub) Members(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	snapshot := make([]*Client, 0, len(members))
	for _, client := range members {
		snapshot = append(snapshot, client)
	}
	return snapshot
}

// RoomCount returns the number of members currently in a room.
func (h *Hub) RoomCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast serializes the message once and delivers it to every member of
// the room whose transport is still ready. Per-peer delivery is independent
// and never blocks: a peer with a full or closed send buffer is skipped.
// The sender, being a member like any other, receives its own message.
func (h *Hub) Broadcast(roomID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		if !client.trySend(data) {
			log.L().Debug().Str(log.FieldClientID, client.ID).Str(log.FieldRoomID, roomID).Msg("skipping peer, transport not ready")
		}
	}
	return nil
}
