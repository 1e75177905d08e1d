// Package push fans quote updates out to connected streaming clients.
package push

import (
	"sync"

	"mt5-gateway/pkg/mt5"
)

// Message is the envelope written to streaming clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub tracks streaming clients by identity. Each client owns a buffered
// channel; a full buffer drops the update rather than stalling the workers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan Message
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan Message)}
}

// Register adds a client and returns its outbound channel. Registering an
// existing identity replaces and closes the old channel.
func (h *Hub) Register(id string, buffer int) <-chan Message {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Message, buffer)
	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		close(old)
	}
	h.clients[id] = ch
	h.mu.Unlock()
	return ch
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishPrice delivers a quote to the named subscribers. Implements the
// stream manager's publisher contract.
func (h *Hub) PublishPrice(subscribers []string, data *mt5.PriceData) {
	msg := Message{Type: "market-data", Data: data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range subscribers {
		ch, ok := h.clients[id]
		if !ok {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}
