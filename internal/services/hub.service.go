package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SourceFunc produces the envelope messages for one broadcast tick
type SourceFunc func() []PushMessage

// HubClient represents one connected websocket consumer
type HubClient struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan PushMessage
	Topics map[string]bool // empty set means every topic
}

// wants reports whether the client subscribed to this message's topic
func (c *HubClient) wants(msg PushMessage) bool {
	return len(c.Topics) == 0 || c.Topics[msg.Type]
}

// Hub fans broadcast messages out to every connected websocket consumer.
// A source function is polled on a ticker; consumers whose send buffer is
// full miss that tick rather than stalling the loop.
type Hub struct {
	clients    map[string]*HubClient
	broadcast  chan PushMessage
	register   chan *HubClient
	unregister chan string
	mu         sync.RWMutex
	source     SourceFunc
	interval   time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a hub broadcasting source's messages every interval.
// source may be nil for a broadcast-only hub.
func NewHub(source SourceFunc, interval time.Duration) *Hub {
	h := &Hub{
		clients:    make(map[string]*HubClient),
		broadcast:  make(chan PushMessage, 256),
		register:   make(chan *HubClient),
		unregister: make(chan string),
		source:     source,
		interval:   interval,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// run manages the hub's event loop
func (h *Hub) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[HUB] Client connected: %s (total: %d)", client.ID, total)

		case clientID := <-h.unregister:
			h.mu.Lock()
			if client, exists := h.clients[clientID]; exists {
				delete(h.clients, clientID)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("[HUB] Client disconnected: %s (total: %d)", clientID, total)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ticker.C:
			if h.source == nil {
				continue
			}
			for _, msg := range h.source() {
				h.deliver(msg)
			}
		}
	}
}

func (h *Hub) deliver(msg PushMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(msg) {
			continue
		}
		select {
		case client.Send <- msg:
		default:
			// Send buffer full, this client skips the tick
		}
	}
}

// Register adds a consumer to the hub
func (h *Hub) Register(client *HubClient) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a consumer from the hub
func (h *Hub) Unregister(clientID string) {
	select {
	case h.unregister <- clientID:
	case <-h.done:
	}
}

// Broadcast queues a message for every subscribed consumer
func (h *Hub) Broadcast(msg PushMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast queue full, drop rather than block the producer
	}
}

// Stop halts the broadcast loop. Idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Envelope wraps a payload into a PushMessage for a topic
func Envelope(topic string, payload interface{}) (PushMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return PushMessage{}, err
	}
	return PushMessage{
		Type:      topic,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}
