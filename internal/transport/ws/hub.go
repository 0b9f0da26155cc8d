package ws

import (
	"log"

	"github.com/google/uuid"
)

// Hub tracks connected clients and owns their lifecycle: registering a new
// connection for a user replaces the previous one, unregistering cancels all
// of the client's watches.
type Hub struct {
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if old, ok := h.clients[client.sess.UserID]; ok {
				h.drop(old)
			}
			h.clients[client.sess.UserID] = client
			log.Printf("ws hub: user %s connected (%d total)", client.sess.UserID, len(h.clients))

		case client := <-h.unregister:
			if current, ok := h.clients[client.sess.UserID]; ok && current == client {
				delete(h.clients, client.sess.UserID)
				h.drop(client)
				log.Printf("ws hub: user %s disconnected (%d total)", client.sess.UserID, len(h.clients))
			}
		}
	}
}

// drop stops delivery before cancelling watches so no forwarder is left
// blocked on the send queue. The send channel is never closed; senders gate
// on done instead.
func (h *Hub) drop(c *Client) {
	close(c.done)
	c.shutdown()
}
