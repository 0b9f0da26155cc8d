package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mzeli/pigeon/internal/domain"
	"github.com/mzeli/pigeon/internal/service"
	"github.com/mzeli/pigeon/internal/session"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Client is one WebSocket connection. It holds a live watch on the user's
// chat index plus one watch per subscribed conversation; every watch is
// cancelled when the connection goes away.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	sess  session.Session
	chats *service.ChatService

	ctx    context.Context
	cancel context.CancelFunc

	// watches maps chatID to that conversation watch's cancel func.
	mu      sync.Mutex
	watches map[string]func()

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, sess session.Session, chats *service.ChatService) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:     hub,
		conn:    conn,
		sess:    sess,
		chats:   chats,
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]func()),
		send:    make(chan []byte, sendBufSize),
		done:    make(chan struct{}),
	}
}

// watchIndex pushes a full index snapshot on attach and after every change,
// re-sorting at this end because stored order carries no meaning.
func (c *Client) watchIndex() {
	ch, cancelWatch, err := c.chats.WatchChats(c.ctx, c.sess)
	if err != nil {
		log.Printf("ws: index watch for %s: %v", c.sess.UserID, err)
		return
	}
	go func() {
		defer cancelWatch()
		for entries := range ch {
			ix := domain.ChatIndex{UserID: c.sess.UserID, Chats: entries}
			c.sendEvent(EventTypeIndexSnapshot, "", IndexSnapshotPayload{Chats: ix.Sorted()})
		}
	}()
}

// ReadPump reads events from the WebSocket and routes them.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(c.ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.sess.UserID)
			} else {
				log.Printf("ws: read error from %s: %v", c.sess.UserID, err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes queued messages to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.sess.UserID, err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.sess.UserID, err)
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeChatSubscribe:
		var p ChatPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ChatID == "" {
			c.sendError("INVALID_PAYLOAD", "invalid chat.subscribe payload")
			return
		}
		c.subscribe(p.ChatID)

	case EventTypeChatUnsubscribe:
		var p ChatPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ChatID == "" {
			c.sendError("INVALID_PAYLOAD", "invalid chat.unsubscribe payload")
			return
		}
		c.unsubscribe(p.ChatID)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) subscribe(chatID string) {
	c.mu.Lock()
	_, exists := c.watches[chatID]
	c.mu.Unlock()
	if exists {
		return
	}

	ch, cancelWatch, err := c.chats.WatchMessages(c.ctx, c.sess, chatID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChatNotFound):
			c.sendError("NOT_FOUND", "conversation not found")
		case errors.Is(err, service.ErrNotParticipant):
			c.sendError("FORBIDDEN", "not a participant of this conversation")
		default:
			log.Printf("ws: subscribe %s to %s: %v", c.sess.UserID, chatID, err)
			c.sendError("INTERNAL", "subscription failed")
		}
		return
	}

	c.mu.Lock()
	c.watches[chatID] = cancelWatch
	c.mu.Unlock()

	go func() {
		for msgs := range ch {
			c.sendEvent(EventTypeChatSnapshot, chatID, ChatSnapshotPayload{Messages: msgs})
		}
	}()
	log.Printf("ws: %s subscribed to chat %s", c.sess.UserID, chatID)
}

func (c *Client) unsubscribe(chatID string) {
	c.mu.Lock()
	cancelWatch, ok := c.watches[chatID]
	if ok {
		delete(c.watches, chatID)
	}
	c.mu.Unlock()
	if ok {
		cancelWatch()
		log.Printf("ws: %s unsubscribed from chat %s", c.sess.UserID, chatID)
	}
}

// shutdown cancels every watch. Called by the hub on unregister.
func (c *Client) shutdown() {
	c.cancel()
	c.mu.Lock()
	for _, cancelWatch := range c.watches {
		cancelWatch()
	}
	c.watches = make(map[string]func())
	c.mu.Unlock()
}

func (c *Client) sendEvent(eventType, chatID string, payload any) {
	evt, err := NewEvent(eventType, chatID, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	evt, err := NewEvent(EventTypeError, "", ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
