package ws

import (
	"encoding/json"
	"time"

	"github.com/mzeli/pigeon/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeChatSubscribe   = "chat.subscribe"
	EventTypeChatUnsubscribe = "chat.unsubscribe"
	EventTypePing            = "ping"
)

// Event types - Server → Client
const (
	EventTypeIndexSnapshot = "index.snapshot"
	EventTypeChatSnapshot  = "chat.snapshot"
	EventTypePong          = "pong"
	EventTypeError         = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	ChatID    string          `json:"chat_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type ChatPayload struct {
	ChatID string `json:"chat_id"`
}

// --- Server → Client payloads ---

// IndexSnapshotPayload carries the full chat index, ordered by descending
// activity time. Each change upstream produces a fresh full snapshot.
type IndexSnapshotPayload struct {
	Chats []domain.ChatEntry `json:"chats"`
}

// ChatSnapshotPayload carries the full message log of one conversation,
// ascending by creation time.
type ChatSnapshotPayload struct {
	Messages []domain.Message `json:"messages"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType, chatID string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		ChatID:    chatID,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
