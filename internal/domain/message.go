package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry in a conversation's append-only log. Text never
// changes after the write; only Read transitions false -> true.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the last-message preview cached on the conversation and
// on both participants' index entries.
func (m *Message) Summary() *LastMessage {
	return &LastMessage{
		Text:      m.Text,
		SenderID:  m.SenderID,
		CreatedAt: m.CreatedAt,
	}
}
