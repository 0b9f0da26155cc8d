package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatID derives the canonical conversation key for an unordered pair of
// users. The two ids are sorted before joining, so ChatID(a, b) == ChatID(b, a)
// and re-deriving the key always addresses the same conversation.
func ChatID(a, b uuid.UUID) string {
	s1, s2 := a.String(), b.String()
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	return s1 + "_" + s2
}

type Conversation struct {
	ChatID       string       `json:"chat_id"`
	Participants []uuid.UUID  `json:"participants"`
	CreatedAt    time.Time    `json:"created_at"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
}

// LastMessage is the cached summary of the newest message in a conversation.
type LastMessage struct {
	Text      string    `json:"text"`
	SenderID  uuid.UUID `json:"sender_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether uid is one of the two conversation members.
func (c *Conversation) HasParticipant(uid uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// Peer returns the other participant for uid.
func (c *Conversation) Peer(uid uuid.UUID) uuid.UUID {
	for _, p := range c.Participants {
		if p != uid {
			return p
		}
	}
	return uid
}
