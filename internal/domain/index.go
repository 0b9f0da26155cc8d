package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// PeerSnapshot is a point-in-time copy of the other participant's profile,
// embedded in a chat entry. It goes stale until the next index write.
type PeerSnapshot struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
}

// ChatEntry is one user's view of one conversation inside their chat index.
type ChatEntry struct {
	ChatID      string       `json:"chat_id"`
	Peer        PeerSnapshot `json:"peer"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ActivityTime is the sort key for presentation: last-message time, falling
// back to the conversation's creation time.
func (e *ChatEntry) ActivityTime() time.Time {
	if e.LastMessage != nil {
		return e.LastMessage.CreatedAt
	}
	return e.CreatedAt
}

// ChatIndex is one user's full collection of chat entries. It is stored and
// rewritten as a single document; physical order carries no meaning.
type ChatIndex struct {
	UserID uuid.UUID   `json:"user_id"`
	Chats  []ChatEntry `json:"chats"`
}

// Find returns the entry for chatID, or nil.
func (ix *ChatIndex) Find(chatID string) *ChatEntry {
	for i := range ix.Chats {
		if ix.Chats[i].ChatID == chatID {
			return &ix.Chats[i]
		}
	}
	return nil
}

// Sorted returns the entries ordered by descending activity time. Sort order
// is derived at read time, never stored.
func (ix *ChatIndex) Sorted() []ChatEntry {
	out := make([]ChatEntry, len(ix.Chats))
	copy(out, ix.Chats)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ActivityTime().After(out[j].ActivityTime())
	})
	return out
}
