package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/mzeli/pigeon/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	SearchByUsername(ctx context.Context, prefix string, limit int) ([]domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

// ConversationRepository is the canonical record of conversations and their
// append-only message logs.
type ConversationRepository interface {
	// EnsureConversation derives the chat id for the pair and creates the
	// conversation if absent. Idempotent: calling it again, in either
	// argument order, addresses the same conversation and never overwrites
	// an existing one.
	EnsureConversation(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error)
	GetConversation(ctx context.Context, chatID string) (*domain.Conversation, error)
	// AppendMessage assigns the server timestamp and message id, appends to
	// the log and refreshes the conversation's last-message summary.
	AppendMessage(ctx context.Context, chatID string, senderID uuid.UUID, text string) (*domain.Message, error)
	// ListMessages returns the full log ascending by creation time.
	ListMessages(ctx context.Context, chatID string) ([]domain.Message, error)
	// ListUnreadFrom returns the unread messages sent by peerID.
	ListUnreadFrom(ctx context.Context, chatID string, peerID uuid.UUID) ([]domain.Message, error)
	MarkMessagesRead(ctx context.Context, chatID string, messageIDs []string) error
	// WatchMessages streams full ascending snapshots of the log: one on
	// attach, then one per change. The returned cancel func is idempotent.
	WatchMessages(ctx context.Context, chatID string) (<-chan []domain.Message, func(), error)
}

// IndexRepository owns the per-user chat index aggregates. Every mutation is
// a read-modify-write over the whole aggregate; implementations must
// serialize writes per user so concurrent senders cannot silently discard
// each other's updates.
type IndexRepository interface {
	// GetIndex returns an empty aggregate when the user has no index yet.
	GetIndex(ctx context.Context, userID uuid.UUID) (*domain.ChatIndex, error)
	// UpsertEntry replaces any existing entry with the same chat id, never
	// duplicating.
	UpsertEntry(ctx context.Context, userID uuid.UUID, entry domain.ChatEntry) error
	// IncrementUnread upserts the entry with its unread count set to the
	// current stored count plus one, read and written under the same lock.
	IncrementUnread(ctx context.Context, userID uuid.UUID, entry domain.ChatEntry) error
	// ResetUnread zeroes the entry's unread counter, leaving every other
	// field untouched. Missing entries are a no-op.
	ResetUnread(ctx context.Context, userID uuid.UUID, chatID string) error
	// WatchIndex streams full snapshots of the user's entries. Sort order is
	// up to the observer.
	WatchIndex(ctx context.Context, userID uuid.UUID) (<-chan []domain.ChatEntry, func(), error)
}
