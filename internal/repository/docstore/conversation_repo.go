package docstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/mzeli/pigeon/internal/docstore"
	"github.com/mzeli/pigeon/internal/domain"
)

type ConversationRepo struct {
	store *docstore.WatchedStore
}

func NewConversationRepo(store *docstore.WatchedStore) *ConversationRepo {
	return &ConversationRepo{store: store}
}

func chatPath(chatID string) string     { return "chats/" + chatID }
func messagesPath(chatID string) string { return "chats/" + chatID + "/messages" }

func (r *ConversationRepo) EnsureConversation(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	chatID := domain.ChatID(a, b)

	// Check-then-create, never a blind overwrite: a redundant call must not
	// clobber an existing conversation's last-message summary.
	conv, err := r.GetConversation(ctx, chatID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	if a.String() > b.String() {
		a, b = b, a
	}
	conv = &domain.Conversation{
		ChatID:       chatID,
		Participants: []uuid.UUID{a, b},
		CreatedAt:    r.store.Now(),
	}
	data, err := docstore.Encode(conv)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, chatPath(chatID), data, false); err != nil {
		return nil, fmt.Errorf("creating conversation %s: %w", chatID, err)
	}
	return conv, nil
}

func (r *ConversationRepo) GetConversation(ctx context.Context, chatID string) (*domain.Conversation, error) {
	doc, err := r.store.Get(ctx, chatPath(chatID))
	if err != nil {
		return nil, err
	}
	var conv domain.Conversation
	if err := docstore.Decode(doc, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) AppendMessage(ctx context.Context, chatID string, senderID uuid.UUID, text string) (*domain.Message, error) {
	now := r.store.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	msg := &domain.Message{
		ID:        id.String(),
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		Read:      false,
		CreatedAt: now,
	}

	msgData, err := docstore.Encode(msg)
	if err != nil {
		return nil, err
	}
	summary, err := docstore.Encode(msg.Summary())
	if err != nil {
		return nil, err
	}

	// The append and the cached summary land together.
	err = r.store.BatchWrite(ctx, []docstore.Write{
		{Path: messagesPath(chatID) + "/" + msg.ID, Data: msgData},
		{Path: chatPath(chatID), Data: map[string]any{"last_message": summary}, Merge: true},
	})
	if err != nil {
		return nil, fmt.Errorf("appending message to %s: %w", chatID, err)
	}
	return msg, nil
}

func (r *ConversationRepo) ListMessages(ctx context.Context, chatID string) ([]domain.Message, error) {
	docs, err := r.store.Query(ctx, messagesPath(chatID), docstore.Query{OrderBy: "created_at"})
	if err != nil {
		return nil, err
	}
	return decodeMessages(docs)
}

func (r *ConversationRepo) ListUnreadFrom(ctx context.Context, chatID string, peerID uuid.UUID) ([]domain.Message, error) {
	docs, err := r.store.Query(ctx, messagesPath(chatID), docstore.Query{
		Filters: []docstore.Filter{
			{Field: "sender_id", Op: "==", Value: peerID.String()},
			{Field: "read", Op: "==", Value: false},
		},
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, err
	}
	return decodeMessages(docs)
}

func (r *ConversationRepo) MarkMessagesRead(ctx context.Context, chatID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	writes := make([]docstore.Write, 0, len(messageIDs))
	for _, id := range messageIDs {
		writes = append(writes, docstore.Write{
			Path:  messagesPath(chatID) + "/" + id,
			Data:  map[string]any{"read": true},
			Merge: true,
		})
	}
	if err := r.store.BatchWrite(ctx, writes); err != nil {
		return fmt.Errorf("marking messages read in %s: %w", chatID, err)
	}
	return nil
}

func (r *ConversationRepo) WatchMessages(ctx context.Context, chatID string) (<-chan []domain.Message, func(), error) {
	sub := r.store.WatchCollection(ctx, messagesPath(chatID), docstore.Query{OrderBy: "created_at"})
	out := make(chan []domain.Message, 1)
	go func() {
		defer close(out)
		for docs := range sub.Snapshots() {
			msgs, err := decodeMessages(docs)
			if err != nil {
				continue
			}
			select {
			case out <- msgs:
			case <-ctx.Done():
				sub.Cancel()
				return
			}
		}
	}()
	return out, sub.Cancel, nil
}

func decodeMessages(docs []docstore.Document) ([]domain.Message, error) {
	msgs := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		var m domain.Message
		if err := docstore.Decode(doc, &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
