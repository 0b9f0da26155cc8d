package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mzeli/pigeon/internal/docstore"
	"github.com/mzeli/pigeon/internal/domain"
	"github.com/mzeli/pigeon/internal/repository"
	"github.com/mzeli/pigeon/internal/session"
)

var (
	ErrAuthRequired   = errors.New("authentication required")
	ErrChatNotFound   = errors.New("conversation not found")
	ErrNotParticipant = errors.New("you are not a participant of this conversation")
	ErrCannotChatSelf = errors.New("cannot start a conversation with yourself")
	ErrUserNotFound   = errors.New("user not found")
)

// ChatService runs the synchronization protocol: each user action updates
// the conversation registry and both participants' chat indexes. The message
// append is the only step that must succeed; index maintenance afterwards is
// best-effort cache upkeep that self-heals on the next successful write.
type ChatService struct {
	convRepo  repository.ConversationRepository
	indexRepo repository.IndexRepository
	userRepo  repository.UserRepository
}

func NewChatService(
	convRepo repository.ConversationRepository,
	indexRepo repository.IndexRepository,
	userRepo repository.UserRepository,
) *ChatService {
	return &ChatService{
		convRepo:  convRepo,
		indexRepo: indexRepo,
		userRepo:  userRepo,
	}
}

// AddContact creates the conversation with otherID and the index entries on
// both sides. Re-adding an existing contact returns the caller's current
// entry untouched, so an established conversation's preview and unread
// counters survive a redundant add.
func (s *ChatService) AddContact(ctx context.Context, sess session.Session, otherID uuid.UUID) (*domain.ChatEntry, error) {
	if !sess.Authenticated() {
		return nil, ErrAuthRequired
	}
	if sess.UserID == otherID {
		return nil, ErrCannotChatSelf
	}

	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}
	self, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if self == nil {
		return nil, ErrUserNotFound
	}

	chatID := domain.ChatID(sess.UserID, otherID)
	ix, err := s.indexRepo.GetIndex(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if existing := ix.Find(chatID); existing != nil {
		return existing, nil
	}

	conv, err := s.convRepo.EnsureConversation(ctx, sess.UserID, otherID)
	if err != nil {
		return nil, fmt.Errorf("ensuring conversation: %w", err)
	}

	entry := domain.ChatEntry{
		ChatID:      chatID,
		Peer:        other.Snapshot(),
		LastMessage: conv.LastMessage,
		UnreadCount: 0,
		CreatedAt:   conv.CreatedAt,
	}
	if err := s.indexRepo.UpsertEntry(ctx, sess.UserID, entry); err != nil {
		return nil, fmt.Errorf("writing own index entry: %w", err)
	}

	// Mirror entry for the other side, only if they do not have one yet: an
	// add must never reset the peer's unread count or preview.
	otherIx, err := s.indexRepo.GetIndex(ctx, otherID)
	if err != nil {
		log.Printf("ERROR add contact: reading %s index: %v", otherID, err)
		return &entry, nil
	}
	if otherIx.Find(chatID) == nil {
		mirror := domain.ChatEntry{
			ChatID:      chatID,
			Peer:        self.Snapshot(),
			LastMessage: conv.LastMessage,
			UnreadCount: 0,
			CreatedAt:   conv.CreatedAt,
		}
		if err := s.indexRepo.UpsertEntry(ctx, otherID, mirror); err != nil {
			log.Printf("ERROR add contact: writing %s index entry: %v", otherID, err)
		}
	}

	return &entry, nil
}

// SendMessage appends to the conversation log, then refreshes both index
// entries. The append failing aborts the send; an index write failing leaves
// the message durably stored and the index stale until the next write.
func (s *ChatService) SendMessage(ctx context.Context, sess session.Session, chatID, text string) (*domain.Message, error) {
	if !sess.Authenticated() {
		return nil, ErrAuthRequired
	}
	conv, err := s.getParticipantConversation(ctx, sess.UserID, chatID)
	if err != nil {
		return nil, err
	}

	msg, err := s.convRepo.AppendMessage(ctx, chatID, sess.UserID, text)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	s.refreshIndexes(ctx, conv, msg)
	return msg, nil
}

// refreshIndexes rewrites the sender's and recipient's index entries after an
// append. Failures here are logged and swallowed: the canonical message is
// already stored, a stale preview or unread count degrades gracefully.
func (s *ChatService) refreshIndexes(ctx context.Context, conv *domain.Conversation, msg *domain.Message) {
	recipientID := conv.Peer(msg.SenderID)

	sender, err := s.userRepo.GetByID(ctx, msg.SenderID)
	if err != nil || sender == nil {
		log.Printf("ERROR send message: loading sender %s: %v", msg.SenderID, err)
		return
	}
	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil || recipient == nil {
		log.Printf("ERROR send message: loading recipient %s: %v", recipientID, err)
		return
	}

	// Sender's own copy always shows zero unread.
	senderEntry := domain.ChatEntry{
		ChatID:      msg.ChatID,
		Peer:        recipient.Snapshot(),
		LastMessage: msg.Summary(),
		UnreadCount: 0,
		CreatedAt:   conv.CreatedAt,
	}
	if err := s.indexRepo.UpsertEntry(ctx, msg.SenderID, senderEntry); err != nil {
		log.Printf("ERROR send message: updating sender index: %v", err)
	}

	recipientEntry := domain.ChatEntry{
		ChatID:      msg.ChatID,
		Peer:        sender.Snapshot(),
		LastMessage: msg.Summary(),
		CreatedAt:   conv.CreatedAt,
	}
	if err := s.indexRepo.IncrementUnread(ctx, recipientID, recipientEntry); err != nil {
		log.Printf("ERROR send message: updating recipient index: %v", err)
	}
}

// MarkRead zeroes the reader's unread counter and flips the peer's unread
// messages to read. Both steps are bookkeeping: store failures are logged,
// not surfaced, and missed messages heal on the next open.
func (s *ChatService) MarkRead(ctx context.Context, sess session.Session, chatID string) error {
	if !sess.Authenticated() {
		return ErrAuthRequired
	}
	conv, err := s.getParticipantConversation(ctx, sess.UserID, chatID)
	if err != nil {
		return err
	}

	if err := s.indexRepo.ResetUnread(ctx, sess.UserID, chatID); err != nil {
		log.Printf("ERROR mark read: resetting unread for %s: %v", sess.UserID, err)
	}

	unread, err := s.convRepo.ListUnreadFrom(ctx, chatID, conv.Peer(sess.UserID))
	if err != nil {
		log.Printf("ERROR mark read: listing unread in %s: %v", chatID, err)
		return nil
	}
	if len(unread) == 0 {
		return nil
	}
	ids := make([]string, 0, len(unread))
	for _, m := range unread {
		ids = append(ids, m.ID)
	}
	if err := s.convRepo.MarkMessagesRead(ctx, chatID, ids); err != nil {
		log.Printf("ERROR mark read: flipping messages in %s: %v", chatID, err)
	}
	return nil
}

// ListChats returns the caller's index entries ordered by descending
// activity time. The order is recomputed here on every read.
func (s *ChatService) ListChats(ctx context.Context, sess session.Session) ([]domain.ChatEntry, error) {
	if !sess.Authenticated() {
		return nil, ErrAuthRequired
	}
	ix, err := s.indexRepo.GetIndex(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return ix.Sorted(), nil
}

func (s *ChatService) ListMessages(ctx context.Context, sess session.Session, chatID string) ([]domain.Message, error) {
	if !sess.Authenticated() {
		return nil, ErrAuthRequired
	}
	if _, err := s.getParticipantConversation(ctx, sess.UserID, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.convRepo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// WatchChats streams snapshots of the caller's chat index.
func (s *ChatService) WatchChats(ctx context.Context, sess session.Session) (<-chan []domain.ChatEntry, func(), error) {
	if !sess.Authenticated() {
		return nil, nil, ErrAuthRequired
	}
	return s.indexRepo.WatchIndex(ctx, sess.UserID)
}

// WatchMessages streams snapshots of one conversation's log, after checking
// the caller is a participant.
func (s *ChatService) WatchMessages(ctx context.Context, sess session.Session, chatID string) (<-chan []domain.Message, func(), error) {
	if !sess.Authenticated() {
		return nil, nil, ErrAuthRequired
	}
	if _, err := s.getParticipantConversation(ctx, sess.UserID, chatID); err != nil {
		return nil, nil, err
	}
	return s.convRepo.WatchMessages(ctx, chatID)
}

func (s *ChatService) getParticipantConversation(ctx context.Context, userID uuid.UUID, chatID string) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetConversation(ctx, chatID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}
