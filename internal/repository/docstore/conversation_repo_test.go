package docstore

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/mzeli/pigeon/internal/docstore"
	"github.com/mzeli/pigeon/internal/domain"
)

func newTestStore() *docstore.WatchedStore {
	return docstore.NewWatched(docstore.NewMemoryStore())
}

func TestEnsureConversationSymmetric(t *testing.T) {
	repo := NewConversationRepo(newTestStore())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	c1, err := repo.EnsureConversation(ctx, a, b)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	c2, err := repo.EnsureConversation(ctx, b, a)
	if err != nil {
		t.Fatalf("ensure reversed: %v", err)
	}

	if c1.ChatID != c2.ChatID {
		t.Fatalf("chat ids differ: %s vs %s", c1.ChatID, c2.ChatID)
	}
	if c1.ChatID != domain.ChatID(b, a) {
		t.Fatalf("chat id not derived from pair: %s", c1.ChatID)
	}
	if !c1.CreatedAt.Equal(c2.CreatedAt) {
		t.Fatalf("second ensure created a new conversation")
	}
}

func TestEnsureConversationDoesNotClobberLastMessage(t *testing.T) {
	repo := NewConversationRepo(newTestStore())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := repo.EnsureConversation(ctx, a, b)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := repo.AppendMessage(ctx, conv.ChatID, a, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	again, err := repo.EnsureConversation(ctx, a, b)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.LastMessage == nil || again.LastMessage.Text != "hello" {
		t.Fatalf("redundant ensure erased last message: %+v", again.LastMessage)
	}
}

func TestAppendMessageOrdering(t *testing.T) {
	repo := NewConversationRepo(newTestStore())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, err := repo.EnsureConversation(ctx, a, b)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	texts := []string{"one", "two", "three", "four"}
	for _, text := range texts {
		if _, err := repo.AppendMessage(ctx, conv.ChatID, a, text); err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
	}

	msgs, err := repo.ListMessages(ctx, conv.ChatID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(msgs))
	}
	for i, m := range msgs {
		if m.Text != texts[i] {
			t.Fatalf("message %d out of order: %q", i, m.Text)
		}
		if i > 0 && !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Fatalf("timestamps not increasing at %d", i)
		}
	}
}

func TestAppendMessageUpdatesLastMessage(t *testing.T) {
	repo := NewConversationRepo(newTestStore())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, _ := repo.EnsureConversation(ctx, a, b)
	msg, err := repo.AppendMessage(ctx, conv.ChatID, b, "latest")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := repo.GetConversation(ctx, conv.ChatID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastMessage == nil || got.LastMessage.Text != "latest" || got.LastMessage.SenderID != b {
		t.Fatalf("last message summary not updated: %+v", got.LastMessage)
	}
	if !got.LastMessage.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("summary time %v != message time %v", got.LastMessage.CreatedAt, msg.CreatedAt)
	}
}

func TestMarkMessagesRead(t *testing.T) {
	repo := NewConversationRepo(newTestStore())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, _ := repo.EnsureConversation(ctx, a, b)
	repo.AppendMessage(ctx, conv.ChatID, a, "m1")
	repo.AppendMessage(ctx, conv.ChatID, a, "m2")
	repo.AppendMessage(ctx, conv.ChatID, b, "reply")

	// B's unread messages from A.
	unread, err := repo.ListUnreadFrom(ctx, conv.ChatID, a)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 2 {
		t.Fatalf("expected 2 unread from a, got %d", len(unread))
	}

	ids := []string{unread[0].ID, unread[1].ID}
	if err := repo.MarkMessagesRead(ctx, conv.ChatID, ids); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread, _ = repo.ListUnreadFrom(ctx, conv.ChatID, a)
	if len(unread) != 0 {
		t.Fatalf("expected no unread after flip, got %d", len(unread))
	}

	// The flip must not touch text or ordering.
	msgs, _ := repo.ListMessages(ctx, conv.ChatID)
	if len(msgs) != 3 || msgs[0].Text != "m1" || !msgs[0].Read {
		t.Fatalf("unexpected log after mark read: %+v", msgs)
	}
	if msgs[2].Read {
		t.Fatalf("b's own message flipped read")
	}
}

func TestWatchMessages(t *testing.T) {
	repo := NewConversationRepo(newTestStore())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conv, _ := repo.EnsureConversation(ctx, a, b)
	repo.AppendMessage(ctx, conv.ChatID, a, "first")

	ch, cancel, err := repo.WatchMessages(ctx, conv.ChatID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	snap := <-ch
	if len(snap) != 1 || snap[0].Text != "first" {
		t.Fatalf("unexpected attach snapshot: %+v", snap)
	}

	repo.AppendMessage(ctx, conv.ChatID, b, "second")
	snap = <-ch
	if len(snap) != 2 || snap[1].Text != "second" {
		t.Fatalf("unexpected snapshot after append: %+v", snap)
	}
	if !snap[1].CreatedAt.After(snap[0].CreatedAt) {
		t.Fatalf("append reordered prior messages")
	}

	cancel()
	cancel() // idempotent
}
