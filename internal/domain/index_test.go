package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestChatIDSymmetric(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	id1 := ChatID(a, b)
	id2 := ChatID(b, a)
	if id1 != id2 {
		t.Fatalf("chat id depends on argument order: %s vs %s", id1, id2)
	}

	parts := strings.Split(id1, "_")
	if len(parts) != 2 || parts[0] > parts[1] {
		t.Fatalf("chat id halves not sorted: %s", id1)
	}
}

func TestActivityTimeFallsBackToCreation(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := ChatEntry{ChatID: "c", CreatedAt: created}
	if got := e.ActivityTime(); !got.Equal(created) {
		t.Fatalf("expected creation time, got %v", got)
	}

	sent := created.Add(time.Hour)
	e.LastMessage = &LastMessage{Text: "hi", CreatedAt: sent}
	if got := e.ActivityTime(); !got.Equal(sent) {
		t.Fatalf("expected last message time, got %v", got)
	}
}

func TestSortedDescendingByActivity(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ix := ChatIndex{Chats: []ChatEntry{
		{ChatID: "old", CreatedAt: base},
		{ChatID: "busy", CreatedAt: base, LastMessage: &LastMessage{CreatedAt: base.Add(2 * time.Hour)}},
		{ChatID: "recent", CreatedAt: base.Add(time.Hour)},
	}}

	sorted := ix.Sorted()
	want := []string{"busy", "recent", "old"}
	for i, id := range want {
		if sorted[i].ChatID != id {
			t.Fatalf("position %d: got %s, want %s", i, sorted[i].ChatID, id)
		}
	}

	// Stored order is untouched.
	if ix.Chats[0].ChatID != "old" {
		t.Fatalf("Sorted mutated stored order: %s", ix.Chats[0].ChatID)
	}
}

func TestFind(t *testing.T) {
	ix := ChatIndex{Chats: []ChatEntry{{ChatID: "a"}, {ChatID: "b", UnreadCount: 2}}}

	if got := ix.Find("b"); got == nil || got.UnreadCount != 2 {
		t.Fatalf("unexpected find result: %+v", got)
	}
	if ix.Find("missing") != nil {
		t.Fatal("expected nil for unknown chat id")
	}

	// Find returns a pointer into the slice so callers can mutate in place.
	ix.Find("a").UnreadCount = 7
	if ix.Chats[0].UnreadCount != 7 {
		t.Fatal("Find returned a copy")
	}
}

func TestConversationPeer(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	c := Conversation{ChatID: ChatID(a, b), Participants: []uuid.UUID{a, b}}

	if got := c.Peer(a); got != b {
		t.Fatalf("peer of a: got %s, want %s", got, b)
	}
	if got := c.Peer(b); got != a {
		t.Fatalf("peer of b: got %s, want %s", got, a)
	}
	if !c.HasParticipant(a) || c.HasParticipant(uuid.New()) {
		t.Fatal("HasParticipant misreported membership")
	}
}
