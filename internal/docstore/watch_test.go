package docstore

import (
	"context"
	"testing"
	"time"
)

func recvDoc(t *testing.T, ch <-chan DocSnapshot) DocSnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return DocSnapshot{}
}

func recvDocs(t *testing.T, ch <-chan []Document) []Document {
	t.Helper()
	select {
	case docs, ok := <-ch:
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestWatchDocDeliversSnapshotOnAttach(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx := context.Background()

	if err := w.Set(ctx, "userchats/u1", map[string]any{"n": float64(1)}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	sub := w.WatchDoc(ctx, "userchats/u1")
	defer sub.Cancel()

	snap := recvDoc(t, sub.Snapshots())
	if !snap.Exists || snap.Doc.Data["n"] != float64(1) {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
}

func TestWatchDocMissingDocument(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx := context.Background()

	sub := w.WatchDoc(ctx, "userchats/u1")
	defer sub.Cancel()

	snap := recvDoc(t, sub.Snapshots())
	if snap.Exists {
		t.Fatalf("expected missing document snapshot, got %+v", snap)
	}

	if err := w.Set(ctx, "userchats/u1", map[string]any{"n": float64(2)}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap = recvDoc(t, sub.Snapshots())
	if !snap.Exists || snap.Doc.Data["n"] != float64(2) {
		t.Fatalf("unexpected snapshot after create: %+v", snap)
	}
}

func TestWatchDocDeliversFullSnapshotsOnChange(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx := context.Background()

	sub := w.WatchDoc(ctx, "userchats/u1")
	defer sub.Cancel()
	recvDoc(t, sub.Snapshots())

	for i := 1; i <= 3; i++ {
		if err := w.Set(ctx, "userchats/u1", map[string]any{"n": float64(i)}, false); err != nil {
			t.Fatalf("set: %v", err)
		}
		snap := recvDoc(t, sub.Snapshots())
		if snap.Doc.Data["n"] != float64(i) {
			t.Fatalf("expected n=%d, got %v", i, snap.Doc.Data["n"])
		}
	}
}

func TestWatchCancelStopsDelivery(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx := context.Background()

	sub := w.WatchDoc(ctx, "userchats/u1")
	recvDoc(t, sub.Snapshots())

	sub.Cancel()
	sub.Cancel() // idempotent

	select {
	case _, ok := <-sub.Snapshots():
		if ok {
			t.Fatal("received snapshot after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestWatchCancelDoesNotAffectOtherSubscriptions(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx := context.Background()

	sub1 := w.WatchDoc(ctx, "userchats/u1")
	sub2 := w.WatchDoc(ctx, "userchats/u1")
	recvDoc(t, sub1.Snapshots())
	recvDoc(t, sub2.Snapshots())

	sub1.Cancel()

	if err := w.Set(ctx, "userchats/u1", map[string]any{"n": float64(7)}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap := recvDoc(t, sub2.Snapshots())
	if snap.Doc.Data["n"] != float64(7) {
		t.Fatalf("surviving subscription missed update: %+v", snap)
	}
	sub2.Cancel()
}

func TestWatchCollection(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx := context.Background()

	if err := w.Set(ctx, "chats/c1/messages/m1", map[string]any{"created_at": "2024-01-01T10:00:00Z"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	sub := w.WatchCollection(ctx, "chats/c1/messages", Query{OrderBy: "created_at"})
	defer sub.Cancel()

	docs := recvDocs(t, sub.Snapshots())
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc on attach, got %d", len(docs))
	}

	// Writes to other collections must not produce snapshots; the next
	// snapshot after an unrelated write plus a relevant one shows both
	// messages in order.
	if err := w.Set(ctx, "chats/other/messages/mx", map[string]any{"created_at": "2024-01-01T09:00:00Z"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := w.Set(ctx, "chats/c1/messages/m2", map[string]any{"created_at": "2024-01-01T11:00:00Z"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	docs = recvDocs(t, sub.Snapshots())
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Path != "chats/c1/messages/m1" || docs[1].Path != "chats/c1/messages/m2" {
		t.Fatalf("wrong snapshot ordering: %s, %s", docs[0].Path, docs[1].Path)
	}
}

func TestWatchContextCancellation(t *testing.T) {
	w := NewWatched(NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())

	sub := w.WatchDoc(ctx, "userchats/u1")
	recvDoc(t, sub.Snapshots())

	cancel()

	select {
	case _, ok := <-sub.Snapshots():
		if ok {
			t.Fatal("received snapshot after context cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}
