package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreGetSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "users/a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "users/a", map[string]any{"name": "ana", "age": float64(30)}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	doc, err := s.Get(ctx, "users/a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Data["name"] != "ana" {
		t.Fatalf("expected name ana, got %v", doc.Data["name"])
	}

	// Mutating the returned map must not touch stored state.
	doc.Data["name"] = "mutated"
	doc2, _ := s.Get(ctx, "users/a")
	if doc2.Data["name"] != "ana" {
		t.Fatalf("stored document aliased by read: %v", doc2.Data["name"])
	}
}

func TestMemoryStoreSetMerge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "chats/c1", map[string]any{"a": "1", "b": "2"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "chats/c1", map[string]any{"b": "3"}, true); err != nil {
		t.Fatalf("merge set: %v", err)
	}

	doc, _ := s.Get(ctx, "chats/c1")
	if doc.Data["a"] != "1" || doc.Data["b"] != "3" {
		t.Fatalf("unexpected merge result: %v", doc.Data)
	}

	// Non-merge set replaces wholesale.
	if err := s.Set(ctx, "chats/c1", map[string]any{"c": "4"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	doc, _ = s.Get(ctx, "chats/c1")
	if _, ok := doc.Data["a"]; ok {
		t.Fatalf("expected replace to drop old fields: %v", doc.Data)
	}
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), "users/missing", map[string]any{"x": "1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msgs := []map[string]any{
		{"id": "m1", "sender": "a", "read": false, "created_at": "2024-01-01T10:00:00Z"},
		{"id": "m2", "sender": "b", "read": false, "created_at": "2024-01-01T09:00:00Z"},
		{"id": "m3", "sender": "a", "read": true, "created_at": "2024-01-01T11:00:00Z"},
	}
	for _, m := range msgs {
		if err := s.Set(ctx, "chats/c1/messages/"+m["id"].(string), m, false); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	// A nested document one level deeper must not show up.
	if err := s.Set(ctx, "chats/c1/messages/m1/extra", map[string]any{"id": "nested"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	docs, err := s.Query(ctx, "chats/c1/messages", Query{OrderBy: "created_at"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	if docs[0].Data["id"] != "m2" || docs[2].Data["id"] != "m3" {
		t.Fatalf("wrong order: %v, %v", docs[0].Data["id"], docs[2].Data["id"])
	}

	docs, err = s.Query(ctx, "chats/c1/messages", Query{
		Filters: []Filter{
			{Field: "sender", Op: "==", Value: "a"},
			{Field: "read", Op: "==", Value: false},
		},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].Data["id"] != "m1" {
		t.Fatalf("expected only m1, got %v", docs)
	}
}

func TestMemoryStoreQueryRangeFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"ana", "anders", "bo"} {
		if err := s.Set(ctx, "users/"+name, map[string]any{"username": name}, false); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	docs, err := s.Query(ctx, "users", Query{
		Filters: []Filter{
			{Field: "username", Op: ">=", Value: "an"},
			{Field: "username", Op: "<=", Value: "an\uf8ff"},
		},
		OrderBy: "username",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 prefix matches, got %d", len(docs))
	}
}

func TestMemoryStoreBatchWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "chats/c1", map[string]any{"created": "x"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	err := s.BatchWrite(ctx, []Write{
		{Path: "chats/c1/messages/m1", Data: map[string]any{"text": "hi"}},
		{Path: "chats/c1", Data: map[string]any{"last": "hi"}, Merge: true},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	doc, _ := s.Get(ctx, "chats/c1")
	if doc.Data["created"] != "x" || doc.Data["last"] != "hi" {
		t.Fatalf("batch merge lost fields: %v", doc.Data)
	}
	if _, err := s.Get(ctx, "chats/c1/messages/m1"); err != nil {
		t.Fatalf("batch set missing: %v", err)
	}
}

func TestNowStrictlyIncreasing(t *testing.T) {
	s := NewMemoryStore()
	var prev time.Time
	for i := 0; i < 1000; i++ {
		now := s.Now()
		if !now.After(prev) {
			t.Fatalf("timestamp %v not after %v", now, prev)
		}
		prev = now
	}
}

func TestCompareValuesTimestamps(t *testing.T) {
	// RFC 3339 strings with different sub-second digit counts do not sort
	// lexicographically; compareValues must order them as instants.
	a := "2024-01-01T10:00:05.1Z"
	b := "2024-01-01T10:00:05.10000001Z"
	if compareValues(a, b) >= 0 {
		t.Fatalf("expected %s < %s", a, b)
	}
	if compareValues(b, a) <= 0 {
		t.Fatalf("expected %s > %s", b, a)
	}
	if compareValues(a, a) != 0 {
		t.Fatalf("expected equal")
	}
}
