// Package docstore is the narrow persistence contract the messaging core is
// built on: addressable JSON documents with get/set/update/delete, filtered
// ordered queries over collections, atomic batch writes and a server-assigned
// monotonic clock. Backends exist for memory, pebble and postgres; live
// change subscriptions are layered on top by WatchedStore.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Document is one stored JSON document addressed by a slash-separated path,
// e.g. "chats/{chatId}/messages/{messageId}".
type Document struct {
	Path string
	Data map[string]any
}

// Write is one element of a batch. Merge folds Data into the existing
// document's top-level fields instead of replacing it.
type Write struct {
	Path  string
	Data  map[string]any
	Merge bool
}

type Filter struct {
	Field string
	Op    string // "==", "!=", "<", "<=", ">", ">="
	Value any
}

type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the persistence collaborator contract. No operation spans
// documents except BatchWrite, which is applied as a unit.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	// Update fails with ErrNotFound when the document does not exist.
	Update(ctx context.Context, path string, partial map[string]any) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	BatchWrite(ctx context.Context, writes []Write) error
	// Now returns a server-assigned timestamp, strictly increasing across
	// calls, used for message ordering.
	Now() time.Time
	Close() error
}

// Encode converts a struct into document data via its json tags.
func Encode(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return m, nil
}

// Decode unmarshals document data into v via its json tags.
func Decode(doc Document, v any) error {
	b, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", doc.Path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", doc.Path, err)
	}
	return nil
}
