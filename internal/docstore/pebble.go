package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists documents in an embedded pebble database. Keys are
// document paths, values the JSON-encoded data.
type PebbleStore struct {
	db    *pebble.DB
	clock serverClock
}

func OpenPebble(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	val, closer, err := s.db.Get([]byte(path))
	if errors.Is(err, pebble.ErrNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("pebble get %s: %w", path, err)
	}
	defer closer.Close()

	var data map[string]any
	if err := json.Unmarshal(val, &data); err != nil {
		return Document{}, fmt.Errorf("pebble get %s: %w", path, err)
	}
	return Document{Path: path, Data: data}, nil
}

func (s *PebbleStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := s.encodeWrite(ctx, path, data, merge)
	if err != nil {
		return err
	}
	if err := s.db.Set([]byte(path), val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", path, err)
	}
	return nil
}

func (s *PebbleStore) Update(ctx context.Context, path string, partial map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.Get(ctx, path); err != nil {
		return err
	}
	return s.Set(ctx, path, partial, true)
}

func (s *PebbleStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete([]byte(path), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete %s: %w", path, err)
	}
	return nil
}

func (s *PebbleStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := collection + "/"
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: keyUpperBound([]byte(prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("pebble query %s: %w", collection, err)
	}
	defer iter.Close()

	var docs []Document
	for iter.First(); iter.Valid(); iter.Next() {
		path := string(iter.Key())
		if !childOf(path, collection) {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(iter.Value(), &data); err != nil {
			return nil, fmt.Errorf("pebble query %s: %w", path, err)
		}
		docs = append(docs, Document{Path: path, Data: data})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("pebble query %s: %w", collection, err)
	}
	return applyQuery(docs, q), nil
}

func (s *PebbleStore) BatchWrite(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, w := range writes {
		val, err := s.encodeWrite(ctx, w.Path, w.Data, w.Merge)
		if err != nil {
			return err
		}
		if err := b.Set([]byte(w.Path), val, nil); err != nil {
			return fmt.Errorf("pebble batch %s: %w", w.Path, err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble batch commit: %w", err)
	}
	return nil
}

func (s *PebbleStore) Now() time.Time { return s.clock.Now() }

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) encodeWrite(ctx context.Context, path string, data map[string]any, merge bool) ([]byte, error) {
	if merge {
		existing, err := s.Get(ctx, path)
		if err == nil {
			merged := existing.Data
			for k, v := range data {
				merged[k] = v
			}
			data = merged
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	val, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("pebble encode %s: %w", path, err)
	}
	return val, nil
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
