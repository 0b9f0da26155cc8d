package docstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]map[string]any
	clock serverClock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]any)}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[path]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{Path: path, Data: cloneMap(data)}, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(path, data, merge)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, partial map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[path]; !ok {
		return ErrNotFound
	}
	s.set(path, partial, true)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var docs []Document
	for path, data := range s.docs {
		if childOf(path, collection) {
			docs = append(docs, Document{Path: path, Data: cloneMap(data)})
		}
	}
	s.mu.RUnlock()
	return applyQuery(docs, q), nil
}

func (s *MemoryStore) BatchWrite(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		s.set(w.Path, w.Data, w.Merge)
	}
	return nil
}

func (s *MemoryStore) Now() time.Time { return s.clock.Now() }

func (s *MemoryStore) Close() error { return nil }

// set requires s.mu held for writing.
func (s *MemoryStore) set(path string, data map[string]any, merge bool) {
	if merge {
		if existing, ok := s.docs[path]; ok {
			merged := cloneMap(existing)
			for k, v := range data {
				merged[k] = cloneValue(v)
			}
			s.docs[path] = merged
			return
		}
	}
	s.docs[path] = cloneMap(data)
}

// Documents are cloned on both read and write so callers can never alias the
// stored maps.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
