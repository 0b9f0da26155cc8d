package docstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// WatchedStore wraps a Store and turns every successful write into change
// notifications for live subscriptions. A subscription delivers a full
// current snapshot on attach, then a fresh full snapshot after each relevant
// write; intermediate snapshots coalesce when the consumer is slow, so the
// consumer always ends up at the latest state. Snapshots are never deltas.
type WatchedStore struct {
	inner Store

	mu     sync.Mutex
	nextID int
	subs   map[int]*watcher
}

type watcher struct {
	target     string // document path, or collection path
	collection bool
	kick       chan struct{}
	done       chan struct{}
	once       sync.Once
	id         int
	w          *WatchedStore
}

func NewWatched(inner Store) *WatchedStore {
	return &WatchedStore{inner: inner, subs: make(map[int]*watcher)}
}

func (w *WatchedStore) Get(ctx context.Context, path string) (Document, error) {
	return w.inner.Get(ctx, path)
}

func (w *WatchedStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	return w.inner.Query(ctx, collection, q)
}

func (w *WatchedStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if err := w.inner.Set(ctx, path, data, merge); err != nil {
		return err
	}
	w.notify(path)
	return nil
}

func (w *WatchedStore) Update(ctx context.Context, path string, partial map[string]any) error {
	if err := w.inner.Update(ctx, path, partial); err != nil {
		return err
	}
	w.notify(path)
	return nil
}

func (w *WatchedStore) Delete(ctx context.Context, path string) error {
	if err := w.inner.Delete(ctx, path); err != nil {
		return err
	}
	w.notify(path)
	return nil
}

func (w *WatchedStore) BatchWrite(ctx context.Context, writes []Write) error {
	if err := w.inner.BatchWrite(ctx, writes); err != nil {
		return err
	}
	for _, wr := range writes {
		w.notify(wr.Path)
	}
	return nil
}

func (w *WatchedStore) Now() time.Time { return w.inner.Now() }

func (w *WatchedStore) Close() error { return w.inner.Close() }

// DocSnapshot is the full state of one watched document. Exists is false
// when the document has not been created yet.
type DocSnapshot struct {
	Doc    Document
	Exists bool
}

type DocSubscription struct {
	watcher *watcher
	ch      chan DocSnapshot
}

// Snapshots is closed once the subscription is cancelled or its context ends.
func (s *DocSubscription) Snapshots() <-chan DocSnapshot { return s.ch }

// Cancel stops delivery. Safe to call more than once; other subscriptions on
// the same document are unaffected.
func (s *DocSubscription) Cancel() { s.watcher.cancel() }

// WatchDoc subscribes to one document.
func (w *WatchedStore) WatchDoc(ctx context.Context, path string) *DocSubscription {
	wa := w.addWatcher(path, false)
	sub := &DocSubscription{watcher: wa, ch: make(chan DocSnapshot, 1)}
	go pump(ctx, wa, sub.ch, func() (DocSnapshot, error) {
		doc, err := w.inner.Get(ctx, path)
		if errors.Is(err, ErrNotFound) {
			return DocSnapshot{Doc: Document{Path: path}}, nil
		}
		if err != nil {
			return DocSnapshot{}, err
		}
		return DocSnapshot{Doc: doc, Exists: true}, nil
	})
	return sub
}

type CollectionSubscription struct {
	watcher *watcher
	ch      chan []Document
}

func (s *CollectionSubscription) Snapshots() <-chan []Document { return s.ch }

func (s *CollectionSubscription) Cancel() { s.watcher.cancel() }

// WatchCollection subscribes to the query result over a collection. The
// query is re-evaluated against current state for each snapshot.
func (w *WatchedStore) WatchCollection(ctx context.Context, collection string, q Query) *CollectionSubscription {
	wa := w.addWatcher(collection, true)
	sub := &CollectionSubscription{watcher: wa, ch: make(chan []Document, 1)}
	go pump(ctx, wa, sub.ch, func() ([]Document, error) {
		return w.inner.Query(ctx, collection, q)
	})
	return sub
}

// pump delivers an initial snapshot, then recomputes and delivers after each
// kick. A kick arriving while a send is blocked supersedes the pending
// snapshot, which is how coalescing happens.
func pump[T any](ctx context.Context, wa *watcher, out chan T, snapshot func() (T, error)) {
	defer close(out)
	refresh := true
	var pending *T
	for {
		if refresh {
			snap, err := snapshot()
			if err != nil {
				// Store unavailable mid-watch: keep the subscription
				// alive, retry on the next change.
				refresh = false
			} else {
				pending = &snap
				refresh = false
			}
		}
		if pending != nil {
			select {
			case <-wa.done:
				return
			case <-ctx.Done():
				wa.cancel()
				return
			case <-wa.kick:
				refresh = true
			case out <- *pending:
				pending = nil
			}
		} else {
			select {
			case <-wa.done:
				return
			case <-ctx.Done():
				wa.cancel()
				return
			case <-wa.kick:
				refresh = true
			}
		}
	}
}

func (w *WatchedStore) addWatcher(target string, collection bool) *watcher {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	wa := &watcher{
		target:     target,
		collection: collection,
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		id:         w.nextID,
		w:          w,
	}
	w.subs[wa.id] = wa
	return wa
}

func (wa *watcher) cancel() {
	wa.once.Do(func() {
		close(wa.done)
		wa.w.mu.Lock()
		delete(wa.w.subs, wa.id)
		wa.w.mu.Unlock()
	})
}

func (wa *watcher) matches(path string) bool {
	if wa.collection {
		return childOf(path, wa.target)
	}
	return path == wa.target
}

func (w *WatchedStore) notify(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wa := range w.subs {
		if !wa.matches(path) {
			continue
		}
		select {
		case wa.kick <- struct{}{}:
		default:
		}
	}
}
