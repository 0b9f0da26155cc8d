package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mzeli/pigeon/internal/docstore"
	"github.com/mzeli/pigeon/internal/domain"
)

// indexDoc is the stored aggregate at userchats/{uid}. The whole document is
// rewritten on every mutation; the backing store has no per-entry update.
type indexDoc struct {
	Chats []domain.ChatEntry `json:"chats"`
}

// IndexRepo serializes all writes to one user's aggregate through a per-user
// lock. Two concurrent senders into different conversations of the same
// recipient would otherwise race the read-modify-write cycle and the later
// write would silently discard the earlier one's entry.
type IndexRepo struct {
	store *docstore.WatchedStore

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewIndexRepo(store *docstore.WatchedStore) *IndexRepo {
	return &IndexRepo{
		store: store,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func indexPath(userID uuid.UUID) string { return "userchats/" + userID.String() }

func (r *IndexRepo) userLock(userID uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *IndexRepo) GetIndex(ctx context.Context, userID uuid.UUID) (*domain.ChatIndex, error) {
	doc, err := r.store.Get(ctx, indexPath(userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return &domain.ChatIndex{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	var d indexDoc
	if err := docstore.Decode(doc, &d); err != nil {
		return nil, err
	}
	return &domain.ChatIndex{UserID: userID, Chats: d.Chats}, nil
}

func (r *IndexRepo) UpsertEntry(ctx context.Context, userID uuid.UUID, entry domain.ChatEntry) error {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	ix, err := r.GetIndex(ctx, userID)
	if err != nil {
		return err
	}
	return r.write(ctx, userID, upsert(ix.Chats, entry))
}

func (r *IndexRepo) IncrementUnread(ctx context.Context, userID uuid.UUID, entry domain.ChatEntry) error {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	ix, err := r.GetIndex(ctx, userID)
	if err != nil {
		return err
	}
	entry.UnreadCount = 1
	if prev := ix.Find(entry.ChatID); prev != nil {
		entry.UnreadCount = prev.UnreadCount + 1
	}
	return r.write(ctx, userID, upsert(ix.Chats, entry))
}

func (r *IndexRepo) ResetUnread(ctx context.Context, userID uuid.UUID, chatID string) error {
	l := r.userLock(userID)
	l.Lock()
	defer l.Unlock()

	ix, err := r.GetIndex(ctx, userID)
	if err != nil {
		return err
	}
	entry := ix.Find(chatID)
	if entry == nil || entry.UnreadCount == 0 {
		return nil
	}
	entry.UnreadCount = 0
	return r.write(ctx, userID, ix.Chats)
}

func (r *IndexRepo) WatchIndex(ctx context.Context, userID uuid.UUID) (<-chan []domain.ChatEntry, func(), error) {
	sub := r.store.WatchDoc(ctx, indexPath(userID))
	out := make(chan []domain.ChatEntry, 1)
	go func() {
		defer close(out)
		for snap := range sub.Snapshots() {
			var d indexDoc
			if snap.Exists {
				if err := docstore.Decode(snap.Doc, &d); err != nil {
					continue
				}
			}
			entries := d.Chats
			if entries == nil {
				entries = []domain.ChatEntry{}
			}
			select {
			case out <- entries:
			case <-ctx.Done():
				sub.Cancel()
				return
			}
		}
	}()
	return out, sub.Cancel, nil
}

// write rewrites the whole aggregate. Caller holds the user's lock.
func (r *IndexRepo) write(ctx context.Context, userID uuid.UUID, chats []domain.ChatEntry) error {
	data, err := docstore.Encode(indexDoc{Chats: chats})
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, indexPath(userID), data, false); err != nil {
		return fmt.Errorf("writing chat index for %s: %w", userID, err)
	}
	return nil
}

// upsert drops any entry with the same chat id before inserting the new one:
// the last write for a chat id replaces, never duplicates.
func upsert(chats []domain.ChatEntry, entry domain.ChatEntry) []domain.ChatEntry {
	out := make([]domain.ChatEntry, 0, len(chats)+1)
	for _, e := range chats {
		if e.ChatID != entry.ChatID {
			out = append(out, e)
		}
	}
	return append(out, entry)
}
