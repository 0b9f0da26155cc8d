// Package docstore implements the repositories over the document-store
// contract, using the persisted layout users/{uid}, chats/{chatId},
// chats/{chatId}/messages/{messageId} and userchats/{uid}.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mzeli/pigeon/internal/docstore"
	"github.com/mzeli/pigeon/internal/domain"
)

// userDoc is the stored form of a user. Unlike domain.User it serializes the
// password hash.
type userDoc struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	PasswordHash    string    `json:"password_hash"`
	AvatarURL       *string   `json:"avatar_url,omitempty"`
	ProfileComplete bool      `json:"profile_complete"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toUserDoc(u *domain.User) userDoc {
	return userDoc{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		DisplayName:     u.DisplayName,
		PasswordHash:    u.PasswordHash,
		AvatarURL:       u.AvatarURL,
		ProfileComplete: u.ProfileComplete,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (d userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:              d.ID,
		Email:           d.Email,
		Username:        d.Username,
		DisplayName:     d.DisplayName,
		PasswordHash:    d.PasswordHash,
		AvatarURL:       d.AvatarURL,
		ProfileComplete: d.ProfileComplete,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

type UserRepo struct {
	store *docstore.WatchedStore
}

func NewUserRepo(store *docstore.WatchedStore) *UserRepo {
	return &UserRepo{store: store}
}

func userPath(id uuid.UUID) string { return "users/" + id.String() }

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	data, err := docstore.Encode(toUserDoc(user))
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, userPath(user.ID), data, false); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	doc, err := r.store.Get(ctx, userPath(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d userDoc
	if err := docstore.Decode(doc, &d); err != nil {
		return nil, err
	}
	return d.toDomain(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username", username)
}

// SearchByUsername matches usernames starting with prefix, via a bounded
// range query on the ordered username field.
func (r *UserRepo) SearchByUsername(ctx context.Context, prefix string, limit int) ([]domain.User, error) {
	docs, err := r.store.Query(ctx, "users", docstore.Query{
		Filters: []docstore.Filter{
			{Field: "username", Op: ">=", Value: prefix},
			{Field: "username", Op: "<=", Value: prefix + "\uf8ff"},
		},
		OrderBy: "username",
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		var d userDoc
		if err := docstore.Decode(doc, &d); err != nil {
			return nil, err
		}
		users = append(users, *d.toDomain())
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, user *domain.User) error {
	data, err := docstore.Encode(toUserDoc(user))
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, userPath(user.ID), data, false); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, field, value string) (*domain.User, error) {
	docs, err := r.store.Query(ctx, "users", docstore.Query{
		Filters: []docstore.Filter{{Field: field, Op: "==", Value: value}},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	var d userDoc
	if err := docstore.Decode(docs[0], &d); err != nil {
		return nil, err
	}
	return d.toDomain(), nil
}
