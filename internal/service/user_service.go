package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mzeli/pigeon/internal/domain"
	"github.com/mzeli/pigeon/internal/repository"
	"github.com/mzeli/pigeon/internal/session"
	"github.com/mzeli/pigeon/internal/storage"
)

type UserService struct {
	userRepo repository.UserRepository
	blobs    storage.BlobStore
}

func NewUserService(userRepo repository.UserRepository, blobs storage.BlobStore) *UserService {
	return &UserService{userRepo: userRepo, blobs: blobs}
}

func (s *UserService) Get(ctx context.Context, sess session.Session) (*domain.User, error) {
	if !sess.Authenticated() {
		return nil, ErrAuthRequired
	}
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CompleteProfile sets the display name and optional avatar, marking the
// profile complete. Called once after signup, and again for profile edits.
func (s *UserService) CompleteProfile(ctx context.Context, sess session.Session, displayName string, avatar io.Reader, avatarName string) (*domain.User, error) {
	user, err := s.Get(ctx, sess)
	if err != nil {
		return nil, err
	}

	if avatar != nil {
		url, err := s.blobs.Save(ctx, avatarName, avatar)
		if err != nil {
			return nil, fmt.Errorf("storing avatar: %w", err)
		}
		user.AvatarURL = &url
	}

	user.DisplayName = displayName
	user.ProfileComplete = true
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return user, nil
}

// Search finds users by username prefix, excluding the caller.
func (s *UserService) Search(ctx context.Context, sess session.Session, prefix string, limit int) ([]domain.User, error) {
	if !sess.Authenticated() {
		return nil, ErrAuthRequired
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	users, err := s.userRepo.SearchByUsername(ctx, prefix, limit+1)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.ID == sess.UserID {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
