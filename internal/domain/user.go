package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	PasswordHash    string    `json:"-"`
	AvatarURL       *string   `json:"avatar_url,omitempty"`
	ProfileComplete bool      `json:"profile_complete"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Snapshot returns the point-in-time copy of this user that gets embedded
// into other users' chat indexes. It is a copy, not a live reference.
func (u *User) Snapshot() PeerSnapshot {
	s := PeerSnapshot{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}
	if u.AvatarURL != nil {
		s.AvatarURL = *u.AvatarURL
	}
	return s
}
