// Package session carries the authenticated identity through every service
// call. Operations reject a zero session instead of consulting any ambient
// process-wide state.
package session

import "github.com/google/uuid"

type Session struct {
	UserID uuid.UUID
}

func (s Session) Authenticated() bool {
	return s.UserID != uuid.Nil
}
