package domain

import "time"

// RefreshSession binds an opaque refresh token to the user it was issued to.
type RefreshSession struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}
