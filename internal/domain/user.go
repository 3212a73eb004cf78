package domain

import "time"

// User is an account allowed to author comments.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
