package dto

import "time"

// RegisterRequest payload for new users.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login. LoginIdentifier is an email or a username.
type LoginRequest struct {
	LoginIdentifier string `json:"loginIdentifier"`
	Password        string `json:"password"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest revokes a refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Token        string    `json:"token"`
	Expiration   time.Time `json:"expiration"`
	RefreshToken string    `json:"refreshToken"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
