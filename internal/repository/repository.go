package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/movie-comments/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// DuplicateUserError reports a unique constraint hit on user creation.
type DuplicateUserError struct {
	Field string
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("duplicate user %s", e.Field)
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// CommentRepository defines persistence access for movie comments.
type CommentRepository interface {
	// GetByMovie returns the movie's comments newest first with author usernames joined.
	GetByMovie(ctx context.Context, movieID int) ([]domain.Comment, error)
	GetByID(ctx context.Context, id int64) (*domain.Comment, error)
	Add(ctx context.Context, comment *domain.Comment) error
	// Update reports false when the row no longer exists.
	Update(ctx context.Context, comment *domain.Comment) (bool, error)
	// Delete reports false when the row no longer exists.
	Delete(ctx context.Context, id int64) (bool, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}
