package domain

import "time"

// Comment text bounds, counted in characters.
const (
	CommentTextMinLength = 1
	CommentTextMaxLength = 1000
)

// Comment is a user's remark on a movie.
type Comment struct {
	ID        int64
	MovieID   int
	Text      string
	Timestamp time.Time
	UserID    string

	// Username is filled by list queries that join the author. Empty when
	// the author row is missing.
	Username string
}
