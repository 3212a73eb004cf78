package dto

import (
	"time"

	"github.com/spec-kit/movie-comments/internal/domain"
)

// CommentRequest is the body of create and update calls.
type CommentRequest struct {
	Text string `json:"text"`
}

// CommentResponse is the wire form of a comment.
type CommentResponse struct {
	ID        int64     `json:"id"`
	MovieID   int       `json:"movieId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		MovieID:   c.MovieID,
		Text:      c.Text,
		Timestamp: c.Timestamp.UTC(),
		UserID:    c.UserID,
		Username:  c.Username,
	}
}

// NewCommentResponses maps a list, never returning nil.
func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, NewCommentResponse(&comments[i]))
	}
	return out
}
