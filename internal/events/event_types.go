package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCommentAdded   EventType = "comment_added"
	EventCommentUpdated EventType = "comment_updated"
	EventCommentDeleted EventType = "comment_deleted"
)

// Event represents a comment lifecycle change.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	MovieID   int         `json:"movie_id"`
	CommentID int64       `json:"comment_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// CommentTextPayload carries a preview of the comment body.
type CommentTextPayload struct {
	TextPreview string `json:"text_preview"`
}

// NewEvent stamps an event with a fresh id and the current UTC time.
func NewEvent(eventType EventType, movieID int, commentID int64, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		MovieID:   movieID,
		CommentID: commentID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
