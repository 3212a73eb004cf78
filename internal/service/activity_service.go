package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/movie-comments/internal/events"
)

// ActivityService writes an audit trail of comment changes to the log.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger.Named("activity"),
	}
}

// RegisterHandlers subscribes to comment events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventCommentAdded, a.record)
	a.dispatcher.Subscribe(events.EventCommentUpdated, a.record)
	a.dispatcher.Subscribe(events.EventCommentDeleted, a.record)
}

func (a *ActivityService) record(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Int("movie_id", event.MovieID),
		zap.Int64("comment_id", event.CommentID),
		zap.String("actor_id", event.ActorID),
		zap.Time("at", event.Timestamp),
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	a.logger.Info(string(event.Type), fields...)
	return nil
}
