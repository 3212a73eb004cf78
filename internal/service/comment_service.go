package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/movie-comments/internal/domain"
	"github.com/spec-kit/movie-comments/internal/events"
	"github.com/spec-kit/movie-comments/internal/repository"
	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

const (
	unknownAuthor     = "Unknown"
	unknownListAuthor = "Unknown User"
	previewLength     = 80
)

// CommentService coordinates comment workflows.
type CommentService struct {
	comments   repository.CommentRepository
	users      repository.UserRepository
	cache      repository.CommentCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// CommentDependencies bundles collaborators for the comment service.
// Cache and Dispatcher are optional.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	Cache       repository.CommentCache
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// ValidateCommentText reports whether text is non-blank and within the length limit.
func ValidateCommentText(text string) error {
	trimmed := utf8.RuneCountInString(strings.TrimSpace(text))
	if trimmed < domain.CommentTextMinLength || utf8.RuneCountInString(text) > domain.CommentTextMaxLength {
		return apperrors.NewValidationError("Invalid comment text.", map[string]any{
			"max_length": domain.CommentTextMaxLength,
		})
	}
	return nil
}

// AddComment stores a new comment by userID on movieID and returns it with the author's username.
func (s *CommentService) AddComment(ctx context.Context, movieID int, userID, text string) (*domain.Comment, error) {
	if err := ValidateCommentText(text); err != nil {
		return nil, err
	}

	exists, err := s.comments.UserExists(ctx, userID)
	if err != nil {
		s.logger.Error("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.NewInternalErrorf("An error occurred while creating the comment.", err)
	}
	if !exists {
		return nil, apperrors.NewNotFound("User not found.")
	}

	comment := &domain.Comment{
		MovieID:   movieID,
		UserID:    userID,
		Text:      text,
		Timestamp: s.now().UTC(),
	}
	if err := s.comments.Add(ctx, comment); err != nil {
		s.logger.Error("add comment failed", zap.Int("movie_id", movieID), zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.NewInternalErrorf("An error occurred while creating the comment.", err)
	}

	comment.Username = unknownAuthor
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		comment.Username = user.Username
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("author lookup failed after insert", zap.String("user_id", userID), zap.Error(err))
	}

	s.afterMutation(ctx, events.EventCommentAdded, comment, userID)
	return comment, nil
}

// GetCommentsByMovie lists a movie's comments newest first. Unknown movies yield an empty slice.
// A cache fill is skipped when the movie was invalidated while the store was read.
func (s *CommentService) GetCommentsByMovie(ctx context.Context, movieID int) ([]domain.Comment, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, movieID)
		if err != nil {
			s.logger.Warn("comment cache read failed", zap.Int("movie_id", movieID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
		if version, err = s.cache.Version(ctx, movieID); err != nil {
			s.logger.Warn("comment cache version read failed", zap.Int("movie_id", movieID), zap.Error(err))
		} else {
			cacheable = true
		}
	}

	comments, err := s.comments.GetByMovie(ctx, movieID)
	if err != nil {
		s.logger.Error("list comments failed", zap.Int("movie_id", movieID), zap.Error(err))
		return nil, apperrors.NewInternalErrorf("An error occurred while loading comments.", err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	for i := range comments {
		if comments[i].Username == "" {
			comments[i].Username = unknownListAuthor
		}
	}

	if cacheable {
		stored, err := s.cache.Set(ctx, movieID, version, comments)
		switch {
		case err != nil:
			s.logger.Warn("comment cache write failed", zap.Int("movie_id", movieID), zap.Error(err))
		case !stored:
			s.logger.Debug("comment cache write skipped", zap.Int("movie_id", movieID), zap.Int64("version", version))
		}
	}
	return comments, nil
}

// UpdateComment replaces the text of a comment owned by userID and resets its timestamp.
func (s *CommentService) UpdateComment(ctx context.Context, commentID int64, userID, newText string) error {
	if err := ValidateCommentText(newText); err != nil {
		return err
	}

	comment, err := s.ownedComment(ctx, commentID, userID, "update")
	if err != nil {
		return err
	}

	comment.Text = newText
	comment.Timestamp = s.now().UTC()

	updated, err := s.comments.Update(ctx, comment)
	if err != nil {
		s.logger.Error("update comment failed", zap.Int64("comment_id", commentID), zap.Error(err))
		return apperrors.NewInternalErrorf("An error occurred while updating the comment.", err)
	}
	if !updated {
		return commentNotFound(commentID)
	}

	s.afterMutation(ctx, events.EventCommentUpdated, comment, userID)
	return nil
}

// DeleteComment removes a comment owned by userID.
func (s *CommentService) DeleteComment(ctx context.Context, commentID int64, userID string) error {
	comment, err := s.ownedComment(ctx, commentID, userID, "delete")
	if err != nil {
		return err
	}

	deleted, err := s.comments.Delete(ctx, commentID)
	if err != nil {
		s.logger.Error("delete comment failed", zap.Int64("comment_id", commentID), zap.Error(err))
		return apperrors.NewInternalErrorf("An error occurred while deleting the comment.", err)
	}
	if !deleted {
		return commentNotFound(commentID)
	}

	s.afterMutation(ctx, events.EventCommentDeleted, comment, userID)
	return nil
}

// ownedComment loads a comment and checks authorship. Existence is checked first.
func (s *CommentService) ownedComment(ctx context.Context, commentID int64, userID, action string) (*domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, commentNotFound(commentID)
		}
		s.logger.Error("load comment failed", zap.Int64("comment_id", commentID), zap.Error(err))
		return nil, apperrors.NewInternalErrorf(fmt.Sprintf("An error occurred while trying to %s the comment.", action), err)
	}
	if comment.UserID != userID {
		s.logger.Warn("comment ownership check failed",
			zap.Int64("comment_id", commentID),
			zap.String("user_id", userID),
			zap.String("action", action))
		return nil, apperrors.NewForbidden(fmt.Sprintf("You are not authorized to %s this comment.", action))
	}
	return comment, nil
}

func (s *CommentService) afterMutation(ctx context.Context, eventType events.EventType, comment *domain.Comment, actorID string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, comment.MovieID); err != nil {
			s.logger.Warn("comment cache invalidation failed", zap.Int("movie_id", comment.MovieID), zap.Error(err))
		}
	}
	if s.dispatcher == nil {
		return
	}

	var payload interface{}
	if eventType != events.EventCommentDeleted {
		payload = events.CommentTextPayload{TextPreview: preview(comment.Text)}
	}
	event := events.NewEvent(eventType, comment.MovieID, comment.ID, actorID, payload)
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func commentNotFound(commentID int64) error {
	return apperrors.NewNotFound(fmt.Sprintf("Comment with ID %d not found.", commentID))
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength]) + "…"
}
