package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/movie-comments/internal/api/dto"
	"github.com/spec-kit/movie-comments/internal/auth"
	"github.com/spec-kit/movie-comments/internal/service"
	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

// CommentsHandler serves the per-movie comment endpoints.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// List GET /api/movies/:movieId/comments.
func (h *CommentsHandler) List(c *fiber.Ctx) error {
	movieID, err := movieIDParam(c)
	if err != nil {
		return err
	}
	comments, err := h.service.GetCommentsByMovie(c.UserContext(), movieID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewCommentResponses(comments))
}

// Create POST /api/movies/:movieId/comments.
func (h *CommentsHandler) Create(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("User ID claim not found.")
	}
	movieID, err := movieIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.AddComment(c.UserContext(), movieID, identity.UserID, req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewCommentResponse(comment))
}

// Update PUT /api/movies/:movieId/comments/:commentId.
func (h *CommentsHandler) Update(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("User ID claim not found.")
	}
	commentID, err := commentIDParam(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.service.UpdateComment(c.UserContext(), commentID, identity.UserID, req.Text); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Delete DELETE /api/movies/:movieId/comments/:commentId.
func (h *CommentsHandler) Delete(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("User ID claim not found.")
	}
	commentID, err := commentIDParam(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteComment(c.UserContext(), commentID, identity.UserID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func movieIDParam(c *fiber.Ctx) (int, error) {
	id, err := c.ParamsInt("movieId")
	if err != nil {
		return 0, apperrors.NewValidationError("movieId must be an integer", nil)
	}
	return id, nil
}

// commentIDParam parses the comment id. The movie segment of the path is not
// cross-checked against the comment's movie.
func commentIDParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("commentId")
	if err != nil {
		return 0, apperrors.NewValidationError("commentId must be an integer", nil)
	}
	return int64(id), nil
}
