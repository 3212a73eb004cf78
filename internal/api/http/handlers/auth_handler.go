package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/movie-comments/internal/api/dto"
	"github.com/spec-kit/movie-comments/internal/service"
	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

// AuthHandler exposes account and token endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.auth.Register(c.UserContext(), strings.TrimSpace(req.Username), req.Email, req.Password); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "User registered successfully"})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	identifier := strings.TrimSpace(req.LoginIdentifier)
	if identifier == "" || req.Password == "" {
		return apperrors.NewValidationError("loginIdentifier and password required", nil)
	}

	result, err := h.auth.Login(c.UserContext(), identifier, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(result))
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.RefreshToken(c.UserContext(), req.UserID, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(result))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.auth.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		UserID:       result.User.ID,
		Username:     result.User.Username,
		Email:        result.User.Email,
		Token:        result.Token,
		Expiration:   result.ExpiresAt,
		RefreshToken: result.RefreshToken,
	}
}
