package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/movie-comments/internal/auth"
	"github.com/spec-kit/movie-comments/internal/config"
	"github.com/spec-kit/movie-comments/internal/domain"
	"github.com/spec-kit/movie-comments/internal/repository"
	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

const (
	minPasswordLength    = 6
	allowedUsernameChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._@+"

	msgInvalidCredentials = "Invalid credentials."
	msgRefreshFailed      = "Token refresh failed."
	msgUserNotFound       = "User not found."
)

// AuthResult is returned by successful login and refresh.
type AuthResult struct {
	User         *domain.User
	Token        string
	ExpiresAt    time.Time
	RefreshToken string
}

// AuthService coordinates registration, login and token refresh.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.RefreshSessionRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.RefreshSessionRepository
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    deps.UserRepo,
		sessions: deps.SessionRepo,
		tokenMgr: auth.NewTokenManager(auth.TokenSettings{
			Secret:   cfg.JWTKey,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.AccessTokenTTL(),
		}),
		bcryptCost: cfg.BcryptCost,
		refreshTTL: cfg.RefreshTokenTTL(),
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a user account. Every rejected rule is reported in the
// validation error's "errors" detail.
func (s *AuthService) Register(ctx context.Context, username, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	reasons, err := s.registrationProblems(ctx, username, email, password)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		s.logger.Warn("user registration failed", zap.String("username", username), zap.Strings("errors", reasons))
		return registrationFailed(reasons)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var dup *repository.DuplicateUserError
		if errors.As(err, &dup) {
			return registrationFailed([]string{duplicateReason(dup.Field, username, email)})
		}
		s.logger.Error("create user failed", zap.String("username", username), zap.Error(err))
		return apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered", zap.String("username", user.Username), zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) registrationProblems(ctx context.Context, username, email, password string) ([]string, error) {
	var reasons []string

	usernameOK := true
	switch {
	case username == "":
		reasons = append(reasons, "Username is required.")
		usernameOK = false
	case strings.ContainsFunc(username, func(r rune) bool {
		return !strings.ContainsRune(allowedUsernameChars, r)
	}):
		reasons = append(reasons, fmt.Sprintf("Username '%s' is invalid, can only contain letters or digits.", username))
		usernameOK = false
	}

	emailOK := validEmail(email)
	if !emailOK {
		reasons = append(reasons, fmt.Sprintf("Email '%s' is invalid.", email))
	}

	if len([]rune(password)) < minPasswordLength {
		reasons = append(reasons, fmt.Sprintf("Passwords must be at least %d characters.", minPasswordLength))
	}

	if usernameOK {
		taken, err := s.exists(ctx, s.users.GetByUsername, username)
		if err != nil {
			return nil, err
		}
		if taken {
			reasons = append(reasons, duplicateReason("username", username, email))
		}
	}
	if emailOK {
		taken, err := s.exists(ctx, s.users.GetByEmail, email)
		if err != nil {
			return nil, err
		}
		if taken {
			reasons = append(reasons, duplicateReason("email", username, email))
		}
	}
	return reasons, nil
}

func (s *AuthService) exists(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), key string) (bool, error) {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		s.logger.Error("user lookup failed", zap.Error(err))
		return false, apperrors.NewInternalError(err)
	}
}

// Login authenticates by email or username. Unknown users and wrong
// passwords produce the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("login failed: user not found", zap.String("identifier", identifier))
			return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
		}
		s.logger.Error("login lookup failed", zap.Error(err))
		return nil, apperrors.NewInternalErrorf("An error occurred during login.", err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("login failed: invalid password", zap.String("username", user.Username))
		return nil, apperrors.NewUnauthorized(msgInvalidCredentials)
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		s.logger.Error("token issue failed during login", zap.String("username", user.Username), zap.Error(err))
		return nil, apperrors.NewInternalErrorf("An error occurred during login.", err)
	}
	s.logger.Info("user logged in", zap.String("username", user.Username))
	return result, nil
}

func (s *AuthService) findByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.users.GetByUsername(ctx, identifier)
}

// RefreshToken exchanges a refresh token issued to userID for a new token
// pair. The presented refresh token is consumed.
func (s *AuthService) RefreshToken(ctx context.Context, userID, refreshToken string) (*AuthResult, error) {
	if userID == "" || refreshToken == "" {
		return nil, apperrors.NewValidationError(msgRefreshFailed, nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("token refresh failed: user not found", zap.String("user_id", userID))
			return nil, apperrors.NewNotFound(msgUserNotFound)
		}
		return nil, apperrors.NewInternalErrorf("An error occurred during token refresh.", err)
	}

	session, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("token refresh failed: unknown refresh token", zap.String("user_id", userID))
			return nil, apperrors.NewValidationError(msgRefreshFailed, nil)
		}
		return nil, apperrors.NewInternalErrorf("An error occurred during token refresh.", err)
	}
	if session.UserID != userID {
		s.logger.Warn("token refresh failed: token belongs to another user", zap.String("user_id", userID))
		return nil, apperrors.NewValidationError(msgRefreshFailed, nil)
	}

	consumed, err := s.sessions.Delete(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.NewInternalErrorf("An error occurred during token refresh.", err)
	}
	if !consumed {
		// Another request used this token between Get and Delete.
		return nil, apperrors.NewValidationError(msgRefreshFailed, nil)
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		s.logger.Error("token issue failed during refresh", zap.String("username", user.Username), zap.Error(err))
		return nil, apperrors.NewInternalErrorf("An error occurred during token refresh.", err)
	}
	s.logger.Info("token refreshed", zap.String("username", user.Username))
	return result, nil
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.NewValidationError("refresh token required", nil)
	}
	if _, err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	session := &domain.RefreshSession{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save refresh session: %w", err)
	}

	return &AuthResult{
		User:         user,
		Token:        token,
		ExpiresAt:    exp,
		RefreshToken: session.Token,
	}, nil
}

func registrationFailed(reasons []string) error {
	return apperrors.NewValidationError("Registration failed.", map[string]any{"errors": reasons})
}

func duplicateReason(field, username, email string) string {
	if field == "email" {
		return fmt.Sprintf("Email '%s' is already taken.", email)
	}
	return fmt.Sprintf("Username '%s' is already taken.", username)
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
