package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/movie-comments/internal/auth"
	"github.com/spec-kit/movie-comments/internal/config"
	"github.com/spec-kit/movie-comments/internal/domain"
	"github.com/spec-kit/movie-comments/internal/repository"
	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

var testAuthConfig = config.AuthConfig{
	JWTKey:                "0123456789abcdef0123456789abcdef",
	JWTIssuer:             "movie-comments-test",
	JWTAudience:           "movie-comments-clients",
	AccessTokenTTLMinutes: 15,
	RefreshTokenTTLHours:  24,
	BcryptCost:            4,
}

type authFixture struct {
	svc      *AuthService
	users    *mockUserRepository
	sessions *mockSessionRepository
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:    new(mockUserRepository),
		sessions: new(mockSessionRepository),
	}
	f.svc = NewAuthService(testAuthConfig, AuthDependencies{
		UserRepo:    f.users,
		SessionRepo: f.sessions,
	})
	return f
}

func hashedUser(t *testing.T, id, username, email, password string) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, testAuthConfig.BcryptCost)
	require.NoError(t, err)
	return &domain.User{ID: id, Username: username, Email: email, PasswordHash: hash}
}

func validationReasons(t *testing.T, err error) []string {
	t.Helper()
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, apperrors.CodeValidation, de.Code)
	reasons, ok := de.Details["errors"].([]string)
	require.True(t, ok)
	return reasons
}

func TestRegister_Success(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.users.On("GetByUsername", ctx, "alice").Return(nil, repository.ErrNotFound).Once()
	f.users.On("GetByEmail", ctx, "alice@example.com").Return(nil, repository.ErrNotFound).Once()
	f.users.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID != "" &&
			u.Username == "alice" &&
			u.Email == "alice@example.com" &&
			u.PasswordHash != "Secret1!" &&
			auth.ComparePassword(u.PasswordHash, "Secret1!") == nil
	})).Return(nil).Once()

	err := f.svc.Register(ctx, "alice", " Alice@Example.com ", "Secret1!")

	require.NoError(t, err)
	f.users.AssertExpectations(t)
}

func TestRegister_CollectsEveryReason(t *testing.T) {
	f := newAuthFixture()

	err := f.svc.Register(context.Background(), "bad name!", "not-an-email", "123")

	reasons := validationReasons(t, err)
	assert.Len(t, reasons, 3)
	assert.Contains(t, reasons[0], "Username 'bad name!' is invalid")
	assert.Contains(t, reasons[1], "Email 'not-an-email' is invalid")
	assert.Contains(t, reasons[2], "at least 6 characters")
	f.users.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	existing := &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com"}

	f.users.On("GetByUsername", ctx, "alice").Return(existing, nil).Once()
	f.users.On("GetByEmail", ctx, "alice@example.com").Return(existing, nil).Once()

	err := f.svc.Register(ctx, "alice", "alice@example.com", "Secret1!")

	reasons := validationReasons(t, err)
	assert.Equal(t, []string{
		"Username 'alice' is already taken.",
		"Email 'alice@example.com' is already taken.",
	}, reasons)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_ConcurrentDuplicateOnCreate(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.users.On("GetByUsername", ctx, "alice").Return(nil, repository.ErrNotFound).Once()
	f.users.On("GetByEmail", ctx, "alice@example.com").Return(nil, repository.ErrNotFound).Once()
	f.users.On("Create", ctx, mock.Anything).Return(&repository.DuplicateUserError{Field: "email"}).Once()

	err := f.svc.Register(ctx, "alice", "alice@example.com", "Secret1!")

	assert.Equal(t, []string{"Email 'alice@example.com' is already taken."}, validationReasons(t, err))
}

func TestRegister_StoreFailure(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	f.users.On("GetByUsername", ctx, "alice").Return(nil, errors.New("connection reset")).Once()

	err := f.svc.Register(ctx, "alice", "alice@example.com", "Secret1!")

	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}

func TestLogin_ByEmail(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := hashedUser(t, "u1", "alice", "alice@example.com", "Secret1!")

	f.users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil).Once()
	f.sessions.On("Save", ctx, mock.MatchedBy(func(s *domain.RefreshSession) bool {
		return s.UserID == "u1" && s.Token != "" && s.ExpiresAt.After(time.Now())
	})).Return(nil).Once()

	result, err := f.svc.Login(ctx, "alice@example.com", "Secret1!")

	require.NoError(t, err)
	assert.Equal(t, user, result.User)
	assert.NotEmpty(t, result.RefreshToken)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	claims, err := f.svc.TokenManager().ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.Name)
	f.users.AssertNotCalled(t, "GetByUsername", mock.Anything, mock.Anything)
	f.sessions.AssertExpectations(t)
}

func TestLogin_FallsBackToUsername(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := hashedUser(t, "u1", "alice", "alice@example.com", "Secret1!")

	f.users.On("GetByEmail", ctx, "alice").Return(nil, repository.ErrNotFound).Once()
	f.users.On("GetByUsername", ctx, "alice").Return(user, nil).Once()
	f.sessions.On("Save", ctx, mock.Anything).Return(nil).Once()

	result, err := f.svc.Login(ctx, "alice", "Secret1!")

	require.NoError(t, err)
	assert.Equal(t, "u1", result.User.ID)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown identifier", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetByEmail", ctx, "alice@example.com").Return(nil, repository.ErrNotFound).Once()
		f.users.On("GetByUsername", ctx, "alice@example.com").Return(nil, repository.ErrNotFound).Once()

		result, err := f.svc.Login(ctx, "alice@example.com", "Secret1!")

		assert.Nil(t, result)
		assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
		assert.EqualError(t, err, "Invalid credentials.")
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture()
		user := hashedUser(t, "u1", "alice", "alice@example.com", "Secret1!")
		f.users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil).Once()

		result, err := f.svc.Login(ctx, "alice@example.com", "wrong")

		assert.Nil(t, result)
		assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
		assert.EqualError(t, err, "Invalid credentials.")
		f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestLogin_SessionStoreFailure(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	user := hashedUser(t, "u1", "alice", "alice@example.com", "Secret1!")
	f.users.On("GetByEmail", ctx, "alice@example.com").Return(user, nil).Once()
	f.sessions.On("Save", ctx, mock.Anything).Return(errors.New("redis down")).Once()

	result, err := f.svc.Login(ctx, "alice@example.com", "Secret1!")

	assert.Nil(t, result)
	assert.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	user := &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com"}

	t.Run("missing arguments", func(t *testing.T) {
		f := newAuthFixture()
		_, err := f.svc.RefreshToken(ctx, "", "tok")
		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
		_, err = f.svc.RefreshToken(ctx, "u1", "")
		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	})

	t.Run("user not found", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetByID", ctx, "ghost").Return(nil, repository.ErrNotFound).Once()

		_, err := f.svc.RefreshToken(ctx, "ghost", "tok")

		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
		assert.EqualError(t, err, "User not found.")
	})

	t.Run("unknown refresh token", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetByID", ctx, "u1").Return(user, nil).Once()
		f.sessions.On("Get", ctx, "tok").Return(nil, repository.ErrNotFound).Once()

		_, err := f.svc.RefreshToken(ctx, "u1", "tok")

		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
		assert.EqualError(t, err, "Token refresh failed.")
	})

	t.Run("token of another user is left intact", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetByID", ctx, "u1").Return(user, nil).Once()
		f.sessions.On("Get", ctx, "tok").Return(&domain.RefreshSession{Token: "tok", UserID: "u2"}, nil).Once()

		_, err := f.svc.RefreshToken(ctx, "u1", "tok")

		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
		f.sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("token consumed concurrently", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetByID", ctx, "u1").Return(user, nil).Once()
		f.sessions.On("Get", ctx, "tok").Return(&domain.RefreshSession{Token: "tok", UserID: "u1"}, nil).Once()
		f.sessions.On("Delete", ctx, "tok").Return(false, nil).Once()

		_, err := f.svc.RefreshToken(ctx, "u1", "tok")

		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
		f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rotates the refresh token", func(t *testing.T) {
		f := newAuthFixture()
		f.users.On("GetByID", ctx, "u1").Return(user, nil).Once()
		f.sessions.On("Get", ctx, "tok").Return(&domain.RefreshSession{Token: "tok", UserID: "u1"}, nil).Once()
		f.sessions.On("Delete", ctx, "tok").Return(true, nil).Once()
		f.sessions.On("Save", ctx, mock.MatchedBy(func(s *domain.RefreshSession) bool {
			return s.UserID == "u1" && s.Token != "tok"
		})).Return(nil).Once()

		result, err := f.svc.RefreshToken(ctx, "u1", "tok")

		require.NoError(t, err)
		assert.NotEqual(t, "tok", result.RefreshToken)
		assert.NotEmpty(t, result.Token)
		f.sessions.AssertExpectations(t)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes", func(t *testing.T) {
		f := newAuthFixture()
		f.sessions.On("Delete", ctx, "tok").Return(true, nil).Once()
		require.NoError(t, f.svc.Logout(ctx, "tok"))
		f.sessions.AssertExpectations(t)
	})

	t.Run("unknown token is fine", func(t *testing.T) {
		f := newAuthFixture()
		f.sessions.On("Delete", ctx, "gone").Return(false, nil).Once()
		require.NoError(t, f.svc.Logout(ctx, "gone"))
	})

	t.Run("empty token", func(t *testing.T) {
		f := newAuthFixture()
		err := f.svc.Logout(ctx, "")
		assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	})
}
