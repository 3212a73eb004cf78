package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/movie-comments/internal/domain"
)

type mockCommentRepository struct {
	mock.Mock
}

func (m *mockCommentRepository) GetByMovie(ctx context.Context, movieID int) ([]domain.Comment, error) {
	args := m.Called(ctx, movieID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Comment), args.Error(1)
}

func (m *mockCommentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Comment), args.Error(1)
}

func (m *mockCommentRepository) Add(ctx context.Context, comment *domain.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *mockCommentRepository) Update(ctx context.Context, comment *domain.Comment) (bool, error) {
	args := m.Called(ctx, comment)
	return args.Bool(0), args.Error(1)
}

func (m *mockCommentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockCommentRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Save(ctx context.Context, session *domain.RefreshSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepository) Get(ctx context.Context, token string) (*domain.RefreshSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshSession), args.Error(1)
}

func (m *mockSessionRepository) Delete(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

type mockCommentCache struct {
	mock.Mock
}

func (m *mockCommentCache) Get(ctx context.Context, movieID int) ([]domain.Comment, bool, error) {
	args := m.Called(ctx, movieID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.Comment), args.Bool(1), args.Error(2)
}

func (m *mockCommentCache) Version(ctx context.Context, movieID int) (int64, error) {
	args := m.Called(ctx, movieID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCommentCache) Set(ctx context.Context, movieID int, version int64, comments []domain.Comment) (bool, error) {
	args := m.Called(ctx, movieID, version, comments)
	return args.Bool(0), args.Error(1)
}

func (m *mockCommentCache) Invalidate(ctx context.Context, movieID int) error {
	args := m.Called(ctx, movieID)
	return args.Error(0)
}
