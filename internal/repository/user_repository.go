package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/movie-comments/internal/domain"
)

const pgUniqueViolation = "23505"

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, normalized_username, email, password_hash)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		strings.ToLower(user.Username),
		strings.ToLower(user.Email),
		user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return &DuplicateUserError{Field: duplicateField(pgErr.ConstraintName)}
		}
		return err
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, username, email, password_hash, created_at
        FROM users WHERE id=$1`
	return r.getOne(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, username, email, password_hash, created_at
        FROM users WHERE email=$1`
	return r.getOne(ctx, query, strings.ToLower(email))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT id, username, email, password_hash, created_at
        FROM users WHERE normalized_username=$1`
	return r.getOne(ctx, query, strings.ToLower(username))
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &user, nil
}

func duplicateField(constraint string) string {
	if strings.Contains(constraint, "email") {
		return "email"
	}
	return "username"
}
