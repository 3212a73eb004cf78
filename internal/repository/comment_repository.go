package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/movie-comments/internal/domain"
)

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository returns a Postgres-backed implementation.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) GetByMovie(ctx context.Context, movieID int) ([]domain.Comment, error) {
	const query = `
        SELECT c.id, c.movie_id, c.text, c.posted_at, c.user_id, COALESCE(u.username, '')
        FROM comments c
        LEFT JOIN users u ON u.id = c.user_id
        WHERE c.movie_id=$1
        ORDER BY c.posted_at DESC, c.id DESC`
	rows, err := r.pool.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Comment, 0)
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(
			&c.ID,
			&c.MovieID,
			&c.Text,
			&c.Timestamp,
			&c.UserID,
			&c.Username,
		); err != nil {
			return nil, err
		}
		c.Timestamp = c.Timestamp.UTC()
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	const query = `
        SELECT id, movie_id, text, posted_at, user_id
        FROM comments WHERE id=$1`
	var c domain.Comment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.MovieID,
		&c.Text,
		&c.Timestamp,
		&c.UserID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	c.Timestamp = c.Timestamp.UTC()
	return &c, nil
}

func (r *commentRepository) Add(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (movie_id, text, posted_at, user_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		comment.MovieID,
		comment.Text,
		comment.Timestamp,
		comment.UserID,
	).Scan(&comment.ID)
}

func (r *commentRepository) Update(ctx context.Context, comment *domain.Comment) (bool, error) {
	const query = `
        UPDATE comments SET text=$1, posted_at=$2
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, comment.Text, comment.Timestamp, comment.ID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *commentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *commentRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists)
	return exists, err
}
