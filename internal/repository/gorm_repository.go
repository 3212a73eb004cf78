package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/spec-kit/movie-comments/internal/domain"
)

type userRecord struct {
	ID                 string    `gorm:"primaryKey;type:text"`
	Username           string    `gorm:"not null"`
	NormalizedUsername string    `gorm:"uniqueIndex;not null"`
	Email              string    `gorm:"uniqueIndex;not null"`
	PasswordHash       string    `gorm:"not null"`
	CreatedAt          time.Time `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

type commentRecord struct {
	ID       int64       `gorm:"primaryKey;autoIncrement"`
	MovieID  int         `gorm:"not null;index:idx_comments_movie_posted,priority:1"`
	Text     string      `gorm:"size:1000;not null"`
	PostedAt time.Time   `gorm:"not null;index:idx_comments_movie_posted,priority:2"`
	UserID   string      `gorm:"type:text;not null;index"`
	User     *userRecord `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:RESTRICT"`
}

func (commentRecord) TableName() string { return "comments" }

// AutoMigrate creates the users and comments tables for GORM-backed stores.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userRecord{}, &commentRecord{})
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository returns a GORM-backed implementation.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *domain.User) error {
	rec := userRecord{
		ID:                 user.ID,
		Username:           user.Username,
		NormalizedUsername: strings.ToLower(user.Username),
		Email:              strings.ToLower(user.Email),
		PasswordHash:       user.PasswordHash,
		CreatedAt:          time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return &DuplicateUserError{Field: field}
		}
		return err
	}
	user.CreatedAt = rec.CreatedAt
	return nil
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(email))
}

func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "normalized_username = ?", strings.ToLower(username))
}

func (r *gormUserRepository) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return &domain.User{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt.UTC(),
	}, nil
}

// uniqueViolationField recognises SQLite and Postgres unique errors surfaced through GORM.
func uniqueViolationField(err error) (string, bool) {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique constraint") && !strings.Contains(msg, "duplicate key") {
		return "", false
	}
	if strings.Contains(msg, "email") {
		return "email", true
	}
	return "username", true
}

type gormCommentRepository struct {
	db *gorm.DB
}

// NewGormCommentRepository returns a GORM-backed implementation.
func NewGormCommentRepository(db *gorm.DB) CommentRepository {
	return &gormCommentRepository{db: db}
}

func (r *gormCommentRepository) GetByMovie(ctx context.Context, movieID int) ([]domain.Comment, error) {
	var recs []commentRecord
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("movie_id = ?", movieID).
		Order("posted_at desc").
		Order("id desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}

	result := make([]domain.Comment, 0, len(recs))
	for i := range recs {
		c := toDomainComment(&recs[i])
		if recs[i].User != nil {
			c.Username = recs[i].User.Username
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *gormCommentRepository) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	var rec commentRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	c := toDomainComment(&rec)
	return &c, nil
}

func (r *gormCommentRepository) Add(ctx context.Context, comment *domain.Comment) error {
	rec := commentRecord{
		MovieID:  comment.MovieID,
		Text:     comment.Text,
		PostedAt: comment.Timestamp.UTC(),
		UserID:   comment.UserID,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	comment.ID = rec.ID
	return nil
}

func (r *gormCommentRepository) Update(ctx context.Context, comment *domain.Comment) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&commentRecord{}).
		Where("id = ?", comment.ID).
		Updates(map[string]any{
			"text":      comment.Text,
			"posted_at": comment.Timestamp.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormCommentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&commentRecord{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormCommentRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

func toDomainComment(rec *commentRecord) domain.Comment {
	return domain.Comment{
		ID:        rec.ID,
		MovieID:   rec.MovieID,
		Text:      rec.Text,
		Timestamp: rec.PostedAt.UTC(),
		UserID:    rec.UserID,
	}
}
