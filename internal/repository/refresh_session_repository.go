package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/movie-comments/internal/domain"
)

const refreshKeyPrefix = "refresh:"

// RefreshSessionRepository stores opaque refresh tokens server side.
type RefreshSessionRepository interface {
	Save(ctx context.Context, session *domain.RefreshSession) error
	Get(ctx context.Context, token string) (*domain.RefreshSession, error)
	// Delete reports false when the token was already gone.
	Delete(ctx context.Context, token string) (bool, error)
}

type redisRefreshSessionRepository struct {
	client *redis.Client
}

// NewRefreshSessionRepository returns a Redis-backed implementation. Keys hold
// the SHA-256 of the token, never the token itself.
func NewRefreshSessionRepository(client *redis.Client) RefreshSessionRepository {
	return &redisRefreshSessionRepository{client: client}
}

func (r *redisRefreshSessionRepository) Save(ctx context.Context, session *domain.RefreshSession) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("refresh session already expired")
	}
	return r.client.Set(ctx, refreshKey(session.Token), session.UserID, ttl).Err()
}

func (r *redisRefreshSessionRepository) Get(ctx context.Context, token string) (*domain.RefreshSession, error) {
	key := refreshKey(token)
	userID, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	session := &domain.RefreshSession{Token: token, UserID: userID}
	if ttl, err := r.client.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		session.ExpiresAt = time.Now().Add(ttl)
	}
	return session, nil
}

func (r *redisRefreshSessionRepository) Delete(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Del(ctx, refreshKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func refreshKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return refreshKeyPrefix + hex.EncodeToString(sum[:])
}
