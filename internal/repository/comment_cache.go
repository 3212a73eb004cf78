package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/movie-comments/internal/domain"
)

// CommentCache keeps per-movie comment lists.
//
// Every Invalidate bumps a per-movie version. Readers take the version before
// loading from the store and pass it to Set, which refuses to write once the
// version has moved, so a slow read never overwrites a newer invalidation.
type CommentCache interface {
	// Get reports false on a miss.
	Get(ctx context.Context, movieID int) ([]domain.Comment, bool, error)
	// Version returns the movie's invalidation counter, zero if never invalidated.
	Version(ctx context.Context, movieID int) (int64, error)
	// Set stores comments only while the counter still equals version and
	// reports whether it did.
	Set(ctx context.Context, movieID int, version int64, comments []domain.Comment) (bool, error)
	Invalidate(ctx context.Context, movieID int) error
}

type redisCommentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCommentCache returns a Redis-backed cache with entries expiring after ttl.
func NewCommentCache(client *redis.Client, ttl time.Duration) CommentCache {
	return &redisCommentCache{client: client, ttl: ttl}
}

func (c *redisCommentCache) Get(ctx context.Context, movieID int) ([]domain.Comment, bool, error) {
	raw, err := c.client.Get(ctx, commentCacheKey(movieID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var comments []domain.Comment
	if err := json.Unmarshal(raw, &comments); err != nil {
		return nil, false, err
	}
	return comments, true, nil
}

func (c *redisCommentCache) Version(ctx context.Context, movieID int) (int64, error) {
	return readVersion(ctx, c.client, commentVersionKey(movieID))
}

func (c *redisCommentCache) Set(ctx context.Context, movieID int, version int64, comments []domain.Comment) (bool, error) {
	raw, err := json.Marshal(comments)
	if err != nil {
		return false, err
	}

	versionKey := commentVersionKey(movieID)
	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, versionKey)
		if err != nil || current != version {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, commentCacheKey(movieID), raw, c.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (c *redisCommentCache) Invalidate(ctx context.Context, movieID int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, commentVersionKey(movieID))
		pipe.Del(ctx, commentCacheKey(movieID))
		return nil
	})
	return err
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, cmd stringGetter, key string) (int64, error) {
	v, err := cmd.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func commentCacheKey(movieID int) string {
	return fmt.Sprintf("comments:movie:%d", movieID)
}

func commentVersionKey(movieID int) string {
	return fmt.Sprintf("comments:movie:%d:version", movieID)
}
