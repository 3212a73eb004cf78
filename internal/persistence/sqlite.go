package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLite wraps a GORM handle on an embedded SQLite database.
type SQLite struct {
	DB *gorm.DB
}

// NewSQLite opens path with foreign keys enforced. Use ":memory:" for a throwaway database.
func NewSQLite(path string, log *zap.Logger) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "_pragma=foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	sqlDB.SetMaxOpenConns(1)

	if log != nil {
		log.Info("opened sqlite database", zap.String("path", path))
	}
	return &SQLite{DB: db}, nil
}

// Close releases the underlying connection.
func (s *SQLite) Close() {
	if s == nil || s.DB == nil {
		return
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite not configured")
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
