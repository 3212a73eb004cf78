package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAuthEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("JWT_ISSUER", "movie-comments")
	t.Setenv("JWT_AUDIENCE", "movie-web-app")
}

func TestLoad_Defaults(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.Redis.CommentCacheTTL())
	assert.Equal(t, "http://localhost:3000", cfg.HTTP.CORSOrigins)
}

func TestLoad_MissingSigningSettingsIsFatal(t *testing.T) {
	t.Setenv("JWT_KEY", "")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_AUDIENCE", "")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_KEY is required")
	assert.Contains(t, err.Error(), "JWT_ISSUER is required")
	assert.Contains(t, err.Error(), "JWT_AUDIENCE is required")
}

func TestLoad_ShortKeyRejected(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("JWT_KEY", "short")
	t.Setenv("STORE_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestLoad_UnknownDriver(t *testing.T) {
	setAuthEnv(t)
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown STORE_DRIVER "mongo"`)
}
