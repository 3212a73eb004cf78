package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers understood by Load.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

const minJWTKeyLength = 32

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the database path for the embedded driver.
type SQLiteConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr                   string
	Password               string
	DB                     int
	CommentCacheTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTKey                string
	JWTIssuer             string
	JWTAudience           string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	BcryptCost            int
}

// HTTPConfig holds transport concerns that sit outside the handlers.
type HTTPConfig struct {
	CORSOrigins       string
	AuthRateLimitMax  int
	AuthRateLimitSecs int
}

// Load reads configuration from environment variables, applying defaults where possible.
// Token signing settings have no defaults: a missing key, issuer or audience is an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "movie-comments-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "movie-comments.db"),
		},
		Redis: RedisConfig{
			Addr:                   getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:               os.Getenv("REDIS_PASSWORD"),
			DB:                     redisDB,
			CommentCacheTTLSeconds: getEnvAsInt("REDIS_COMMENT_CACHE_TTL_SECONDS", 300),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTKey:                os.Getenv("JWT_KEY"),
			JWTIssuer:             os.Getenv("JWT_ISSUER"),
			JWTAudience:           os.Getenv("JWT_AUDIENCE"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 168),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		HTTP: HTTPConfig{
			CORSOrigins:       getEnv("HTTP_CORS_ORIGINS", "http://localhost:3000"),
			AuthRateLimitMax:  getEnvAsInt("HTTP_AUTH_RATE_LIMIT_MAX", 20),
			AuthRateLimitSecs: getEnvAsInt("HTTP_AUTH_RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that must abort startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTKey == "" {
		errs = append(errs, errors.New("JWT_KEY is required"))
	} else if len(c.Auth.JWTKey) < minJWTKeyLength {
		errs = append(errs, fmt.Errorf("JWT_KEY must be at least %d bytes", minJWTKeyLength))
	}
	if c.Auth.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISSUER is required"))
	}
	if c.Auth.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_AUDIENCE is required"))
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
		}
	case StoreDriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the lifetime of refresh sessions.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	if a.RefreshTokenTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// CommentCacheTTL returns how long a movie's comment list stays cached.
func (r RedisConfig) CommentCacheTTL() time.Duration {
	if r.CommentCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.CommentCacheTTLSeconds) * time.Second
}

// AuthRateLimitWindow returns the limiter window for auth endpoints.
func (h HTTPConfig) AuthRateLimitWindow() time.Duration {
	if h.AuthRateLimitSecs <= 0 {
		return time.Minute
	}
	return time.Duration(h.AuthRateLimitSecs) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
