package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/movie-comments/internal/api/http"
	"github.com/spec-kit/movie-comments/internal/api/http/handlers"
	"github.com/spec-kit/movie-comments/internal/auth"
	"github.com/spec-kit/movie-comments/internal/config"
	"github.com/spec-kit/movie-comments/internal/events"
	"github.com/spec-kit/movie-comments/internal/observability"
	"github.com/spec-kit/movie-comments/internal/persistence"
	"github.com/spec-kit/movie-comments/internal/repository"
	"github.com/spec-kit/movie-comments/internal/service"
	"github.com/spec-kit/movie-comments/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type stores struct {
	users    repository.UserRepository
	comments repository.CommentRepository
	db       handlers.Pinger
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:    st.users,
		SessionRepo: repository.NewRefreshSessionRepository(redis.Client),
		Logger:      logger,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		CommentRepo: st.comments,
		UserRepo:    st.users,
		Cache:       repository.NewCommentCache(redis.Client, cfg.Redis.CommentCacheTTL()),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App, cfg.HTTP)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			cfg.Store.Driver: st.db,
			"redis":          redis,
		}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Comments:       handlers.NewCommentsHandler(commentService),
		AuthMiddleware: auth.NewMiddleware(authService.TokenManager()),
		HTTP:           cfg.HTTP,
	})

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Driver))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		if err := repository.AutoMigrate(db.DB); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			users:    repository.NewGormUserRepository(db.DB),
			comments: repository.NewGormCommentRepository(db.DB),
			db:       db,
			close:    db.Close,
		}, nil
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		pool := pg.PoolHandle()
		return &stores{
			users:    repository.NewUserRepository(pool),
			comments: repository.NewCommentRepository(pool),
			db:       pg,
			close:    pg.Close,
		}, nil
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
