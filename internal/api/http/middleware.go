package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/movie-comments/internal/config"
	"github.com/spec-kit/movie-comments/internal/observability"
	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares. The access log wraps the
// error renderer so it records the final status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, appCfg config.AppConfig, httpCfg config.HTTPConfig) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error("panic recovered", zap.String("path", utils.CopyString(c.Path())), zap.Any("panic", e), zap.StackSkip("stack", 3))
		},
	}))
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: httpCfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if timeout := appCfg.RequestTimeout(); timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

// authRateLimiter limits auth endpoints per client IP.
func authRateLimiter(cfg config.HTTPConfig) fiber.Handler {
	limit := cfg.AuthRateLimitMax
	if limit <= 0 {
		limit = 20
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: cfg.AuthRateLimitWindow(),
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewDomainError(apperrors.CodeRateLimited,
				"Too many requests, please try again later.", fiber.StatusTooManyRequests, nil)
		},
	})
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		domainErr := apperrors.ToDomainError(err)
		metrics.RecordError(c.Route().Path, utils.CopyString(c.Method()), domainErr.Code)

		body := fiber.Map{
			"code":    domainErr.Code,
			"message": domainErr.Message,
		}
		if len(domainErr.Details) > 0 {
			body["details"] = domainErr.Details
		}
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", utils.CopyString(c.Method())),
				zap.String("path", utils.CopyString(c.Path())),
				zap.String("code", domainErr.Code),
				zap.Error(domainErr))
		}
		return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
	}
}
