package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/observability"
	apperrors "github.com/fieldops/taskboard/pkg/util/errorutil"
)

const (
	headerRequestID = "X-Request-ID"
	localsRequestID = "request_id"
)

// RegisterMiddlewares attaches the global chain. The request logger sits outside error handling
// so it records the rendered status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestIDMiddleware())
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
}

// RegisterEdgeMiddlewares adds CORS and the per-IP rate limit. A non-positive limit disables it.
// Call it after RegisterMiddlewares so rejected requests still get a request id, a log line and
// a metric.
func RegisterEdgeMiddlewares(app *fiber.App, cfg config.AppConfig) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Accept,Authorization,Content-Type," + headerRequestID,
		ExposeHeaders: "Content-Disposition," + headerRequestID,
		MaxAge:        300,
	}))
	if cfg.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/metrics" || c.Path() == "/health/live" || c.Path() == "/health/ready"
			},
			LimitReached: func(c *fiber.Ctx) error {
				body := fiber.Map{
					"code":    "RATE_LIMITED",
					"message": "too many requests",
				}
				if id, _ := c.Locals(localsRequestID).(string); id != "" {
					body["request_id"] = id
				}
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": body})
			},
		}))
	}
}

// requestIDMiddleware keeps a caller-supplied X-Request-ID or mints one.
func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Locals(localsRequestID, id)
		c.Set(headerRequestID, id)
		return c.Next()
	}
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
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			err = renderError(c, logger, metrics, err)
		}()
		return c.Next()
	}
}

func renderError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewUnavailable("request timed out", err)
	}
	domainErr := apperrors.ToDomainError(err)
	metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)

	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	requestID, _ := c.Locals(localsRequestID).(string)
	if requestID != "" {
		body["request_id"] = requestID
	}
	if domainErr.HTTPStatus >= 500 {
		logger.Error("request failed",
			zap.String("request_id", requestID),
			zap.String("path", c.Path()),
			zap.Error(domainErr),
		)
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}
