package api

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/carbonell/student-search-api/api/handlers"
	"github.com/carbonell/student-search-api/api/middleware"
	"github.com/carbonell/student-search-api/api/routes"
	"github.com/carbonell/student-search-api/pkg/core"
	"github.com/carbonell/student-search-api/pkg/students"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	slogfiber "github.com/samber/slog-fiber"
)

type errorResponse struct {
	Erro string `json:"erro"`
}

func errorHandler(logger *slog.Logger, otel core.OtelService) fiber.ErrorHandler {
	handleFiberError := func(ctx *fiber.Ctx, err *fiber.Error) error {
		span := otel.SpanFromContext(ctx.UserContext())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Message)

		logger.Error(
			"Fiber Error",
			"Code",
			err.Code,
			"Message",
			err.Message,
		)

		return ctx.
			Status(err.Code).
			JSON(errorResponse{Erro: err.Message})
	}

	return func(ctx *fiber.Ctx, err error) error {
		var e *fiber.Error
		if !errors.As(err, &e) {
			e = fiber.ErrInternalServerError
		}
		return handleFiberError(ctx, e)
	}
}

func stackTraceHandler(logger *slog.Logger) func(*fiber.Ctx, any) {
	return func(c *fiber.Ctx, e any) {
		stack := debug.Stack()
		logger.ErrorContext(
			c.UserContext(),
			"panic!",
			"stack",
			string(stack),
			"err",
			e,
		)
	}
}

type Config struct {
	Otel   core.OtelService
	Logger *slog.Logger
	core.Config

	Students students.Service
	Tokens   handlers.TokenSourcer
	Redis    redis.Cmdable
}

func New(cfg *Config) (*fiber.App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fiberConfig := fiber.Config{
		AppName:      core.ServiceName,
		ErrorHandler: errorHandler(logger, cfg.Otel),
	}

	app := fiber.New(fiberConfig)

	app.Use(recover.New(recover.Config{
		Next:              nil,
		EnableStackTrace:  true,
		StackTraceHandler: stackTraceHandler(logger),
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "*",
		AllowMethods: "*",
	}))

	app.Use(otelfiber.Middleware())

	app.Use(slogfiber.NewWithConfig(
		logger,
		slogfiber.Config{
			WithRequestID: true,
			WithSpanID:    true,
			WithTraceID:   true,
		},
	))

	// liveness and readiness stay reachable without a staff token
	routes.StatusRouter(app, cfg.Redis)

	if !cfg.SkipAuth {
		verifier, err := middleware.NewOIDCVerifier(middleware.OIDCConfig{
			ClientID:      cfg.Google.ClientID,
			AllowedDomain: cfg.Google.AllowedDomain,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize oidc middleware: %w", err)
		}
		app.Use(verifier.FiberMiddleware())
	}

	routes.RegisterRoutes(app, cfg.Students, cfg.Tokens, logger)

	return app, nil
}
