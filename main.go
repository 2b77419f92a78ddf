package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carbonell/student-search-api/api"
	"github.com/carbonell/student-search-api/pkg/core"
	redisLocal "github.com/carbonell/student-search-api/pkg/redis"
	"github.com/carbonell/student-search-api/pkg/sophia"
	"github.com/carbonell/student-search-api/pkg/students"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := core.LoadEnv(); err != nil {
		log.Printf("failed to load env files: %v", err)
	}

	cfg, err := core.NewConfigFromEnv()
	if err != nil {
		log.Printf("invalid configuration: %v", err)
		return
	}

	otelSvc, err := core.NewOtelService(ctx, &cfg)
	if err != nil {
		log.Printf("failed to start otel: %v", err)
		return
	}

	logger := core.NewLoggerWithOtel(cfg, otelSvc)
	slog.SetDefault(logger)
	defer otelSvc.Shutdown(context.Background(), logger)

	_, span := otel.Tracer(core.ServiceName).Start(ctx, "startup")
	span.AddEvent("Starting up")
	span.End()

	app, cleanup, err := buildApp(&cfg, otelSvc, logger)
	if err != nil {
		logger.Error("failed to build app", slog.Any("err", err))
		return
	}
	defer cleanup()

	if err := runServer(ctx, app, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Error("server error", slog.Any("err", err))
	}
}

// buildApp wires the upstream client, the credential cache and the search
// pipeline into the HTTP app. cleanup releases the redis pool.
func buildApp(cfg *core.Config, otelSvc core.OtelService, logger *slog.Logger) (*fiber.App, func(), error) {
	rdb := redisLocal.NewClient(cfg.Redis, logger)
	cleanup := func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("failed to close redis client", slog.Any("err", err))
		}
	}

	client := sophia.New(&cfg.Sophia, sophia.Options{
		HTTPClient: sophia.NewHTTPClient(cfg.Search.PhotoConcurrency),
		Logger:     logger,
	})

	var store sophia.TokenStore
	if cfg.Redis.ShareToken {
		store = redisLocal.NewTokenStore(rdb, redisLocal.DefaultTokenKey)
	}

	tokens := sophia.NewTokenManager(client, sophia.TokenManagerOptions{
		TTL:    cfg.Sophia.TokenTTL,
		Store:  store,
		Logger: logger,
	})

	search := students.New(&cfg.Search, tokens, client, students.Options{Logger: logger})

	app, err := api.New(&api.Config{
		Otel:     otelSvc,
		Logger:   logger,
		Config:   *cfg,
		Students: search,
		Tokens:   tokens,
		Redis:    rdb,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return app, cleanup, nil
}

func runServer(ctx context.Context, app *fiber.App, addr string) error {
	srvErr := make(chan error, 1)

	go func() {
		srvErr <- app.Listen(addr)
	}()

	select {
	case err := <-srvErr:
		return err
	case <-ctx.Done():
	}

	// inline if since this err is only needed in the scope of this if statement.
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}
