package handlers

import (
	"context"
	"time"

	redisLocal "github.com/carbonell/student-search-api/pkg/redis"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const statusTimeout = 2 * time.Second

// Build a handler that returns a 2** status when redis answers a ping.
func GetRDBStatus(rdb redis.Cmdable) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "redis not configured")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), statusTimeout)
		defer cancel()

		if err := redisLocal.Ping(ctx, rdb); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "redis unavailable")
		}
		return c.SendStatus(fiber.StatusOK)
	}
}

type TokenSourcer interface {
	TokenSource(ctx context.Context) oauth2.TokenSource
}

type upstreamStatus struct {
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// GetUpstreamStatus reports whether a Sophia credential can be obtained. A
// cached credential is reused, so this does not hit the upstream every time.
func GetUpstreamStatus(src TokenSourcer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if src == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "upstream not configured")
		}

		tok, err := src.TokenSource(c.UserContext()).Token()
		if err != nil || !tok.Valid() {
			return fiber.NewError(fiber.StatusServiceUnavailable, msgAuthFailed)
		}

		return c.JSON(upstreamStatus{Status: "ok", ExpiresAt: tok.Expiry})
	}
}
