package routes

import (
	"github.com/carbonell/student-search-api/api/handlers"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// StatusRouter registers the public health routes. They never touch the upstream.
func StatusRouter(app fiber.Router, rdb redis.Cmdable) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Backend running!")
	})

	app.Get("/status", handlers.GetRDBStatus(rdb))
}
