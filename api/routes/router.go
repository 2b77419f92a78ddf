package routes

import (
	"log/slog"

	"github.com/carbonell/student-search-api/api/handlers"
	"github.com/carbonell/student-search-api/pkg/students"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes that sit behind caller verification.
// /status/upstream may authenticate against Sophia, so it lives here too.
func RegisterRoutes(app fiber.Router, svc students.Service, tokens handlers.TokenSourcer, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	app.Get("/status/upstream", handlers.GetUpstreamStatus(tokens))

	api := app.Group("/api")

	api.Get("/buscar-aluno", handlers.StudentSearchHandler(svc, logger))
}
