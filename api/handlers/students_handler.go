package handlers

import (
	"errors"
	"log/slog"

	"github.com/carbonell/student-search-api/pkg/students"
	"github.com/gofiber/fiber/v2"
)

const (
	msgAuthFailed   = "Não foi possível autenticar com a API Sophia."
	msgSearchFailed = "Ocorreu um erro ao buscar os dados no sistema Sophia."
)

type searchRequest struct {
	ParteNome string `query:"parteNome" validate:"max=100"`
	Grupo     string `query:"grupo" validate:"omitempty,max=10"`
}

func StudentSearchHandler(svc students.Service, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("handler", "StudentSearchHandler"))

	v := newValidator()

	return func(c *fiber.Ctx) error {
		if svc == nil {
			logger.Error("missing students service")
			return fiber.NewError(fiber.StatusInternalServerError, "server misconfigured")
		}

		req := searchRequest{Grupo: "todos"}
		if err := c.QueryParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "parâmetros inválidos")
		}
		if err := v.Validate(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := svc.Search(c.UserContext(), students.NewQuery(req.ParteNome, req.Grupo))
		switch {
		case errors.Is(err, students.ErrUpstreamAuth):
			logger.ErrorContext(c.UserContext(), "sophia authentication failed", slog.Any("err", err))
			return fiber.NewError(fiber.StatusInternalServerError, msgAuthFailed)
		case err != nil:
			logger.ErrorContext(c.UserContext(), "student search failed", slog.Any("err", err))
			return fiber.NewError(fiber.StatusInternalServerError, msgSearchFailed)
		}

		return c.Status(fiber.StatusOK).JSON(results)
	}
}
