package api

import (
	"errors"
	"log/slog"

	"careplan/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error as the apperror envelope. Unknown errors
// are logged and reported as INTERNAL_ERROR without their message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		var appErr *apperror.Error
		switch {
		case errors.As(err, &fiberErr):
			appErr = apperror.FromStatus(fiberErr.Code, fiberErr.Message)
		default:
			var known bool
			appErr, known = apperror.From(err)
			if !known {
				logger.ErrorContext(c.UserContext(), "Request failed",
					"method", c.Method(), "path", c.Path(), "error", err)
			}
		}
		return c.Status(appErr.Status).JSON(appErr)
	}
}
