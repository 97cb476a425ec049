package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rentalku/relayd/internal/domain"
)

// ErrorHandler is the app-wide fallback for errors that escape a
// handler. Domain sentinels map to their usual status codes so a
// handler can just return them.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.Is(err, domain.ErrInvalidChannel), errors.Is(err, domain.ErrInvalidDuration):
			code = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrAlreadyTimed):
			code = fiber.StatusConflict
		case errors.Is(err, domain.ErrNoActiveTimer):
			code = fiber.StatusNotFound
		case errors.Is(err, domain.ErrAggregation), errors.Is(err, domain.ErrLedgerRead):
			code = fiber.StatusBadGateway
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
