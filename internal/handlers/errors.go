package handlers

import (
	"errors"

	"exercisetracker/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUserNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError logs err and writes it as {"error": message}.
func respondError(c *fiber.Ctx, log *logrus.Logger, err error) error {
	status := statusFor(err)
	entry := log.WithError(err).WithFields(logrus.Fields{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     status,
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	})
	if status >= fiber.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// ErrorHandler renders errors returned outside the handlers (unknown routes,
// recovered panics) in the same {"error": message} shape.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		if status >= fiber.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Path()).Error("unhandled error")
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
}
