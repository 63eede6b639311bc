package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bazaar/internal/services"
)

// httpError maps service-layer errors onto fiber errors; anything unmapped
// bubbles up to fiber's generic 500 handler and is logged server-side only.
func httpError(err error) error {
	var stockErr *services.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return fiber.NewError(fiber.StatusConflict, stockErr.Error())
	case errors.Is(err, services.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTerminalState):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
