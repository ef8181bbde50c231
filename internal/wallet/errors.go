package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// httpError maps the wallet error taxonomy onto HTTP statuses. Backend
// failures are reported generically; their detail has already been logged.
func httpError(err error) error {
	switch {
	case errors.Is(err, walletapi.ErrValidation),
		errors.Is(err, walletapi.ErrInsufficientFunds),
		errors.Is(err, walletapi.ErrCrossSystem):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, walletapi.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, walletapi.ErrBackend):
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
