package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/identity"
)

// RegisterIdentityRoutes wires user provisioning endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/users", h.Provision)
	r.Get("/users/:userId", h.Get)
}
