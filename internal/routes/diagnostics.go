package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/diagnostics"
)

// RegisterDiagnosticsRoutes wires the operator diagnostics endpoints. The
// mutating endpoints are rate limited.
func RegisterDiagnosticsRoutes(r fiber.Router, h *diagnostics.Handler, repairLimit, selfTestLimit fiber.Handler) {
	group := r.Group("/diagnostics")
	group.Get("/", h.RunAll)
	group.Get("/connectivity", h.Connectivity)
	group.Get("/schema", h.Schema)
	group.Get("/customers/:walletId", h.CustomerLookup)
	group.Get("/accounts/:walletId", h.AccountStatus)
	group.Get("/reconciliation", h.Reconcile)
	group.Get("/reconciliation/:walletId", h.Reconcile)
	group.Get("/orphans", h.Orphans)
	group.Post("/repair", repairLimit, h.Repair)
	group.Post("/self-test", selfTestLimit, h.SelfTest)
}
