package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints. Money-moving routes go through
// the idempotency middleware.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, idempotent fiber.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId/balances", h.Balances)
	r.Post("/wallets/:walletId/deposits", idempotent, h.Deposit)
	r.Post("/wallets/:walletId/withdrawals", idempotent, h.Withdraw)
	r.Get("/wallets/:walletId/transactions", h.Transactions)
	r.Get("/wallets/:walletId/profile", h.Profile)
	r.Post("/transfers", idempotent, h.Transfer)
}
