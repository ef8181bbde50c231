package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/ledger"
	"github.com/walletdesk/walletdesk/internal/processor"
)

const healthTimeout = 2 * time.Second

// RegisterHealthRoutes adds liveness/readiness style endpoints. The processor
// is reported but does not affect the status code, since phantom wallets keep
// working without it.
func RegisterHealthRoutes(app *fiber.App, d Deps, store ledger.Inspector, proc *processor.Client) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ledgerStatus := "ok"
		redisStatus := "disabled"
		processorStatus := "configured"

		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			ledgerStatus = err.Error()
		}
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		}
		if !proc.Configured() {
			processorStatus = "not configured"
		}

		status := http.StatusOK
		if ledgerStatus != "ok" || (redisStatus != "ok" && redisStatus != "disabled") {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"ledger": ledgerStatus, "redis": redisStatus, "processor": processorStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
