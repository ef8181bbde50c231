package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/walletdesk/walletdesk/internal/config"
	"github.com/walletdesk/walletdesk/internal/diagnostics"
	"github.com/walletdesk/walletdesk/internal/identity"
	"github.com/walletdesk/walletdesk/internal/ledger"
	"github.com/walletdesk/walletdesk/internal/middleware"
	"github.com/walletdesk/walletdesk/internal/notification"
	"github.com/walletdesk/walletdesk/internal/phantom"
	"github.com/walletdesk/walletdesk/internal/processor"
	"github.com/walletdesk/walletdesk/internal/wallet"
	"github.com/walletdesk/walletdesk/internal/walletclient"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	var (
		store        ledger.Storage
		identityRepo identity.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresLedger(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory stores")
		store = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	identitySvc := identity.NewService(identityRepo)
	engine := phantom.New(store, identityRepo, d.Cfg.Currencies, notification.NewLoggerNotifier(d.Logger), d.Logger)
	d.Logger.Info("phantom engine ready", "currencies", engine.Currencies())
	proc := processor.New(d.Cfg.Processor, d.Logger)
	if !proc.Configured() {
		d.Logger.Warn("payment processor not configured, non-phantom wallets will fail")
	}
	client := walletclient.New(engine, proc, identityRepo, d.Logger)
	diag := diagnostics.New(store, &diagnostics.Fixtures{Users: identitySvc, Backend: engine}, d.Logger)

	RegisterHealthRoutes(app, d, store, proc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c.UserContext()),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc))
	RegisterWalletRoutes(api, wallet.NewHandler(client, d.Logger),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterDiagnosticsRoutes(api, diagnostics.NewHandler(diag),
		middleware.RateLimit(d.Cache, "repair", d.Cfg.RepairRateLimit),
		middleware.RateLimit(d.Cache, "self-test", d.Cfg.RepairRateLimit))

	return nil
}
