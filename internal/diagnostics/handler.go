package diagnostics

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/money"
)

// Handler exposes diagnostics over HTTP. Checks always answer 200 with the
// check result; a failing check is reported, not raised.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a diagnostics HTTP handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type entryResponse struct {
	AccountID         string `json:"account_id"`
	WalletID          string `json:"wallet_id"`
	CurrencyCode      string `json:"currency_code"`
	StoredBalance     string `json:"stored_balance"`
	CalculatedBalance string `json:"calculated_balance"`
	Difference        string `json:"difference"`
	IsConsistent      bool   `json:"is_consistent"`
}

type reconciliationResponse struct {
	CheckResult
	Accounts []entryResponse `json:"accounts"`
}

type repairResponse struct {
	CheckResult
	Repaired []entryResponse `json:"repaired"`
	Skipped  []entryResponse `json:"skipped"`
}

type orphanResponse struct {
	CheckResult
	Accounts     []string `json:"accounts"`
	Transactions []string `json:"transactions"`
}

func entries(in []ReconciliationEntry) []entryResponse {
	out := make([]entryResponse, 0, len(in))
	for _, e := range in {
		out = append(out, entryResponse{
			AccountID:         e.AccountID,
			WalletID:          e.WalletID,
			CurrencyCode:      e.CurrencyCode,
			StoredBalance:     money.Format(e.StoredBalance),
			CalculatedBalance: money.Format(e.CalculatedBalance),
			Difference:        money.Format(e.Difference),
			IsConsistent:      e.IsConsistent,
		})
	}
	return out
}

// RunAll handles GET /diagnostics?wallet_id=.
func (h *Handler) RunAll(c *fiber.Ctx) error {
	return c.JSON(h.engine.RunAll(c.UserContext(), c.Query("wallet_id")))
}

func (h *Handler) Connectivity(c *fiber.Ctx) error {
	return c.JSON(h.engine.Connectivity(c.UserContext()))
}

func (h *Handler) Schema(c *fiber.Ctx) error {
	return c.JSON(h.engine.Schema(c.UserContext()))
}

func (h *Handler) CustomerLookup(c *fiber.Ctx) error {
	return c.JSON(h.engine.CustomerLookup(c.UserContext(), c.Params("walletId")))
}

func (h *Handler) AccountStatus(c *fiber.Ctx) error {
	return c.JSON(h.engine.AccountStatus(c.UserContext(), c.Params("walletId")))
}

// Reconcile handles both the per-wallet and the system-wide reconciliation routes.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	var rec Reconciliation
	if walletID := c.Params("walletId"); walletID != "" {
		rec = h.engine.Reconcile(c.UserContext(), walletID)
	} else {
		rec = h.engine.ReconcileAll(c.UserContext())
	}
	return c.JSON(reconciliationResponse{CheckResult: rec.Result(), Accounts: entries(rec.Entries)})
}

// Repair handles POST /diagnostics/repair with an optional {"wallet_id": "..."} body.
func (h *Handler) Repair(c *fiber.Ctx) error {
	var req struct {
		WalletID string `json:"wallet_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	report := h.engine.Repair(c.UserContext(), req.WalletID)
	return c.JSON(repairResponse{CheckResult: report.Result(), Repaired: entries(report.Repaired), Skipped: entries(report.Skipped)})
}

func (h *Handler) Orphans(c *fiber.Ctx) error {
	report := h.engine.Orphans(c.UserContext())
	return c.JSON(orphanResponse{CheckResult: report.Result(), Accounts: report.Accounts, Transactions: report.Transactions})
}

func (h *Handler) SelfTest(c *fiber.Ctx) error {
	return c.JSON(h.engine.SelfTest(c.UserContext()))
}
