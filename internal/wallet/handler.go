package wallet

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletdesk/walletdesk/internal/logging"
	"github.com/walletdesk/walletdesk/internal/walletapi"
	"github.com/walletdesk/walletdesk/internal/walletclient"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	client *walletclient.Client
	logger *slog.Logger
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(client *walletclient.Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logging.Component(logger, "wallet")}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	mapped := httpError(err)
	if fe, ok := mapped.(*fiber.Error); ok && fe.Code >= http.StatusInternalServerError {
		h.logger.Error("wallet operation failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return mapped
}

func walletRef(c *fiber.Ctx) (walletapi.Ref, error) {
	ref, err := walletapi.ParseRef(c.Params("walletId"))
	if err != nil {
		return walletapi.Ref{}, httpError(err)
	}
	return ref, nil
}

// Create provisions a wallet for the user on the backend chosen at user provisioning.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.UserID <= 0 {
		return fiber.NewError(http.StatusBadRequest, "user_id must be a positive integer")
	}
	rec, err := h.client.CreateWallet(c.UserContext(), req.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(walletResponse{
		WalletID:  rec.WalletID,
		Status:    rec.Status,
		Accounts:  toAccounts(rec.Accounts),
		CreatedAt: rec.CreatedAt,
	})
}

// Balances returns every account of the wallet.
func (h *Handler) Balances(c *fiber.Ctx) error {
	ref, err := walletRef(c)
	if err != nil {
		return err
	}
	balances, err := h.client.GetBalances(c.UserContext(), ref)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(balancesResponse{WalletID: balances.WalletID, Accounts: toAccounts(balances.Accounts)})
}

// Deposit credits the wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	ref, err := walletRef(c)
	if err != nil {
		return err
	}
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.client.DepositMoney(c.UserContext(), walletclient.DepositInput{
		Wallet: ref, Amount: req.Amount.String(), CurrencyCode: req.CurrencyCode, Description: req.Description,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toTransaction(res))
}

// Withdraw debits the wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	ref, err := walletRef(c)
	if err != nil {
		return err
	}
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.client.WithdrawMoney(c.UserContext(), walletclient.WithdrawInput{
		Wallet: ref, Amount: req.Amount.String(), CurrencyCode: req.CurrencyCode, Description: req.Description,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toTransaction(res))
}

// Transfer moves funds between two wallets on the same system.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	source, err := walletapi.ParseRef(req.SourceWalletID)
	if err != nil {
		return httpError(err)
	}
	destination, err := walletapi.ParseRef(req.DestinationWalletID)
	if err != nil {
		return httpError(err)
	}
	res, err := h.client.TransferMoney(c.UserContext(), walletclient.TransferInput{
		Source: source, Destination: destination,
		Amount: req.Amount.String(), CurrencyCode: req.CurrencyCode, Note: req.Note,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toTransaction(res))
}

// Transactions returns the wallet history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	ref, err := walletRef(c)
	if err != nil {
		return err
	}
	limit := c.QueryInt("limit", walletapi.DefaultTransactionLimit)
	views, err := h.client.GetTransactions(c.UserContext(), ref, limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toHistory(ref.ID(), views))
}

// Profile returns the customer owning the wallet.
func (h *Handler) Profile(c *fiber.Ctx) error {
	ref, err := walletRef(c)
	if err != nil {
		return err
	}
	p, err := h.client.GetCustomerProfile(c.UserContext(), ref)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(profileResponse{
		CustomerID: p.CustomerID,
		WalletID:   p.WalletID,
		Username:   p.Username,
		FullName:   p.FullName,
		Email:      p.Email,
		CreatedAt:  p.CreatedAt,
	})
}
