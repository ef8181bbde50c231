// Package walletclient routes wallet operations to the mock ledger or the
// payment processor depending on the wallet reference.
package walletclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/walletdesk/walletdesk/internal/identity"
	"github.com/walletdesk/walletdesk/internal/logging"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// Client is the single entry point for wallet operations. Errors from either
// backend are returned unchanged.
type Client struct {
	phantom   walletapi.Backend
	processor walletapi.Backend
	users     identity.Repository
	logger    *slog.Logger
}

// New builds a dispatcher over the two backends.
func New(phantom, processor walletapi.Backend, users identity.Repository, logger *slog.Logger) *Client {
	return &Client{phantom: phantom, processor: processor, users: users, logger: logging.Component(logger, "walletclient")}
}

// DepositInput credits the wallet behind Wallet.
type DepositInput struct {
	Wallet       walletapi.Ref
	Amount       string
	CurrencyCode string
	Description  string
}

// WithdrawInput debits the wallet behind Wallet.
type WithdrawInput struct {
	Wallet       walletapi.Ref
	Amount       string
	CurrencyCode string
	Description  string
}

// TransferInput moves funds between two wallets of the same system.
type TransferInput struct {
	Source       walletapi.Ref
	Destination  walletapi.Ref
	Amount       string
	CurrencyCode string
	Note         string
}

func (c *Client) backend(ref walletapi.Ref) (walletapi.Backend, error) {
	switch ref.System() {
	case walletapi.SystemPhantom:
		return c.phantom, nil
	case walletapi.SystemProcessor:
		return c.processor, nil
	default:
		return nil, walletapi.Validationf("wallet id is required")
	}
}

// CreateWallet creates the user's wallet on the backend selected when the
// user was provisioned.
func (c *Client) CreateWallet(ctx context.Context, userID int64) (walletapi.WalletRecord, error) {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return walletapi.WalletRecord{}, walletapi.NotFoundf("user %d not found", userID)
		}
		return walletapi.WalletRecord{}, fmt.Errorf("resolve user %d: %w", userID, err)
	}

	backend, system := c.processor, walletapi.SystemProcessor
	if user.UsePhantomPay {
		backend, system = c.phantom, walletapi.SystemPhantom
	}
	c.logger.Debug("routing wallet creation", "user_id", userID, "system", system.String())
	return backend.CreateWallet(ctx, walletapi.CustomerInfo{
		UserID:   user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Email:    user.Email,
	})
}

func (c *Client) GetBalances(ctx context.Context, wallet walletapi.Ref) (walletapi.Balances, error) {
	backend, err := c.backend(wallet)
	if err != nil {
		return walletapi.Balances{}, err
	}
	return backend.GetBalances(ctx, wallet.ID())
}

func (c *Client) DepositMoney(ctx context.Context, in DepositInput) (walletapi.TransactionResult, error) {
	backend, err := c.backend(in.Wallet)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	return backend.DepositMoney(ctx, walletapi.DepositRequest{
		WalletID: in.Wallet.ID(), Amount: in.Amount, CurrencyCode: in.CurrencyCode, Description: in.Description,
	})
}

func (c *Client) WithdrawMoney(ctx context.Context, in WithdrawInput) (walletapi.TransactionResult, error) {
	backend, err := c.backend(in.Wallet)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	return backend.WithdrawMoney(ctx, walletapi.WithdrawRequest{
		WalletID: in.Wallet.ID(), Amount: in.Amount, CurrencyCode: in.CurrencyCode, Description: in.Description,
	})
}

// TransferMoney rejects transfers whose wallets live on different systems
// before either backend is called.
func (c *Client) TransferMoney(ctx context.Context, in TransferInput) (walletapi.TransactionResult, error) {
	if in.Source.IsZero() || in.Destination.IsZero() {
		return walletapi.TransactionResult{}, walletapi.Validationf("source and destination wallet ids are required")
	}
	if !in.Source.SameSystem(in.Destination) {
		c.logger.Warn("cross-system transfer rejected",
			"source_wallet_id", in.Source.ID(), "destination_wallet_id", in.Destination.ID())
		return walletapi.TransactionResult{}, &walletapi.CrossSystemError{Source: in.Source.System(), Destination: in.Destination.System()}
	}
	backend, err := c.backend(in.Source)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	return backend.TransferMoney(ctx, walletapi.TransferRequest{
		SourceWalletID:      in.Source.ID(),
		DestinationWalletID: in.Destination.ID(),
		Amount:              in.Amount,
		CurrencyCode:        in.CurrencyCode,
		Note:                in.Note,
	})
}

func (c *Client) GetTransactions(ctx context.Context, wallet walletapi.Ref, limit int) ([]walletapi.TransactionView, error) {
	backend, err := c.backend(wallet)
	if err != nil {
		return nil, err
	}
	return backend.GetTransactions(ctx, wallet.ID(), walletapi.ClampLimit(limit))
}

func (c *Client) GetCustomerProfile(ctx context.Context, wallet walletapi.Ref) (walletapi.Profile, error) {
	backend, err := c.backend(wallet)
	if err != nil {
		return walletapi.Profile{}, err
	}
	return backend.GetCustomerProfile(ctx, wallet.ID())
}
