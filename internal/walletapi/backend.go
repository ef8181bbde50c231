// Package walletapi defines the wallet operation contract shared by the local
// mock ledger and the external payment processor, together with the error
// taxonomy both backends raise.
package walletapi

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeDeposit    = "DEPOSIT"
	TypeWithdrawal = "WITHDRAWAL"
	TypeTransfer   = "TRANSFER"

	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"

	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"

	DefaultTransactionLimit = 20
	MaxTransactionLimit     = 200
)

// Backend is implemented by every wallet engine. Wallet identifiers are the
// backend-native strings; routing between engines happens above this interface.
type Backend interface {
	CreateWallet(ctx context.Context, customer CustomerInfo) (WalletRecord, error)
	GetBalances(ctx context.Context, walletID string) (Balances, error)
	DepositMoney(ctx context.Context, req DepositRequest) (TransactionResult, error)
	WithdrawMoney(ctx context.Context, req WithdrawRequest) (TransactionResult, error)
	TransferMoney(ctx context.Context, req TransferRequest) (TransactionResult, error)
	GetTransactions(ctx context.Context, walletID string, limit int) ([]TransactionView, error)
	GetCustomerProfile(ctx context.Context, walletID string) (Profile, error)
}

// CustomerInfo identifies the caller a wallet is created for.
type CustomerInfo struct {
	UserID   int64
	Username string
	FullName string
	Email    string
}

// WalletRecord is returned by CreateWallet.
type WalletRecord struct {
	WalletID  string
	Status    string
	Accounts  []AccountBalance
	CreatedAt time.Time
}

// AccountBalance is one currency bucket of a wallet.
type AccountBalance struct {
	ID           string
	CurrencyCode string
	Balance      decimal.Decimal
	Status       string
}

// Balances lists every account of a wallet.
type Balances struct {
	WalletID string
	Accounts []AccountBalance
}

// DepositRequest credits a wallet. Amount is the caller-supplied value and is
// validated by the backend.
type DepositRequest struct {
	WalletID     string
	Amount       string
	CurrencyCode string
	Description  string
}

// WithdrawRequest debits a wallet.
type WithdrawRequest struct {
	WalletID     string
	Amount       string
	CurrencyCode string
	Description  string
}

// TransferRequest moves funds between two wallets in one currency.
type TransferRequest struct {
	SourceWalletID      string
	DestinationWalletID string
	Amount              string
	CurrencyCode        string
	Note                string
}

// TransactionResult describes a completed ledger movement. Balances are the
// post-movement balances of the touched accounts when the backend reports them.
type TransactionResult struct {
	TransactionID        string
	Type                 string
	Status               string
	Amount               decimal.Decimal
	CurrencyCode         string
	Note                 string
	SourceAccountID      string
	DestinationAccountID string
	SourceBalance        *decimal.Decimal
	DestinationBalance   *decimal.Decimal
	CreatedAt            time.Time
}

// Counterparty is the other side of a transfer as seen from one wallet.
type Counterparty struct {
	WalletID string
	Username string
	FullName string
}

// TransactionView is a history entry seen from one wallet.
type TransactionView struct {
	ID                   string
	Type                 string
	Direction            string
	Amount               decimal.Decimal
	CurrencyCode         string
	Note                 string
	Status               string
	SourceAccountID      string
	DestinationAccountID string
	Counterparty         *Counterparty
	CreatedAt            time.Time
}

// Profile is the customer behind a wallet.
type Profile struct {
	CustomerID string
	WalletID   string
	Username   string
	FullName   string
	Email      string
	CreatedAt  time.Time
}

// ClampLimit applies the default and maximum page size to a requested limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTransactionLimit
	case limit > MaxTransactionLimit:
		return MaxTransactionLimit
	default:
		return limit
	}
}
