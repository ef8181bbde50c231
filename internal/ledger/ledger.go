package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound indicates no wallet matches the lookup.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrAccountNotFound indicates no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrWalletExists occurs when a user already owns a wallet.
	ErrWalletExists = errors.New("wallet already exists for user")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCurrencyMismatch occurs when a posting's currency differs from an account's currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidPosting rejects transactions whose shape does not match their type.
	ErrInvalidPosting = errors.New("invalid posting")

	// ErrBalanceOverflow occurs when a credit would push a balance past MaxBalance.
	ErrBalanceOverflow = errors.New("balance would exceed the storable maximum")
)

// MaxBalance is the largest balance a NUMERIC(18,2) column holds.
var MaxBalance = decimal.RequireFromString("9999999999999999.99")

const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
)

// TransactionType enumerates ledger movements.
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeTransfer   TransactionType = "TRANSFER"
)

// Wallet is one customer's ledger container.
type Wallet struct {
	ID         int64
	UserID     int64
	ExternalID string
	Status     string
	CreatedAt  time.Time
}

// Account is a per-currency balance bucket of a wallet.
type Account struct {
	ID           int64
	WalletID     int64
	ExternalID   string
	CurrencyCode string
	Balance      decimal.Decimal
	CreatedAt    time.Time
}

// Transaction is an immutable record of one ledger movement. Source is absent
// for deposits and Destination is absent for withdrawals.
type Transaction struct {
	ID                   int64
	ExternalID           string
	Type                 TransactionType
	SourceAccountID      *int64
	DestinationAccountID *int64
	Amount               decimal.Decimal
	CurrencyCode         string
	Note                 string
	Status               string
	CreatedAt            time.Time
}

// Posting is the outcome of Store.Post: the inserted transaction and the
// touched accounts after mutation.
type Posting struct {
	Transaction Transaction
	Source      *Account
	Destination *Account
}

// AccountFlow pairs an account with the totals of the transactions touching it.
type AccountFlow struct {
	Account Account
	Credits decimal.Decimal
	Debits  decimal.Decimal
}

// Calculated is the balance implied by transaction history.
func (f AccountFlow) Calculated() decimal.Decimal {
	return f.Credits.Sub(f.Debits)
}

// BalanceError reports the balance available when a debit was refused.
type BalanceError struct {
	AccountID int64
	Available decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient funds in account %d: available %s", e.AccountID, e.Available.StringFixed(2))
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *BalanceError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Store defines the ledger operations used by the wallet engine.
type Store interface {
	// CreateWallet inserts the wallet and its accounts atomically and returns
	// them with identifiers assigned.
	CreateWallet(ctx context.Context, wallet Wallet, accounts []Account) (Wallet, []Account, error)
	WalletByExternalID(ctx context.Context, externalID string) (Wallet, error)
	WalletByUser(ctx context.Context, userID int64) (Wallet, error)
	WalletByID(ctx context.Context, id int64) (Wallet, error)
	AccountsByWallet(ctx context.Context, walletID int64) ([]Account, error)
	AccountByCurrency(ctx context.Context, walletID int64, currency string) (Account, error)
	AccountByID(ctx context.Context, id int64) (Account, error)
	// Post applies the balance mutations of t and inserts t as one unit.
	Post(ctx context.Context, t Transaction) (Posting, error)
	// TransactionsByAccounts returns transactions touching any of the accounts, newest first.
	TransactionsByAccounts(ctx context.Context, accountIDs []int64, limit int) ([]Transaction, error)
}

// Inspector defines read and repair access used by diagnostics.
type Inspector interface {
	Ping(ctx context.Context) error
	// CountRows returns the row count of one of the core tables.
	CountRows(ctx context.Context, table string) (int64, error)
	// Columns lists the columns of one of the core tables.
	Columns(ctx context.Context, table string) ([]string, error)
	// AccountFlows returns credit and debit totals per account. A walletID of 0 selects every account.
	AccountFlows(ctx context.Context, walletID int64) ([]AccountFlow, error)
	// SetBalance overwrites a stored balance if it still equals expected.
	SetBalance(ctx context.Context, accountID int64, expected, balance decimal.Decimal) (bool, error)
	OrphanAccounts(ctx context.Context) ([]Account, error)
	OrphanTransactions(ctx context.Context) ([]Transaction, error)
}

// Storage is a ledger backend offering both engine and diagnostic access.
type Storage interface {
	Store
	Inspector
}

const (
	TableWallets      = "wallets"
	TableAccounts     = "accounts"
	TableTransactions = "transactions"
)

// ExpectedColumns lists the columns diagnostics require on each core table.
var ExpectedColumns = map[string][]string{
	TableWallets:      {"id", "user_id", "wallet_id", "status", "created_at"},
	TableAccounts:     {"id", "wallet_id", "account_id", "currency_code", "balance", "created_at"},
	TableTransactions: {"id", "transaction_id", "source_account_id", "destination_account_id", "amount", "currency_code", "type", "note", "status", "created_at"},
}

// CoreTables returns the core table names in a stable order.
func CoreTables() []string {
	return []string{TableWallets, TableAccounts, TableTransactions}
}

func validatePosting(t Transaction) error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPosting)
	}
	switch t.Type {
	case TypeDeposit:
		if t.SourceAccountID != nil || t.DestinationAccountID == nil {
			return fmt.Errorf("%w: deposit needs a destination only", ErrInvalidPosting)
		}
	case TypeWithdrawal:
		if t.SourceAccountID == nil || t.DestinationAccountID != nil {
			return fmt.Errorf("%w: withdrawal needs a source only", ErrInvalidPosting)
		}
	case TypeTransfer:
		if t.SourceAccountID == nil || t.DestinationAccountID == nil {
			return fmt.Errorf("%w: transfer needs a source and a destination", ErrInvalidPosting)
		}
		if *t.SourceAccountID == *t.DestinationAccountID {
			return fmt.Errorf("%w: transfer source and destination are the same account", ErrInvalidPosting)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPosting, t.Type)
	}
	return nil
}

func knownTable(table string) bool {
	_, ok := ExpectedColumns[table]
	return ok
}
