// Package phantom is the local mock ledger engine. It implements the wallet
// contract against ledger storage so wallets can run without the external
// payment processor.
package phantom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/walletdesk/walletdesk/internal/identity"
	"github.com/walletdesk/walletdesk/internal/ledger"
	"github.com/walletdesk/walletdesk/internal/logging"
	"github.com/walletdesk/walletdesk/internal/money"
	"github.com/walletdesk/walletdesk/internal/notification"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

const (
	accountPrefix     = walletapi.PhantomPrefix + "acct-"
	transactionPrefix = walletapi.PhantomPrefix + "tx-"
)

// DefaultCurrencies is the account set created for every wallet unless configured otherwise.
var DefaultCurrencies = []string{"USD", "EUR", "GBP", "CAD"}

// Engine implements walletapi.Backend on ledger storage.
type Engine struct {
	store      ledger.Store
	users      identity.Repository
	currencies []string
	supported  map[string]bool
	notifier   notification.Notifier
	logger     *slog.Logger
	newID      func() string
}

// New builds an engine. An empty currency list falls back to DefaultCurrencies.
func New(store ledger.Store, users identity.Repository, currencies []string, notifier notification.Notifier, logger *slog.Logger) *Engine {
	if len(currencies) == 0 {
		currencies = DefaultCurrencies
	}
	supported := make(map[string]bool, len(currencies))
	for _, c := range currencies {
		supported[c] = true
	}
	return &Engine{
		store:      store,
		users:      users,
		currencies: append([]string(nil), currencies...),
		supported:  supported,
		notifier:   notifier,
		logger:     logging.Component(logger, "phantom"),
		newID:      func() string { return uuid.New().String() },
	}
}

// Currencies returns the currencies every new wallet receives an account for.
func (e *Engine) Currencies() []string {
	return append([]string(nil), e.currencies...)
}

// CreateWallet returns the user's wallet, creating it with one zero-balance
// account per supported currency when the user has none yet.
func (e *Engine) CreateWallet(ctx context.Context, customer walletapi.CustomerInfo) (walletapi.WalletRecord, error) {
	if customer.UserID <= 0 {
		return walletapi.WalletRecord{}, walletapi.Validationf("user id must be positive")
	}
	if _, err := e.users.FindByID(ctx, customer.UserID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return walletapi.WalletRecord{}, walletapi.NotFoundf("user %d not found", customer.UserID)
		}
		return walletapi.WalletRecord{}, fmt.Errorf("resolve user %d: %w", customer.UserID, err)
	}

	existing, err := e.store.WalletByUser(ctx, customer.UserID)
	if err == nil {
		return e.walletRecord(ctx, existing)
	}
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		return walletapi.WalletRecord{}, fmt.Errorf("lookup wallet for user %d: %w", customer.UserID, err)
	}

	accounts := make([]ledger.Account, 0, len(e.currencies))
	for _, currency := range e.currencies {
		accounts = append(accounts, ledger.Account{
			ExternalID:   accountPrefix + e.newID(),
			CurrencyCode: currency,
			Balance:      decimal.Zero,
		})
	}
	wallet, created, err := e.store.CreateWallet(ctx, ledger.Wallet{
		UserID:     customer.UserID,
		ExternalID: walletapi.PhantomPrefix + e.newID(),
		Status:     ledger.StatusActive,
	}, accounts)
	if errors.Is(err, ledger.ErrWalletExists) {
		// Lost a race with a concurrent request for the same user.
		existing, err := e.store.WalletByUser(ctx, customer.UserID)
		if err != nil {
			return walletapi.WalletRecord{}, fmt.Errorf("lookup wallet for user %d: %w", customer.UserID, err)
		}
		return e.walletRecord(ctx, existing)
	}
	if err != nil {
		return walletapi.WalletRecord{}, fmt.Errorf("create wallet for user %d: %w", customer.UserID, err)
	}

	e.logger.Info("wallet created", "wallet_id", wallet.ExternalID, "user_id", customer.UserID, "accounts", len(created))
	return walletapi.WalletRecord{
		WalletID:  wallet.ExternalID,
		Status:    wallet.Status,
		Accounts:  accountBalances(created),
		CreatedAt: wallet.CreatedAt,
	}, nil
}

// GetBalances lists every account of the wallet.
func (e *Engine) GetBalances(ctx context.Context, walletID string) (walletapi.Balances, error) {
	wallet, err := e.wallet(ctx, walletID)
	if err != nil {
		return walletapi.Balances{}, err
	}
	accounts, err := e.store.AccountsByWallet(ctx, wallet.ID)
	if err != nil {
		return walletapi.Balances{}, fmt.Errorf("list accounts of %s: %w", walletID, err)
	}
	return walletapi.Balances{WalletID: wallet.ExternalID, Accounts: accountBalances(accounts)}, nil
}

// DepositMoney credits the wallet's account in the requested currency.
func (e *Engine) DepositMoney(ctx context.Context, req walletapi.DepositRequest) (walletapi.TransactionResult, error) {
	amount, currency, err := e.parse(req.Amount, req.CurrencyCode)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	wallet, err := e.wallet(ctx, req.WalletID)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	account, err := e.account(ctx, wallet, currency)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}

	posting, err := e.store.Post(ctx, ledger.Transaction{
		ExternalID:           transactionPrefix + e.newID(),
		Type:                 ledger.TypeDeposit,
		DestinationAccountID: &account.ID,
		Amount:               amount,
		CurrencyCode:         currency,
		Note:                 req.Description,
	})
	if err != nil {
		return walletapi.TransactionResult{}, translate(err, currency, amount)
	}
	e.logger.Info("deposit completed", "wallet_id", wallet.ExternalID, "transaction_id", posting.Transaction.ExternalID,
		"amount", money.Format(amount), "currency", currency)
	return result(posting), nil
}

// WithdrawMoney debits the wallet's account in the requested currency. The
// balance never goes below zero.
func (e *Engine) WithdrawMoney(ctx context.Context, req walletapi.WithdrawRequest) (walletapi.TransactionResult, error) {
	amount, currency, err := e.parse(req.Amount, req.CurrencyCode)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	wallet, err := e.wallet(ctx, req.WalletID)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	account, err := e.account(ctx, wallet, currency)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}

	posting, err := e.store.Post(ctx, ledger.Transaction{
		ExternalID:      transactionPrefix + e.newID(),
		Type:            ledger.TypeWithdrawal,
		SourceAccountID: &account.ID,
		Amount:          amount,
		CurrencyCode:    currency,
		Note:            req.Description,
	})
	if err != nil {
		return walletapi.TransactionResult{}, translate(err, currency, amount)
	}
	e.logger.Info("withdrawal completed", "wallet_id", wallet.ExternalID, "transaction_id", posting.Transaction.ExternalID,
		"amount", money.Format(amount), "currency", currency)
	return result(posting), nil
}

// TransferMoney moves funds between the same-currency accounts of two
// wallets. The debit, the credit and the transaction record are one unit.
func (e *Engine) TransferMoney(ctx context.Context, req walletapi.TransferRequest) (walletapi.TransactionResult, error) {
	amount, currency, err := e.parse(req.Amount, req.CurrencyCode)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	if req.SourceWalletID == req.DestinationWalletID {
		return walletapi.TransactionResult{}, walletapi.Validationf("source and destination wallet must differ")
	}
	source, err := e.wallet(ctx, req.SourceWalletID)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	destination, err := e.wallet(ctx, req.DestinationWalletID)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	from, err := e.account(ctx, source, currency)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	to, err := e.account(ctx, destination, currency)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}

	posting, err := e.store.Post(ctx, ledger.Transaction{
		ExternalID:           transactionPrefix + e.newID(),
		Type:                 ledger.TypeTransfer,
		SourceAccountID:      &from.ID,
		DestinationAccountID: &to.ID,
		Amount:               amount,
		CurrencyCode:         currency,
		Note:                 req.Note,
	})
	if err != nil {
		return walletapi.TransactionResult{}, translate(err, currency, amount)
	}
	e.logger.Info("transfer completed", "source_wallet_id", source.ExternalID, "destination_wallet_id", destination.ExternalID,
		"transaction_id", posting.Transaction.ExternalID, "amount", money.Format(amount), "currency", currency)

	if e.notifier != nil {
		msg := notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: destination.ExternalID,
			Body:        fmt.Sprintf("You received %s %s from wallet %s", money.Format(amount), currency, source.ExternalID),
		}
		if err := e.notifier.Send(ctx, msg); err != nil {
			e.logger.Warn("transfer notification failed", "wallet_id", destination.ExternalID, "error", err)
		}
	}
	return result(posting), nil
}

// GetTransactions returns the wallet's history, newest first. Transfers carry
// the counterparty wallet and its owner's display names.
func (e *Engine) GetTransactions(ctx context.Context, walletID string, limit int) ([]walletapi.TransactionView, error) {
	wallet, err := e.wallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	accounts, err := e.store.AccountsByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("list accounts of %s: %w", walletID, err)
	}
	if len(accounts) == 0 {
		return []walletapi.TransactionView{}, nil
	}

	own := make(map[int64]ledger.Account, len(accounts))
	ids := make([]int64, 0, len(accounts))
	for _, acc := range accounts {
		own[acc.ID] = acc
		ids = append(ids, acc.ID)
	}

	txs, err := e.store.TransactionsByAccounts(ctx, ids, walletapi.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", walletID, err)
	}

	r := &resolver{engine: e, own: own, accounts: map[int64]ledger.Account{}, parties: map[int64]*walletapi.Counterparty{}}
	views := make([]walletapi.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, r.view(ctx, tx))
	}
	return views, nil
}

// GetCustomerProfile resolves the owner of the wallet.
func (e *Engine) GetCustomerProfile(ctx context.Context, walletID string) (walletapi.Profile, error) {
	wallet, err := e.wallet(ctx, walletID)
	if err != nil {
		return walletapi.Profile{}, err
	}
	user, err := e.users.FindByID(ctx, wallet.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return walletapi.Profile{}, walletapi.NotFoundf("owner of wallet %s not found", walletID)
		}
		return walletapi.Profile{}, fmt.Errorf("resolve owner of %s: %w", walletID, err)
	}
	return walletapi.Profile{
		CustomerID: strconv.FormatInt(user.ID, 10),
		WalletID:   wallet.ExternalID,
		Username:   user.Username,
		FullName:   user.FullName,
		Email:      user.Email,
		CreatedAt:  user.CreatedAt,
	}, nil
}

func (e *Engine) parse(rawAmount, rawCurrency string) (decimal.Decimal, string, error) {
	amount, err := money.ParseAmount(rawAmount)
	if err != nil {
		return decimal.Zero, "", err
	}
	currency, err := money.NormalizeCurrency(rawCurrency)
	if err != nil {
		return decimal.Zero, "", err
	}
	if !e.supported[currency] {
		return decimal.Zero, "", walletapi.Validationf("currency %s is not supported", currency)
	}
	return amount, currency, nil
}

func (e *Engine) wallet(ctx context.Context, walletID string) (ledger.Wallet, error) {
	wallet, err := e.store.WalletByExternalID(ctx, walletID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return ledger.Wallet{}, walletapi.NotFoundf("wallet %s not found", walletID)
	}
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("lookup wallet %s: %w", walletID, err)
	}
	return wallet, nil
}

func (e *Engine) account(ctx context.Context, wallet ledger.Wallet, currency string) (ledger.Account, error) {
	account, err := e.store.AccountByCurrency(ctx, wallet.ID, currency)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.Account{}, walletapi.NotFoundf("wallet %s has no %s account", wallet.ExternalID, currency)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("lookup %s account of %s: %w", currency, wallet.ExternalID, err)
	}
	return account, nil
}

func (e *Engine) walletRecord(ctx context.Context, wallet ledger.Wallet) (walletapi.WalletRecord, error) {
	accounts, err := e.store.AccountsByWallet(ctx, wallet.ID)
	if err != nil {
		return walletapi.WalletRecord{}, fmt.Errorf("list accounts of %s: %w", wallet.ExternalID, err)
	}
	return walletapi.WalletRecord{
		WalletID:  wallet.ExternalID,
		Status:    wallet.Status,
		Accounts:  accountBalances(accounts),
		CreatedAt: wallet.CreatedAt,
	}, nil
}

// translate maps ledger failures onto the shared error taxonomy.
func translate(err error, currency string, requested decimal.Decimal) error {
	var balErr *ledger.BalanceError
	switch {
	case errors.As(err, &balErr):
		return &walletapi.InsufficientFundsError{Currency: currency, Available: balErr.Available, Requested: requested}
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return walletapi.NotFoundf("%v", err)
	case errors.Is(err, ledger.ErrCurrencyMismatch), errors.Is(err, ledger.ErrInvalidPosting):
		return walletapi.Validationf("%v", err)
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return walletapi.Validationf("%s balance would exceed %s", currency, money.Format(ledger.MaxBalance))
	default:
		return fmt.Errorf("post transaction: %w", err)
	}
}

func accountBalances(accounts []ledger.Account) []walletapi.AccountBalance {
	out := make([]walletapi.AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, walletapi.AccountBalance{
			ID:           acc.ExternalID,
			CurrencyCode: acc.CurrencyCode,
			Balance:      acc.Balance,
			Status:       walletapi.StatusActive,
		})
	}
	return out
}

func result(p ledger.Posting) walletapi.TransactionResult {
	res := walletapi.TransactionResult{
		TransactionID: p.Transaction.ExternalID,
		Type:          string(p.Transaction.Type),
		Status:        p.Transaction.Status,
		Amount:        p.Transaction.Amount,
		CurrencyCode:  p.Transaction.CurrencyCode,
		Note:          p.Transaction.Note,
		CreatedAt:     p.Transaction.CreatedAt,
	}
	if p.Source != nil {
		balance := p.Source.Balance
		res.SourceAccountID = p.Source.ExternalID
		res.SourceBalance = &balance
	}
	if p.Destination != nil {
		balance := p.Destination.Balance
		res.DestinationAccountID = p.Destination.ExternalID
		res.DestinationBalance = &balance
	}
	return res
}
