package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	nextID       int64
	wallets      map[int64]Wallet
	accounts     map[int64]Account
	transactions []Transaction
	now          func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and development runs without Postgres.
func NewInMemory() Storage {
	return &inMemoryLedger{
		wallets:  make(map[int64]Wallet),
		accounts: make(map[int64]Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) id() int64 {
	l.nextID++
	return l.nextID
}

func (l *inMemoryLedger) CreateWallet(_ context.Context, wallet Wallet, accounts []Account) (Wallet, []Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, w := range l.wallets {
		if w.UserID == wallet.UserID {
			return Wallet{}, nil, ErrWalletExists
		}
	}

	created := l.now()
	wallet.ID = l.id()
	wallet.CreatedAt = created
	if wallet.Status == "" {
		wallet.Status = StatusActive
	}

	seen := make(map[string]bool, len(accounts))
	out := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		if seen[acc.CurrencyCode] {
			return Wallet{}, nil, fmt.Errorf("duplicate %s account for wallet %s", acc.CurrencyCode, wallet.ExternalID)
		}
		seen[acc.CurrencyCode] = true
		acc.ID = l.id()
		acc.WalletID = wallet.ID
		acc.CreatedAt = created
		out = append(out, acc)
	}

	l.wallets[wallet.ID] = wallet
	for _, acc := range out {
		l.accounts[acc.ID] = acc
	}
	return wallet, out, nil
}

func (l *inMemoryLedger) WalletByExternalID(_ context.Context, externalID string) (Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, w := range l.wallets {
		if w.ExternalID == externalID {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

func (l *inMemoryLedger) WalletByUser(_ context.Context, userID int64) (Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, w := range l.wallets {
		if w.UserID == userID {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

func (l *inMemoryLedger) WalletByID(_ context.Context, id int64) (Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (l *inMemoryLedger) AccountsByWallet(_ context.Context, walletID int64) ([]Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Account
	for _, acc := range l.accounts {
		if acc.WalletID == walletID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *inMemoryLedger) AccountByCurrency(_ context.Context, walletID int64, currency string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, acc := range l.accounts {
		if acc.WalletID == walletID && acc.CurrencyCode == currency {
			return acc, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (l *inMemoryLedger) AccountByID(_ context.Context, id int64) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (l *inMemoryLedger) Post(_ context.Context, t Transaction) (Posting, error) {
	if err := validatePosting(t); err != nil {
		return Posting{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var source, destination Account
	if t.SourceAccountID != nil {
		acc, ok := l.accounts[*t.SourceAccountID]
		if !ok {
			return Posting{}, ErrAccountNotFound
		}
		if acc.CurrencyCode != t.CurrencyCode {
			return Posting{}, ErrCurrencyMismatch
		}
		if acc.Balance.LessThan(t.Amount) {
			return Posting{}, &BalanceError{AccountID: acc.ID, Available: acc.Balance}
		}
		source = acc
	}
	if t.DestinationAccountID != nil {
		acc, ok := l.accounts[*t.DestinationAccountID]
		if !ok {
			return Posting{}, ErrAccountNotFound
		}
		if acc.CurrencyCode != t.CurrencyCode {
			return Posting{}, ErrCurrencyMismatch
		}
		if acc.Balance.Add(t.Amount).GreaterThan(MaxBalance) {
			return Posting{}, ErrBalanceOverflow
		}
		destination = acc
	}

	t.ID = l.id()
	t.CreatedAt = l.now()
	if t.Status == "" {
		t.Status = StatusCompleted
	}

	var posting Posting
	if t.SourceAccountID != nil {
		source.Balance = source.Balance.Sub(t.Amount)
		l.accounts[source.ID] = source
		posting.Source = &source
	}
	if t.DestinationAccountID != nil {
		destination.Balance = destination.Balance.Add(t.Amount)
		l.accounts[destination.ID] = destination
		posting.Destination = &destination
	}
	l.transactions = append(l.transactions, t)
	posting.Transaction = t
	return posting, nil
}

func (l *inMemoryLedger) TransactionsByAccounts(_ context.Context, accountIDs []int64, limit int) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	wanted := make(map[int64]bool, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = true
	}

	var out []Transaction
	for i := len(l.transactions) - 1; i >= 0; i-- {
		t := l.transactions[i]
		if (t.SourceAccountID != nil && wanted[*t.SourceAccountID]) ||
			(t.DestinationAccountID != nil && wanted[*t.DestinationAccountID]) {
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (l *inMemoryLedger) Ping(_ context.Context) error {
	return nil
}

func (l *inMemoryLedger) CountRows(_ context.Context, table string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch table {
	case TableWallets:
		return int64(len(l.wallets)), nil
	case TableAccounts:
		return int64(len(l.accounts)), nil
	case TableTransactions:
		return int64(len(l.transactions)), nil
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
}

func (l *inMemoryLedger) Columns(_ context.Context, table string) ([]string, error) {
	if !knownTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	return append([]string(nil), ExpectedColumns[table]...), nil
}

func (l *inMemoryLedger) AccountFlows(_ context.Context, walletID int64) ([]AccountFlow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	flows := make(map[int64]*AccountFlow)
	for _, acc := range l.accounts {
		if walletID != 0 && acc.WalletID != walletID {
			continue
		}
		flows[acc.ID] = &AccountFlow{Account: acc, Credits: decimal.Zero, Debits: decimal.Zero}
	}
	for _, t := range l.transactions {
		if t.DestinationAccountID != nil {
			if f, ok := flows[*t.DestinationAccountID]; ok {
				f.Credits = f.Credits.Add(t.Amount)
			}
		}
		if t.SourceAccountID != nil {
			if f, ok := flows[*t.SourceAccountID]; ok {
				f.Debits = f.Debits.Add(t.Amount)
			}
		}
	}

	out := make([]AccountFlow, 0, len(flows))
	for _, f := range flows {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account.ID < out[j].Account.ID })
	return out, nil
}

func (l *inMemoryLedger) SetBalance(_ context.Context, accountID int64, expected, balance decimal.Decimal) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[accountID]
	if !ok {
		return false, ErrAccountNotFound
	}
	if !acc.Balance.Equal(expected) {
		return false, nil
	}
	if balance.GreaterThan(MaxBalance) {
		return false, ErrBalanceOverflow
	}
	acc.Balance = balance
	l.accounts[accountID] = acc
	return true, nil
}

func (l *inMemoryLedger) OrphanAccounts(_ context.Context) ([]Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Account
	for _, acc := range l.accounts {
		if _, ok := l.wallets[acc.WalletID]; !ok {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *inMemoryLedger) OrphanTransactions(_ context.Context) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Transaction
	for _, t := range l.transactions {
		if t.SourceAccountID != nil {
			if _, ok := l.accounts[*t.SourceAccountID]; !ok {
				out = append(out, t)
				continue
			}
		}
		if t.DestinationAccountID != nil {
			if _, ok := l.accounts[*t.DestinationAccountID]; !ok {
				out = append(out, t)
			}
		}
	}
	return out, nil
}
