package ledger

import "github.com/shopspring/decimal"

// OverwriteBalance is a test helper that writes a stored balance directly,
// bypassing the transaction history, when using the in-memory ledger.
func OverwriteBalance(l Storage, accountID int64, balance decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acc := mem.accounts[accountID]
		acc.Balance = balance
		mem.accounts[accountID] = acc
	}
}

// DropWallet is a test helper that removes a wallet row and leaves its accounts behind.
func DropWallet(l Storage, walletID int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		delete(mem.wallets, walletID)
	}
}

// DropAccount is a test helper that removes an account row and leaves its transactions behind.
func DropAccount(l Storage, accountID int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		delete(mem.accounts, accountID)
	}
}
