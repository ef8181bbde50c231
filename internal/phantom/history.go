package phantom

import (
	"context"

	"github.com/walletdesk/walletdesk/internal/ledger"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// resolver turns ledger transactions into history entries for one wallet,
// caching account and counterparty lookups for the duration of a listing.
type resolver struct {
	engine   *Engine
	own      map[int64]ledger.Account
	accounts map[int64]ledger.Account
	parties  map[int64]*walletapi.Counterparty
}

func (r *resolver) view(ctx context.Context, tx ledger.Transaction) walletapi.TransactionView {
	v := walletapi.TransactionView{
		ID:           tx.ExternalID,
		Type:         string(tx.Type),
		Amount:       tx.Amount,
		CurrencyCode: tx.CurrencyCode,
		Note:         tx.Note,
		Status:       tx.Status,
		CreatedAt:    tx.CreatedAt,
	}
	if tx.SourceAccountID != nil {
		v.SourceAccountID = r.externalID(ctx, *tx.SourceAccountID)
	}
	if tx.DestinationAccountID != nil {
		v.DestinationAccountID = r.externalID(ctx, *tx.DestinationAccountID)
	}

	var other *int64
	if tx.SourceAccountID != nil && r.isOwn(*tx.SourceAccountID) {
		v.Direction = walletapi.DirectionDebit
		other = tx.DestinationAccountID
	} else {
		v.Direction = walletapi.DirectionCredit
		other = tx.SourceAccountID
	}
	if tx.Type == ledger.TypeTransfer && other != nil {
		v.Counterparty = r.counterparty(ctx, *other)
	}
	return v
}

func (r *resolver) isOwn(accountID int64) bool {
	_, ok := r.own[accountID]
	return ok
}

func (r *resolver) lookup(ctx context.Context, accountID int64) (ledger.Account, bool) {
	if acc, ok := r.own[accountID]; ok {
		return acc, true
	}
	if acc, ok := r.accounts[accountID]; ok {
		return acc, true
	}
	acc, err := r.engine.store.AccountByID(ctx, accountID)
	if err != nil {
		return ledger.Account{}, false
	}
	r.accounts[accountID] = acc
	return acc, true
}

func (r *resolver) externalID(ctx context.Context, accountID int64) string {
	if acc, ok := r.lookup(ctx, accountID); ok {
		return acc.ExternalID
	}
	return ""
}

// counterparty follows an account back to its wallet and owner. Missing links
// leave the corresponding fields empty; history is still returned.
func (r *resolver) counterparty(ctx context.Context, accountID int64) *walletapi.Counterparty {
	acc, ok := r.lookup(ctx, accountID)
	if !ok {
		return nil
	}
	if cp, ok := r.parties[acc.WalletID]; ok {
		return cp
	}
	wallet, err := r.engine.store.WalletByID(ctx, acc.WalletID)
	if err != nil {
		r.engine.logger.Warn("counterparty wallet unresolved", "account_id", acc.ExternalID, "error", err)
		return nil
	}
	cp := &walletapi.Counterparty{WalletID: wallet.ExternalID}
	if user, err := r.engine.users.FindByID(ctx, wallet.UserID); err == nil {
		cp.Username = user.Username
		cp.FullName = user.FullName
	}
	r.parties[acc.WalletID] = cp
	return cp
}
