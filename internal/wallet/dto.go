package wallet

import (
	"time"

	"github.com/walletdesk/walletdesk/internal/money"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

type createRequest struct {
	UserID int64 `json:"user_id"`
}

// movementRequest is the body of deposit and withdrawal calls.
type movementRequest struct {
	Amount       money.Input `json:"amount"`
	CurrencyCode string      `json:"currency_code"`
	Description  string      `json:"description"`
}

type transferRequest struct {
	SourceWalletID      string      `json:"source_wallet_id"`
	DestinationWalletID string      `json:"destination_wallet_id"`
	Amount              money.Input `json:"amount"`
	CurrencyCode        string      `json:"currency_code"`
	Note                string      `json:"note"`
}

type accountResponse struct {
	ID           string `json:"id"`
	CurrencyCode string `json:"currency_code"`
	Balance      string `json:"balance"`
	Status       string `json:"status"`
}

type walletResponse struct {
	WalletID  string            `json:"wallet_id"`
	Status    string            `json:"status"`
	Accounts  []accountResponse `json:"accounts"`
	CreatedAt time.Time         `json:"created_at"`
}

type balancesResponse struct {
	WalletID string            `json:"wallet_id"`
	Accounts []accountResponse `json:"accounts"`
}

type transactionResponse struct {
	TransactionID        string    `json:"transaction_id"`
	Type                 string    `json:"type"`
	Status               string    `json:"status"`
	Amount               string    `json:"amount"`
	CurrencyCode         string    `json:"currency_code"`
	Note                 string    `json:"note,omitempty"`
	SourceAccountID      string    `json:"source_account_id,omitempty"`
	DestinationAccountID string    `json:"destination_account_id,omitempty"`
	SourceBalance        string    `json:"source_balance,omitempty"`
	DestinationBalance   string    `json:"destination_balance,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type counterpartyResponse struct {
	WalletID string `json:"wallet_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type historyEntry struct {
	ID                   string                `json:"id"`
	Type                 string                `json:"type"`
	Direction            string                `json:"direction"`
	Amount               string                `json:"amount"`
	CurrencyCode         string                `json:"currency_code"`
	Note                 string                `json:"note,omitempty"`
	Status               string                `json:"status"`
	SourceAccountID      string                `json:"source_account_id,omitempty"`
	DestinationAccountID string                `json:"destination_account_id,omitempty"`
	Counterparty         *counterpartyResponse `json:"counterparty,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
}

type historyResponse struct {
	WalletID     string         `json:"wallet_id"`
	Transactions []historyEntry `json:"transactions"`
}

type profileResponse struct {
	CustomerID string    `json:"customer_id"`
	WalletID   string    `json:"wallet_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

func toAccounts(in []walletapi.AccountBalance) []accountResponse {
	out := make([]accountResponse, 0, len(in))
	for _, a := range in {
		out = append(out, accountResponse{ID: a.ID, CurrencyCode: a.CurrencyCode, Balance: money.Format(a.Balance), Status: a.Status})
	}
	return out
}

func toTransaction(r walletapi.TransactionResult) transactionResponse {
	resp := transactionResponse{
		TransactionID:        r.TransactionID,
		Type:                 r.Type,
		Status:               r.Status,
		Amount:               money.Format(r.Amount),
		CurrencyCode:         r.CurrencyCode,
		Note:                 r.Note,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		CreatedAt:            r.CreatedAt,
	}
	if r.SourceBalance != nil {
		resp.SourceBalance = money.Format(*r.SourceBalance)
	}
	if r.DestinationBalance != nil {
		resp.DestinationBalance = money.Format(*r.DestinationBalance)
	}
	return resp
}

func toHistory(walletID string, in []walletapi.TransactionView) historyResponse {
	out := historyResponse{WalletID: walletID, Transactions: make([]historyEntry, 0, len(in))}
	for _, v := range in {
		entry := historyEntry{
			ID:                   v.ID,
			Type:                 v.Type,
			Direction:            v.Direction,
			Amount:               money.Format(v.Amount),
			CurrencyCode:         v.CurrencyCode,
			Note:                 v.Note,
			Status:               v.Status,
			SourceAccountID:      v.SourceAccountID,
			DestinationAccountID: v.DestinationAccountID,
			CreatedAt:            v.CreatedAt,
		}
		if v.Counterparty != nil {
			entry.Counterparty = &counterpartyResponse{WalletID: v.Counterparty.WalletID, Username: v.Counterparty.Username, FullName: v.Counterparty.FullName}
		}
		out.Transactions = append(out.Transactions, entry)
	}
	return out
}
