package processor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/walletdesk/walletdesk/internal/walletapi"
)

type createWalletRequest struct {
	CustomerID string `json:"customer_id"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
}

type movementRequest struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	Description  string `json:"description,omitempty"`
}

type transferRequest struct {
	SourceWalletID      string `json:"source_wallet_id"`
	DestinationWalletID string `json:"destination_wallet_id"`
	Amount              string `json:"amount"`
	CurrencyCode        string `json:"currency_code"`
	Note                string `json:"note,omitempty"`
}

type accountDTO struct {
	ID           string          `json:"id"`
	CurrencyCode string          `json:"currency_code"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
}

type walletDTO struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Accounts  []accountDTO `json:"accounts"`
	CreatedAt time.Time    `json:"created_at"`
}

type balancesDTO struct {
	WalletID string       `json:"wallet_id"`
	Accounts []accountDTO `json:"accounts"`
}

type counterpartyDTO struct {
	WalletID string `json:"wallet_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type transactionDTO struct {
	ID                   string           `json:"id"`
	Type                 string           `json:"type"`
	Direction            string           `json:"direction,omitempty"`
	Status               string           `json:"status"`
	Amount               decimal.Decimal  `json:"amount"`
	CurrencyCode         string           `json:"currency_code"`
	Note                 string           `json:"note,omitempty"`
	SourceAccountID      string           `json:"source_account_id,omitempty"`
	DestinationAccountID string           `json:"destination_account_id,omitempty"`
	SourceBalance        *decimal.Decimal `json:"source_balance,omitempty"`
	DestinationBalance   *decimal.Decimal `json:"destination_balance,omitempty"`
	Counterparty         *counterpartyDTO `json:"counterparty,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

type transactionsDTO struct {
	Transactions []transactionDTO `json:"transactions"`
}

type profileDTO struct {
	CustomerID string    `json:"customer_id"`
	WalletID   string    `json:"wallet_id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}

// errorDTO is the processor's error body.
type errorDTO struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Currency  string           `json:"currency,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
}

const codeInsufficientFunds = "insufficient_funds"

func (a accountDTO) toAPI() walletapi.AccountBalance {
	status := a.Status
	if status == "" {
		status = walletapi.StatusActive
	}
	return walletapi.AccountBalance{ID: a.ID, CurrencyCode: a.CurrencyCode, Balance: a.Balance, Status: status}
}

func accounts(in []accountDTO) []walletapi.AccountBalance {
	out := make([]walletapi.AccountBalance, 0, len(in))
	for _, a := range in {
		out = append(out, a.toAPI())
	}
	return out
}

func (t transactionDTO) result() walletapi.TransactionResult {
	return walletapi.TransactionResult{
		TransactionID:        t.ID,
		Type:                 t.Type,
		Status:               t.Status,
		Amount:               t.Amount,
		CurrencyCode:         t.CurrencyCode,
		Note:                 t.Note,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		SourceBalance:        t.SourceBalance,
		DestinationBalance:   t.DestinationBalance,
		CreatedAt:            t.CreatedAt,
	}
}

func (t transactionDTO) view() walletapi.TransactionView {
	v := walletapi.TransactionView{
		ID:                   t.ID,
		Type:                 t.Type,
		Direction:            t.Direction,
		Amount:               t.Amount,
		CurrencyCode:         t.CurrencyCode,
		Note:                 t.Note,
		Status:               t.Status,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		CreatedAt:            t.CreatedAt,
	}
	if t.Counterparty != nil {
		v.Counterparty = &walletapi.Counterparty{WalletID: t.Counterparty.WalletID, Username: t.Counterparty.Username, FullName: t.Counterparty.FullName}
	}
	return v
}
