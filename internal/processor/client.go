// Package processor is the client for the external payment processor. It
// implements the same wallet contract as the mock ledger over the
// processor's REST API.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/walletdesk/walletdesk/internal/config"
	"github.com/walletdesk/walletdesk/internal/logging"
	"github.com/walletdesk/walletdesk/internal/money"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// ErrNotConfigured is wrapped by every call made without a processor base URL.
var ErrNotConfigured = errors.New("payment processor is not configured")

const maxResponseBody = 1 << 20

// Client talks to the payment processor. The zero value is not usable; build
// one with New.
type Client struct {
	baseURL string
	secret  []byte
	http    *http.Client
	tokens  *tokenCache
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API and token calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock replaces the clock used for token expiry and request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a processor client from configuration.
func New(cfg config.ProcessorConfig, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  []byte(cfg.SigningSecret),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logging.Component(logger, "processor"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" && c.baseURL != "" {
		tokenURL = c.baseURL + "/oauth/token"
	}
	c.tokens = newTokenCache(clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}, c.http, cfg.TokenMargin, func() time.Time { return c.now() })
	return c
}

// Configured reports whether the client has somewhere to send requests.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// call describes one API request. Currency and amount are used to build
// insufficient-funds errors.
type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	out      any
	currency string
	amount   decimal.Decimal
}

// CreateWallet opens a wallet at the processor for the customer.
func (c *Client) CreateWallet(ctx context.Context, customer walletapi.CustomerInfo) (walletapi.WalletRecord, error) {
	var out walletDTO
	err := c.do(ctx, call{
		op: "create wallet", method: http.MethodPost, path: "/v1/wallets",
		body: createWalletRequest{
			CustomerID: strconv.FormatInt(customer.UserID, 10),
			Username:   customer.Username,
			FullName:   customer.FullName,
			Email:      customer.Email,
		},
		out: &out,
	})
	if err != nil {
		return walletapi.WalletRecord{}, err
	}
	return walletapi.WalletRecord{WalletID: out.ID, Status: out.Status, Accounts: accounts(out.Accounts), CreatedAt: out.CreatedAt}, nil
}

// GetBalances lists the wallet's accounts.
func (c *Client) GetBalances(ctx context.Context, walletID string) (walletapi.Balances, error) {
	var out balancesDTO
	err := c.do(ctx, call{op: "get balances", method: http.MethodGet, path: walletPath(walletID, "balances"), out: &out})
	if err != nil {
		return walletapi.Balances{}, err
	}
	if out.WalletID == "" {
		out.WalletID = walletID
	}
	return walletapi.Balances{WalletID: out.WalletID, Accounts: accounts(out.Accounts)}, nil
}

// DepositMoney credits the wallet.
func (c *Client) DepositMoney(ctx context.Context, req walletapi.DepositRequest) (walletapi.TransactionResult, error) {
	amount, currency, err := parse(req.Amount, req.CurrencyCode)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	var out transactionDTO
	err = c.do(ctx, call{
		op: "deposit", method: http.MethodPost, path: walletPath(req.WalletID, "deposits"),
		body:     movementRequest{Amount: money.Format(amount), CurrencyCode: currency, Description: req.Description},
		out:      &out,
		currency: currency, amount: amount,
	})
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	return out.result(), nil
}

// WithdrawMoney debits the wallet.
func (c *Client) WithdrawMoney(ctx context.Context, req walletapi.WithdrawRequest) (walletapi.TransactionResult, error) {
	amount, currency, err := parse(req.Amount, req.CurrencyCode)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	var out transactionDTO
	err = c.do(ctx, call{
		op: "withdraw", method: http.MethodPost, path: walletPath(req.WalletID, "withdrawals"),
		body:     movementRequest{Amount: money.Format(amount), CurrencyCode: currency, Description: req.Description},
		out:      &out,
		currency: currency, amount: amount,
	})
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	return out.result(), nil
}

// TransferMoney moves funds between two processor wallets.
func (c *Client) TransferMoney(ctx context.Context, req walletapi.TransferRequest) (walletapi.TransactionResult, error) {
	amount, currency, err := parse(req.Amount, req.CurrencyCode)
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	if req.SourceWalletID == req.DestinationWalletID {
		return walletapi.TransactionResult{}, walletapi.Validationf("source and destination wallet must differ")
	}
	var out transactionDTO
	err = c.do(ctx, call{
		op: "transfer", method: http.MethodPost, path: "/v1/transfers",
		body: transferRequest{
			SourceWalletID:      req.SourceWalletID,
			DestinationWalletID: req.DestinationWalletID,
			Amount:              money.Format(amount),
			CurrencyCode:        currency,
			Note:                req.Note,
		},
		out:      &out,
		currency: currency, amount: amount,
	})
	if err != nil {
		return walletapi.TransactionResult{}, err
	}
	return out.result(), nil
}

// GetTransactions returns the wallet's history as reported by the processor.
func (c *Client) GetTransactions(ctx context.Context, walletID string, limit int) ([]walletapi.TransactionView, error) {
	var out transactionsDTO
	err := c.do(ctx, call{
		op: "list transactions", method: http.MethodGet, path: walletPath(walletID, "transactions"),
		query: url.Values{"limit": []string{strconv.Itoa(walletapi.ClampLimit(limit))}},
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	views := make([]walletapi.TransactionView, 0, len(out.Transactions))
	for _, t := range out.Transactions {
		views = append(views, t.view())
	}
	return views, nil
}

// GetCustomerProfile returns the customer behind a processor wallet.
func (c *Client) GetCustomerProfile(ctx context.Context, walletID string) (walletapi.Profile, error) {
	var out profileDTO
	err := c.do(ctx, call{op: "get customer", method: http.MethodGet, path: walletPath(walletID, "customer"), out: &out})
	if err != nil {
		return walletapi.Profile{}, err
	}
	return walletapi.Profile{
		CustomerID: out.CustomerID,
		WalletID:   out.WalletID,
		Username:   out.Username,
		FullName:   out.FullName,
		Email:      out.Email,
		CreatedAt:  out.CreatedAt,
	}, nil
}

// do sends the call, retrying once with a fresh token when the processor
// answers 401.
func (c *Client) do(ctx context.Context, cl call) error {
	if !c.Configured() {
		return &walletapi.BackendError{Op: cl.op, Err: ErrNotConfigured}
	}

	var body []byte
	if cl.body != nil {
		var err error
		if body, err = json.Marshal(cl.body); err != nil {
			return fmt.Errorf("encode %s request: %w", cl.op, err)
		}
	}

	for attempt := 0; ; attempt++ {
		status, respBody, err := c.send(ctx, cl, body)
		if err != nil {
			c.logger.Error("processor request failed", "op", cl.op, "method", cl.method, "path", cl.path, "error", err)
			return &walletapi.BackendError{Op: cl.op, Detail: err.Error(), Err: err}
		}
		if status == http.StatusUnauthorized && attempt == 0 {
			c.logger.Warn("processor rejected token, re-authenticating", "op", cl.op)
			c.tokens.Invalidate()
			continue
		}
		if status >= 200 && status < 300 {
			if cl.out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, cl.out); err != nil {
					c.logger.Error("processor response undecodable", "op", cl.op, "status", status, "response", string(respBody))
					return &walletapi.BackendError{Op: cl.op, StatusCode: status, Detail: string(respBody), Err: err}
				}
			}
			return nil
		}
		return c.failure(cl, status, body, respBody)
	}
}

func (c *Client) send(ctx context.Context, cl call, body []byte) (int, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("obtain access token: %w", err)
	}

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerTimestamp, timestamp)
	if len(c.secret) > 0 {
		req.Header.Set(headerSignature, Sign(c.secret, cl.method, req.URL.RequestURI(), timestamp, body))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// failure maps a non-2xx answer onto the shared error taxonomy.
func (c *Client) failure(cl call, status int, reqBody, respBody []byte) error {
	var e errorDTO
	_ = json.Unmarshal(respBody, &e)
	message := e.Message
	if message == "" {
		message = fmt.Sprintf("%s rejected by payment processor", cl.op)
	}

	switch {
	case status == http.StatusPaymentRequired || e.Code == codeInsufficientFunds:
		currency := cl.currency
		if e.Currency != "" {
			currency = e.Currency
		}
		available := decimal.Zero
		if e.Available != nil {
			available = *e.Available
		}
		return &walletapi.InsufficientFundsError{Currency: currency, Available: available, Requested: cl.amount}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return walletapi.Validationf("%s", message)
	case status == http.StatusNotFound:
		return walletapi.NotFoundf("%s", message)
	}

	c.logger.Error("processor call failed",
		"op", cl.op,
		"method", cl.method,
		"path", cl.path,
		"status", status,
		"request", string(reqBody),
		"response", string(respBody),
	)
	return &walletapi.BackendError{Op: cl.op, StatusCode: status, Detail: string(respBody)}
}

func walletPath(walletID, resource string) string {
	return "/v1/wallets/" + url.PathEscape(walletID) + "/" + resource
}

func parse(rawAmount, rawCurrency string) (decimal.Decimal, string, error) {
	amount, err := money.ParseAmount(rawAmount)
	if err != nil {
		return decimal.Zero, "", err
	}
	currency, err := money.NormalizeCurrency(rawCurrency)
	if err != nil {
		return decimal.Zero, "", err
	}
	return amount, currency, nil
}
