package diagnostics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/walletdesk/walletdesk/internal/identity"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

// unsupportedCurrency is a well-formed code no wallet is opened for.
const unsupportedCurrency = "XXX"

// SelfTest provisions a throwaway user and wallet, then drives the
// insufficient-funds, unknown-currency and wallet-not-found paths and checks
// each fails with the expected error kind.
func (e *Engine) SelfTest(ctx context.Context) CheckResult {
	res := CheckResult{Name: CheckSelfTest, Details: map[string]any{}}
	if e.fixtures == nil || e.fixtures.Users == nil || e.fixtures.Backend == nil {
		res.Message = "self-test fixtures not configured"
		return e.log(res)
	}

	suffix := uuid.NewString()[:8]
	user, err := e.fixtures.Users.Provision(ctx, identity.ProvisionInput{
		Username:      "selftest-" + suffix,
		FullName:      "Diagnostics Self Test",
		Password:      uuid.NewString(),
		UsePhantomPay: true,
	})
	if err != nil {
		res.Message = fmt.Sprintf("provision fixture user: %v", err)
		return e.log(res)
	}
	wallet, err := e.fixtures.Backend.CreateWallet(ctx, walletapi.CustomerInfo{UserID: user.ID, Username: user.Username, FullName: user.FullName})
	if err != nil {
		res.Message = fmt.Sprintf("create fixture wallet: %v", err)
		return e.log(res)
	}
	if len(wallet.Accounts) == 0 {
		res.Message = "fixture wallet has no accounts"
		return e.log(res)
	}
	res.Details["fixture_wallet_id"] = wallet.WalletID
	currency := wallet.Accounts[0].CurrencyCode

	cases := []struct {
		name string
		want error
		run  func() error
	}{
		{"insufficient_funds", walletapi.ErrInsufficientFunds, func() error {
			_, err := e.fixtures.Backend.WithdrawMoney(ctx, walletapi.WithdrawRequest{WalletID: wallet.WalletID, Amount: "1.00", CurrencyCode: currency})
			return err
		}},
		{"unsupported_currency", walletapi.ErrValidation, func() error {
			_, err := e.fixtures.Backend.DepositMoney(ctx, walletapi.DepositRequest{WalletID: wallet.WalletID, Amount: "1.00", CurrencyCode: unsupportedCurrency})
			return err
		}},
		{"wallet_not_found", walletapi.ErrNotFound, func() error {
			_, err := e.fixtures.Backend.GetBalances(ctx, walletapi.PhantomPrefix+"missing-"+suffix)
			return err
		}},
	}

	failed := 0
	for _, c := range cases {
		err := c.run()
		switch {
		case errors.Is(err, c.want):
			res.Details[c.name] = "passed"
		case err == nil:
			failed++
			res.Details[c.name] = "failed: operation succeeded"
		default:
			failed++
			res.Details[c.name] = fmt.Sprintf("failed: got %v", err)
		}
	}
	res.OK = failed == 0
	if res.OK {
		res.Message = fmt.Sprintf("%d error paths behave as expected", len(cases))
	} else {
		res.Message = fmt.Sprintf("%d of %d error paths misbehaved", failed, len(cases))
	}
	return e.log(res)
}
