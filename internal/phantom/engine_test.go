package phantom

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/walletdesk/walletdesk/internal/identity"
	"github.com/walletdesk/walletdesk/internal/ledger"
	"github.com/walletdesk/walletdesk/internal/logging"
	"github.com/walletdesk/walletdesk/internal/money"
	"github.com/walletdesk/walletdesk/internal/notification"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

type fixture struct {
	store    ledger.Storage
	users    identity.Repository
	notifier *notification.Recorder
	engine   *Engine
}

func newFixture(t *testing.T, currencies ...string) *fixture {
	t.Helper()
	f := &fixture{store: ledger.NewInMemory(), users: identity.NewMemoryRepository(), notifier: &notification.Recorder{}}
	f.engine = New(f.store, f.users, currencies, f.notifier, logging.Discard())
	return f
}

func (f *fixture) wallet(t *testing.T, username string) walletapi.WalletRecord {
	t.Helper()
	ctx := context.Background()
	user, err := f.users.Create(ctx, identity.User{Username: username, FullName: "Full " + username, UsePhantomPay: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	w, err := f.engine.CreateWallet(ctx, walletapi.CustomerInfo{UserID: user.ID, Username: username})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

func (f *fixture) balance(t *testing.T, walletID, currency string) decimal.Decimal {
	t.Helper()
	b, err := f.engine.GetBalances(context.Background(), walletID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	for _, acc := range b.Accounts {
		if acc.CurrencyCode == currency {
			return acc.Balance
		}
	}
	t.Fatalf("no %s account in %s", currency, walletID)
	return decimal.Zero
}

func (f *fixture) deposit(t *testing.T, walletID, amount string) {
	t.Helper()
	if _, err := f.engine.DepositMoney(context.Background(), walletapi.DepositRequest{WalletID: walletID, Amount: amount, CurrencyCode: "USD"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateWalletOpensZeroBalanceAccounts(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "user42")

	ref, err := walletapi.ParseRef(w.WalletID)
	if err != nil || ref.System() != walletapi.SystemPhantom {
		t.Fatalf("wallet id %s does not route to the mock ledger: %v", w.WalletID, err)
	}
	if w.Status != walletapi.StatusActive {
		t.Fatalf("expected ACTIVE wallet, got %s", w.Status)
	}
	if len(w.Accounts) != 4 {
		t.Fatalf("expected 4 accounts, got %d", len(w.Accounts))
	}
	for i, currency := range []string{"USD", "EUR", "GBP", "CAD"} {
		acc := w.Accounts[i]
		if acc.CurrencyCode != currency || !acc.Balance.IsZero() || acc.Balance.StringFixed(2) != "0.00" {
			t.Fatalf("unexpected account %+v", acc)
		}
	}
}

func TestCurrenciesFallBackToDefaults(t *testing.T) {
	if got := newFixture(t).engine.Currencies(); fmt.Sprint(got) != fmt.Sprint(DefaultCurrencies) {
		t.Fatalf("expected default currencies, got %v", got)
	}
	e := newFixture(t, "JPY", "USD").engine
	got := e.Currencies()
	got[0] = "XXX"
	if again := e.Currencies(); fmt.Sprint(again) != "[JPY USD]" {
		t.Fatalf("currency list shared with caller: %v", again)
	}
}

func TestCreateWalletReturnsExistingWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _ := f.users.Create(ctx, identity.User{Username: "ada"})

	first, err := f.engine.CreateWallet(ctx, walletapi.CustomerInfo{UserID: user.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.engine.CreateWallet(ctx, walletapi.CustomerInfo{UserID: user.ID})
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if first.WalletID != second.WalletID {
		t.Fatalf("expected the same wallet, got %s and %s", first.WalletID, second.WalletID)
	}
	if n, _ := f.store.CountRows(ctx, ledger.TableWallets); n != 1 {
		t.Fatalf("expected one wallet row, got %d", n)
	}
}

func TestCreateWalletUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateWallet(context.Background(), walletapi.CustomerInfo{UserID: 404})
	if !errors.Is(err, walletapi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDepositRecordsTransaction(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "w1")

	res, err := f.engine.DepositMoney(context.Background(), walletapi.DepositRequest{WalletID: w.WalletID, Amount: "100.00", CurrencyCode: "usd", Description: "top up"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Type != walletapi.TypeDeposit || res.Status != walletapi.StatusCompleted || res.SourceAccountID != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.DestinationAccountID != w.Accounts[0].ID || res.DestinationBalance == nil || !res.DestinationBalance.Equal(dec("100")) {
		t.Fatalf("unexpected destination in %+v", res)
	}
	if got := f.balance(t, w.WalletID, "USD"); got.StringFixed(2) != "100.00" {
		t.Fatalf("expected 100.00, got %s", got)
	}

	history, err := f.engine.GetTransactions(context.Background(), w.WalletID, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Type != walletapi.TypeDeposit || history[0].DestinationAccountID != w.Accounts[0].ID {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestTransferMovesExactAmount(t *testing.T) {
	f := newFixture(t)
	w1 := f.wallet(t, "w1")
	w2 := f.wallet(t, "w2")
	f.deposit(t, w1.WalletID, "100.00")

	res, err := f.engine.TransferMoney(context.Background(), walletapi.TransferRequest{
		SourceWalletID: w1.WalletID, DestinationWalletID: w2.WalletID, Amount: "25.50", CurrencyCode: "USD", Note: "lunch",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Type != walletapi.TypeTransfer || res.SourceAccountID == "" || res.DestinationAccountID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := f.balance(t, w1.WalletID, "USD"); got.StringFixed(2) != "74.50" {
		t.Fatalf("expected source 74.50, got %s", got)
	}
	if got := f.balance(t, w2.WalletID, "USD"); got.StringFixed(2) != "25.50" {
		t.Fatalf("expected destination 25.50, got %s", got)
	}

	msgs := f.notifier.Messages()
	if len(msgs) != 1 || msgs[0].Destination != w2.WalletID || msgs[0].Kind != notification.KindTransferReceived {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "w1")
	f.deposit(t, w.WalletID, "74.50")

	_, err := f.engine.WithdrawMoney(context.Background(), walletapi.WithdrawRequest{WalletID: w.WalletID, Amount: "1000.00", CurrencyCode: "USD"})
	var insufficient *walletapi.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if !insufficient.Available.Equal(dec("74.50")) || !insufficient.Requested.Equal(dec("1000")) || insufficient.Currency != "USD" {
		t.Fatalf("unexpected error detail %+v", insufficient)
	}
	if got := f.balance(t, w.WalletID, "USD"); got.StringFixed(2) != "74.50" {
		t.Fatalf("balance changed to %s", got)
	}
}

func TestDepositPastMaxBalance(t *testing.T) {
	if !money.MaxAmount.Equal(ledger.MaxBalance) {
		t.Fatalf("accepted amount cap %s differs from balance cap %s", money.MaxAmount, ledger.MaxBalance)
	}
	f := newFixture(t)
	w := f.wallet(t, "rich")
	f.deposit(t, w.WalletID, "9999999999999999.00")

	_, err := f.engine.DepositMoney(context.Background(), walletapi.DepositRequest{WalletID: w.WalletID, Amount: "5.00", CurrencyCode: "USD"})
	if !errors.Is(err, walletapi.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := f.balance(t, w.WalletID, "USD"); got.StringFixed(2) != "9999999999999999.00" {
		t.Fatalf("balance changed to %s", got)
	}
}

func TestValidationAndLookupFailures(t *testing.T) {
	f := newFixture(t)
	w1 := f.wallet(t, "w1")
	w2 := f.wallet(t, "w2")
	ctx := context.Background()

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"non-numeric amount", deposit(ctx, f.engine, w1.WalletID, "abc", "USD"), walletapi.ErrValidation},
		{"zero amount", deposit(ctx, f.engine, w1.WalletID, "0.001", "USD"), walletapi.ErrValidation},
		{"negative amount", deposit(ctx, f.engine, w1.WalletID, "-5", "USD"), walletapi.ErrValidation},
		{"unsupported currency", deposit(ctx, f.engine, w1.WalletID, "5", "JPY"), walletapi.ErrValidation},
		{"unknown wallet", deposit(ctx, f.engine, "phantom-missing", "5", "USD"), walletapi.ErrNotFound},
		{"same wallet transfer", transfer(ctx, f.engine, w1.WalletID, w1.WalletID, "5"), walletapi.ErrValidation},
		{"unknown destination", transfer(ctx, f.engine, w1.WalletID, "phantom-missing", "5"), walletapi.ErrNotFound},
		{"transfer overdraw", transfer(ctx, f.engine, w1.WalletID, w2.WalletID, "5"), walletapi.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, tc.err)
		}
	}

	if _, err := f.engine.GetBalances(ctx, "phantom-missing"); !errors.Is(err, walletapi.ErrNotFound) {
		t.Fatalf("expected not found balances, got %v", err)
	}
	if _, err := f.engine.GetCustomerProfile(ctx, "phantom-missing"); !errors.Is(err, walletapi.ErrNotFound) {
		t.Fatalf("expected not found profile, got %v", err)
	}
}

func TestSupportedCurrencyWithoutAccount(t *testing.T) {
	f := newFixture(t, "USD")
	w := f.wallet(t, "legacy")

	wider := New(f.store, f.users, []string{"USD", "EUR"}, nil, logging.Discard())
	_, err := wider.DepositMoney(context.Background(), walletapi.DepositRequest{WalletID: w.WalletID, Amount: "5", CurrencyCode: "EUR"})
	if !errors.Is(err, walletapi.ErrNotFound) {
		t.Fatalf("expected not found for missing EUR account, got %v", err)
	}
}

func TestHistoryNewestFirstWithCounterparty(t *testing.T) {
	f := newFixture(t)
	w1 := f.wallet(t, "alice")
	w2 := f.wallet(t, "bob")
	ctx := context.Background()
	f.deposit(t, w1.WalletID, "50")
	if err := transfer(ctx, f.engine, w1.WalletID, w2.WalletID, "20"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	sent, err := f.engine.GetTransactions(ctx, w1.WalletID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(sent) != 2 || sent[0].Type != walletapi.TypeTransfer || sent[1].Type != walletapi.TypeDeposit {
		t.Fatalf("unexpected order %+v", sent)
	}
	if sent[0].Direction != walletapi.DirectionDebit || sent[0].Counterparty == nil || sent[0].Counterparty.Username != "bob" {
		t.Fatalf("unexpected sender view %+v", sent[0])
	}
	if sent[1].Direction != walletapi.DirectionCredit || sent[1].Counterparty != nil {
		t.Fatalf("unexpected deposit view %+v", sent[1])
	}

	received, _ := f.engine.GetTransactions(ctx, w2.WalletID, 10)
	if len(received) != 1 || received[0].Direction != walletapi.DirectionCredit {
		t.Fatalf("unexpected receiver view %+v", received)
	}
	if cp := received[0].Counterparty; cp == nil || cp.WalletID != w1.WalletID || cp.FullName != "Full alice" {
		t.Fatalf("unexpected counterparty %+v", cp)
	}

	limited, _ := f.engine.GetTransactions(ctx, w1.WalletID, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestCustomerProfile(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "carol")
	profile, err := f.engine.GetCustomerProfile(context.Background(), w.WalletID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.Username != "carol" || profile.WalletID != w.WalletID || profile.CustomerID == "" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

// Random operations must keep every stored balance equal to the net of its
// transactions and never below zero.
func TestRandomOperationsConserveBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wallets := []string{f.wallet(t, "a").WalletID, f.wallet(t, "b").WalletID, f.wallet(t, "c").WalletID}
	currencies := []string{"USD", "EUR"}
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 300; step++ {
		amount := fmt.Sprintf("%d.%02d", rng.Intn(200), rng.Intn(100))
		currency := currencies[rng.Intn(len(currencies))]
		src := wallets[rng.Intn(len(wallets))]
		dst := wallets[rng.Intn(len(wallets))]

		var err error
		switch rng.Intn(3) {
		case 0:
			_, err = f.engine.DepositMoney(ctx, walletapi.DepositRequest{WalletID: src, Amount: amount, CurrencyCode: currency})
		case 1:
			_, err = f.engine.WithdrawMoney(ctx, walletapi.WithdrawRequest{WalletID: src, Amount: amount, CurrencyCode: currency})
		default:
			_, err = f.engine.TransferMoney(ctx, walletapi.TransferRequest{SourceWalletID: src, DestinationWalletID: dst, Amount: amount, CurrencyCode: currency})
		}
		if err != nil && !errors.Is(err, walletapi.ErrInsufficientFunds) && !errors.Is(err, walletapi.ErrValidation) {
			t.Fatalf("step %d: unexpected error %v", step, err)
		}

		flows, err := f.store.AccountFlows(ctx, 0)
		if err != nil {
			t.Fatalf("flows: %v", err)
		}
		for _, flow := range flows {
			if !flow.Account.Balance.Equal(flow.Calculated()) {
				t.Fatalf("step %d: account %s stored %s calculated %s", step, flow.Account.ExternalID, flow.Account.Balance, flow.Calculated())
			}
			if flow.Account.Balance.IsNegative() {
				t.Fatalf("step %d: account %s went negative", step, flow.Account.ExternalID)
			}
		}
	}
}

func TestConcurrentWithdrawalsSerialize(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "busy")
	f.deposit(t, w.WalletID, "50.00")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.engine.WithdrawMoney(context.Background(), walletapi.WithdrawRequest{WalletID: w.WalletID, Amount: "5.00", CurrencyCode: "USD"})
		}()
	}
	wg.Wait()

	if got := f.balance(t, w.WalletID, "USD"); !got.IsZero() {
		t.Fatalf("expected balance 0.00, got %s", got)
	}
	history, _ := f.engine.GetTransactions(context.Background(), w.WalletID, 100)
	if len(history) != 11 {
		t.Fatalf("expected 1 deposit and 10 withdrawals, got %d entries", len(history))
	}
}

func deposit(ctx context.Context, e *Engine, walletID, amount, currency string) error {
	_, err := e.DepositMoney(ctx, walletapi.DepositRequest{WalletID: walletID, Amount: amount, CurrencyCode: currency})
	return err
}

func transfer(ctx context.Context, e *Engine, from, to, amount string) error {
	_, err := e.TransferMoney(ctx, walletapi.TransferRequest{SourceWalletID: from, DestinationWalletID: to, Amount: amount, CurrencyCode: "USD"})
	return err
}
