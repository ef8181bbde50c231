package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v int64) *int64 { return &v }

func seedWallet(t *testing.T, l Storage, userID int64, currencies ...string) (Wallet, map[string]Account) {
	t.Helper()
	accounts := make([]Account, 0, len(currencies))
	for _, c := range currencies {
		accounts = append(accounts, Account{ExternalID: fmt.Sprintf("acct-%d-%s", userID, c), CurrencyCode: c, Balance: decimal.Zero})
	}
	w, created, err := l.CreateWallet(context.Background(), Wallet{UserID: userID, ExternalID: fmt.Sprintf("wallet-%d", userID)}, accounts)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	byCurrency := make(map[string]Account, len(created))
	for _, acc := range created {
		byCurrency[acc.CurrencyCode] = acc
	}
	return w, byCurrency
}

func deposit(t *testing.T, l Storage, acc Account, amount string) Posting {
	t.Helper()
	p, err := l.Post(context.Background(), Transaction{
		ExternalID: fmt.Sprintf("dep-%s-%s", acc.ExternalID, amount), Type: TypeDeposit,
		DestinationAccountID: ptr(acc.ID), Amount: d(amount), CurrencyCode: acc.CurrencyCode,
	})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return p
}

func TestInMemoryLedger_CreateWalletOncePerUser(t *testing.T) {
	l := NewInMemory()
	w, accounts := seedWallet(t, l, 42, "USD", "EUR")
	if w.Status != StatusActive || len(accounts) != 2 {
		t.Fatalf("unexpected wallet %+v accounts %d", w, len(accounts))
	}
	for _, acc := range accounts {
		if !acc.Balance.IsZero() || acc.WalletID != w.ID {
			t.Fatalf("unexpected account %+v", acc)
		}
	}

	_, _, err := l.CreateWallet(context.Background(), Wallet{UserID: 42, ExternalID: "other"}, nil)
	if !errors.Is(err, ErrWalletExists) {
		t.Fatalf("expected ErrWalletExists, got %v", err)
	}
}

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	_, a := seedWallet(t, l, 1, "USD")
	_, b := seedWallet(t, l, 2, "USD")
	deposit(t, l, a["USD"], "100.00")

	p, err := l.Post(ctx, Transaction{
		ExternalID: "tx-1", Type: TypeTransfer, Amount: d("25.50"), CurrencyCode: "USD",
		SourceAccountID: ptr(a["USD"].ID), DestinationAccountID: ptr(b["USD"].ID),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !p.Source.Balance.Equal(d("74.50")) {
		t.Fatalf("expected source balance 74.50, got %s", p.Source.Balance)
	}
	if !p.Destination.Balance.Equal(d("25.50")) {
		t.Fatalf("expected destination balance 25.50, got %s", p.Destination.Balance)
	}
	if p.Transaction.Status != StatusCompleted || p.Transaction.ID == 0 {
		t.Fatalf("unexpected transaction %+v", p.Transaction)
	}
}

func TestInMemoryLedger_InsufficientFundsLeavesBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	_, a := seedWallet(t, l, 1, "USD")
	deposit(t, l, a["USD"], "74.50")

	_, err := l.Post(ctx, Transaction{
		ExternalID: "wd-1", Type: TypeWithdrawal, Amount: d("1000"), CurrencyCode: "USD",
		SourceAccountID: ptr(a["USD"].ID),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	var balErr *BalanceError
	if !errors.As(err, &balErr) || !balErr.Available.Equal(d("74.50")) {
		t.Fatalf("expected available balance 74.50, got %v", err)
	}

	acc, err := l.AccountByID(ctx, a["USD"].ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !acc.Balance.Equal(d("74.50")) {
		t.Fatalf("balance changed after rejected withdrawal: %s", acc.Balance)
	}
}

func TestInMemoryLedger_CreditPastMaxBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	_, a := seedWallet(t, l, 1, "USD")
	deposit(t, l, a["USD"], "9999999999999999.00")

	_, err := l.Post(ctx, Transaction{
		ExternalID: "dep-over", Type: TypeDeposit, Amount: d("1.00"), CurrencyCode: "USD",
		DestinationAccountID: ptr(a["USD"].ID),
	})
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
	deposit(t, l, a["USD"], "0.99")

	acc, err := l.AccountByID(ctx, a["USD"].ID)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !acc.Balance.Equal(MaxBalance) {
		t.Fatalf("expected balance at the maximum, got %s", acc.Balance)
	}

	if _, err := l.SetBalance(ctx, acc.ID, acc.Balance, MaxBalance.Add(d("0.01"))); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow from SetBalance, got %v", err)
	}
}

func TestInMemoryLedger_RejectsMalformedPostings(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	_, a := seedWallet(t, l, 1, "USD", "EUR")

	cases := []Transaction{
		{Type: TypeDeposit, Amount: d("1"), CurrencyCode: "USD", SourceAccountID: ptr(a["USD"].ID)},
		{Type: TypeWithdrawal, Amount: d("1"), CurrencyCode: "USD", DestinationAccountID: ptr(a["USD"].ID)},
		{Type: TypeTransfer, Amount: d("1"), CurrencyCode: "USD", SourceAccountID: ptr(a["USD"].ID), DestinationAccountID: ptr(a["USD"].ID)},
		{Type: TypeDeposit, Amount: d("0"), CurrencyCode: "USD", DestinationAccountID: ptr(a["USD"].ID)},
		{Type: "REFUND", Amount: d("1"), CurrencyCode: "USD", DestinationAccountID: ptr(a["USD"].ID)},
	}
	for i, tc := range cases {
		if _, err := l.Post(ctx, tc); !errors.Is(err, ErrInvalidPosting) {
			t.Fatalf("case %d: expected invalid posting, got %v", i, err)
		}
	}

	_, err := l.Post(ctx, Transaction{Type: TypeDeposit, Amount: d("1"), CurrencyCode: "USD", DestinationAccountID: ptr(a["EUR"].ID)})
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
}

func TestInMemoryLedger_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	_, a := seedWallet(t, l, 1, "USD")
	deposit(t, l, a["USD"], "100.00")

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Post(ctx, Transaction{
				ExternalID: fmt.Sprintf("wd-%d", i), Type: TypeWithdrawal, Amount: d("10.00"),
				CurrencyCode: "USD", SourceAccountID: ptr(a["USD"].ID),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("withdrawal %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful withdrawals, got %d", succeeded)
	}
	acc, _ := l.AccountByID(ctx, a["USD"].ID)
	if !acc.Balance.IsZero() {
		t.Fatalf("expected empty account, got %s", acc.Balance)
	}
}

func TestInMemoryLedger_TransactionsNewestFirst(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	_, a := seedWallet(t, l, 1, "USD")
	_, b := seedWallet(t, l, 2, "USD")
	deposit(t, l, a["USD"], "10")
	deposit(t, l, a["USD"], "20")
	deposit(t, l, b["USD"], "30")

	txs, err := l.TransactionsByAccounts(ctx, []int64{a["USD"].ID}, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 2 || !txs[0].Amount.Equal(d("20")) || !txs[1].Amount.Equal(d("10")) {
		t.Fatalf("unexpected history %+v", txs)
	}

	limited, _ := l.TransactionsByAccounts(ctx, []int64{a["USD"].ID, b["USD"].ID}, 1)
	if len(limited) != 1 || !limited[0].Amount.Equal(d("30")) {
		t.Fatalf("unexpected limited history %+v", limited)
	}
}

func TestInMemoryLedger_FlowsAndRepairHelpers(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	w, a := seedWallet(t, l, 1, "USD")
	_, b := seedWallet(t, l, 2, "USD")
	deposit(t, l, a["USD"], "100")
	if _, err := l.Post(ctx, Transaction{ExternalID: "t", Type: TypeTransfer, Amount: d("40"), CurrencyCode: "USD",
		SourceAccountID: ptr(a["USD"].ID), DestinationAccountID: ptr(b["USD"].ID)}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	flows, err := l.AccountFlows(ctx, w.ID)
	if err != nil {
		t.Fatalf("flows: %v", err)
	}
	if len(flows) != 1 || !flows[0].Calculated().Equal(d("60")) || !flows[0].Account.Balance.Equal(d("60")) {
		t.Fatalf("unexpected flows %+v", flows)
	}

	OverwriteBalance(l, a["USD"].ID, d("999"))
	ok, err := l.SetBalance(ctx, a["USD"].ID, d("60"), d("60"))
	if err != nil || ok {
		t.Fatalf("stale expected balance should not apply: ok=%v err=%v", ok, err)
	}
	ok, err = l.SetBalance(ctx, a["USD"].ID, d("999"), d("60"))
	if err != nil || !ok {
		t.Fatalf("set balance: ok=%v err=%v", ok, err)
	}

	DropAccount(l, b["USD"].ID)
	orphans, _ := l.OrphanTransactions(ctx)
	if len(orphans) != 1 || orphans[0].Type != TypeTransfer {
		t.Fatalf("expected the transfer to be orphaned, got %+v", orphans)
	}
	DropWallet(l, w.ID)
	orphanAccounts, _ := l.OrphanAccounts(ctx)
	if len(orphanAccounts) != 1 || orphanAccounts[0].ID != a["USD"].ID {
		t.Fatalf("expected orphaned account, got %+v", orphanAccounts)
	}
}
