// Package diagnostics inspects and repairs mock ledger storage. Every
// operation reports failures in its result instead of returning them, so one
// failing check never aborts a diagnostic run.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walletdesk/walletdesk/internal/identity"
	"github.com/walletdesk/walletdesk/internal/ledger"
	"github.com/walletdesk/walletdesk/internal/logging"
	"github.com/walletdesk/walletdesk/internal/walletapi"
)

const (
	CheckConnectivity   = "connectivity"
	CheckSchema         = "schema"
	CheckCustomerLookup = "customer_lookup"
	CheckAccountStatus  = "account_status"
	CheckReconciliation = "balance_reconciliation"
	CheckRepair         = "data_repair"
	CheckOrphans        = "orphan_detection"
	CheckSelfTest       = "error_handling_self_test"
)

// ScopeAll marks operations that cover every account.
const ScopeAll = "all"

// CheckResult is the outcome of one diagnostic operation.
type CheckResult struct {
	Name    string         `json:"name"`
	OK      bool           `json:"ok"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ReconciliationEntry compares one account's stored balance with the balance
// implied by its transactions. Difference is stored minus calculated.
type ReconciliationEntry struct {
	AccountID         string
	WalletID          string
	CurrencyCode      string
	StoredBalance     decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsConsistent      bool

	accountID int64
}

// Reconciliation is the outcome of comparing stored and calculated balances.
type Reconciliation struct {
	Scope   string
	Entries []ReconciliationEntry
	Err     error
}

// Mismatches returns the inconsistent entries.
func (r Reconciliation) Mismatches() []ReconciliationEntry {
	var out []ReconciliationEntry
	for _, e := range r.Entries {
		if !e.IsConsistent {
			out = append(out, e)
		}
	}
	return out
}

// Result summarises the reconciliation as a check.
func (r Reconciliation) Result() CheckResult {
	if r.Err != nil {
		return CheckResult{Name: CheckReconciliation, Message: r.Err.Error(), Details: map[string]any{"scope": r.Scope}}
	}
	mismatches := r.Mismatches()
	res := CheckResult{
		Name:    CheckReconciliation,
		OK:      len(mismatches) == 0,
		Details: map[string]any{"scope": r.Scope, "accounts_checked": len(r.Entries), "mismatches": len(mismatches)},
	}
	if res.OK {
		res.Message = fmt.Sprintf("%d accounts consistent", len(r.Entries))
	} else {
		res.Message = fmt.Sprintf("%d of %d accounts have a stored balance that differs from their transactions", len(mismatches), len(r.Entries))
	}
	return res
}

// RepairReport lists the balances a repair run overwrote.
type RepairReport struct {
	Scope    string
	Repaired []ReconciliationEntry
	// Skipped holds accounts whose balance moved between reconciliation and repair.
	Skipped []ReconciliationEntry
	Err     error
}

// Result summarises the repair as a check.
func (r RepairReport) Result() CheckResult {
	if r.Err != nil {
		return CheckResult{Name: CheckRepair, Message: r.Err.Error(), Details: map[string]any{"scope": r.Scope}}
	}
	return CheckResult{
		Name:    CheckRepair,
		OK:      len(r.Skipped) == 0,
		Message: fmt.Sprintf("%d balances repaired, %d skipped", len(r.Repaired), len(r.Skipped)),
		Details: map[string]any{"scope": r.Scope, "repaired": len(r.Repaired), "skipped": len(r.Skipped)},
	}
}

// OrphanReport lists rows whose references do not resolve.
type OrphanReport struct {
	Accounts     []string
	Transactions []string
	Err          error
}

// Result summarises the orphan scan as a check.
func (r OrphanReport) Result() CheckResult {
	if r.Err != nil {
		return CheckResult{Name: CheckOrphans, Message: r.Err.Error()}
	}
	total := len(r.Accounts) + len(r.Transactions)
	res := CheckResult{
		Name:    CheckOrphans,
		OK:      total == 0,
		Message: fmt.Sprintf("%d orphaned accounts, %d orphaned transactions", len(r.Accounts), len(r.Transactions)),
		Details: map[string]any{"accounts": r.Accounts, "transactions": r.Transactions},
	}
	return res
}

// Report is the outcome of RunAll.
type Report struct {
	OK         bool          `json:"ok"`
	Checks     []CheckResult `json:"checks"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Fixtures are the collaborators the self-test uses to create throwaway data.
type Fixtures struct {
	Users   *identity.Service
	Backend walletapi.Backend
}

// Engine runs diagnostics over ledger storage.
type Engine struct {
	storage  ledger.Storage
	fixtures *Fixtures
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a diagnostics engine. fixtures may be nil, in which case the
// self-test reports itself as unavailable.
func New(storage ledger.Storage, fixtures *Fixtures, logger *slog.Logger) *Engine {
	return &Engine{
		storage:  storage,
		fixtures: fixtures,
		logger:   logging.Component(logger, "diagnostics"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Connectivity confirms storage is reachable and the core tables are queryable.
func (e *Engine) Connectivity(ctx context.Context) CheckResult {
	res := CheckResult{Name: CheckConnectivity, Details: map[string]any{}}
	if err := e.storage.Ping(ctx); err != nil {
		res.Message = fmt.Sprintf("storage unreachable: %v", err)
		return e.log(res)
	}
	var failed []string
	for _, table := range ledger.CoreTables() {
		n, err := e.storage.CountRows(ctx, table)
		if err != nil {
			failed = append(failed, table)
			res.Details[table] = err.Error()
			continue
		}
		res.Details[table] = n
	}
	res.OK = len(failed) == 0
	if res.OK {
		res.Message = "storage reachable and core tables queryable"
	} else {
		res.Message = fmt.Sprintf("tables not queryable: %v", failed)
	}
	return e.log(res)
}

// Schema confirms every expected column exists on each core table.
func (e *Engine) Schema(ctx context.Context) CheckResult {
	res := CheckResult{Name: CheckSchema}
	missing := map[string][]string{}
	for _, table := range ledger.CoreTables() {
		columns, err := e.storage.Columns(ctx, table)
		if err != nil {
			res.Message = fmt.Sprintf("read columns of %s: %v", table, err)
			return e.log(res)
		}
		present := make(map[string]bool, len(columns))
		for _, c := range columns {
			present[c] = true
		}
		for _, want := range ledger.ExpectedColumns[table] {
			if !present[want] {
				missing[table] = append(missing[table], want)
			}
		}
	}
	res.OK = len(missing) == 0
	if res.OK {
		res.Message = "all expected columns present"
	} else {
		res.Message = "missing columns"
		res.Details = map[string]any{"missing": missing}
	}
	return e.log(res)
}

// CustomerLookup resolves a wallet by its external id.
func (e *Engine) CustomerLookup(ctx context.Context, walletID string) CheckResult {
	res := CheckResult{Name: CheckCustomerLookup, Details: map[string]any{"wallet_id": walletID}}
	wallet, err := e.storage.WalletByExternalID(ctx, walletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			res.Message = fmt.Sprintf("wallet %s not found", walletID)
		} else {
			res.Message = fmt.Sprintf("lookup failed: %v", err)
		}
		return e.log(res)
	}
	res.OK = true
	res.Message = "wallet found"
	res.Details["user_id"] = wallet.UserID
	res.Details["status"] = wallet.Status
	res.Details["created_at"] = wallet.CreatedAt
	return e.log(res)
}

// AccountStatus lists a wallet's accounts. Mock accounts are active whenever they exist.
func (e *Engine) AccountStatus(ctx context.Context, walletID string) CheckResult {
	res := CheckResult{Name: CheckAccountStatus, Details: map[string]any{"wallet_id": walletID}}
	wallet, err := e.storage.WalletByExternalID(ctx, walletID)
	if err != nil {
		res.Message = fmt.Sprintf("wallet %s not resolvable: %v", walletID, err)
		return e.log(res)
	}
	accounts, err := e.storage.AccountsByWallet(ctx, wallet.ID)
	if err != nil {
		res.Message = fmt.Sprintf("list accounts: %v", err)
		return e.log(res)
	}
	list := make([]map[string]string, 0, len(accounts))
	for _, acc := range accounts {
		list = append(list, map[string]string{
			"account_id":    acc.ExternalID,
			"currency_code": acc.CurrencyCode,
			"balance":       acc.Balance.StringFixed(2),
			"status":        walletapi.StatusActive,
		})
	}
	res.OK = len(accounts) > 0
	res.Message = fmt.Sprintf("%d accounts", len(accounts))
	res.Details["accounts"] = list
	return e.log(res)
}

// Reconcile compares stored and calculated balances for one wallet.
func (e *Engine) Reconcile(ctx context.Context, walletID string) Reconciliation {
	rec := Reconciliation{Scope: walletID}
	wallet, err := e.storage.WalletByExternalID(ctx, walletID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			rec.Err = walletapi.NotFoundf("wallet %s not found", walletID)
		} else {
			rec.Err = err
		}
		e.log(rec.Result())
		return rec
	}
	rec.Entries, rec.Err = e.entries(ctx, wallet.ID)
	e.log(rec.Result())
	return rec
}

// ReconcileAll compares stored and calculated balances for every account.
func (e *Engine) ReconcileAll(ctx context.Context) Reconciliation {
	rec := Reconciliation{Scope: ScopeAll}
	rec.Entries, rec.Err = e.entries(ctx, 0)
	e.log(rec.Result())
	return rec
}

func (e *Engine) entries(ctx context.Context, walletID int64) ([]ReconciliationEntry, error) {
	flows, err := e.storage.AccountFlows(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("load account flows: %w", err)
	}
	walletIDs := map[int64]string{}
	out := make([]ReconciliationEntry, 0, len(flows))
	for _, f := range flows {
		external, ok := walletIDs[f.Account.WalletID]
		if !ok {
			if w, err := e.storage.WalletByID(ctx, f.Account.WalletID); err == nil {
				external = w.ExternalID
			}
			walletIDs[f.Account.WalletID] = external
		}
		calculated := f.Calculated()
		diff := f.Account.Balance.Sub(calculated)
		out = append(out, ReconciliationEntry{
			AccountID:         f.Account.ExternalID,
			WalletID:          external,
			CurrencyCode:      f.Account.CurrencyCode,
			StoredBalance:     f.Account.Balance,
			CalculatedBalance: calculated,
			Difference:        diff,
			IsConsistent:      diff.IsZero(),
			accountID:         f.Account.ID,
		})
	}
	return out, nil
}

// Repair overwrites every mismatching stored balance with its calculated
// value. An empty walletID repairs every account. Running it again right
// away changes nothing.
func (e *Engine) Repair(ctx context.Context, walletID string) RepairReport {
	var rec Reconciliation
	if walletID == "" || walletID == ScopeAll {
		rec = e.ReconcileAll(ctx)
	} else {
		rec = e.Reconcile(ctx, walletID)
	}
	report := RepairReport{Scope: rec.Scope, Err: rec.Err}
	if rec.Err != nil {
		e.log(report.Result())
		return report
	}

	for _, entry := range rec.Mismatches() {
		applied, err := e.storage.SetBalance(ctx, entry.accountID, entry.StoredBalance, entry.CalculatedBalance)
		if err != nil {
			report.Err = fmt.Errorf("repair account %s: %w", entry.AccountID, err)
			break
		}
		if !applied {
			report.Skipped = append(report.Skipped, entry)
			continue
		}
		e.logger.Warn("balance repaired",
			"account_id", entry.AccountID,
			"wallet_id", entry.WalletID,
			"stored", entry.StoredBalance.StringFixed(2),
			"calculated", entry.CalculatedBalance.StringFixed(2),
		)
		report.Repaired = append(report.Repaired, entry)
	}
	e.log(report.Result())
	return report
}

// Orphans finds accounts without a wallet and transactions referencing
// missing accounts. Nothing is modified.
func (e *Engine) Orphans(ctx context.Context) OrphanReport {
	var report OrphanReport
	accounts, err := e.storage.OrphanAccounts(ctx)
	if err != nil {
		report.Err = fmt.Errorf("scan accounts: %w", err)
		e.log(report.Result())
		return report
	}
	txs, err := e.storage.OrphanTransactions(ctx)
	if err != nil {
		report.Err = fmt.Errorf("scan transactions: %w", err)
		e.log(report.Result())
		return report
	}
	report.Accounts = make([]string, 0, len(accounts))
	for _, acc := range accounts {
		report.Accounts = append(report.Accounts, acc.ExternalID)
	}
	report.Transactions = make([]string, 0, len(txs))
	for _, tx := range txs {
		report.Transactions = append(report.Transactions, tx.ExternalID)
	}
	sort.Strings(report.Accounts)
	sort.Strings(report.Transactions)
	e.log(report.Result())
	return report
}

// RunAll runs every read-only check. Wallet-specific checks run only when
// walletID is set; otherwise reconciliation covers every account.
func (e *Engine) RunAll(ctx context.Context, walletID string) Report {
	report := Report{StartedAt: e.now()}
	report.Checks = append(report.Checks, e.Connectivity(ctx), e.Schema(ctx))
	if walletID != "" {
		report.Checks = append(report.Checks,
			e.CustomerLookup(ctx, walletID),
			e.AccountStatus(ctx, walletID),
			e.Reconcile(ctx, walletID).Result(),
		)
	} else {
		report.Checks = append(report.Checks, e.ReconcileAll(ctx).Result())
	}
	report.Checks = append(report.Checks, e.Orphans(ctx).Result())

	report.OK = true
	for _, c := range report.Checks {
		report.OK = report.OK && c.OK
	}
	report.FinishedAt = e.now()
	return report
}

func (e *Engine) log(res CheckResult) CheckResult {
	if res.OK {
		e.logger.Info("diagnostic check", "check", res.Name, "ok", true, "message", res.Message)
	} else {
		e.logger.Warn("diagnostic check", "check", res.Name, "ok", false, "message", res.Message)
	}
	return res
}
