package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	walletColumns      = `id, user_id, wallet_id, status, created_at`
	accountColumns     = `id, wallet_id, account_id, currency_code, balance, created_at`
	transactionColumns = `id, transaction_id, type, source_account_id, destination_account_id, amount, currency_code, note, status, created_at`
)

// PostgresLedger persists wallets, accounts and transactions in PostgreSQL.
// Balance mutations are conditional single-statement updates executed inside
// the same database transaction as the transaction insert.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateWallet inserts the wallet and one row per account in a single transaction.
func (l *PostgresLedger) CreateWallet(ctx context.Context, wallet Wallet, accounts []Account) (Wallet, []Account, error) {
	if wallet.Status == "" {
		wallet.Status = StatusActive
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	created, err := scanWallet(tx.QueryRow(ctx, `INSERT INTO wallets (user_id, wallet_id, status)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO NOTHING
        RETURNING `+walletColumns, wallet.UserID, wallet.ExternalID, wallet.Status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, nil, ErrWalletExists
		}
		return Wallet{}, nil, err
	}

	out := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		inserted, err := scanAccount(tx.QueryRow(ctx, `INSERT INTO accounts (wallet_id, account_id, currency_code, balance)
            VALUES ($1, $2, $3, $4)
            RETURNING `+accountColumns, created.ID, acc.ExternalID, acc.CurrencyCode, toNumeric(acc.Balance)))
		if err != nil {
			return Wallet{}, nil, fmt.Errorf("insert %s account: %w", acc.CurrencyCode, err)
		}
		out = append(out, inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, nil, err
	}
	return created, out, nil
}

// WalletByExternalID fetches a wallet by its externally visible identifier.
func (l *PostgresLedger) WalletByExternalID(ctx context.Context, externalID string) (Wallet, error) {
	w, err := scanWallet(l.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE wallet_id = $1`, externalID))
	return w, notFound(err, ErrWalletNotFound)
}

// WalletByUser fetches the wallet owned by a user.
func (l *PostgresLedger) WalletByUser(ctx context.Context, userID int64) (Wallet, error) {
	w, err := scanWallet(l.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	return w, notFound(err, ErrWalletNotFound)
}

// WalletByID fetches a wallet by primary key.
func (l *PostgresLedger) WalletByID(ctx context.Context, id int64) (Wallet, error) {
	w, err := scanWallet(l.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	return w, notFound(err, ErrWalletNotFound)
}

// AccountsByWallet lists the accounts of a wallet ordered by primary key.
func (l *PostgresLedger) AccountsByWallet(ctx context.Context, walletID int64) ([]Account, error) {
	rows, err := l.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE wallet_id = $1 ORDER BY id`, walletID)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// AccountByCurrency fetches the account of a wallet in one currency.
func (l *PostgresLedger) AccountByCurrency(ctx context.Context, walletID int64, currency string) (Account, error) {
	acc, err := scanAccount(l.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE wallet_id = $1 AND currency_code = $2`, walletID, currency))
	return acc, notFound(err, ErrAccountNotFound)
}

// AccountByID fetches an account by primary key.
func (l *PostgresLedger) AccountByID(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(l.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	return acc, notFound(err, ErrAccountNotFound)
}

// Post locks the touched accounts in primary-key order, applies conditional
// balance updates and inserts the transaction, all in one database transaction.
func (l *PostgresLedger) Post(ctx context.Context, t Transaction) (Posting, error) {
	if err := validatePosting(t); err != nil {
		return Posting{}, err
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Posting{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var ids []int64
	if t.SourceAccountID != nil {
		ids = append(ids, *t.SourceAccountID)
	}
	if t.DestinationAccountID != nil {
		ids = append(ids, *t.DestinationAccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	locked := make(map[int64]Account, len(ids))
	for _, id := range ids {
		acc, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return Posting{}, notFound(err, ErrAccountNotFound)
		}
		if acc.CurrencyCode != t.CurrencyCode {
			return Posting{}, ErrCurrencyMismatch
		}
		locked[id] = acc
	}

	amount := toNumeric(t.Amount)
	var posting Posting

	if t.SourceAccountID != nil {
		src, err := scanAccount(tx.QueryRow(ctx, `UPDATE accounts SET balance = balance - $1
            WHERE id = $2 AND balance - $1 >= 0
            RETURNING `+accountColumns, amount, *t.SourceAccountID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Posting{}, &BalanceError{AccountID: *t.SourceAccountID, Available: locked[*t.SourceAccountID].Balance}
			}
			return Posting{}, err
		}
		posting.Source = &src
	}

	if t.DestinationAccountID != nil {
		dst, err := scanAccount(tx.QueryRow(ctx, `UPDATE accounts SET balance = balance + $1
            WHERE id = $2
            RETURNING `+accountColumns, amount, *t.DestinationAccountID))
		if err != nil {
			if numericOverflow(err) {
				return Posting{}, ErrBalanceOverflow
			}
			return Posting{}, notFound(err, ErrAccountNotFound)
		}
		posting.Destination = &dst
	}

	if err := tx.QueryRow(ctx, `INSERT INTO transactions
        (transaction_id, type, source_account_id, destination_account_id, amount, currency_code, note, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`,
		t.ExternalID, string(t.Type), t.SourceAccountID, t.DestinationAccountID, amount, t.CurrencyCode, t.Note, t.Status,
	).Scan(&t.ID, &t.CreatedAt); err != nil {
		return Posting{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()

	if err := tx.Commit(ctx); err != nil {
		return Posting{}, err
	}

	posting.Transaction = t
	return posting, nil
}

// TransactionsByAccounts returns transactions touching any of the accounts, newest first.
func (l *PostgresLedger) TransactionsByAccounts(ctx context.Context, accountIDs []int64, limit int) ([]Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	// LIMIT NULL returns every row, matching a non-positive limit in memory.
	var rowLimit *int
	if limit > 0 {
		rowLimit = &limit
	}
	rows, err := l.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE source_account_id = ANY($1) OR destination_account_id = ANY($1)
        ORDER BY created_at DESC, id DESC
        LIMIT $2`, accountIDs, rowLimit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// Ping verifies the pool can reach the database.
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}

// CountRows counts the rows of a core table.
func (l *PostgresLedger) CountRows(ctx context.Context, table string) (int64, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	// table is one of the fixed core table names
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+pgx.Identifier{table}.Sanitize()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Columns lists the columns of a core table from information_schema.
func (l *PostgresLedger) Columns(ctx context.Context, table string) ([]string, error) {
	if !knownTable(table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	rows, err := l.db.Query(ctx, `SELECT column_name FROM information_schema.columns
        WHERE table_schema = current_schema() AND table_name = $1
        ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// AccountFlows sums credits and debits per account. A walletID of 0 selects every account.
func (l *PostgresLedger) AccountFlows(ctx context.Context, walletID int64) ([]AccountFlow, error) {
	rows, err := l.db.Query(ctx, `SELECT a.id, a.wallet_id, a.account_id, a.currency_code, a.balance, a.created_at,
            COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.destination_account_id = a.id), 0),
            COALESCE((SELECT SUM(t.amount) FROM transactions t WHERE t.source_account_id = a.id), 0)
        FROM accounts a
        WHERE $1::bigint = 0 OR a.wallet_id = $1::bigint
        ORDER BY a.id`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccountFlow
	for rows.Next() {
		var (
			f                        AccountFlow
			balance, credits, debits pgtype.Numeric
		)
		if err := rows.Scan(&f.Account.ID, &f.Account.WalletID, &f.Account.ExternalID, &f.Account.CurrencyCode,
			&balance, &f.Account.CreatedAt, &credits, &debits); err != nil {
			return nil, err
		}
		if f.Account.Balance, err = fromNumeric(balance); err != nil {
			return nil, err
		}
		if f.Credits, err = fromNumeric(credits); err != nil {
			return nil, err
		}
		if f.Debits, err = fromNumeric(debits); err != nil {
			return nil, err
		}
		f.Account.CreatedAt = f.Account.CreatedAt.UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetBalance overwrites a stored balance only if it still equals expected.
func (l *PostgresLedger) SetBalance(ctx context.Context, accountID int64, expected, balance decimal.Decimal) (bool, error) {
	cmd, err := l.db.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2 AND balance = $3`,
		toNumeric(balance), accountID, toNumeric(expected))
	if err != nil {
		if numericOverflow(err) {
			return false, ErrBalanceOverflow
		}
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// OrphanAccounts lists accounts whose wallet row does not exist.
func (l *PostgresLedger) OrphanAccounts(ctx context.Context) ([]Account, error) {
	rows, err := l.db.Query(ctx, `SELECT a.id, a.wallet_id, a.account_id, a.currency_code, a.balance, a.created_at
        FROM accounts a LEFT JOIN wallets w ON w.id = a.wallet_id
        WHERE w.id IS NULL
        ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// OrphanTransactions lists transactions referencing an account row that does not exist.
func (l *PostgresLedger) OrphanTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := l.db.Query(ctx, `SELECT t.id, t.transaction_id, t.type, t.source_account_id, t.destination_account_id,
            t.amount, t.currency_code, t.note, t.status, t.created_at
        FROM transactions t
        LEFT JOIN accounts s ON s.id = t.source_account_id
        LEFT JOIN accounts d ON d.id = t.destination_account_id
        WHERE (t.source_account_id IS NOT NULL AND s.id IS NULL)
           OR (t.destination_account_id IS NOT NULL AND d.id IS NULL)
        ORDER BY t.id`)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.ExternalID, &w.Status, &w.CreatedAt); err != nil {
		return Wallet{}, err
	}
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc     Account
		balance pgtype.Numeric
	)
	if err := row.Scan(&acc.ID, &acc.WalletID, &acc.ExternalID, &acc.CurrencyCode, &balance, &acc.CreatedAt); err != nil {
		return Account{}, err
	}
	b, err := fromNumeric(balance)
	if err != nil {
		return Account{}, err
	}
	acc.Balance = b
	acc.CreatedAt = acc.CreatedAt.UTC()
	return acc, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t      Transaction
		kind   string
		amount pgtype.Numeric
	)
	if err := row.Scan(&t.ID, &t.ExternalID, &kind, &t.SourceAccountID, &t.DestinationAccountID,
		&amount, &t.CurrencyCode, &t.Note, &t.Status, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	a, err := fromNumeric(amount)
	if err != nil {
		return Transaction{}, err
	}
	t.Type = TransactionType(kind)
	t.Amount = a
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var out []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

// numericOverflow reports SQLSTATE 22003, raised when a value does not fit NUMERIC(18,2).
func numericOverflow(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22003"
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.Int == nil {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("non-finite numeric value")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

var _ Storage = (*PostgresLedger)(nil)
