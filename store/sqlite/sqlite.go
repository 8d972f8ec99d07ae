/*
Package sqlite provides a SQLite-backed implementation of the canteen
storage interfaces.

PURPOSE:
  Implements AccountStore, JournalStore, CashStore, and Catalog on
  SQLite. The same SQL shapes port to PostgreSQL with minor dialect
  changes.

KEY TABLES:
  accounts:        Account records (balance is the latest snapshot)
  history_entries: Append-only movement log per account
  transactions:    The journal (status flip is the only update)
  cash_entries:    Manual drawer movements
  products:        Catalog data

APPEND-ONLY ENFORCEMENT:
  - history_entries has no UPDATE or DELETE path
  - transactions permits exactly one UPDATE: status -> 'cancelled'
  - ApplyMovement writes the entry and the balance inside one SQL
    transaction, so the snapshot chain cannot be observed half-applied

WAL MODE:
  Opened with WAL for concurrent readers and crash recovery.

USAGE:
  st, err := sqlite.New("./canteen.db")
  ...
  ledger := canteen.NewLedger(st)

SEE ALSO:
  - canteen/store.go: Interface definitions
  - canteen/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/canteen-engine/canteen"
)

// Store implements all canteen storage interfaces on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grade TEXT,
		code TEXT,
		balance TEXT NOT NULL,
		points INTEGER NOT NULL DEFAULT 0,
		is_staff INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		guardian_name TEXT,
		guardian_email TEXT,
		guardian_phone TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- Append-only movement log. No UPDATE or DELETE path exists.
	CREATE TABLE IF NOT EXISTS history_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		type TEXT NOT NULL,
		value TEXT NOT NULL,
		description TEXT,
		items_json TEXT,
		balance_after TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_account
		ON history_entries(account_id);
	CREATE INDEX IF NOT EXISTS idx_history_account_created
		ON history_entries(account_id, created_at);

	-- Journal. Weak account reference: no FK, deleting an account does
	-- not require a journal rewrite.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT,
		account_name TEXT,
		items_json TEXT NOT NULL,
		returned_items_json TEXT,
		total TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		balance_snapshot TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_created
		ON transactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON transactions(account_id) WHERE account_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_status
		ON transactions(status);

	CREATE TABLE IF NOT EXISTS cash_entries (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		value TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		category TEXT,
		stock INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a canteen.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, grade, code, balance, points, is_staff, is_active,
			guardian_name, guardian_email, guardian_phone, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), a.Name, a.Grade, a.Code, a.Balance.String(), a.Points,
		boolInt(a.IsStaff), boolInt(a.IsActive),
		a.GuardianName, a.GuardianEmail, a.GuardianPhone, a.Notes,
		formatTime(a.CreatedAt))
	return err
}

func (s *Store) GetAccount(ctx context.Context, id canteen.AccountID) (canteen.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, grade, code, balance, points, is_staff, is_active,
			guardian_name, guardian_email, guardian_phone, notes, created_at
		FROM accounts WHERE id = ?`, string(id))

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return canteen.Account{}, canteen.ErrAccountNotFound
	}
	if err != nil {
		return canteen.Account{}, err
	}

	history, err := s.loadHistory(ctx, id)
	if err != nil {
		return canteen.Account{}, err
	}
	a.History = history
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, includeInactive bool) ([]canteen.Account, error) {
	q := `SELECT id, name, grade, code, balance, points, is_staff, is_active,
		guardian_name, guardian_email, guardian_phone, notes, created_at
		FROM accounts`
	if !includeInactive {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []canteen.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		history, err := s.loadHistory(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].History = history
	}
	return out, nil
}

// ApplyMovement writes the entry and the new balance inside one SQL
// transaction. Either both land or neither does.
func (s *Store) ApplyMovement(ctx context.Context, id canteen.AccountID, entry canteen.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM accounts WHERE id = ?`, string(id)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return canteen.ErrAccountNotFound
	}

	itemsJSON, err := marshalItems(entry.Items)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history_entries (id, account_id, type, value, description, items_json, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(id), string(entry.Type), entry.Value.String(),
		entry.Description, itemsJSON, entry.BalanceAfter.String(),
		formatTime(entry.CreatedAt)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`,
		entry.BalanceAfter.String(), string(id)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SetPoints(ctx context.Context, id canteen.AccountID, points int) error {
	return s.updateAccountField(ctx, id, `UPDATE accounts SET points = ? WHERE id = ?`, points)
}

func (s *Store) SetActive(ctx context.Context, id canteen.AccountID, active bool) error {
	return s.updateAccountField(ctx, id, `UPDATE accounts SET is_active = ? WHERE id = ?`, boolInt(active))
}

func (s *Store) updateAccountField(ctx context.Context, id canteen.AccountID, q string, v any) error {
	res, err := s.db.ExecContext(ctx, q, v, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return canteen.ErrAccountNotFound
	}
	return nil
}

func (s *Store) loadHistory(ctx context.Context, id canteen.AccountID) ([]canteen.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, value, description, items_json, balance_after, created_at
		FROM history_entries WHERE account_id = ? ORDER BY created_at, rowid`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []canteen.HistoryEntry
	for rows.Next() {
		var (
			e         canteen.HistoryEntry
			typ       string
			value     string
			balance   string
			itemsJSON sql.NullString
			desc      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &typ, &value, &desc, &itemsJSON, &balance, &createdAt); err != nil {
			return nil, err
		}
		e.AccountID = id
		e.Type = canteen.MovementType(typ)
		e.Description = desc.String
		if e.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		if e.BalanceAfter, err = decimal.NewFromString(balance); err != nil {
			return nil, err
		}
		if e.Items, err = unmarshalItems(itemsJSON); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// JOURNAL STORE
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx canteen.Transaction) error {
	itemsJSON, err := marshalItems(tx.Items)
	if err != nil {
		return err
	}
	returnedJSON, err := marshalItems(tx.ReturnedItems)
	if err != nil {
		return err
	}
	var snapshot any
	if tx.BalanceSnapshot != nil {
		snapshot = tx.BalanceSnapshot.String()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, account_name, items_json, returned_items_json,
			total, payment_method, status, balance_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(tx.ID), nullString(string(tx.AccountID)), tx.AccountName,
		itemsJSON, returnedJSON, tx.Total.String(),
		string(tx.PaymentMethod), string(tx.Status), snapshot,
		formatTime(tx.CreatedAt))
	return err
}

func (s *Store) GetTransaction(ctx context.Context, id canteen.TransactionID) (canteen.Transaction, error) {
	row := s.db.QueryRowContext(ctx, txSelect+` WHERE id = ?`, string(id))
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return canteen.Transaction{}, canteen.ErrTransactionNotFound
	}
	return tx, err
}

func (s *Store) ListTransactions(ctx context.Context) ([]canteen.Transaction, error) {
	return s.queryTransactions(ctx, txSelect+` ORDER BY created_at, rowid`)
}

func (s *Store) ListTransactionsInRange(ctx context.Context, from, to time.Time) ([]canteen.Transaction, error) {
	return s.queryTransactions(ctx,
		txSelect+` WHERE created_at >= ? AND created_at <= ? ORDER BY created_at, rowid`,
		formatTime(from), formatTime(to))
}

func (s *Store) MarkCancelled(ctx context.Context, id canteen.TransactionID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`,
		string(canteen.StatusCancelled), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return canteen.ErrTransactionNotFound
	}
	return nil
}

const txSelect = `SELECT id, account_id, account_name, items_json, returned_items_json,
	total, payment_method, status, balance_snapshot, created_at FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (canteen.Transaction, error) {
	var (
		tx           canteen.Transaction
		accountID    sql.NullString
		accountName  sql.NullString
		itemsJSON    sql.NullString
		returnedJSON sql.NullString
		total        string
		method       string
		status       string
		snapshot     sql.NullString
		createdAt    string
	)
	err := row.Scan(&tx.ID, &accountID, &accountName, &itemsJSON, &returnedJSON,
		&total, &method, &status, &snapshot, &createdAt)
	if err != nil {
		return canteen.Transaction{}, err
	}
	tx.AccountID = canteen.AccountID(accountID.String)
	tx.AccountName = accountName.String
	tx.PaymentMethod = canteen.PaymentMethod(method)
	tx.Status = canteen.TransactionStatus(status)
	if tx.Total, err = decimal.NewFromString(total); err != nil {
		return canteen.Transaction{}, err
	}
	if tx.Items, err = unmarshalItems(itemsJSON); err != nil {
		return canteen.Transaction{}, err
	}
	if tx.ReturnedItems, err = unmarshalItems(returnedJSON); err != nil {
		return canteen.Transaction{}, err
	}
	if snapshot.Valid {
		d, err := decimal.NewFromString(snapshot.String)
		if err != nil {
			return canteen.Transaction{}, err
		}
		tx.BalanceSnapshot = &d
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return canteen.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) queryTransactions(ctx context.Context, q string, args ...any) ([]canteen.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []canteen.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// =============================================================================
// CASH STORE
// =============================================================================

func (s *Store) AppendCashEntry(ctx context.Context, e canteen.CashEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_entries (id, type, value, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Value.String(), e.Reason, formatTime(e.CreatedAt))
	return err
}

func (s *Store) ListCashEntries(ctx context.Context) ([]canteen.CashEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, value, reason, created_at
		FROM cash_entries ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []canteen.CashEntry
	for rows.Next() {
		var (
			e         canteen.CashEntry
			typ       string
			value     string
			reason    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &typ, &value, &reason, &createdAt); err != nil {
			return nil, err
		}
		e.Type = canteen.CashEntryType(typ)
		e.Reason = reason.String
		if e.Value, err = decimal.NewFromString(value); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id canteen.ProductID) (canteen.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, category, stock, is_active FROM products WHERE id = ?`, string(id))
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return canteen.Product{}, canteen.ErrProductNotFound
	}
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]canteen.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, category, stock, is_active FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []canteen.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutProduct(ctx context.Context, p canteen.Product) error {
	var stock any
	if p.Stock != nil {
		stock = *p.Stock
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, category, stock, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, price = excluded.price,
			category = excluded.category, stock = excluded.stock,
			is_active = excluded.is_active`,
		string(p.ID), p.Name, p.Price.String(), p.Category, stock, boolInt(p.IsActive))
	return err
}

func scanProduct(row rowScanner) (canteen.Product, error) {
	var (
		p        canteen.Product
		price    string
		category sql.NullString
		stock    sql.NullInt64
		active   int
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &category, &stock, &active); err != nil {
		return canteen.Product{}, err
	}
	p.Category = category.String
	p.IsActive = active != 0
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return canteen.Product{}, err
	}
	if stock.Valid {
		n := int(stock.Int64)
		p.Stock = &n
	}
	return p, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func scanAccount(row rowScanner) (canteen.Account, error) {
	var (
		a             canteen.Account
		grade         sql.NullString
		code          sql.NullString
		balance       string
		isStaff       int
		isActive      int
		guardianName  sql.NullString
		guardianEmail sql.NullString
		guardianPhone sql.NullString
		notes         sql.NullString
		createdAt     string
	)
	err := row.Scan(&a.ID, &a.Name, &grade, &code, &balance, &a.Points,
		&isStaff, &isActive, &guardianName, &guardianEmail, &guardianPhone,
		&notes, &createdAt)
	if err != nil {
		return canteen.Account{}, err
	}
	a.Grade = grade.String
	a.Code = code.String
	a.IsStaff = isStaff != 0
	a.IsActive = isActive != 0
	a.GuardianName = guardianName.String
	a.GuardianEmail = guardianEmail.String
	a.GuardianPhone = guardianPhone.String
	a.Notes = notes.String
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return canteen.Account{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return canteen.Account{}, err
	}
	return a, nil
}

func marshalItems(items []canteen.LineItem) (sql.NullString, error) {
	if len(items) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalItems(s sql.NullString) ([]canteen.LineItem, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var items []canteen.LineItem
	if err := json.Unmarshal([]byte(s.String), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
