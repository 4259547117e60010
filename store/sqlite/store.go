// Package sqlite implements store.Store on SQLite through the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	rebillstore "github.com/xraph/rebill/store"
)

// compile-time interface check
var _ rebillstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn, e.g. "file:rebill.db" or ":memory:".
// SQLite serializes writers, so the pool is limited to one connection; this
// also keeps an in-memory database alive across calls.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rebill/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rebill/sqlite: configure: %w", err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := Migrations.Migrate(ctx, executor{db: s.db}); err != nil {
		return fmt.Errorf("%w: rebill/sqlite: %w", rebill.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== History Store ====================

func (s *Store) AppendItems(ctx context.Context, items []item.Item) error {
	if err := rebillstore.CheckItems(items); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebill/sqlite: append items: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, it := range items {
		exists, err := rowExists(ctx, tx, `SELECT 1 FROM rebill_items WHERE id = ?`, it.ID)
		if err != nil {
			return fmt.Errorf("rebill/sqlite: append items: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: item %s", rebill.ErrAlreadyExists, it.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rebill_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			itemArgs(it)...,
		); err != nil {
			return fmt.Errorf("rebill/sqlite: insert item %s: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM rebill_items WHERE id = ?`, itemID)
	it, err := scanItem(row)
	if err != nil {
		if isNoRows(err) {
			return nil, rebill.ErrItemNotFound
		}
		return nil, fmt.Errorf("rebill/sqlite: get item: %w", err)
	}
	return &it, nil
}

func (s *Store) ListItems(ctx context.Context, subID id.SubscriptionID) ([]item.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM rebill_items WHERE subscription_id = ? ORDER BY created_at, id`, subID)
	if err != nil {
		return nil, fmt.Errorf("rebill/sqlite: list items: %w", err)
	}
	defer rows.Close()

	result := make([]item.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("rebill/sqlite: scan item: %w", err)
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]id.SubscriptionID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT subscription_id FROM rebill_items ORDER BY subscription_id`)
	if err != nil {
		return nil, fmt.Errorf("rebill/sqlite: list subscriptions: %w", err)
	}
	defer rows.Close()

	var result []id.SubscriptionID
	for rows.Next() {
		var subID id.ID
		if err := rows.Scan(&subID); err != nil {
			return nil, fmt.Errorf("rebill/sqlite: scan subscription: %w", err)
		}
		result = append(result, subID)
	}
	return result, rows.Err()
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	args, err := invoiceArgs(inv)
	if err != nil {
		return fmt.Errorf("rebill/sqlite: create invoice: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebill/sqlite: create invoice: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	exists, err := rowExists(ctx, tx, `SELECT 1 FROM rebill_invoices WHERE id = ?`, inv.ID)
	if err != nil {
		return fmt.Errorf("rebill/sqlite: create invoice: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: invoice %s", rebill.ErrAlreadyExists, inv.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rebill_invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	); err != nil {
		return fmt.Errorf("rebill/sqlite: create invoice: %w", err)
	}
	return tx.Commit()
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM rebill_invoices WHERE id = ?`, invID)
	inv, err := scanInvoice(row)
	if err != nil {
		if isNoRows(err) {
			return nil, rebill.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("rebill/sqlite: get invoice: %w", err)
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, subID id.SubscriptionID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM rebill_invoices WHERE subscription_id = ?`
	args := []any{subID}
	if opts.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	q += ` ORDER BY created_at, id`
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rebill/sqlite: list invoices: %w", err)
	}
	defer rows.Close()

	result := make([]*invoice.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("rebill/sqlite: scan invoice: %w", err)
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (s *Store) VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebill/sqlite: void invoice: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM rebill_invoices WHERE id = ?`, invID).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return rebill.ErrInvoiceNotFound
		}
		return fmt.Errorf("rebill/sqlite: void invoice: %w", err)
	}
	if invoice.Status(status) == invoice.StatusVoided {
		return rebill.ErrInvoiceVoided
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE rebill_invoices SET status = ?, voided_at = ?, void_reason = ? WHERE id = ?`,
		string(invoice.StatusVoided), formatTime(time.Now()), reason, invID,
	); err != nil {
		return fmt.Errorf("rebill/sqlite: void invoice: %w", err)
	}
	return tx.Commit()
}

// ==================== Helpers ====================

func rowExists(ctx context.Context, tx *sql.Tx, query string, args ...any) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	return err == nil, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
