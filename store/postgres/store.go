// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/rebill"
	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/invoice"
	"github.com/xraph/rebill/item"
	rebillstore "github.com/xraph/rebill/store"
)

// compile-time interface check
var _ rebillstore.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Store implements store.Store using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: connect: %w", err)
	}
	return New(pool), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := Migrations.Migrate(ctx, executor{pool: s.pool}); err != nil {
		return fmt.Errorf("%w: rebill/postgres: %w", rebill.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== History Store ====================

func (s *Store) AppendItems(ctx context.Context, items []item.Item) error {
	if err := rebillstore.CheckItems(items); err != nil {
		return err
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range items {
			batch.Queue(
				`INSERT INTO rebill_items (`+itemColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				toItemModel(it).args()...,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %w", rebill.ErrAlreadyExists, err)
		}
		return fmt.Errorf("rebill/postgres: append items: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM rebill_items WHERE id = $1`, itemID.String())
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: get item: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanItemModel)
	if err != nil {
		if isNoRows(err) {
			return nil, rebill.ErrItemNotFound
		}
		return nil, fmt.Errorf("rebill/postgres: get item: %w", err)
	}
	it, err := fromItemModel(m)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Store) ListItems(ctx context.Context, subID id.SubscriptionID) ([]item.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM rebill_items WHERE subscription_id = $1 ORDER BY created_at, id`,
		subID.String())
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: list items: %w", err)
	}
	models, err := pgx.CollectRows(rows, scanItemModel)
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: list items: %w", err)
	}

	result := make([]item.Item, 0, len(models))
	for _, m := range models {
		it, err := fromItemModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]id.SubscriptionID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT subscription_id FROM rebill_items ORDER BY subscription_id`)
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: list subscriptions: %w", err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: list subscriptions: %w", err)
	}

	result := make([]id.SubscriptionID, 0, len(raw))
	for _, r := range raw {
		subID, err := id.ParseSubscriptionID(r)
		if err != nil {
			return nil, err
		}
		result = append(result, subID)
	}
	return result, nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m, err := toInvoiceModel(inv)
	if err != nil {
		return fmt.Errorf("rebill/postgres: create invoice: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO rebill_invoices (`+invoiceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.args()...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invoice %s", rebill.ErrAlreadyExists, inv.ID)
		}
		return fmt.Errorf("rebill/postgres: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM rebill_invoices WHERE id = $1`, invID.String())
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: get invoice: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanInvoiceModel)
	if err != nil {
		if isNoRows(err) {
			return nil, rebill.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("rebill/postgres: get invoice: %w", err)
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, subID id.SubscriptionID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM rebill_invoices WHERE subscription_id = $1`
	args := []any{subID.String()}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	q += ` ORDER BY created_at, id`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: list invoices: %w", err)
	}
	models, err := pgx.CollectRows(rows, scanInvoiceModel)
	if err != nil {
		return nil, fmt.Errorf("rebill/postgres: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, 0, len(models))
	for _, m := range models {
		inv, err := fromInvoiceModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, nil
}

func (s *Store) VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM rebill_invoices WHERE id = $1 FOR UPDATE`, invID.String()).Scan(&status)
		if err != nil {
			if isNoRows(err) {
				return rebill.ErrInvoiceNotFound
			}
			return fmt.Errorf("rebill/postgres: void invoice: %w", err)
		}
		if invoice.Status(status) == invoice.StatusVoided {
			return rebill.ErrInvoiceVoided
		}
		_, err = tx.Exec(ctx,
			`UPDATE rebill_invoices SET status = $2, voided_at = $3, void_reason = $4 WHERE id = $1`,
			invID.String(), string(invoice.StatusVoided), time.Now().UTC(), reason)
		if err != nil {
			return fmt.Errorf("rebill/postgres: void invoice: %w", err)
		}
		return nil
	})
}

// ==================== Helpers ====================

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
