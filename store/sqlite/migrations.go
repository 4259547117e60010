package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/xraph/rebill/store/migrate"
)

// Migrations is the migration group for the rebill store (SQLite).
var Migrations = migrate.NewGroup("rebill")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_rebill_items",
			Version: "20240101000001",
			Up: `
CREATE TABLE IF NOT EXISTS rebill_items (
    id               TEXT PRIMARY KEY,
    kind             TEXT NOT NULL,
    subscription_id  TEXT NOT NULL,
    invoice_id       TEXT,
    period_start     TEXT NOT NULL,
    period_end       TEXT NOT NULL,
    amount_cents     INTEGER NOT NULL DEFAULT 0,
    amount_currency  TEXT NOT NULL DEFAULT '',
    plan_name        TEXT NOT NULL DEFAULT '',
    phase_name       TEXT NOT NULL DEFAULT '',
    rate_cents       INTEGER NOT NULL DEFAULT 0,
    rate_currency    TEXT NOT NULL DEFAULT '',
    target_id        TEXT,
    source_id        TEXT,
    created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rebill_items_sub ON rebill_items (subscription_id, created_at, id);
CREATE INDEX IF NOT EXISTS idx_rebill_items_target ON rebill_items (target_id);
`,
			Down: `DROP TABLE IF EXISTS rebill_items`,
		},
		&migrate.Migration{
			Name:    "create_rebill_invoices",
			Version: "20240101000002",
			Up: `
CREATE TABLE IF NOT EXISTS rebill_invoices (
    id                 TEXT PRIMARY KEY,
    subscription_id    TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'draft',
    currency           TEXT NOT NULL DEFAULT '',
    total_amount_cents INTEGER NOT NULL DEFAULT 0,
    total_currency     TEXT NOT NULL DEFAULT '',
    line_items         TEXT NOT NULL DEFAULT '[]',
    period_start       TEXT NOT NULL,
    period_end         TEXT NOT NULL,
    voided_at          TEXT,
    void_reason        TEXT NOT NULL DEFAULT '',
    metadata           TEXT NOT NULL DEFAULT '{}',
    created_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rebill_invoices_sub ON rebill_invoices (subscription_id, created_at);
CREATE INDEX IF NOT EXISTS idx_rebill_invoices_status ON rebill_invoices (subscription_id, status);
`,
			Down: `DROP TABLE IF EXISTS rebill_invoices`,
		},
	)
}

// executor runs migrations against a database/sql handle.
type executor struct {
	db *sql.DB
}

func (e executor) Init(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS rebill_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`)
	return err
}

func (e executor) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT version FROM rebill_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (e executor) Apply(ctx context.Context, m *migrate.Migration) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rebill_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, formatTime(time.Now()),
	); err != nil {
		return err
	}
	return tx.Commit()
}
