package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/rebill/store/migrate"
)

// Migrations is the migration group for the rebill store (PostgreSQL).
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
    period_start     TIMESTAMPTZ NOT NULL,
    period_end       TIMESTAMPTZ NOT NULL,
    amount_cents     BIGINT NOT NULL DEFAULT 0,
    amount_currency  TEXT NOT NULL DEFAULT '',
    plan_name        TEXT NOT NULL DEFAULT '',
    phase_name       TEXT NOT NULL DEFAULT '',
    rate_cents       BIGINT NOT NULL DEFAULT 0,
    rate_currency    TEXT NOT NULL DEFAULT '',
    target_id        TEXT,
    source_id        TEXT,
    created_at       TIMESTAMPTZ NOT NULL,
    CONSTRAINT rebill_items_period CHECK (period_start < period_end)
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
    total_amount_cents BIGINT NOT NULL DEFAULT 0,
    total_currency     TEXT NOT NULL DEFAULT '',
    line_items         JSONB NOT NULL DEFAULT '[]',
    period_start       TIMESTAMPTZ NOT NULL,
    period_end         TIMESTAMPTZ NOT NULL,
    voided_at          TIMESTAMPTZ,
    void_reason        TEXT NOT NULL DEFAULT '',
    metadata           JSONB NOT NULL DEFAULT '{}',
    created_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rebill_invoices_sub ON rebill_invoices (subscription_id, created_at);
CREATE INDEX IF NOT EXISTS idx_rebill_invoices_status ON rebill_invoices (subscription_id, status);
`,
			Down: `DROP TABLE IF EXISTS rebill_invoices`,
		},
	)
}

// executor runs migrations on a pgx pool.
type executor struct {
	pool *pgxpool.Pool
}

func (e executor) Init(ctx context.Context) error {
	_, err := e.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rebill_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	return err
}

func (e executor) Applied(ctx context.Context) (map[string]bool, error) {
	rows, err := e.pool.Query(ctx, `SELECT version FROM rebill_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

func (e executor) Apply(ctx context.Context, m *migrate.Migration) error {
	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.Up); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO rebill_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name)
		return err
	})
}
