package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the settlement store.
var Migrations = migrate.NewGroup("settlenet")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settlenet_accounts",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlenet_accounts (
    id                     TEXT PRIMARY KEY,
    role                   TEXT NOT NULL,
    status                 TEXT NOT NULL DEFAULT 'pending',
    kyc_status             TEXT NOT NULL DEFAULT 'pending',
    kyc_checked_at         TIMESTAMPTZ,
    balance_amount         BIGINT NOT NULL DEFAULT 0,
    balance_currency       TEXT NOT NULL DEFAULT '',
    credit_limit_amount    BIGINT,
    credit_limit_currency  TEXT NOT NULL DEFAULT '',
    credit_limit_checked_at TIMESTAMPTZ,
    reserved_amount        BIGINT NOT NULL DEFAULT 0,
    reserved_currency      TEXT NOT NULL DEFAULT '',
    reserved_at            TIMESTAMPTZ,
    sanctions_clear        BOOLEAN NOT NULL DEFAULT FALSE,
    sanctions_checked_at   TIMESTAMPTZ,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_settlenet_accounts_reserved_at ON settlenet_accounts (reserved_at) WHERE reserved_amount <> 0;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlenet_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlenet_invoices",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlenet_invoices (
    id              TEXT PRIMARY KEY,
    supplier_id     TEXT NOT NULL,
    buyer_id        TEXT NOT NULL,
    amount_minor    BIGINT NOT NULL,
    currency        TEXT NOT NULL,
    terms_days      INT NOT NULL,
    hash            TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    fraud_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
    fraud_scored_at TIMESTAMPTZ,
    accepted_at     TIMESTAMPTZ,
    settled_at      TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settlenet_invoices_hash ON settlenet_invoices (hash);
CREATE INDEX IF NOT EXISTS idx_settlenet_invoices_buyer ON settlenet_invoices (buyer_id);
CREATE INDEX IF NOT EXISTS idx_settlenet_invoices_supplier ON settlenet_invoices (supplier_id);
CREATE INDEX IF NOT EXISTS idx_settlenet_invoices_pending ON settlenet_invoices (status, created_at) WHERE status = 'pending';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlenet_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlenet_pricing",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlenet_auctions (
    invoice_id TEXT PRIMARY KEY,
    status     TEXT NOT NULL DEFAULT 'open',
    opened_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    closes_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlenet_auctions_open ON settlenet_auctions (status, closes_at) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS settlenet_bids (
    id                TEXT PRIMARY KEY,
    provider_id       TEXT NOT NULL,
    invoice_id        TEXT NOT NULL REFERENCES settlenet_auctions (invoice_id),
    discount_bp       BIGINT NOT NULL,
    capacity_amount   BIGINT NOT NULL,
    capacity_currency TEXT NOT NULL,
    expires_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlenet_bids_invoice ON settlenet_bids (invoice_id);

CREATE TABLE IF NOT EXISTS settlenet_quotes (
    id                  TEXT PRIMARY KEY,
    invoice_id          TEXT NOT NULL,
    provider_id         TEXT NOT NULL,
    terms_days          INT NOT NULL,
    discount_bp         BIGINT NOT NULL,
    total_cost_amount   BIGINT NOT NULL,
    total_cost_currency TEXT NOT NULL,
    issued_at           TIMESTAMPTZ NOT NULL,
    expires_at          TIMESTAMPTZ NOT NULL,
    used                BOOLEAN NOT NULL DEFAULT FALSE,
    used_at             TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_settlenet_quotes_invoice_terms ON settlenet_quotes (invoice_id, terms_days);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS settlenet_quotes;
DROP TABLE IF EXISTS settlenet_bids;
DROP TABLE IF EXISTS settlenet_auctions;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlenet_ledger_entries",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlenet_ledger_entries (
    id              TEXT PRIMARY KEY,
    seq_no          BIGINT NOT NULL UNIQUE,
    type            TEXT NOT NULL,
    account_id      TEXT NOT NULL,
    amount_minor    BIGINT NOT NULL,
    currency        TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    corrects_entry  TEXT,
    settlement_id   TEXT,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    prev_hash       TEXT NOT NULL,
    hash            TEXT NOT NULL,
    signature       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlenet_ledger_account ON settlenet_ledger_entries (account_id);
CREATE INDEX IF NOT EXISTS idx_settlenet_ledger_seq ON settlenet_ledger_entries (seq_no);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlenet_ledger_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlenet_decision_records",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlenet_decision_records (
    id           TEXT PRIMARY KEY,
    seq_no       BIGINT NOT NULL UNIQUE,
    invariant_id TEXT NOT NULL,
    phase        TEXT NOT NULL,
    result       BOOLEAN NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    action       TEXT NOT NULL,
    snapshot     JSONB,
    actor        TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    prev_hash    TEXT NOT NULL,
    hash         TEXT NOT NULL,
    signature    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlenet_decisions_invariant ON settlenet_decision_records (invariant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settlenet_decision_records`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settlenet_settlements",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settlenet_settlements (
    id                  TEXT PRIMARY KEY,
    invoice_id          TEXT NOT NULL UNIQUE,
    supplier_id         TEXT NOT NULL,
    buyer_id            TEXT NOT NULL,
    provider_id         TEXT NOT NULL,
    amount_minor        BIGINT NOT NULL,
    currency            TEXT NOT NULL,
    discount_bp         BIGINT NOT NULL,
    buyer_cost_amount   BIGINT NOT NULL,
    buyer_cost_currency TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'pending',
    rail                TEXT NOT NULL DEFAULT '',
    started_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS settlenet_legs (
    id            TEXT PRIMARY KEY,
    settlement_id TEXT NOT NULL REFERENCES settlenet_settlements (id),
    type          TEXT NOT NULL,
    account_id    TEXT NOT NULL,
    amount_minor  BIGINT NOT NULL,
    currency      TEXT NOT NULL,
    rail_txn_id   TEXT NOT NULL DEFAULT '',
    committed     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_settlenet_legs_settlement ON settlenet_legs (settlement_id);
CREATE INDEX IF NOT EXISTS idx_settlenet_settlements_status_started ON settlenet_settlements (status, started_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS settlenet_legs;
DROP TABLE IF EXISTS settlenet_settlements;
`)
				return err
			},
		},
	)
}
