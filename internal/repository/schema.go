package repository

import (
	"context"
	"database/sql"

	"github.com/pekarna-dev/invoice-engine/internal/common"
)

// Schema statements are written to run unchanged on Postgres and SQLite:
// TEXT ids, parameterized timestamps (no DEFAULT CURRENT_TIMESTAMP), and $N
// placeholders in ascending order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS invoice_templates (
		id TEXT PRIMARY KEY,
		supplier_id TEXT NOT NULL,
		template_name TEXT NOT NULL,
		version TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		config TEXT NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_used_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_invoice_templates_supplier
		ON invoice_templates (supplier_id)`,

	`CREATE TABLE IF NOT EXISTS ingredients (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT,
		category TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS ingredient_supplier_codes (
		supplier_id TEXT NOT NULL,
		product_code TEXT NOT NULL,
		ingredient_id INTEGER NOT NULL REFERENCES ingredients (id),
		price DOUBLE PRECISION,
		PRIMARY KEY (supplier_id, product_code)
	)`,

	`CREATE TABLE IF NOT EXISTS invoices_received (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		receiver_id TEXT,
		invoice_date TEXT,
		total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		payment_type TEXT,
		processing_status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	// Serializes concurrent approvals of the same invoice; the transaction's
	// duplicate check plus this index make check-then-act safe.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_received_number_supplier
		ON invoices_received (invoice_number, supplier_id)`,

	`CREATE TABLE IF NOT EXISTS items_received (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices_received (id) ON DELETE CASCADE,
		ingredient_id INTEGER NOT NULL,
		line_number INTEGER NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		unit_price DOUBLE PRECISION NOT NULL,
		line_total DOUBLE PRECISION NOT NULL,
		unit_of_measure TEXT,
		matching_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_weight_kg DOUBLE PRECISION,
		price_per_kg DOUBLE PRECISION,
		package_weight_kg DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS ix_items_received_invoice
		ON items_received (invoice_id)`,
}

// Migrate creates the schema. Statements are idempotent; running Migrate on
// every startup is expected.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return common.NewAppError(common.CodeDatabase, "schema migration failed", err)
		}
	}
	return nil
}
