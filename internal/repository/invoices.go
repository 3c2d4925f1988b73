package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
	"github.com/pekarna-dev/invoice-engine/internal/layout"
)

// InvoiceRepository persists approved invoices.
type InvoiceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *sql.DB, logger *slog.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

// ApproveRequest carries a reviewed extraction result into the approval
// transaction. ConfirmReplace must be set to overwrite an existing invoice
// with the same (invoice number, supplier) pair.
type ApproveRequest struct {
	SupplierID     uuid.UUID
	ReceiverID     *uuid.UUID
	Result         *entity.ExtractionResult
	ConfirmReplace bool
}

// ApproveResult reports what the transaction committed.
type ApproveResult struct {
	Committed        bool      `json:"committed"`
	InvoiceID        uuid.UUID `json:"persisted_invoice_id"`
	ExcludedUnmapped int       `json:"excluded_unmapped_count"`
	Replaced         bool      `json:"replaced"`
}

// Approve runs the all-or-nothing approval: duplicate check, header upsert,
// line replacement, total recompute. A duplicate without ConfirmReplace
// aborts before any write and returns common.ErrDuplicateInvoice. The unique
// index on (invoice_number, supplier_id) serializes concurrent approvals;
// the loser of a race fails its insert and rolls back fully.
func (r *InvoiceRepository) Approve(ctx context.Context, req ApproveRequest) (*ApproveResult, error) {
	if req.Result == nil || len(req.Result.Lines) == 0 {
		return nil, common.NewAppError(common.CodeInvalidInput, "nothing to approve", nil)
	}
	header := req.Result.Header
	if header.InvoiceNumber == "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "invoice number is required for approval", nil)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM invoices_received
		WHERE invoice_number = $1 AND supplier_id = $2`,
		header.InvoiceNumber, req.SupplierID.String()).Scan(&existing)

	var invoiceID uuid.UUID
	replaced := false
	switch {
	case err == nil:
		if !req.ConfirmReplace {
			// Abort point: nothing has been written yet.
			return nil, common.NewAppError(common.CodeDuplicate,
				"invoice already exists for this supplier", common.ErrDuplicateInvoice)
		}
		if invoiceID, err = uuid.Parse(existing); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "invalid stored invoice id", err)
		}
		replaced = true

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM items_received WHERE invoice_id = $1`, existing); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "failed to delete existing items", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE invoices_received SET
				receiver_id = $1, invoice_date = $2, payment_type = $3,
				processing_status = $4, updated_at = $5
			WHERE id = $6`,
			uuidOrNil(req.ReceiverID), nullable(header.Date), nullable(header.PaymentType),
			string(constants.StatusApproved), now, existing); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "failed to update invoice header", err)
		}

	case errors.Is(err, sql.ErrNoRows):
		invoiceID = uuid.New()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invoices_received
				(id, invoice_number, supplier_id, receiver_id, invoice_date,
				 payment_type, processing_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			invoiceID.String(), header.InvoiceNumber, req.SupplierID.String(),
			uuidOrNil(req.ReceiverID), nullable(header.Date), nullable(header.PaymentType),
			string(constants.StatusApproved), now, now); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "failed to insert invoice header", err)
		}

	default:
		return nil, common.NewAppError(common.CodeDatabase, "duplicate check failed", err)
	}

	total := 0.0
	lineNo := 0
	excluded := 0
	for _, li := range req.Result.Lines {
		if li.MatchedIngredientID == nil {
			excluded++
			continue
		}
		lineNo++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO items_received
				(id, invoice_id, ingredient_id, line_number, quantity, unit_price,
				 line_total, unit_of_measure, matching_confidence,
				 total_weight_kg, price_per_kg, package_weight_kg)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			uuid.New().String(), invoiceID.String(), *li.MatchedIngredientID, lineNo,
			li.Quantity, li.UnitPrice, li.Total, nullable(li.Unit), li.MatchConfidence,
			li.TotalWeightKg, li.PricePerKg, li.PackageWeightKg); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "failed to insert line item", err)
		}
		total += li.Total
	}
	total = layout.Round2(total)

	// The stored total is the sum of persisted lines, never the header's
	// extracted amount.
	if _, err := tx.ExecContext(ctx, `
		UPDATE invoices_received SET total_amount = $1, updated_at = $2 WHERE id = $3`,
		total, now, invoiceID.String()); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to store invoice total", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to commit approval", err)
	}

	r.logger.Info("approve.committed",
		"invoice_id", invoiceID,
		"invoice_number", header.InvoiceNumber,
		"supplier_id", req.SupplierID,
		"lines", lineNo,
		"excluded_unmapped", excluded,
		"replaced", replaced,
		"total", total)
	return &ApproveResult{
		Committed:        true,
		InvoiceID:        invoiceID,
		ExcludedUnmapped: excluded,
		Replaced:         replaced,
	}, nil
}

// Get loads a persisted invoice with its lines, ordered by line number.
func (r *InvoiceRepository) Get(ctx context.Context, id uuid.UUID) (*entity.PersistedInvoice, error) {
	var (
		inv      entity.PersistedInvoice
		rawID    string
		rawSup   string
		receiver sql.NullString
		date     sql.NullString
		payment  sql.NullString
		status   string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, invoice_number, supplier_id, receiver_id, invoice_date,
			total_amount, payment_type, processing_status
		FROM invoices_received WHERE id = $1`, id.String()).
		Scan(&rawID, &inv.InvoiceNumber, &rawSup, &receiver, &date,
			&inv.TotalAmount, &payment, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "invoice not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to load invoice", err)
	}

	if inv.ID, err = uuid.Parse(rawID); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "invalid stored invoice id", err)
	}
	if inv.SupplierID, err = uuid.Parse(rawSup); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "invalid stored supplier id", err)
	}
	if receiver.Valid {
		if rid, err := uuid.Parse(receiver.String); err == nil {
			inv.ReceiverID = &rid
		}
	}
	inv.InvoiceDate = date.String
	inv.PaymentType = payment.String
	inv.ProcessingStatus = constants.ProcessingStatus(status)

	lines, err := r.lines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

// FindBySupplierNumber looks an invoice up by its natural key.
func (r *InvoiceRepository) FindBySupplierNumber(ctx context.Context, supplierID uuid.UUID, invoiceNumber string) (*entity.PersistedInvoice, error) {
	var rawID string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM invoices_received
		WHERE invoice_number = $1 AND supplier_id = $2`,
		invoiceNumber, supplierID.String()).Scan(&rawID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "invoice not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to find invoice", err)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "invalid stored invoice id", err)
	}
	return r.Get(ctx, id)
}

func (r *InvoiceRepository) lines(ctx context.Context, invoiceID uuid.UUID) ([]entity.PersistedLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, invoice_id, ingredient_id, line_number, quantity, unit_price,
			line_total, unit_of_measure, matching_confidence,
			total_weight_kg, price_per_kg, package_weight_kg
		FROM items_received WHERE invoice_id = $1 ORDER BY line_number`,
		invoiceID.String())
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to load line items", err)
	}
	defer rows.Close()

	var out []entity.PersistedLine
	for rows.Next() {
		var (
			pl          entity.PersistedLine
			rawID       string
			rawInvoice  string
			unit        sql.NullString
			totalWeight sql.NullFloat64
			pricePerKg  sql.NullFloat64
			pkgWeight   sql.NullFloat64
		)
		if err := rows.Scan(&rawID, &rawInvoice, &pl.IngredientID, &pl.LineNumber,
			&pl.Quantity, &pl.UnitPrice, &pl.LineTotal, &unit, &pl.MatchingConfidence,
			&totalWeight, &pricePerKg, &pkgWeight); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "failed to scan line item", err)
		}
		if pl.ID, err = uuid.Parse(rawID); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "invalid stored line id", err)
		}
		if pl.InvoiceID, err = uuid.Parse(rawInvoice); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "invalid stored invoice id", err)
		}
		pl.UnitOfMeasure = unit.String
		if totalWeight.Valid {
			pl.TotalWeightKg = &totalWeight.Float64
		}
		if pricePerKg.Valid {
			pl.PricePerKg = &pricePerKg.Float64
		}
		if pkgWeight.Valid {
			pl.PackageWeightKg = &pkgWeight.Float64
		}
		out = append(out, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to read line items", err)
	}
	return out, nil
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
