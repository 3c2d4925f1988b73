package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// TemplateRepository persists supplier templates. Satisfies
// template.Repository.
type TemplateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTemplateRepository(db *sql.DB, logger *slog.Logger) *TemplateRepository {
	return &TemplateRepository{db: db, logger: logger}
}

const templateColumns = `id, supplier_id, template_name, version, is_active,
	config, usage_count, success_rate, last_used_at, created_at, updated_at`

func (r *TemplateRepository) Create(ctx context.Context, t *entity.Template) error {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return common.NewAppError(common.CodeInternal, "failed to encode template config", err)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO invoice_templates
			(id, supplier_id, template_name, version, is_active, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID.String(), t.SupplierID.String(), t.TemplateName, t.Version, t.IsActive,
		string(cfg), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to insert template", err)
	}
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM invoice_templates WHERE id = $1`, id.String())
	return scanTemplate(row)
}

func (r *TemplateRepository) GetActive(ctx context.Context, supplierID uuid.UUID) (*entity.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM invoice_templates
		 WHERE supplier_id = $1 AND is_active = $2`, supplierID.String(), true)
	return scanTemplate(row)
}

func (r *TemplateRepository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]entity.Template, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM invoice_templates
		 WHERE supplier_id = $1 ORDER BY created_at DESC, version DESC`, supplierID.String())
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to list templates", err)
	}
	defer rows.Close()

	var out []entity.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to read templates", err)
	}
	return out, nil
}

func (r *TemplateRepository) UpdateConfig(ctx context.Context, id uuid.UUID, cfg entity.TemplateConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return common.NewAppError(common.CodeInternal, "failed to encode template config", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoice_templates SET config = $1, updated_at = $2 WHERE id = $3`,
		string(raw), time.Now().UTC().Format(time.RFC3339), id.String())
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to update template config", err)
	}
	return requireRow(res, "template")
}

// Activate makes templateID the supplier's only active template, inside one
// transaction so readers never see zero or two active versions.
func (r *TemplateRepository) Activate(ctx context.Context, supplierID, templateID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		UPDATE invoice_templates SET is_active = $1, updated_at = $2
		WHERE supplier_id = $3`, false, now, supplierID.String()); err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to deactivate templates", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE invoice_templates SET is_active = $1, updated_at = $2
		WHERE id = $3 AND supplier_id = $4`,
		true, now, templateID.String(), supplierID.String())
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to activate template", err)
	}
	if err := requireRow(res, "template"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to commit activation", err)
	}
	return nil
}

// RecordUsage bumps the counters after an extraction run. Both expressions
// read pre-update column values, so the rate stays consistent with the
// counts.
func (r *TemplateRepository) RecordUsage(ctx context.Context, id uuid.UUID, success bool) error {
	inc := 0
	if success {
		inc = 1
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE invoice_templates SET
			usage_count = usage_count + 1,
			success_count = success_count + $1,
			success_rate = (success_count + $2) * 1.0 / (usage_count + 1),
			last_used_at = $3
		WHERE id = $4`,
		inc, inc, time.Now().UTC().Format(time.RFC3339), id.String())
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to record template usage", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*entity.Template, error) {
	var (
		t          entity.Template
		id, sup    string
		rawConfig  string
		lastUsed   sql.NullString
		created    string
		updated    string
	)
	err := row.Scan(&id, &sup, &t.TemplateName, &t.Version, &t.IsActive,
		&rawConfig, &t.UsageCount, &t.SuccessRate, &lastUsed, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "template not found", common.ErrNotFound)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to scan template", err)
	}

	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "invalid template id", err)
	}
	if t.SupplierID, err = uuid.Parse(sup); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "invalid supplier id", err)
	}
	if err := json.Unmarshal([]byte(rawConfig), &t.Config); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "stored template config does not decode", err)
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.String
	}
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		t.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, updated); err == nil {
		t.UpdatedAt = ts
	}
	return &t, nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "rows affected unavailable", err)
	}
	if n == 0 {
		return common.NewAppError(common.CodeNotFound, what+" not found", common.ErrNotFound)
	}
	return nil
}
