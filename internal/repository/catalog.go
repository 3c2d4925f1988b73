package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// CatalogRepository reads the ingredient catalog and supplier code mappings.
// Satisfies match.Catalog. The catalog is maintained elsewhere; the write
// methods here exist for the code-mapping maintenance flow and for seeding.
type CatalogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewCatalogRepository(db *sql.DB, logger *slog.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

func (r *CatalogRepository) LookupCode(ctx context.Context, supplierID uuid.UUID, productCode string) (*entity.Ingredient, *float64, error) {
	var (
		ing      entity.Ingredient
		unit     sql.NullString
		category sql.NullString
		price    sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT i.id, i.name, i.unit, i.category, sc.price
		FROM ingredient_supplier_codes sc
		JOIN ingredients i ON i.id = sc.ingredient_id
		WHERE sc.supplier_id = $1 AND sc.product_code = $2`,
		supplierID.String(), productCode).
		Scan(&ing.ID, &ing.Name, &unit, &category, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, common.NewAppError(common.CodeNotFound, "supplier code not mapped", common.ErrNotFound)
	}
	if err != nil {
		return nil, nil, common.NewAppError(common.CodeDatabase, "failed to look up supplier code", err)
	}

	ing.Unit = unit.String
	ing.Category = category.String
	if price.Valid {
		return &ing, &price.Float64, nil
	}
	return &ing, nil, nil
}

// SearchByName returns the candidate set for fuzzy matching. Diacritic
// folding happens in Go, so the query cannot pre-filter by the folded name;
// it returns the catalog and lets the matcher score it. Bakery catalogs are
// small enough for that.
func (r *CatalogRepository) SearchByName(ctx context.Context, _ string) ([]entity.Ingredient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, unit, category FROM ingredients ORDER BY id`)
	if err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to load ingredients", err)
	}
	defer rows.Close()

	var out []entity.Ingredient
	for rows.Next() {
		var (
			ing      entity.Ingredient
			unit     sql.NullString
			category sql.NullString
		)
		if err := rows.Scan(&ing.ID, &ing.Name, &unit, &category); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "failed to scan ingredient", err)
		}
		ing.Unit = unit.String
		ing.Category = category.String
		out = append(out, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "failed to read ingredients", err)
	}
	return out, nil
}

func (r *CatalogRepository) AddIngredient(ctx context.Context, ing entity.Ingredient) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingredients (id, name, unit, category) VALUES ($1, $2, $3, $4)`,
		ing.ID, ing.Name, nullable(ing.Unit), nullable(ing.Category))
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to insert ingredient", err)
	}
	return nil
}

func (r *CatalogRepository) AddSupplierCode(ctx context.Context, sc entity.SupplierCode) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingredient_supplier_codes (supplier_id, product_code, ingredient_id, price)
		VALUES ($1, $2, $3, $4)`,
		sc.SupplierID.String(), sc.ProductCode, sc.IngredientID, sc.Price)
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "failed to insert supplier code", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
