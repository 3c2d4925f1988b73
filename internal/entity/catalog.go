package entity

import "github.com/google/uuid"

// Ingredient is a catalog ingredient. The catalog is externally owned;
// this engine only reads it.
type Ingredient struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category,omitempty"`
}

// SupplierCode maps a supplier's product code to a catalog ingredient,
// optionally with the supplier's list price.
type SupplierCode struct {
	SupplierID   uuid.UUID `json:"supplier_id"`
	ProductCode  string    `json:"product_code"`
	IngredientID int64     `json:"ingredient_id"`
	Price        *float64  `json:"price,omitempty"`
}
