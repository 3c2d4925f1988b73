package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

func seedCatalog(t *testing.T, repo *CatalogRepository, supplier uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	price := 18.50
	for _, ing := range []entity.Ingredient{
		{ID: 1, Name: "Mouka hladká", Unit: "kg", Category: "suroviny"},
		{ID: 2, Name: "Cukr krystal", Unit: "kg"},
	} {
		if err := repo.AddIngredient(ctx, ing); err != nil {
			t.Fatalf("AddIngredient: %v", err)
		}
	}
	if err := repo.AddSupplierCode(ctx, entity.SupplierCode{
		SupplierID: supplier, ProductCode: "10012345", IngredientID: 1, Price: &price,
	}); err != nil {
		t.Fatalf("AddSupplierCode: %v", err)
	}
	if err := repo.AddSupplierCode(ctx, entity.SupplierCode{
		SupplierID: supplier, ProductCode: "10012399", IngredientID: 2,
	}); err != nil {
		t.Fatalf("AddSupplierCode: %v", err)
	}
}

func TestLookupCode(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCatalogRepository(db, testLogger())
	supplier := uuid.New()
	seedCatalog(t, repo, supplier)
	ctx := context.Background()

	ing, price, err := repo.LookupCode(ctx, supplier, "10012345")
	if err != nil {
		t.Fatalf("LookupCode: %v", err)
	}
	if ing.ID != 1 || ing.Name != "Mouka hladká" {
		t.Fatalf("ingredient = %+v", ing)
	}
	if price == nil || *price != 18.50 {
		t.Fatalf("price = %v", price)
	}

	// mapping without a list price
	_, price, err = repo.LookupCode(ctx, supplier, "10012399")
	if err != nil {
		t.Fatalf("LookupCode: %v", err)
	}
	if price != nil {
		t.Fatalf("price = %v, want nil", *price)
	}

	if _, _, err := repo.LookupCode(ctx, supplier, "404"); !common.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, _, err := repo.LookupCode(ctx, uuid.New(), "10012345"); !common.IsNotFound(err) {
		t.Fatal("code must be scoped to its supplier")
	}
}

func TestSearchByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCatalogRepository(db, testLogger())
	seedCatalog(t, repo, uuid.New())

	list, err := repo.SearchByName(context.Background(), "mouka")
	if err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("candidates = %d, want full catalog", len(list))
	}
}
