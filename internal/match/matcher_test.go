package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/common"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

type fakeCatalog struct {
	codes       map[string]entity.Ingredient
	prices      map[string]float64
	ingredients []entity.Ingredient
	err         error
}

func (f *fakeCatalog) LookupCode(_ context.Context, _ uuid.UUID, code string) (*entity.Ingredient, *float64, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	ing, ok := f.codes[code]
	if !ok {
		return nil, nil, common.ErrNotFound
	}
	var price *float64
	if p, ok := f.prices[code]; ok {
		price = &p
	}
	return &ing, price, nil
}

func (f *fakeCatalog) SearchByName(_ context.Context, _ string) ([]entity.Ingredient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ingredients, nil
}

func testMatcher(c Catalog) *Matcher {
	return New(c, 0.6, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExactCodeMatch(t *testing.T) {
	cat := &fakeCatalog{
		codes:  map[string]entity.Ingredient{"10012345": {ID: 7, Name: "Mouka hladká"}},
		prices: map[string]float64{"10012345": 18.50},
	}
	lines, unmapped, err := testMatcher(cat).MatchAll(context.Background(), uuid.New(), []entity.LineItem{
		{ProductCode: "10012345", Description: "Mouka", Quantity: 25},
	})
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	li := lines[0]
	if li.MatchStatus != constants.MatchExact || li.MatchConfidence != 1.0 {
		t.Fatalf("status = %q conf = %v", li.MatchStatus, li.MatchConfidence)
	}
	if li.MatchedIngredientID == nil || *li.MatchedIngredientID != 7 {
		t.Fatalf("ingredient id = %v", li.MatchedIngredientID)
	}
	if li.UnitPrice != 18.50 {
		t.Errorf("catalog price not substituted: %v", li.UnitPrice)
	}
	if unmapped != 0 {
		t.Errorf("unmapped = %d", unmapped)
	}
}

func TestExactMatchKeepsExtractedPrice(t *testing.T) {
	cat := &fakeCatalog{
		codes:  map[string]entity.Ingredient{"10012345": {ID: 7, Name: "Mouka hladká"}},
		prices: map[string]float64{"10012345": 18.50},
	}
	lines, _, err := testMatcher(cat).MatchAll(context.Background(), uuid.New(), []entity.LineItem{
		{ProductCode: "10012345", UnitPrice: 19.90},
	})
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	if lines[0].UnitPrice != 19.90 {
		t.Errorf("extracted price overwritten: %v", lines[0].UnitPrice)
	}
}

func TestFuzzyNameMatchFoldsDiacritics(t *testing.T) {
	cat := &fakeCatalog{
		ingredients: []entity.Ingredient{
			{ID: 1, Name: "Mouka hladká"},
			{ID: 2, Name: "Cukr krystal"},
		},
	}
	lines, _, err := testMatcher(cat).MatchAll(context.Background(), uuid.New(), []entity.LineItem{
		{Description: "MOUKA HLADKA"},
	})
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	li := lines[0]
	if li.MatchStatus != constants.MatchFuzzyName {
		t.Fatalf("status = %q, want fuzzy_name", li.MatchStatus)
	}
	if li.MatchedIngredientID == nil || *li.MatchedIngredientID != 1 {
		t.Fatalf("matched %v, want Mouka hladká", li.MatchedIngredientName)
	}
	if li.MatchConfidence < 0.6 || li.MatchConfidence > 1.0 {
		t.Errorf("confidence = %v", li.MatchConfidence)
	}
}

func TestUnmappedBelowFloor(t *testing.T) {
	cat := &fakeCatalog{
		ingredients: []entity.Ingredient{{ID: 1, Name: "Mouka hladká"}},
	}
	lines, unmapped, err := testMatcher(cat).MatchAll(context.Background(), uuid.New(), []entity.LineItem{
		{ProductCode: "999", Description: "Přepravka vratná"},
	})
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	li := lines[0]
	if li.MatchStatus != constants.MatchUnmapped {
		t.Fatalf("status = %q, want unmapped", li.MatchStatus)
	}
	if li.MatchedIngredientID != nil || li.MatchConfidence != 0 {
		t.Fatalf("unmapped line carries match data: %+v", li)
	}
	if unmapped != 1 {
		t.Errorf("unmapped = %d, want 1", unmapped)
	}
}

func TestMatcherExclusivity(t *testing.T) {
	cat := &fakeCatalog{
		codes:       map[string]entity.Ingredient{"100": {ID: 1, Name: "Mouka hladká"}},
		ingredients: []entity.Ingredient{{ID: 2, Name: "Cukr krystal"}},
	}
	lines, _, err := testMatcher(cat).MatchAll(context.Background(), uuid.New(), []entity.LineItem{
		{ProductCode: "100"},
		{Description: "cukr krystal"},
		{Description: "zzz"},
	})
	if err != nil {
		t.Fatalf("MatchAll: %v", err)
	}
	for i, li := range lines {
		switch li.MatchStatus {
		case constants.MatchExact, constants.MatchFuzzyName:
			if li.MatchedIngredientID == nil {
				t.Errorf("line %d: %q without ingredient id", i, li.MatchStatus)
			}
		case constants.MatchUnmapped:
			if li.MatchedIngredientID != nil {
				t.Errorf("line %d: unmapped with ingredient id", i)
			}
		default:
			t.Errorf("line %d: no status assigned", i)
		}
	}
}

func TestCatalogOutageIsHardFailure(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("connection refused")}
	_, _, err := testMatcher(cat).MatchAll(context.Background(), uuid.New(), []entity.LineItem{
		{ProductCode: "100"},
	})
	if err == nil {
		t.Fatal("catalog outage must abort matching")
	}
}

func TestFold(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Mouka hladká", "mouka hladka"},
		{"*Flour 25kg", "flour 25kg"},
		{"  ŽITNÁ  ", "zitna"},
	}
	for _, c := range cases {
		if got := Fold(c.in); got != c.want {
			t.Errorf("Fold(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
