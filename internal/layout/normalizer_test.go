package layout

import (
	"testing"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

func fp(v float64) *float64 { return &v }

func TestStandardFillsMissingTotal(t *testing.T) {
	lines := Normalize(constants.LayoutStandard, []entity.LineItem{
		{Quantity: 10, UnitPrice: 2.5},
		{Quantity: 5, UnitPrice: 30, Total: 149.99},
	})
	if lines[0].Total != 25 {
		t.Errorf("missing total not computed: %v", lines[0].Total)
	}
	if lines[1].Total != 149.99 {
		t.Errorf("extracted total must be kept: %v", lines[1].Total)
	}
}

func TestWeightBasedScenario(t *testing.T) {
	lines := Normalize(constants.LayoutWeightBased, []entity.LineItem{{
		Description:     "*Flour 25kg",
		TotalWeightKg:   fp(25.0),
		PricePerKg:      fp(20.0),
		PackageWeightKg: fp(25.0),
	}})

	li := lines[0]
	if li.Total != 500.0 {
		t.Errorf("total = %v, want 500.0", li.Total)
	}
	if li.PackageWeightGrams() != 25000 {
		t.Errorf("display grams = %v, want 25000", li.PackageWeightGrams())
	}
	if *li.PackageWeightKg != 25.0 {
		t.Errorf("stored kilograms changed: %v", *li.PackageWeightKg)
	}
}

func TestWeightBasedFallsBackToParsedColumns(t *testing.T) {
	lines := Normalize(constants.LayoutWeightBased, []entity.LineItem{{
		Description: "*Žitná mouka",
		Quantity:    12.5,
		UnitPrice:   18,
	}})
	li := lines[0]
	if li.TotalWeightKg == nil || *li.TotalWeightKg != 12.5 {
		t.Fatalf("weight not taken from quantity column: %+v", li)
	}
	if li.Total != 225 {
		t.Errorf("total = %v, want 225", li.Total)
	}
}

func TestWeightBasedUnmarkedLineIsStandard(t *testing.T) {
	lines := Normalize(constants.LayoutWeightBased, []entity.LineItem{{
		Description: "Rohlík tukový",
		Quantity:    10,
		UnitPrice:   2.5,
	}})
	li := lines[0]
	if li.TotalWeightKg != nil {
		t.Error("unmarked line must not become weight-priced")
	}
	if li.Total != 25 {
		t.Errorf("total = %v, want 25", li.Total)
	}
}

func TestLayoutBRoundingLaw(t *testing.T) {
	cases := []struct {
		qty, price, want float64
	}{
		{2.9, 10.9, 20},
		{3.0, 10.0, 30},
		{0.9, 100, 0},
		{7.5, 12.99, 84},
	}
	for _, c := range cases {
		if got := FlooredTotal(c.qty, c.price); got != c.want {
			t.Errorf("FlooredTotal(%v, %v) = %v, want %v", c.qty, c.price, got, c.want)
		}
	}
}

func TestLayoutBOverridesFeedTheSameLaw(t *testing.T) {
	lines := Normalize(constants.LayoutB, []entity.LineItem{{
		Quantity:         2.9,
		UnitPrice:        10.9,
		QuantityOverride: fp(5.2),
		PriceOverride:    fp(7.8),
	}})
	if lines[0].Total != 35 {
		t.Errorf("total = %v, want floor(5.2)*floor(7.8) = 35", lines[0].Total)
	}
}

func TestLayoutBBasePriceDerivation(t *testing.T) {
	lines := Normalize(constants.LayoutB, []entity.LineItem{{
		Quantity:  3,
		BasePrice: fp(120),
		UnitsInMU: fp(10),
	}})
	if lines[0].Total != 36 {
		t.Errorf("total = %v, want floor(3)*floor(12) = 36", lines[0].Total)
	}
}

func TestNormalizeNeverMutatesMatchFields(t *testing.T) {
	in := []entity.LineItem{{
		Quantity:    2,
		UnitPrice:   3,
		MatchStatus: constants.MatchExact,
	}}
	out := Normalize(constants.LayoutB, in)
	if out[0].MatchStatus != constants.MatchExact {
		t.Error("match status changed by normalization")
	}
	if in[0].Total != 0 {
		t.Error("input slice was mutated")
	}
}
