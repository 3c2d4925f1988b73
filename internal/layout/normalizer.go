// Package layout reinterprets parsed line-item fields per supplier display
// layout. Normalization runs between extraction and matching and never
// touches match fields.
package layout

import (
	"math"
	"strings"

	"github.com/pekarna-dev/invoice-engine/constants"
	"github.com/pekarna-dev/invoice-engine/internal/entity"
)

// WeightMarker flags a weight-priced line in the description column of
// weight-based suppliers.
const WeightMarker = "*"

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Normalize applies the layout's rules to every line and returns a new
// slice; the input is never mutated.
func Normalize(layout constants.DisplayLayout, lines []entity.LineItem) []entity.LineItem {
	out := make([]entity.LineItem, len(lines))
	for i, li := range lines {
		switch layout {
		case constants.LayoutWeightBased:
			out[i] = normalizeWeightBased(li)
		case constants.LayoutB:
			out[i] = normalizeLayoutB(li)
		default:
			out[i] = normalizeStandard(li)
		}
	}
	return out
}

// normalizeStandard fills a missing total from quantity and unit price. An
// extracted total is kept as-is.
func normalizeStandard(li entity.LineItem) entity.LineItem {
	if li.Total == 0 && li.Quantity > 0 && li.UnitPrice > 0 {
		li.Total = Round2(li.Quantity * li.UnitPrice)
	}
	return li
}

// normalizeWeightBased prices marker lines by weight. Kilograms stay
// authoritative; grams are a display conversion only (see
// LineItem.PackageWeightGrams).
func normalizeWeightBased(li entity.LineItem) entity.LineItem {
	if !strings.HasPrefix(strings.TrimSpace(li.Description), WeightMarker) {
		return normalizeStandard(li)
	}

	if li.TotalWeightKg == nil && li.Quantity > 0 {
		w := li.Quantity
		li.TotalWeightKg = &w
	}
	if li.PricePerKg == nil && li.UnitPrice > 0 {
		p := li.UnitPrice
		li.PricePerKg = &p
	}
	if li.TotalWeightKg != nil && li.PricePerKg != nil {
		li.Total = Round2(*li.TotalWeightKg * *li.PricePerKg)
	}
	return li
}

// normalizeLayoutB reproduces the supplier's fixed pricing rule: floor the
// quantity, floor the price, multiply, round to 2 decimals, in exactly that
// order. Overrides replace the extracted values before the computation.
func normalizeLayoutB(li entity.LineItem) entity.LineItem {
	qty := li.Quantity
	if li.QuantityOverride != nil {
		qty = *li.QuantityOverride
	}

	price := li.UnitPrice
	if li.BasePrice != nil && li.UnitsInMU != nil && *li.UnitsInMU > 0 {
		price = *li.BasePrice / *li.UnitsInMU
	}
	if li.PriceOverride != nil {
		price = *li.PriceOverride
	}

	li.Total = FlooredTotal(qty, price)
	return li
}

// FlooredTotal is layout-B's pricing law.
func FlooredTotal(quantity, price float64) float64 {
	return Round2(math.Floor(quantity) * math.Floor(price))
}
